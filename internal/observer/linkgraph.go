package observer

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/aleister1102/quicklink/internal/common/errorwrapper"
	"github.com/aleister1102/quicklink/internal/models"
	"github.com/aleister1102/quicklink/internal/policy"
)

// GraphPage is one page of a LinkGraphLoader: the links it shows in order,
// and the links under each scope selector it contains.
type GraphPage struct {
	Links  []string
	Scopes map[string][]string
}

// LinkGraphLoader serves pages from memory. Every Observe call replays the
// page's links in order, as one visibility episode.
type LinkGraphLoader struct {
	mu    sync.RWMutex
	pages map[string]GraphPage
}

// NewLinkGraphLoader creates an empty LinkGraphLoader
func NewLinkGraphLoader() *LinkGraphLoader {
	return &LinkGraphLoader{pages: make(map[string]GraphPage)}
}

// AddPage registers the page served for pageURL
func (l *LinkGraphLoader) AddPage(pageURL string, page GraphPage) *LinkGraphLoader {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pages[strings.TrimSpace(pageURL)] = page
	return l
}

// Load implements Loader
func (l *LinkGraphLoader) Load(ctx context.Context, pageURL string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, errorwrapper.NewPageLoadError(pageURL, err)
	}

	l.mu.RLock()
	page, ok := l.pages[strings.TrimSpace(pageURL)]
	l.mu.RUnlock()
	if !ok {
		return nil, errorwrapper.NewPageLoadError(pageURL, errorwrapper.NewError("page not found"))
	}

	location, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return nil, errorwrapper.NewPageLoadError(pageURL, err)
	}
	return &graphPage{location: location, page: page}, nil
}

type graphPage struct {
	location *url.URL
	page     GraphPage
}

func (p *graphPage) Location() *url.URL {
	loc := *p.location
	return &loc
}

func (p *graphPage) Query(selector string) (policy.Element, bool) {
	selector = strings.TrimSpace(selector)
	if _, ok := p.page.Scopes[selector]; !ok {
		return nil, false
	}
	return selectorElement{selector: selector}, true
}

func (p *graphPage) Observe(ctx context.Context, scope policy.Element) (<-chan models.CandidateLink, error) {
	links := p.page.Links
	if selector := scopeSelector(scope); selector != "" {
		scoped, ok := p.page.Scopes[selector]
		if !ok {
			return nil, errorwrapper.NewError("scope '%s' not found", selector)
		}
		links = scoped
	}
	links = append([]string(nil), links...)

	out := make(chan models.CandidateLink)
	go func() {
		defer close(out)
		for _, link := range links {
			if !emit(ctx, out, link) {
				return
			}
		}
	}()
	return out, nil
}

func (p *graphPage) Close() error { return nil }
