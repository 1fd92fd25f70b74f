package observer

import (
	"bytes"
	"context"
	"crypto/tls"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aleister1102/quicklink/internal/common/errorwrapper"
	"github.com/aleister1102/quicklink/internal/config"
	"github.com/aleister1102/quicklink/internal/models"
	"github.com/aleister1102/quicklink/internal/policy"
	"github.com/aleister1102/quicklink/internal/urlhandler"
	"github.com/andybalholm/cascadia"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"
)

// StaticLoader downloads a page over HTTP and observes its markup. A static
// document has no viewport, so every anchor counts as visible exactly once.
type StaticLoader struct {
	config config.ObserverConfig
	logger zerolog.Logger
}

// NewStaticLoader creates a StaticLoader
func NewStaticLoader(cfg config.ObserverConfig, logger zerolog.Logger) *StaticLoader {
	return &StaticLoader{
		config: cfg,
		logger: logger.With().Str("component", "StaticLoader").Logger(),
	}
}

// Load implements Loader
func (l *StaticLoader) Load(ctx context.Context, pageURL string) (Page, error) {
	collector, err := l.createCollector(ctx)
	if err != nil {
		return nil, errorwrapper.NewPageLoadError(pageURL, err)
	}

	var (
		page    *staticPage
		loadErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			loadErr = errorwrapper.WrapError(err, "failed to parse HTML")
			return
		}
		page = newStaticPage(r.Request.URL, doc, l.logger)
		l.logger.Debug().
			Str("url", r.Request.URL.String()).
			Int("status_code", r.StatusCode).
			Int("body_size", len(r.Body)).
			Msg("Page loaded")
	})
	collector.OnError(func(r *colly.Response, err error) {
		loadErr = err
	})

	if err := collector.Visit(pageURL); err != nil {
		return nil, errorwrapper.NewPageLoadError(pageURL, err)
	}
	collector.Wait()

	if loadErr != nil {
		return nil, errorwrapper.NewPageLoadError(pageURL, loadErr)
	}
	if page == nil {
		return nil, errorwrapper.NewPageLoadError(pageURL, errorwrapper.NewError("no response received"))
	}
	return page, nil
}

// createCollector creates a colly collector for a single page download
func (l *StaticLoader) createCollector(ctx context.Context) (*colly.Collector, error) {
	collectorOptions := []colly.CollectorOption{
		colly.IgnoreRobotsTxt(),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	}
	if l.config.UserAgent != "" {
		collectorOptions = append(collectorOptions, colly.UserAgent(l.config.UserAgent))
	}
	if l.config.MaxBodySizeMB > 0 {
		collectorOptions = append(collectorOptions, colly.MaxBodySize(l.config.MaxBodySizeMB*1024*1024))
	}

	collector := colly.NewCollector(collectorOptions...)

	timeout := time.Duration(l.config.RequestTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultObserverRequestTimeoutSecs) * time.Second
	}
	collector.SetRequestTimeout(timeout)

	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: l.config.InsecureSkipTLSVerify,
		},
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	})

	return collector, nil
}

type staticPage struct {
	location *url.URL
	base     *url.URL
	doc      *goquery.Document
	logger   zerolog.Logger

	mu     sync.Mutex
	closed bool
}

func newStaticPage(location *url.URL, doc *goquery.Document, logger zerolog.Logger) *staticPage {
	loc := *location
	page := &staticPage{
		location: &loc,
		base:     &loc,
		doc:      doc,
		logger:   logger,
	}

	// <base href> changes how relative anchors resolve, not where the page lives
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if resolved, err := urlhandler.ResolveURL(href, &loc); err == nil {
			if baseURL, err := url.Parse(resolved); err == nil {
				page.base = baseURL
			}
		}
	}
	return page
}

// Location implements policy.Document
func (p *staticPage) Location() *url.URL {
	loc := *p.location
	return &loc
}

// Query implements policy.Document using CSS selectors
func (p *staticPage) Query(selector string) (policy.Element, bool) {
	selector = strings.TrimSpace(selector)
	if _, err := cascadia.ParseGroup(selector); err != nil {
		p.logger.Debug().Err(err).Str("selector", selector).Msg("Invalid scope selector")
		return nil, false
	}
	if p.doc.Find(selector).Length() == 0 {
		return nil, false
	}
	return selectorElement{selector: selector}, true
}

// Observe implements Page
func (p *staticPage) Observe(ctx context.Context, scope policy.Element) (<-chan models.CandidateLink, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, errorwrapper.NewError("page is closed")
	}

	root := p.doc.Selection
	if selector := scopeSelector(scope); selector != "" {
		root = p.doc.Find(selector).First()
	}

	var hrefs []string
	root.Find(anchorSelector).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		hrefs = append(hrefs, p.absolute(href))
	})

	out := make(chan models.CandidateLink)
	go func() {
		defer close(out)
		for _, href := range hrefs {
			if !emit(ctx, out, href) {
				return
			}
		}
		p.logger.Debug().Int("links", len(hrefs)).Msg("Static page observed")
	}()
	return out, nil
}

// absolute resolves href the way a browser reports anchor targets.
// Values that cannot be resolved are passed through for eligibility to reject.
func (p *staticPage) absolute(href string) string {
	trimmed := strings.TrimSpace(href)
	if trimmed == "" || urlhandler.IsFragmentOnly(trimmed) {
		return trimmed
	}
	resolved, err := urlhandler.ResolveURL(trimmed, p.base)
	if err != nil {
		return trimmed
	}
	return resolved
}

// Close implements Page
func (p *staticPage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
