package observer

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aleister1102/quicklink/internal/common/errorwrapper"
	"github.com/aleister1102/quicklink/internal/config"
	"github.com/aleister1102/quicklink/internal/models"
	"github.com/aleister1102/quicklink/internal/policy"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

// visibleLinksJS returns the targets of anchors inside the scope that
// intersect the viewport, or null when the scope element is gone.
const visibleLinksJS = `(scopeSelector, anchorSelector) => {
	const root = scopeSelector ? document.querySelector(scopeSelector) : document;
	if (!root) return null;
	const vw = window.innerWidth || document.documentElement.clientWidth;
	const vh = window.innerHeight || document.documentElement.clientHeight;
	const out = [];
	root.querySelectorAll(anchorSelector).forEach((a) => {
		const r = a.getBoundingClientRect();
		if ((r.width > 0 || r.height > 0) && r.bottom > 0 && r.right > 0 && r.top < vh && r.left < vw) {
			out.push(a.href);
		}
	});
	return out;
}`

// scrollJS scrolls one viewport down and reports whether the page moved
const scrollJS = `() => {
	const before = window.scrollY;
	window.scrollBy(0, window.innerHeight);
	return window.scrollY !== before;
}`

// HeadlessLoader opens pages in headless Chromium and reports anchors as
// they enter the viewport while the page is scrolled.
type HeadlessLoader struct {
	config config.ObserverConfig
	logger zerolog.Logger

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// NewHeadlessLoader creates a HeadlessLoader. The browser starts on first Load.
func NewHeadlessLoader(cfg config.ObserverConfig, logger zerolog.Logger) *HeadlessLoader {
	return &HeadlessLoader{
		config: cfg,
		logger: logger.With().Str("component", "HeadlessLoader").Logger(),
	}
}

func (l *HeadlessLoader) start() (*rod.Browser, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.browser != nil {
		return l.browser, nil
	}

	cfg := l.config.HeadlessBrowser
	browserLauncher := launcher.New().Headless(true)
	if cfg.ChromePath != "" {
		browserLauncher = browserLauncher.Bin(cfg.ChromePath)
	}
	if cfg.UserDataDir != "" {
		browserLauncher = browserLauncher.UserDataDir(cfg.UserDataDir)
	}
	for _, arg := range cfg.BrowserArgs {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name == "" {
			continue
		}
		if hasValue {
			browserLauncher = browserLauncher.Set(flags.Flag(name), value)
		} else {
			browserLauncher = browserLauncher.Set(flags.Flag(name))
		}
	}
	if cfg.DisableImages {
		browserLauncher = browserLauncher.Set("blink-settings", "imagesEnabled=false")
	}
	if cfg.IgnoreHTTPSErrors || l.config.InsecureSkipTLSVerify {
		browserLauncher = browserLauncher.Set("ignore-certificate-errors")
	}

	controlURL, err := browserLauncher.Launch()
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to launch browser")
	}

	browser := rod.New().ControlURL(controlURL).NoDefaultDevice()
	if err := browser.Connect(); err != nil {
		browserLauncher.Kill()
		return nil, errorwrapper.WrapError(err, "failed to connect browser")
	}

	l.browser = browser
	l.launcher = browserLauncher
	l.logger.Info().Str("control_url", controlURL).Msg("Headless browser started")
	return browser, nil
}

// Load implements Loader
func (l *HeadlessLoader) Load(ctx context.Context, pageURL string) (Page, error) {
	browser, err := l.start()
	if err != nil {
		return nil, errorwrapper.NewPageLoadError(pageURL, err)
	}

	cfg := l.config.HeadlessBrowser
	timeout := time.Duration(cfg.PageLoadTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(config.DefaultHeadlessPageLoadTimeoutSecs) * time.Second
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, errorwrapper.NewPageLoadError(pageURL, errorwrapper.WrapError(err, "failed to create page"))
	}

	width, height := cfg.WindowWidth, cfg.WindowHeight
	if width <= 0 {
		width = config.DefaultHeadlessWindowWidth
	}
	if height <= 0 {
		height = config.DefaultHeadlessWindowHeight
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{Width: width, Height: height}); err != nil {
		l.logger.Warn().Err(err).Msg("Failed to set viewport")
	}
	if l.config.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: l.config.UserAgent}); err != nil {
			l.logger.Warn().Err(err).Msg("Failed to set user agent")
		}
	}

	loading := page.Context(ctx).Timeout(timeout)
	if err := loading.Navigate(pageURL); err != nil {
		_ = page.Close()
		return nil, errorwrapper.NewPageLoadError(pageURL, err)
	}
	if err := loading.WaitLoad(); err != nil {
		_ = page.Close()
		return nil, errorwrapper.NewPageLoadError(pageURL, err)
	}

	if cfg.WaitAfterLoadMs > 0 {
		select {
		case <-ctx.Done():
			_ = page.Close()
			return nil, errorwrapper.NewPageLoadError(pageURL, ctx.Err())
		case <-time.After(time.Duration(cfg.WaitAfterLoadMs) * time.Millisecond):
		}
	}

	location, err := url.Parse(pageURL)
	if info, infoErr := page.Info(); infoErr == nil && info.URL != "" {
		location, err = url.Parse(info.URL)
	}
	if err != nil {
		_ = page.Close()
		return nil, errorwrapper.NewPageLoadError(pageURL, err)
	}

	l.logger.Debug().Str("url", location.String()).Msg("Page loaded in headless browser")

	pollInterval := time.Duration(cfg.PollIntervalMs) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = time.Duration(config.DefaultHeadlessPollIntervalMs) * time.Millisecond
	}

	return &headlessPage{
		page:         page,
		location:     location,
		pollInterval: pollInterval,
		maxScrolls:   cfg.MaxScrolls,
		logger:       l.logger,
	}, nil
}

// Close stops the browser
func (l *HeadlessLoader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var err error
	if l.browser != nil {
		err = l.browser.Close()
		l.browser = nil
	}
	if l.launcher != nil {
		l.launcher.Cleanup()
		l.launcher = nil
	}
	l.logger.Debug().Msg("Headless browser stopped")
	return err
}

type headlessPage struct {
	page         *rod.Page
	location     *url.URL
	pollInterval time.Duration
	maxScrolls   int
	logger       zerolog.Logger

	closeOnce sync.Once
}

// Location implements policy.Document
func (p *headlessPage) Location() *url.URL {
	loc := *p.location
	return &loc
}

// Query implements policy.Document
func (p *headlessPage) Query(selector string) (policy.Element, bool) {
	selector = strings.TrimSpace(selector)
	found, _, err := p.page.Has(selector)
	if err != nil {
		p.logger.Debug().Err(err).Str("selector", selector).Msg("Scope query failed")
		return nil, false
	}
	if !found {
		return nil, false
	}
	return selectorElement{selector: selector}, true
}

// Observe implements Page
func (p *headlessPage) Observe(ctx context.Context, scope policy.Element) (<-chan models.CandidateLink, error) {
	out := make(chan models.CandidateLink)
	go observeViewport(ctx, rodViewport{page: p.page.Context(ctx)}, scopeSelector(scope), p.pollInterval, p.maxScrolls, p.logger, out)
	return out, nil
}

// viewport is the part of a rendered page the poll loop reads and scrolls
type viewport interface {
	// visibleLinks returns the anchors inside scope that intersect the
	// viewport. present is false once the scope element is gone.
	visibleLinks(scope string) (links []string, present bool, err error)
	// scroll moves one viewport down and reports whether the page moved
	scroll() (bool, error)
}

// observeViewport polls vp, reporting links as they enter the viewport and
// scrolling between polls, until the page stops moving, the scope element
// disappears or ctx ends.
func observeViewport(ctx context.Context, vp viewport, scope string, pollInterval time.Duration, maxScrolls int, logger zerolog.Logger, out chan<- models.CandidateLink) {
	defer close(out)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	tracker := newVisibilityTracker()
	scrolls := 0
	exhausted := false

	for {
		visible, present, err := vp.visibleLinks(scope)
		if err != nil {
			if ctx.Err() == nil {
				logger.Debug().Err(err).Msg("Visibility poll failed, stopping observation")
			}
			return
		}
		if !present {
			logger.Debug().Str("scope", scope).Msg("Scope element removed, stopping observation")
			return
		}

		for _, href := range tracker.update(visible) {
			if !emit(ctx, out, href) {
				return
			}
		}

		if exhausted {
			return
		}
		if maxScrolls > 0 && scrolls >= maxScrolls {
			exhausted = true
		} else if moved, err := vp.scroll(); err != nil || !moved {
			exhausted = true
		} else {
			scrolls++
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

type rodViewport struct {
	page *rod.Page
}

func (v rodViewport) visibleLinks(scope string) ([]string, bool, error) {
	result, err := v.page.Eval(visibleLinksJS, scope, anchorSelector)
	if err != nil {
		return nil, false, err
	}
	if result.Value.Nil() {
		return nil, false, nil
	}

	var links []string
	if err := result.Value.Unmarshal(&links); err != nil {
		return nil, false, err
	}
	return links, true, nil
}

func (v rodViewport) scroll() (bool, error) {
	result, err := v.page.Eval(scrollJS)
	if err != nil {
		return false, err
	}
	return result.Value.Bool(), nil
}

// Close implements Page
func (p *headlessPage) Close() error {
	var err error
	p.closeOnce.Do(func() {
		err = p.page.Close()
	})
	return err
}

// visibilityTracker reports links on entering the viewport and forgets them
// on leaving, so a later re-entry is reported again.
type visibilityTracker struct {
	visible map[string]struct{}
}

func newVisibilityTracker() *visibilityTracker {
	return &visibilityTracker{visible: make(map[string]struct{})}
}

// update records the currently visible links and returns those that entered
func (t *visibilityTracker) update(current []string) []string {
	next := make(map[string]struct{}, len(current))
	var entered []string
	for _, href := range current {
		if _, dup := next[href]; dup {
			continue
		}
		next[href] = struct{}{}
		if _, seen := t.visible[href]; !seen {
			entered = append(entered, href)
		}
	}
	t.visible = next
	return entered
}
