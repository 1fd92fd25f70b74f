package observer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aleister1102/quicklink/internal/common/errorwrapper"
	"github.com/aleister1102/quicklink/internal/config"
	"github.com/aleister1102/quicklink/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPage = `<!doctype html>
<html><head><title>Blog</title></head>
<body>
  <nav><a href="/">Home</a><a href="/about">About</a></nav>
  <main id="content">
    <a href="/posts/1">First</a>
    <a href="posts/2?ref=main">Second</a>
    <a href="#comments">Comments</a>
    <a href="mailto:author@example.com">Mail</a>
    <map><area href="https://other.test/map" alt="map"></map>
  </main>
  <a name="no-href">Anchor without target</a>
</body></html>`

func collect(t *testing.T, ch <-chan models.CandidateLink) []string {
	t.Helper()
	var out []string
	timeout := time.After(2 * time.Second)
	for {
		select {
		case link, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, link.URL)
		case <-timeout:
			t.Fatal("observer channel was not closed")
			return out
		}
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/blog/":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(testPage))
		case "/based":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(`<html><head><base href="/docs/"></head><body><a href="intro">Intro</a></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestStaticLoader_ObserveWholeDocument(t *testing.T) {
	server := newTestServer(t)
	loader := NewStaticLoader(config.NewDefaultObserverConfig(), zerolog.Nop())

	page, err := loader.Load(context.Background(), server.URL+"/blog/")
	require.NoError(t, err)
	defer page.Close()

	assert.Equal(t, server.URL+"/blog/", page.Location().String())

	links, err := page.Observe(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		server.URL + "/",
		server.URL + "/about",
		server.URL + "/posts/1",
		server.URL + "/blog/posts/2?ref=main",
		"#comments",
		"mailto:author@example.com",
		"https://other.test/map",
	}, collect(t, links))
}

func TestStaticLoader_ObserveScope(t *testing.T) {
	server := newTestServer(t)
	loader := NewStaticLoader(config.NewDefaultObserverConfig(), zerolog.Nop())

	page, err := loader.Load(context.Background(), server.URL+"/blog/")
	require.NoError(t, err)

	scope, ok := page.Query("#content")
	require.True(t, ok)
	assert.Equal(t, "#content", scope.Selector())

	links, err := page.Observe(context.Background(), scope)
	require.NoError(t, err)
	urls := collect(t, links)
	assert.Len(t, urls, 5)
	assert.NotContains(t, urls, server.URL+"/about")

	_, ok = page.Query("#missing")
	assert.False(t, ok)
	_, ok = page.Query("a[")
	assert.False(t, ok, "invalid selectors match nothing")
}

func TestStaticLoader_BaseHref(t *testing.T) {
	server := newTestServer(t)
	loader := NewStaticLoader(config.NewDefaultObserverConfig(), zerolog.Nop())

	page, err := loader.Load(context.Background(), server.URL+"/based")
	require.NoError(t, err)

	links, err := page.Observe(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{server.URL + "/docs/intro"}, collect(t, links))
	assert.Equal(t, server.URL+"/based", page.Location().String())
}

func TestStaticLoader_LoadFailure(t *testing.T) {
	server := newTestServer(t)
	loader := NewStaticLoader(config.NewDefaultObserverConfig(), zerolog.Nop())

	_, err := loader.Load(context.Background(), server.URL+"/missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errorwrapper.ErrPageLoad))
}

func TestStaticPage_ObserveStopsOnCancel(t *testing.T) {
	server := newTestServer(t)
	loader := NewStaticLoader(config.NewDefaultObserverConfig(), zerolog.Nop())

	page, err := loader.Load(context.Background(), server.URL+"/blog/")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	links, err := page.Observe(ctx, nil)
	require.NoError(t, err)

	<-links
	cancel()
	collect(t, links)

	require.NoError(t, page.Close())
	_, err = page.Observe(context.Background(), nil)
	assert.Error(t, err)
}

func TestLinkGraphLoader(t *testing.T) {
	loader := NewLinkGraphLoader().AddPage("https://example.com/page", GraphPage{
		Links: []string{"https://example.com/a", "https://example.com/b"},
		Scopes: map[string][]string{
			"#main": {"https://example.com/b"},
		},
	})

	page, err := loader.Load(context.Background(), "https://example.com/page")
	require.NoError(t, err)
	assert.Equal(t, "example.com", page.Location().Hostname())

	links, err := page.Observe(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, collect(t, links))

	scope, ok := page.Query("#main")
	require.True(t, ok)
	links, err = page.Observe(context.Background(), scope)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/b"}, collect(t, links))

	_, err = loader.Load(context.Background(), "https://example.com/unknown")
	assert.True(t, errors.Is(err, errorwrapper.ErrPageLoad))
}

func TestVisibilityTracker(t *testing.T) {
	tracker := newVisibilityTracker()

	assert.Equal(t, []string{"a", "b"}, tracker.update([]string{"a", "b", "a"}))
	assert.Empty(t, tracker.update([]string{"b", "a"}))
	assert.Equal(t, []string{"c"}, tracker.update([]string{"b", "c"}))
	assert.Empty(t, tracker.update(nil))
	assert.Equal(t, []string{"a"}, tracker.update([]string{"a"}), "re-entry is reported again")
}

func TestNewLoader(t *testing.T) {
	cfg := config.NewDefaultObserverConfig()

	loader, err := NewLoader(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &StaticLoader{}, loader)

	cfg.Mode = config.ObserverModeHeadless
	loader, err = NewLoader(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &HeadlessLoader{}, loader)

	cfg.Mode = "telepathic"
	_, err = NewLoader(cfg, zerolog.Nop())
	assert.Error(t, err)
}
