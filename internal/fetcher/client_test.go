package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/aleister1102/quicklink/internal/common/errorwrapper"
	"github.com/aleister1102/quicklink/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_Prefetch_HintHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "prefetch", r.Header.Get("Sec-Purpose"))
		assert.Equal(t, "prefetch", r.Header.Get("Purpose"))
		assert.Equal(t, "u=5, i", r.Header.Get("Priority"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "test-value", r.Header.Get("X-Test-Header"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>hello</html>"))
	}))
	defer server.Close()

	client, err := NewHTTPClientBuilder(zerolog.Nop()).
		WithUserAgent("test-agent").
		WithHeader("X-Test-Header", "test-value").
		Build()
	require.NoError(t, err)

	result, err := client.Prefetch(context.Background(), server.URL, models.ModeHint)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, int64(len("<html>hello</html>")), result.Bytes)
	assert.Equal(t, "text/html", result.ContentType)
	assert.Equal(t, models.ModeHint, result.Mode)
	assert.False(t, result.Truncated)
}

func TestHTTPClient_Prefetch_FetchHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Sec-Purpose"))
		assert.Equal(t, "u=1", r.Header.Get("Priority"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client, err := NewHTTPClientBuilder(zerolog.Nop()).Build()
	require.NoError(t, err)

	result, err := client.Prefetch(context.Background(), server.URL, models.ModeFetch)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, result.StatusCode)
	assert.Equal(t, models.ModeFetch, result.Mode)
}

func TestHTTPClient_Prefetch_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	}))
	defer server.Close()

	client, err := NewHTTPClientBuilder(zerolog.Nop()).Build()
	require.NoError(t, err)

	result, err := client.Prefetch(context.Background(), server.URL+"/gone", models.ModeHint)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, http.StatusNotFound, result.StatusCode)

	var httpErr *errorwrapper.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, "missing", httpErr.Message)
	assert.True(t, errors.Is(err, errorwrapper.ErrNetworkFailure))
}

func TestHTTPClient_Prefetch_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := server.URL
	server.Close()

	client, err := NewHTTPClientBuilder(zerolog.Nop()).WithTimeout(2 * time.Second).Build()
	require.NoError(t, err)

	result, err := client.Prefetch(context.Background(), target, models.ModeHint)
	require.Error(t, err)
	assert.Nil(t, result)

	var netErr *errorwrapper.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, target, netErr.URL)
	assert.True(t, errors.Is(err, errorwrapper.ErrNetworkFailure))
}

func TestHTTPClient_Prefetch_MaxContentSize(t *testing.T) {
	body := strings.Repeat("a", 4096)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	client, err := NewHTTPClientBuilder(zerolog.Nop()).WithMaxContentSize(1024).Build()
	require.NoError(t, err)

	result, err := client.Prefetch(context.Background(), server.URL, models.ModeHint)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), result.Bytes)
	assert.True(t, result.Truncated)

	exact, err := NewHTTPClientBuilder(zerolog.Nop()).WithMaxContentSize(4096).Build()
	require.NoError(t, err)
	result, err = exact.Prefetch(context.Background(), server.URL, models.ModeHint)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), result.Bytes)
	assert.False(t, result.Truncated)
}

// sizeRecorder remembers the largest read buffer it was handed
type sizeRecorder struct {
	r       io.Reader
	maxRead int
}

func (s *sizeRecorder) Read(p []byte) (int, error) {
	s.maxRead = max(s.maxRead, len(p))
	return s.r.Read(p)
}

func TestHTTPClient_DrainUsesPooledBuffer(t *testing.T) {
	newClient := func(limit int64) *HTTPClient {
		c := &HTTPClient{config: HTTPClientConfig{MaxContentSize: limit}}
		c.bufferPool.New = func() interface{} {
			b := make([]byte, 7)
			return &b
		}
		return c
	}

	src := &sizeRecorder{r: strings.NewReader(strings.Repeat("x", 100))}
	n, truncated, err := newClient(0).drain(src)
	require.NoError(t, err)
	assert.Equal(t, int64(100), n)
	assert.False(t, truncated)
	assert.Equal(t, 7, src.maxRead)

	n, truncated, err = newClient(50).drain(strings.NewReader(strings.Repeat("x", 100)))
	require.NoError(t, err)
	assert.Equal(t, int64(50), n)
	assert.True(t, truncated)

	n, truncated, err = newClient(100).drain(strings.NewReader(strings.Repeat("x", 100)))
	require.NoError(t, err)
	assert.Equal(t, int64(100), n)
	assert.False(t, truncated)

	boom := errors.New("connection reset")
	n, _, err = newClient(0).drain(io.MultiReader(strings.NewReader("abc"), iotest.ErrReader(boom)))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(3), n)
}

func TestHTTPClient_Redirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("new"))
	}))
	defer server.Close()

	following, err := NewHTTPClientBuilder(zerolog.Nop()).WithFollowRedirects(true).Build()
	require.NoError(t, err)
	result, err := following.Prefetch(context.Background(), server.URL+"/old", models.ModeHint)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.StatusCode)

	notFollowing, err := NewHTTPClientBuilder(zerolog.Nop()).WithFollowRedirects(false).Build()
	require.NoError(t, err)
	result, err = notFollowing.Prefetch(context.Background(), server.URL+"/old", models.ModeHint)
	require.Error(t, err)
	assert.Equal(t, http.StatusFound, result.StatusCode)
}

func TestHTTPClient_Prefetch_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client, err := NewHTTPClientBuilder(zerolog.Nop()).Build()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = client.Prefetch(ctx, server.URL, models.ModeHint)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNewHTTPClient_InvalidProxy(t *testing.T) {
	_, err := NewHTTPClientBuilder(zerolog.Nop()).WithProxy("://bad proxy").Build()
	assert.Error(t, err)
}
