// Package fetcher performs the network side of a prefetch: one GET per URL,
// tagged as a passive hint or an eager fetch, with the body drained so that
// intermediate caches store the response.
package fetcher

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/aleister1102/quicklink/internal/common/errorwrapper"
	"github.com/aleister1102/quicklink/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
)

const errorBodyPreview = 512

// Result describes a completed prefetch
type Result struct {
	URL         string
	Mode        models.PrefetchMode
	StatusCode  int
	ContentType string
	Protocol    string
	Bytes       int64
	Truncated   bool
	Duration    time.Duration
}

// HTTPClient issues prefetch requests
type HTTPClient struct {
	client     *http.Client
	config     HTTPClientConfig
	logger     zerolog.Logger
	bufferPool sync.Pool
}

// NewHTTPClient creates a new HTTP client with the given configuration using net/http
func NewHTTPClient(config HTTPClientConfig, logger zerolog.Logger) (*HTTPClient, error) {
	logger = logger.With().Str("component", "PrefetchClient").Logger()

	transport := &http.Transport{
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		MaxConnsPerHost:       config.MaxConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ExpectContinueTimeout: config.ExpectContinueTimeout,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify,
		},
	}

	if config.EnableHTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			logger.Warn().Err(err).Msg("Failed to configure HTTP/2, falling back to HTTP/1.1")
		} else {
			logger.Debug().Msg("HTTP/2 support enabled")
		}
	}

	if config.Proxy != "" {
		proxyURL, err := url.Parse(config.Proxy)
		if err != nil {
			return nil, errorwrapper.WrapError(err, "failed to parse proxy URL")
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		logger.Info().Str("proxy", config.Proxy).Msg("HTTP client configured with proxy")
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}

	if !config.FollowRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	} else if config.MaxRedirects > 0 {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= config.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", config.MaxRedirects)
			}
			return nil
		}
	}

	logger.Debug().
		Dur("timeout", config.Timeout).
		Bool("insecure_skip_verify", config.InsecureSkipVerify).
		Bool("follow_redirects", config.FollowRedirects).
		Int("max_redirects", config.MaxRedirects).
		Int64("max_content_size", config.MaxContentSize).
		Bool("http2_enabled", config.EnableHTTP2).
		Msg("HTTP client created")

	return &HTTPClient{
		client: client,
		config: config,
		logger: logger,
		bufferPool: sync.Pool{
			New: func() interface{} {
				b := make([]byte, 32*1024)
				return &b
			},
		},
	}, nil
}

// Prefetch issues one GET for targetURL in the given mode and drains the body.
// Transport failures return *errorwrapper.NetworkError, non-2xx statuses
// return *errorwrapper.HTTPError. Nothing is retried.
func (c *HTTPClient) Prefetch(ctx context.Context, targetURL string, mode models.PrefetchMode) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, errorwrapper.NewNetworkError(targetURL, "failed to create request", err)
	}
	c.applyHeaders(req, mode)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errorwrapper.NewNetworkError(targetURL, "request failed", err)
	}
	defer resp.Body.Close()

	result := &Result{
		URL:         targetURL,
		Mode:        mode,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Protocol:    resp.Proto,
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyPreview))
		result.Duration = time.Since(start)
		return result, errorwrapper.NewHTTPErrorWithURL(resp.StatusCode, string(preview), targetURL)
	}

	n, truncated, err := c.drain(resp.Body)
	result.Bytes = n
	result.Truncated = truncated
	result.Duration = time.Since(start)
	if err != nil {
		return result, errorwrapper.NewNetworkError(targetURL, "failed to read response body", err)
	}

	c.logger.Debug().
		Str("url", targetURL).
		Str("mode", mode.String()).
		Int("status_code", resp.StatusCode).
		Int64("bytes", n).
		Bool("truncated", truncated).
		Dur("duration", result.Duration).
		Msg("Prefetch completed")

	return result, nil
}

func (c *HTTPClient) applyHeaders(req *http.Request, mode models.PrefetchMode) {
	for key, value := range c.config.CustomHeaders {
		req.Header.Set(key, value)
	}

	switch mode {
	case models.ModeFetch:
		req.Header.Set("Priority", "u=1")
	default:
		req.Header.Set("Sec-Purpose", "prefetch")
		req.Header.Set("Purpose", "prefetch")
		req.Header.Set("Priority", "u=5, i")
	}

	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	}
}

// drain reads the body up to MaxContentSize with a pooled buffer
func (c *HTTPClient) drain(body io.Reader) (int64, bool, error) {
	bufPtr := c.bufferPool.Get().(*[]byte)
	defer c.bufferPool.Put(bufPtr)
	buf := *bufPtr

	limit := c.config.MaxContentSize
	var total int64
	for {
		n, err := body.Read(buf)
		total += int64(n)
		// One byte past the limit tells a body of exactly the limit apart from a longer one
		if limit > 0 && total > limit {
			return limit, true, nil
		}
		if err == io.EOF {
			return total, false, nil
		}
		if err != nil {
			return total, false, err
		}
	}
}
