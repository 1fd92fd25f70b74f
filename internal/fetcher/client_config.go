package fetcher

import (
	"time"

	"github.com/aleister1102/quicklink/internal/config"
)

// HTTPClientConfig holds configuration for the prefetch HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration     // Request timeout
	InsecureSkipVerify    bool              // Skip TLS verification
	FollowRedirects       bool              // Whether to follow redirects
	MaxRedirects          int               // Maximum number of redirects to follow
	Proxy                 string            // Proxy URL (HTTP/SOCKS)
	CustomHeaders         map[string]string // Headers added to every request
	UserAgent             string            // User-Agent header
	MaxContentSize        int64             // Bytes read per response, 0 for no limit
	MaxIdleConns          int               // Maximum idle connections
	MaxIdleConnsPerHost   int               // Maximum idle connections per host
	MaxConnsPerHost       int               // Maximum connections per host
	IdleConnTimeout       time.Duration     // Idle connection timeout
	TLSHandshakeTimeout   time.Duration     // TLS handshake timeout
	ExpectContinueTimeout time.Duration     // Expect 100-continue timeout
	DialTimeout           time.Duration     // Connection dial timeout
	KeepAlive             time.Duration     // Keep-alive duration
	EnableHTTP2           bool              // Enable HTTP/2 support
}

// DefaultHTTPClientConfig returns the default HTTP client configuration
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout:               time.Duration(config.DefaultHTTPClientTimeoutSecs) * time.Second,
		InsecureSkipVerify:    false,
		FollowRedirects:       true,
		MaxRedirects:          config.DefaultHTTPClientMaxRedirects,
		UserAgent:             config.DefaultObserverUserAgent,
		MaxContentSize:        int64(config.DefaultHTTPClientMaxContentKB) * 1024,
		MaxIdleConns:          config.DefaultHTTPClientMaxIdleConns,
		MaxIdleConnsPerHost:   config.DefaultHTTPClientMaxConnsPerHost,
		MaxConnsPerHost:       config.DefaultHTTPClientMaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DialTimeout:           10 * time.Second,
		KeepAlive:             30 * time.Second,
		EnableHTTP2:           true,
		CustomHeaders: map[string]string{
			"Accept-Language": "en-US,en;q=0.9",
		},
	}
}

// NewHTTPClientConfig maps the application configuration onto client settings
func NewHTTPClientConfig(cfg config.HTTPClientConfig) HTTPClientConfig {
	clientConfig := DefaultHTTPClientConfig()

	if cfg.TimeoutSecs > 0 {
		clientConfig.Timeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}
	if cfg.UserAgent != "" {
		clientConfig.UserAgent = cfg.UserAgent
	}
	clientConfig.FollowRedirects = cfg.FollowRedirects
	if cfg.MaxRedirects > 0 {
		clientConfig.MaxRedirects = cfg.MaxRedirects
	}
	clientConfig.InsecureSkipVerify = cfg.InsecureSkipVerify
	if cfg.MaxContentSizeKB >= 0 {
		clientConfig.MaxContentSize = int64(cfg.MaxContentSizeKB) * 1024
	}
	clientConfig.EnableHTTP2 = cfg.EnableHTTP2
	clientConfig.Proxy = cfg.Proxy
	if cfg.MaxIdleConns > 0 {
		clientConfig.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxConnsPerHost > 0 {
		clientConfig.MaxConnsPerHost = cfg.MaxConnsPerHost
		clientConfig.MaxIdleConnsPerHost = cfg.MaxConnsPerHost
	}
	for key, value := range cfg.CustomHeaders {
		clientConfig.CustomHeaders[key] = value
	}

	return clientConfig
}
