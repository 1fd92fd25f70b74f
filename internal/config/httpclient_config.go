package config

// HTTPClientConfig configures the transport used for prefetch requests
type HTTPClientConfig struct {
	TimeoutSecs        int               `json:"timeout_secs,omitempty" yaml:"timeout_secs,omitempty" validate:"omitempty,min=1"`
	UserAgent          string            `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	FollowRedirects    bool              `json:"follow_redirects" yaml:"follow_redirects"`
	MaxRedirects       int               `json:"max_redirects,omitempty" yaml:"max_redirects,omitempty" validate:"omitempty,min=0"`
	InsecureSkipVerify bool              `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
	MaxContentSizeKB   int               `json:"max_content_size_kb,omitempty" yaml:"max_content_size_kb,omitempty" validate:"omitempty,min=0"`
	EnableHTTP2        bool              `json:"enable_http2" yaml:"enable_http2"`
	Proxy              string            `json:"proxy,omitempty" yaml:"proxy,omitempty" validate:"omitempty,url"`
	MaxIdleConns       int               `json:"max_idle_conns,omitempty" yaml:"max_idle_conns,omitempty" validate:"omitempty,min=1"`
	MaxConnsPerHost    int               `json:"max_conns_per_host,omitempty" yaml:"max_conns_per_host,omitempty" validate:"omitempty,min=1"`
	CustomHeaders      map[string]string `json:"custom_headers,omitempty" yaml:"custom_headers,omitempty"`
}

// NewDefaultHTTPClientConfig creates default prefetch transport configuration
func NewDefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		TimeoutSecs:        DefaultHTTPClientTimeoutSecs,
		UserAgent:          DefaultObserverUserAgent,
		FollowRedirects:    true,
		MaxRedirects:       DefaultHTTPClientMaxRedirects,
		InsecureSkipVerify: false,
		MaxContentSizeKB:   DefaultHTTPClientMaxContentKB,
		EnableHTTP2:        true,
		MaxIdleConns:       DefaultHTTPClientMaxIdleConns,
		MaxConnsPerHost:    DefaultHTTPClientMaxConnsPerHost,
		CustomHeaders:      map[string]string{},
	}
}
