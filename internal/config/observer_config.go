package config

import "time"

// HeadlessBrowserConfig configures the headless viewport observer
type HeadlessBrowserConfig struct {
	ChromePath          string   `json:"chrome_path,omitempty" yaml:"chrome_path,omitempty"`
	UserDataDir         string   `json:"user_data_dir,omitempty" yaml:"user_data_dir,omitempty"`
	WindowWidth         int      `json:"window_width,omitempty" yaml:"window_width,omitempty" validate:"omitempty,min=100"`
	WindowHeight        int      `json:"window_height,omitempty" yaml:"window_height,omitempty" validate:"omitempty,min=100"`
	PageLoadTimeoutSecs int      `json:"page_load_timeout_secs,omitempty" yaml:"page_load_timeout_secs,omitempty" validate:"omitempty,min=1"`
	WaitAfterLoadMs     int      `json:"wait_after_load_ms,omitempty" yaml:"wait_after_load_ms,omitempty" validate:"omitempty,min=0"`
	PollIntervalMs      int      `json:"poll_interval_ms,omitempty" yaml:"poll_interval_ms,omitempty" validate:"omitempty,min=50"`
	MaxScrolls          int      `json:"max_scrolls,omitempty" yaml:"max_scrolls,omitempty" validate:"omitempty,min=0"`
	DisableImages       bool     `json:"disable_images" yaml:"disable_images"`
	IgnoreHTTPSErrors   bool     `json:"ignore_https_errors" yaml:"ignore_https_errors"`
	BrowserArgs         []string `json:"browser_args,omitempty" yaml:"browser_args,omitempty"`
}

// NewDefaultHeadlessBrowserConfig creates default headless browser configuration
func NewDefaultHeadlessBrowserConfig() HeadlessBrowserConfig {
	return HeadlessBrowserConfig{
		WindowWidth:         DefaultHeadlessWindowWidth,
		WindowHeight:        DefaultHeadlessWindowHeight,
		PageLoadTimeoutSecs: DefaultHeadlessPageLoadTimeoutSecs,
		WaitAfterLoadMs:     DefaultHeadlessWaitAfterLoadMs,
		PollIntervalMs:      DefaultHeadlessPollIntervalMs,
		MaxScrolls:          DefaultHeadlessMaxScrolls,
		DisableImages:       true,
		IgnoreHTTPSErrors:   true,
		BrowserArgs:         []string{"--no-sandbox", "--disable-dev-shm-usage", "--disable-gpu"},
	}
}

// ObserverConfig selects how a page is loaded and observed
type ObserverConfig struct {
	Mode                  string                `json:"mode,omitempty" yaml:"mode,omitempty" validate:"omitempty,observermode"`
	UserAgent             string                `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	RequestTimeoutSecs    int                   `json:"request_timeout_secs,omitempty" yaml:"request_timeout_secs,omitempty" validate:"omitempty,min=1"`
	SessionTimeoutSecs    int                   `json:"session_timeout_secs,omitempty" yaml:"session_timeout_secs,omitempty" validate:"omitempty,min=1"`
	MaxBodySizeMB         int                   `json:"max_body_size_mb,omitempty" yaml:"max_body_size_mb,omitempty" validate:"omitempty,min=1"`
	InsecureSkipTLSVerify bool                  `json:"insecure_skip_tls_verify" yaml:"insecure_skip_tls_verify"`
	HeadlessBrowser       HeadlessBrowserConfig `json:"headless_browser,omitempty" yaml:"headless_browser,omitempty"`
}

// NewDefaultObserverConfig creates default observer configuration
func NewDefaultObserverConfig() ObserverConfig {
	return ObserverConfig{
		Mode:                  DefaultObserverMode,
		UserAgent:             DefaultObserverUserAgent,
		RequestTimeoutSecs:    DefaultObserverRequestTimeoutSecs,
		SessionTimeoutSecs:    DefaultObserverSessionTimeoutSecs,
		MaxBodySizeMB:         DefaultObserverMaxBodySizeMB,
		InsecureSkipTLSVerify: false,
		HeadlessBrowser:       NewDefaultHeadlessBrowserConfig(),
	}
}

// SessionTimeout returns the upper bound for one observed page load
func (c ObserverConfig) SessionTimeout() time.Duration {
	if c.SessionTimeoutSecs <= 0 {
		return time.Duration(DefaultObserverSessionTimeoutSecs) * time.Second
	}
	return time.Duration(c.SessionTimeoutSecs) * time.Second
}
