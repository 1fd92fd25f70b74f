package config

const (
	// Log Defaults
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
	DefaultLogFile       = ""
	DefaultMaxLogSizeMB  = 100
	DefaultMaxLogBackups = 3

	// Prefetch Defaults (site-wide option layer)
	DefaultPrefetchTimeoutMs = 2000
	DefaultPrefetchTimeoutFn = "requestIdleCallback"
	DefaultPrefetchPriority  = false

	// Observer Defaults
	DefaultObserverMode               = ObserverModeStatic
	DefaultObserverUserAgent          = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	DefaultObserverRequestTimeoutSecs = 20
	DefaultObserverSessionTimeoutSecs = 60
	DefaultObserverMaxBodySizeMB      = 5

	// Headless Defaults
	DefaultHeadlessWindowWidth         = 1366
	DefaultHeadlessWindowHeight        = 768
	DefaultHeadlessPageLoadTimeoutSecs = 30
	DefaultHeadlessWaitAfterLoadMs     = 500
	DefaultHeadlessPollIntervalMs      = 400
	DefaultHeadlessMaxScrolls          = 20

	// HTTP Client Defaults
	DefaultHTTPClientTimeoutSecs     = 10
	DefaultHTTPClientMaxRedirects    = 5
	DefaultHTTPClientMaxContentKB    = 2048
	DefaultHTTPClientMaxIdleConns    = 50
	DefaultHTTPClientMaxConnsPerHost = 10

	// Idle Defaults
	DefaultIdleCPUThreshold   = 50.0
	DefaultIdlePollIntervalMs = 250
	DefaultIdleSampleWindowMs = 100
	DefaultIdleTimerDelayMs   = 50

	// History Defaults
	DefaultHistorySQLiteDBPath = "database/quicklink_history.db"
)

// Observer modes
const (
	ObserverModeStatic   = "static"
	ObserverModeHeadless = "headless"
)
