// Package policy turns raw prefetch options into an immutable, fully
// validated policy. Resolution is fail-soft: malformed input is replaced by
// defaults and recorded as an anomaly, never returned as an error.
package policy

import (
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/aleister1102/quicklink/internal/idle"
)

const (
	DefaultIdleTimeout          = 2000 * time.Millisecond
	DefaultMaxConcurrentFetches = 6
	DefaultThrottleInterval     = time.Duration(0)

	// WildcardOrigin in the origin allow-list admits every host
	WildcardOrigin = "*"
)

// Recognised option keys
const (
	KeyEl        = "el"
	KeyURLs      = "urls"
	KeyTimeout   = "timeout"
	KeyTimeoutFn = "timeoutFn"
	KeyPriority  = "priority"
	KeyOrigins   = "origins"
	KeyIgnores   = "ignores"
	KeyLimit     = "limit"
	KeyThrottle  = "throttle"
	KeyOnError   = "onError"
)

// Options is the raw, untyped option mapping
type Options map[string]any

// Element is an opaque reference to a node of the observed document
type Element interface {
	Selector() string
}

// Document is the page a policy is resolved against
type Document interface {
	Location() *url.URL
	Query(selector string) (Element, bool)
}

// ErrorHandler receives prefetch failures
type ErrorHandler func(url string, err error)

// Anomaly records an option value that was replaced by its default
type Anomaly struct {
	Key    string
	Value  any
	Reason string
}

func (a Anomaly) String() string {
	return fmt.Sprintf("%s=%v: %s", a.Key, a.Value, a.Reason)
}

// Policy is the resolved prefetch policy for one page load.
// It is never mutated after Resolve returns.
type Policy struct {
	document       *url.URL
	scope          Element
	staticURLs     []string
	idleTimeout    time.Duration
	scheduler      idle.Scheduler
	errorHandler   ErrorHandler
	preferFetch    bool
	allowedOrigins []string
	ignorePatterns []*regexp.Regexp
	maxConcurrent  int
	throttle       time.Duration
	anomalies      []Anomaly
}

// Default returns the policy used when no options are given
func Default(document *url.URL) *Policy {
	p := &Policy{
		idleTimeout:   DefaultIdleTimeout,
		maxConcurrent: DefaultMaxConcurrentFetches,
		throttle:      DefaultThrottleInterval,
	}
	if document != nil {
		loc := *document
		p.document = &loc
	}
	return p
}

// Document returns a copy of the current document URL, or nil when unknown
func (p *Policy) Document() *url.URL {
	if p.document == nil {
		return nil
	}
	loc := *p.document
	return &loc
}

// Scope returns the scope root, or nil for the whole document
func (p *Policy) Scope() Element { return p.scope }

// StaticURLs returns the URLs prefetched unconditionally at startup
func (p *Policy) StaticURLs() []string { return append([]string(nil), p.staticURLs...) }

// IdleTimeout bounds how long a prefetch may wait for an idle period
func (p *Policy) IdleTimeout() time.Duration { return p.idleTimeout }

// Scheduler returns the caller-supplied scheduler, or nil for the default one
func (p *Policy) Scheduler() idle.Scheduler { return p.scheduler }

// ErrorHandler returns the caller-supplied error handler, or nil
func (p *Policy) ErrorHandler() ErrorHandler { return p.errorHandler }

// PreferFetch reports whether eager fetches replace passive hints
func (p *Policy) PreferFetch() bool { return p.preferFetch }

// AllowedOrigins returns the host allow-list; empty means same-origin only
func (p *Policy) AllowedOrigins() []string { return append([]string(nil), p.allowedOrigins...) }

// IgnorePatterns returns the compiled ignore patterns in configuration order
func (p *Policy) IgnorePatterns() []*regexp.Regexp {
	return append([]*regexp.Regexp(nil), p.ignorePatterns...)
}

// MaxConcurrentFetches is the cap on simultaneous in-flight prefetches
func (p *Policy) MaxConcurrentFetches() int { return p.maxConcurrent }

// ThrottleInterval is the minimum spacing between successive prefetches
func (p *Policy) ThrottleInterval() time.Duration { return p.throttle }

// Anomalies lists the option values that were rejected during resolution
func (p *Policy) Anomalies() []Anomaly { return append([]Anomaly(nil), p.anomalies...) }

// AllowsOrigin reports whether host passes the origin allow-list
func (p *Policy) AllowsOrigin(host string) bool {
	if host == "" {
		return false
	}
	if len(p.allowedOrigins) == 0 {
		return p.document != nil && equalHost(host, p.document.Hostname())
	}
	for _, origin := range p.allowedOrigins {
		if origin == WildcardOrigin || equalHost(host, origin) {
			return true
		}
	}
	return false
}

// MatchesIgnore returns the first ignore pattern matching absoluteURL
func (p *Policy) MatchesIgnore(absoluteURL string) (*regexp.Regexp, bool) {
	for _, pattern := range p.ignorePatterns {
		if pattern.MatchString(absoluteURL) {
			return pattern, true
		}
	}
	return nil, false
}
