package policy

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/aleister1102/quicklink/internal/idle"
	"github.com/rs/zerolog"
)

// Resolver builds policies from layered options
type Resolver struct {
	registry *Registry
	logger   zerolog.Logger
}

// NewResolver creates a resolver. A nil registry resolves no names.
func NewResolver(registry *Registry, logger zerolog.Logger) *Resolver {
	return &Resolver{
		registry: registry,
		logger:   logger.With().Str("component", "PolicyResolver").Logger(),
	}
}

// Resolve merges defaults and overrides (override wins per key) and
// validates every recognised option against doc. It always returns a
// usable policy.
func (r *Resolver) Resolve(doc Document, defaults, overrides Options) *Policy {
	var location *url.URL
	if doc != nil {
		location = safeLocation(doc)
	}
	p := Default(location)

	merged := mergeOptions(defaults, overrides)
	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := merged[key]
		if value == nil {
			continue
		}
		r.apply(p, doc, key, value)
	}

	for _, anomaly := range p.anomalies {
		r.logger.Debug().
			Str("option", anomaly.Key).
			Interface("value", anomaly.Value).
			Str("reason", anomaly.Reason).
			Msg("Prefetch option replaced by default")
	}

	return p
}

func mergeOptions(defaults, overrides Options) Options {
	merged := make(Options, len(defaults)+len(overrides))
	for key, value := range defaults {
		merged[key] = value
	}
	for key, value := range overrides {
		merged[key] = value
	}
	return merged
}

func (r *Resolver) apply(p *Policy, doc Document, key string, value any) {
	switch key {
	case KeyEl:
		r.applyScope(p, doc, value)
	case KeyURLs:
		p.staticURLs = stringList(p, key, value)
	case KeyTimeout:
		if ms, ok := toNumber(value); ok && ms >= 0 {
			p.idleTimeout = millis(ms)
		} else {
			p.anomaly(key, value, "expected a non-negative number of milliseconds")
		}
	case KeyTimeoutFn:
		r.applyScheduler(p, value)
	case KeyOnError:
		r.applyErrorHandler(p, value)
	case KeyPriority:
		if b, ok := value.(bool); ok {
			p.preferFetch = b
		} else {
			p.anomaly(key, value, "expected a boolean")
		}
	case KeyOrigins:
		applyOrigins(p, value)
	case KeyIgnores:
		applyIgnores(p, value)
	case KeyLimit:
		if n, ok := toNumber(value); ok && n >= 1 {
			p.maxConcurrent = int(math.Min(n, math.MaxInt32))
		} else {
			p.anomaly(key, value, "expected a number of at least 1")
		}
	case KeyThrottle:
		if ms, ok := toNumber(value); ok && ms >= 0 {
			p.throttle = millis(ms)
		} else {
			p.anomaly(key, value, "expected a non-negative number of milliseconds")
		}
	default:
		p.anomaly(key, value, "unknown option")
	}
}

func (r *Resolver) applyScope(p *Policy, doc Document, value any) {
	selector, ok := value.(string)
	if !ok {
		p.anomaly(KeyEl, value, "expected a CSS selector string")
		return
	}
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return
	}
	if doc == nil {
		p.anomaly(KeyEl, value, "no document to query")
		return
	}

	element, found, err := safeQuery(doc, selector)
	switch {
	case err != nil:
		p.anomaly(KeyEl, value, err.Error())
	case !found || element == nil:
		p.anomaly(KeyEl, value, "selector matched no element")
	default:
		p.scope = element
	}
}

func (r *Resolver) applyScheduler(p *Policy, value any) {
	switch v := value.(type) {
	case string:
		name := strings.TrimSpace(v)
		if name == "" || name == idle.NameIdleCallback {
			return
		}
		if scheduler, ok := r.registry.Scheduler(name); ok {
			p.scheduler = scheduler
			return
		}
		p.anomaly(KeyTimeoutFn, value, "no scheduler registered under this name")
	case idle.Scheduler:
		p.scheduler = v
	default:
		p.anomaly(KeyTimeoutFn, value, "expected a scheduler name")
	}
}

func (r *Resolver) applyErrorHandler(p *Policy, value any) {
	switch v := value.(type) {
	case string:
		name := strings.TrimSpace(v)
		if name == "" || name == idle.NameIdleCallback {
			return
		}
		if handler, ok := r.registry.ErrorHandler(name); ok {
			p.errorHandler = handler
			return
		}
		p.anomaly(KeyOnError, value, "no error handler registered under this name")
	case ErrorHandler:
		p.errorHandler = v
	case func(string, error):
		p.errorHandler = v
	default:
		p.anomaly(KeyOnError, value, "expected an error handler name")
	}
}

func applyOrigins(p *Policy, value any) {
	entries, ok := toList(value)
	if !ok {
		p.anomaly(KeyOrigins, value, "expected an array of hostnames")
		return
	}

	origins := make([]string, 0, len(entries))
	for _, entry := range entries {
		raw, isString := entry.(string)
		if !isString {
			p.anomaly(KeyOrigins, entry, "origin entry is not a string")
			continue
		}
		host := normalizeOrigin(raw)
		if host == "" {
			p.anomaly(KeyOrigins, entry, "origin entry is empty")
			continue
		}
		origins = append(origins, host)
	}
	p.allowedOrigins = origins
}

func applyIgnores(p *Policy, value any) {
	entries, ok := toList(value)
	if !ok {
		p.anomaly(KeyIgnores, value, "expected an array of patterns")
		return
	}

	patterns := make([]*regexp.Regexp, 0, len(entries))
	for _, entry := range entries {
		switch v := entry.(type) {
		case string:
			if v == "" {
				p.anomaly(KeyIgnores, entry, "empty pattern would match every URL")
				continue
			}
			compiled, err := regexp.Compile(v)
			if err != nil {
				p.anomaly(KeyIgnores, entry, err.Error())
				continue
			}
			patterns = append(patterns, compiled)
		case *regexp.Regexp:
			if v != nil {
				patterns = append(patterns, v)
			}
		default:
			p.anomaly(KeyIgnores, entry, "pattern entry is not a string")
		}
	}
	p.ignorePatterns = patterns
}

func stringList(p *Policy, key string, value any) []string {
	entries, ok := toList(value)
	if !ok {
		p.anomaly(key, value, "expected an array of strings")
		return nil
	}

	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		s, isString := entry.(string)
		if !isString || strings.TrimSpace(s) == "" {
			p.anomaly(key, entry, "entry is not a non-empty string")
			continue
		}
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

func (p *Policy) anomaly(key string, value any, reason string) {
	p.anomalies = append(p.anomalies, Anomaly{Key: key, Value: value, Reason: reason})
}

// normalizeOrigin accepts a bare hostname or a full origin URL
func normalizeOrigin(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == WildcardOrigin {
		return raw
	}
	if strings.Contains(raw, "://") {
		if parsed, err := url.Parse(raw); err == nil {
			return strings.ToLower(parsed.Hostname())
		}
		return ""
	}
	return strings.ToLower(strings.TrimSuffix(raw, "."))
}

func equalHost(a, b string) bool {
	return strings.EqualFold(strings.TrimSuffix(a, "."), strings.TrimSuffix(b, "."))
}

func toList(value any) ([]any, bool) {
	switch v := value.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// toNumber accepts the numeric encodings produced by JSON and YAML decoders
func toNumber(value any) (float64, bool) {
	var n float64
	switch v := value.(type) {
	case int:
		n = float64(v)
	case int8:
		n = float64(v)
	case int16:
		n = float64(v)
	case int32:
		n = float64(v)
	case int64:
		n = float64(v)
	case uint:
		n = float64(v)
	case uint8:
		n = float64(v)
	case uint16:
		n = float64(v)
	case uint32:
		n = float64(v)
	case uint64:
		n = float64(v)
	case float32:
		n = float64(v)
	case float64:
		n = v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		n = f
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func millis(ms float64) time.Duration {
	const maxMillis = 1e12
	if ms > maxMillis {
		ms = maxMillis
	}
	return time.Duration(ms * float64(time.Millisecond))
}

func safeLocation(doc Document) (location *url.URL) {
	defer func() {
		if recover() != nil {
			location = nil
		}
	}()
	return doc.Location()
}

func safeQuery(doc Document, selector string) (element Element, found bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			element, found, err = nil, false, fmt.Errorf("selector query panicked: %v", r)
		}
	}()
	element, found = doc.Query(selector)
	return element, found, nil
}
