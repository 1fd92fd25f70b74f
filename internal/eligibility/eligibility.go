// Package eligibility decides whether a candidate link may be prefetched
// under a resolved policy. Every function here is pure.
package eligibility

import (
	"net/url"
	"strings"

	"github.com/aleister1102/quicklink/internal/policy"
	"github.com/aleister1102/quicklink/internal/urlhandler"
)

// Verdict is the outcome of an eligibility check
type Verdict int

const (
	Allowed Verdict = iota
	RejectedEmpty
	RejectedFragment
	RejectedScheme
	RejectedMalformed
	RejectedOrigin
	RejectedSelf
	RejectedIgnored
)

func (v Verdict) String() string {
	switch v {
	case Allowed:
		return "allowed"
	case RejectedEmpty:
		return "empty"
	case RejectedFragment:
		return "fragment_only"
	case RejectedScheme:
		return "scheme"
	case RejectedMalformed:
		return "malformed"
	case RejectedOrigin:
		return "origin"
	case RejectedSelf:
		return "self_link"
	case RejectedIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// IsAllowed reports whether the verdict admits the link
func (v Verdict) IsAllowed() bool {
	return v == Allowed
}

// Result carries the verdict and, when the link parsed, its absolute form
type Result struct {
	URL     string
	Verdict Verdict
}

// IsEligible reports whether rawURL may be prefetched under p
func IsEligible(rawURL string, p *policy.Policy) bool {
	return Evaluate(rawURL, p).Verdict.IsAllowed()
}

// Check returns the reason rawURL is or is not eligible under p
func Check(rawURL string, p *policy.Policy) Verdict {
	return Evaluate(rawURL, p).Verdict
}

// Evaluate runs the checks in order and stops at the first rejection:
// link shape, origin, self-link, ignore patterns.
// Relative links are resolved against the policy's document.
func Evaluate(rawURL string, p *policy.Policy) Result {
	if p == nil {
		p = policy.Default(nil)
	}

	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return Result{Verdict: RejectedEmpty}
	}
	if urlhandler.IsFragmentOnly(trimmed) {
		return Result{Verdict: RejectedFragment}
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return Result{Verdict: RejectedMalformed}
	}

	document := p.Document()
	if !parsed.IsAbs() {
		if document == nil {
			return Result{Verdict: RejectedMalformed}
		}
		parsed = document.ResolveReference(parsed)
	}

	if !urlhandler.IsNavigableScheme(parsed.Scheme) {
		return Result{Verdict: RejectedScheme}
	}
	if parsed.Hostname() == "" {
		return Result{Verdict: RejectedMalformed}
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	absolute := parsed.String()

	if !p.AllowsOrigin(parsed.Hostname()) {
		return Result{URL: absolute, Verdict: RejectedOrigin}
	}
	if urlhandler.SameDocument(parsed, document) {
		return Result{URL: absolute, Verdict: RejectedSelf}
	}
	if _, ignored := p.MatchesIgnore(absolute); ignored {
		return Result{URL: absolute, Verdict: RejectedIgnored}
	}

	return Result{URL: absolute, Verdict: Allowed}
}
