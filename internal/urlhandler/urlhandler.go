package urlhandler

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/aleister1102/quicklink/internal/common/errorwrapper"
	"golang.org/x/net/publicsuffix"
)

// NormalizeURL normalizes an absolute URL: trims whitespace, lowercases scheme and host.
func NormalizeURL(rawURL string) (string, error) {
	trimmedURL := strings.TrimSpace(rawURL)
	if trimmedURL == "" {
		return "", errorwrapper.NewError("URL is empty")
	}

	parsedURL, err := url.Parse(trimmedURL)
	if err != nil {
		return "", errorwrapper.WrapError(err, "could not parse URL '"+trimmedURL+"'")
	}
	if !parsedURL.IsAbs() {
		return "", errorwrapper.NewError("URL '%s' is not absolute", trimmedURL)
	}

	parsedURL.Scheme = strings.ToLower(parsedURL.Scheme)
	parsedURL.Host = CanonicalHost(parsedURL)

	return parsedURL.String(), nil
}

// ResolveURL resolves a relative or absolute href against a base URL.
// The returned URL is normalized.
func ResolveURL(href string, base *url.URL) (string, error) {
	trimmedHref := strings.TrimSpace(href)
	if trimmedHref == "" {
		return "", errorwrapper.NewError("href is empty")
	}

	parsedHref, err := url.Parse(trimmedHref)
	if err != nil {
		return "", errorwrapper.WrapError(err, "error parsing href '"+trimmedHref+"'")
	}

	if parsedHref.IsAbs() {
		return NormalizeURL(parsedHref.String())
	}

	if base == nil {
		return "", fmt.Errorf("cannot process relative URL '%s' without a base URL", trimmedHref)
	}

	return NormalizeURL(base.ResolveReference(parsedHref).String())
}

// StripFragment returns the URL without its #fragment part.
func StripFragment(rawURL string) string {
	if idx := strings.IndexByte(rawURL, '#'); idx != -1 {
		return rawURL[:idx]
	}
	return rawURL
}

// IsFragmentOnly reports whether href only points inside the current document.
func IsFragmentOnly(href string) bool {
	return strings.HasPrefix(strings.TrimSpace(href), "#")
}

// IsNavigableScheme reports whether the scheme can be fetched as a page.
func IsNavigableScheme(scheme string) bool {
	switch strings.ToLower(scheme) {
	case "http", "https":
		return true
	default:
		return false
	}
}

// SameDocument reports whether a and b address the same document, ignoring fragments.
func SameDocument(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Scheme, b.Scheme) &&
		strings.EqualFold(CanonicalHost(a), CanonicalHost(b)) &&
		normalizedPath(a) == normalizedPath(b) &&
		a.RawQuery == b.RawQuery
}

// CanonicalHost returns u.Host lowercased, without the scheme's default port
func CanonicalHost(u *url.URL) string {
	host := strings.ToLower(u.Host)
	port := u.Port()
	if port == "" {
		return host
	}
	switch {
	case port == "80" && strings.EqualFold(u.Scheme, "http"),
		port == "443" && strings.EqualFold(u.Scheme, "https"):
		return strings.TrimSuffix(host, ":"+port)
	}
	return host
}

func normalizedPath(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		return "/"
	}
	return p
}

// GetBaseDomain extracts the registrable domain (e.g., "example.co.uk" from "www.example.co.uk").
func GetBaseDomain(hostname string) (string, error) {
	hostname = strings.ToLower(strings.TrimSpace(hostname))
	if hostname == "" {
		return "", errorwrapper.NewError("hostname is empty")
	}

	if strings.Contains(hostname, ":") {
		if host, _, err := net.SplitHostPort(hostname); err == nil {
			hostname = host
		}
	}

	if net.ParseIP(hostname) != nil || !strings.Contains(hostname, ".") {
		return hostname, nil
	}

	base, err := publicsuffix.EffectiveTLDPlusOne(hostname)
	if err != nil {
		return hostname, nil
	}
	return base, nil
}

// ValidateURLFormat validates URL format using net/url parsing (for config validation)
func ValidateURLFormat(rawURL string) error {
	trimmedURL := strings.TrimSpace(rawURL)
	if trimmedURL == "" {
		return fmt.Errorf("URL is empty")
	}

	parsed, err := url.ParseRequestURI(trimmedURL)
	if err != nil {
		return fmt.Errorf("invalid URL format '%s': %w", trimmedURL, err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL '%s' has no host", trimmedURL)
	}

	return nil
}
