package urlhandler

import (
	"fmt"
	"net/url"
	"strings"
)

// URLNormalizationConfig configures how candidate URLs are keyed for de-duplication
type URLNormalizationConfig struct {
	// Strip fragments so /page#a and /page#b count as one prefetch
	StripFragments bool `json:"strip_fragments" yaml:"strip_fragments"`
	// Strip common tracking parameters
	StripTrackingParams bool `json:"strip_tracking_params" yaml:"strip_tracking_params"`
	// Parameters to strip in addition to the common tracking ones
	CustomStripParams []string `json:"custom_strip_params,omitempty" yaml:"custom_strip_params,omitempty"`
}

// DefaultURLNormalizationConfig returns default configuration
func DefaultURLNormalizationConfig() URLNormalizationConfig {
	return URLNormalizationConfig{
		StripFragments:      true,
		StripTrackingParams: false,
		CustomStripParams:   []string{},
	}
}

// URLNormalizer turns candidate URLs into dispatch keys
type URLNormalizer struct {
	config            URLNormalizationConfig
	trackingParams    map[string]bool
	customStripParams map[string]bool
}

// NewURLNormalizer creates a new URL normalizer
func NewURLNormalizer(config URLNormalizationConfig) *URLNormalizer {
	commonTrackingParams := []string{
		"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
		"fbclid", "gclid", "msclkid", "_ga", "_gl", "mc_cid", "mc_eid",
	}

	trackingParams := make(map[string]bool)
	if config.StripTrackingParams {
		for _, param := range commonTrackingParams {
			trackingParams[param] = true
		}
	}

	customStripParams := make(map[string]bool)
	for _, param := range config.CustomStripParams {
		customStripParams[strings.ToLower(param)] = true
	}

	return &URLNormalizer{
		config:            config,
		trackingParams:    trackingParams,
		customStripParams: customStripParams,
	}
}

// NormalizeURL normalizes a URL according to configuration
func (un *URLNormalizer) NormalizeURL(inputURL string) (string, error) {
	parsedURL, err := url.Parse(strings.TrimSpace(inputURL))
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	parsedURL.Scheme = strings.ToLower(parsedURL.Scheme)
	parsedURL.Host = CanonicalHost(parsedURL)

	if un.config.StripFragments {
		parsedURL.Fragment = ""
		parsedURL.RawFragment = ""
	}

	if len(un.trackingParams) > 0 || len(un.customStripParams) > 0 {
		un.stripQueryParameters(parsedURL)
	}

	return parsedURL.String(), nil
}

// stripQueryParameters removes tracking and custom parameters from URL
func (un *URLNormalizer) stripQueryParameters(parsedURL *url.URL) {
	if parsedURL.RawQuery == "" {
		return
	}

	values := parsedURL.Query()
	modified := false

	for param := range values {
		paramLower := strings.ToLower(param)
		if un.trackingParams[paramLower] || un.customStripParams[paramLower] {
			values.Del(param)
			modified = true
		}
	}

	if modified {
		parsedURL.RawQuery = values.Encode()
	}
}
