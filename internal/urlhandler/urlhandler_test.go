package urlhandler

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveURL(t *testing.T) {
	base, err := url.Parse("https://Example.com/blog/post")
	require.NoError(t, err)

	tests := []struct {
		name     string
		href     string
		base     *url.URL
		expected string
		wantErr  bool
	}{
		{name: "relative path", href: "next", base: base, expected: "https://example.com/blog/next"},
		{name: "root relative", href: "/about", base: base, expected: "https://example.com/about"},
		{name: "absolute keeps host", href: "HTTPS://Other.COM/x", base: base, expected: "https://other.com/x"},
		{name: "protocol relative", href: "//cdn.example.com/a.js", base: base, expected: "https://cdn.example.com/a.js"},
		{name: "fragment kept", href: "#top", base: base, expected: "https://example.com/blog/post#top"},
		{name: "empty href", href: "   ", base: base, wantErr: true},
		{name: "relative without base", href: "/x", base: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveURL(tt.href, tt.base)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSameDocument(t *testing.T) {
	mustParse := func(s string) *url.URL {
		u, err := url.Parse(s)
		require.NoError(t, err)
		return u
	}

	assert.True(t, SameDocument(mustParse("https://example.com/page"), mustParse("https://example.com/page#section")))
	assert.True(t, SameDocument(mustParse("https://example.com"), mustParse("https://EXAMPLE.com/")))
	assert.False(t, SameDocument(mustParse("https://example.com/page"), mustParse("https://example.com/page?x=1")))
	assert.False(t, SameDocument(mustParse("http://example.com/page"), mustParse("https://example.com/page")))
	assert.False(t, SameDocument(nil, mustParse("https://example.com/")))

	assert.True(t, SameDocument(mustParse("https://example.com:443/page"), mustParse("https://example.com/page")))
	assert.True(t, SameDocument(mustParse("http://example.com:80/page"), mustParse("http://example.com/page")))
	assert.False(t, SameDocument(mustParse("https://example.com:8443/page"), mustParse("https://example.com/page")))
	assert.False(t, SameDocument(mustParse("http://example.com:443/page"), mustParse("http://example.com/page")))
}

func TestCanonicalHost(t *testing.T) {
	tests := map[string]string{
		"https://Example.com:443/":  "example.com",
		"http://example.com:80/":    "example.com",
		"http://example.com:443/":   "example.com:443",
		"https://example.com:8443/": "example.com:8443",
		"https://[::1]:443/":        "[::1]",
		"https://example.com/":      "example.com",
	}
	for in, want := range tests {
		u, err := url.Parse(in)
		require.NoError(t, err)
		assert.Equal(t, want, CanonicalHost(u), in)
	}
}

func TestGetBaseDomain(t *testing.T) {
	tests := map[string]string{
		"www.example.co.uk": "example.co.uk",
		"blog.example.com":  "example.com",
		"example.com:8443":  "example.com",
		"localhost":         "localhost",
		"127.0.0.1":         "127.0.0.1",
	}
	for in, want := range tests {
		got, err := GetBaseDomain(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := GetBaseDomain("")
	assert.Error(t, err)
}

func TestStripFragmentAndHelpers(t *testing.T) {
	assert.Equal(t, "https://example.com/a", StripFragment("https://example.com/a#b"))
	assert.Equal(t, "https://example.com/a", StripFragment("https://example.com/a"))
	assert.True(t, IsFragmentOnly(" #anchor"))
	assert.False(t, IsFragmentOnly("/page#anchor"))
	assert.True(t, IsNavigableScheme("HTTPS"))
	assert.False(t, IsNavigableScheme("mailto"))
}

func TestURLNormalizer_NormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		config   URLNormalizationConfig
		inputURL string
		expected string
	}{
		{
			name:     "strip fragment only",
			config:   URLNormalizationConfig{StripFragments: true},
			inputURL: "https://example.com/page#section",
			expected: "https://example.com/page",
		},
		{
			name:     "strip tracking params only",
			config:   URLNormalizationConfig{StripTrackingParams: true},
			inputURL: "https://example.com/page?utm_source=test&param=value",
			expected: "https://example.com/page?param=value",
		},
		{
			name:     "strip custom params case-insensitively",
			config:   URLNormalizationConfig{CustomStripParams: []string{"Session"}},
			inputURL: "https://example.com/page?session=abc&keep=this",
			expected: "https://example.com/page?keep=this",
		},
		{
			name:     "default port dropped",
			config:   URLNormalizationConfig{StripFragments: true},
			inputURL: "https://Example.com:443/page#top",
			expected: "https://example.com/page",
		},
		{
			name:     "non-default port kept",
			config:   URLNormalizationConfig{},
			inputURL: "http://example.com:8080/page",
			expected: "http://example.com:8080/page",
		},
		{
			name:     "no normalization lowercases host",
			config:   URLNormalizationConfig{},
			inputURL: "https://EXAMPLE.com/page?utm_source=x#frag",
			expected: "https://example.com/page?utm_source=x#frag",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewURLNormalizer(tt.config).NormalizeURL(tt.inputURL)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
