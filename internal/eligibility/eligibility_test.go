package eligibility

import (
	"net/url"
	"testing"

	"github.com/aleister1102/quicklink/internal/policy"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pageDocument struct {
	location *url.URL
}

func (d pageDocument) Location() *url.URL { return d.location }

func (d pageDocument) Query(string) (policy.Element, bool) { return nil, false }

func resolvePolicy(t *testing.T, pageURL string, opts policy.Options) *policy.Policy {
	t.Helper()
	loc, err := url.Parse(pageURL)
	require.NoError(t, err)
	return policy.NewResolver(nil, zerolog.Nop()).Resolve(pageDocument{location: loc}, nil, opts)
}

func TestCheck_SameOriginDefault(t *testing.T) {
	p := resolvePolicy(t, "https://example.com/page", nil)

	assert.False(t, IsEligible("https://other.com/x", p))
	assert.True(t, IsEligible("https://example.com/y", p))
}

func TestCheck_IgnorePattern(t *testing.T) {
	p := resolvePolicy(t, "https://example.com/page", policy.Options{"ignores": []any{"feed="}})

	assert.False(t, IsEligible("https://example.com/?feed=rss", p))
	assert.Equal(t, RejectedIgnored, Check("https://example.com/?feed=rss", p))
	assert.True(t, IsEligible("https://example.com/?page=2", p))
}

func TestCheck_SelfLink(t *testing.T) {
	p := resolvePolicy(t, "https://example.com/page", nil)

	for _, candidate := range []string{
		"https://example.com/page",
		"https://example.com/page#section",
		"https://EXAMPLE.com/page#",
		"https://example.com:443/page",
		"/page#comments",
		"page",
	} {
		assert.Equal(t, RejectedSelf, Check(candidate, p), candidate)
	}

	assert.True(t, IsEligible("https://example.com/page?replytocom=1", p), "query string makes a different document")
}

func TestCheck_Order(t *testing.T) {
	p := resolvePolicy(t, "https://example.com/page", policy.Options{
		"origins": []any{"example.com"},
		"ignores": []any{"/cart", "page"},
	})

	tests := []struct {
		name     string
		url      string
		expected Verdict
	}{
		{"empty", "", RejectedEmpty},
		{"whitespace", "   ", RejectedEmpty},
		{"fragment only", "#top", RejectedFragment},
		{"mailto", "mailto:hi@example.com", RejectedScheme},
		{"tel", "tel:+123", RejectedScheme},
		{"javascript", "javascript:void(0)", RejectedScheme},
		{"data", "data:text/html,hi", RejectedScheme},
		{"ftp", "ftp://example.com/file", RejectedScheme},
		{"malformed", "http://[::1", RejectedMalformed},
		{"no host", "https:///path", RejectedMalformed},
		{"origin before ignore", "https://other.com/cart", RejectedOrigin},
		{"self before ignore", "https://example.com/page#x", RejectedSelf},
		{"ignored", "https://example.com/cart", RejectedIgnored},
		{"relative ignored", "/cart?item=1", RejectedIgnored},
		{"relative allowed", "/about", Allowed},
		{"protocol relative", "//example.com/contact", Allowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Check(tt.url, p))
		})
	}
}

func TestCheck_OriginAllowList(t *testing.T) {
	p := resolvePolicy(t, "https://example.com/page", policy.Options{"origins": []any{"cdn.example.com"}})

	assert.True(t, IsEligible("https://CDN.example.com/a", p))
	assert.False(t, IsEligible("https://example.com/a", p), "a non-empty allow-list replaces same-origin")

	wildcard := resolvePolicy(t, "https://example.com/page", policy.Options{"origins": []any{"*"}})
	assert.True(t, IsEligible("https://anywhere.test/a", wildcard))
}

func TestCheck_RelativeWithoutDocument(t *testing.T) {
	p := policy.NewResolver(nil, zerolog.Nop()).Resolve(nil, nil, policy.Options{"origins": []any{"*"}})

	assert.Equal(t, RejectedMalformed, Check("/about", p))
	assert.Equal(t, Allowed, Check("https://example.com/about", p))
	assert.Equal(t, RejectedOrigin, Check("https://example.com/about", nil))
}

func TestEvaluate_ReturnsAbsoluteURL(t *testing.T) {
	p := resolvePolicy(t, "https://example.com/blog/post", nil)

	result := Evaluate("../about?x=1#team", p)
	assert.Equal(t, Allowed, result.Verdict)
	assert.Equal(t, "https://example.com/about?x=1#team", result.URL)

	result = Evaluate("https://other.com/", p)
	assert.Equal(t, RejectedOrigin, result.Verdict)
	assert.Equal(t, "https://other.com/", result.URL)
}

func TestCheck_Deterministic(t *testing.T) {
	p := resolvePolicy(t, "https://example.com/page", policy.Options{"ignores": []any{"\\?s="}})

	for _, candidate := range []string{"https://example.com/?s=go", "https://example.com/x", "#a", "mailto:a@b"} {
		first := Check(candidate, p)
		for i := 0; i < 5; i++ {
			assert.Equal(t, first, Check(candidate, p), candidate)
		}
	}
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "allowed", Allowed.String())
	assert.Equal(t, "ignored", RejectedIgnored.String())
	assert.Equal(t, "unknown", Verdict(99).String())
	assert.True(t, Allowed.IsAllowed())
	assert.False(t, RejectedSelf.IsAllowed())
}
