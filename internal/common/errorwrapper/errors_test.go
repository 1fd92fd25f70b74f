package errorwrapper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapError(t *testing.T) {
	base := errors.New("boom")
	wrapped := WrapError(base, "loading page")

	assert.EqualError(t, wrapped, "loading page: boom")
	assert.ErrorIs(t, wrapped, base)
	assert.EqualError(t, WrapError(nil, "ctx"), "ctx: <nil>")
}

func TestNetworkError_IsNetworkFailure(t *testing.T) {
	err := NewNetworkError("https://example.com/a", "request failed", context.DeadlineExceeded)

	assert.ErrorIs(t, err, ErrNetworkFailure)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "https://example.com/a")
}

func TestHTTPError_IsNetworkFailure(t *testing.T) {
	err := NewHTTPErrorWithURL(503, "Service Unavailable", "https://example.com/b")

	assert.ErrorIs(t, err, ErrNetworkFailure)
	assert.Equal(t, "HTTP 503 error for URL 'https://example.com/b': Service Unavailable", err.Error())

	var httpErr *HTTPError
	assert.True(t, errors.As(WrapError(err, "prefetch"), &httpErr))
	assert.Equal(t, 503, httpErr.StatusCode)
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("log_level", "loud", "unknown level")

	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "validation error: field 'log_level' with value 'loud': unknown level", err.Error())
}

func TestPageLoadError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewPageLoadError("https://example.com", cause)

	assert.True(t, errors.Is(err, ErrPageLoad))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, errors.Is(err, ErrNetworkFailure))
	assert.Contains(t, err.Error(), "https://example.com")
}
