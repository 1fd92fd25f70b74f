// Package observer loads a page and reports the links that become visible
// while it is being read. Observers report every visibility episode; the
// dispatcher is responsible for prefetching each URL at most once.
package observer

import (
	"context"
	"strings"

	"github.com/aleister1102/quicklink/internal/common/errorwrapper"
	"github.com/aleister1102/quicklink/internal/config"
	"github.com/aleister1102/quicklink/internal/models"
	"github.com/aleister1102/quicklink/internal/policy"
	"github.com/rs/zerolog"
)

// anchorSelector matches the elements whose targets are prefetch candidates
const anchorSelector = "a[href], area[href]"

// Page is a loaded document that can be observed
type Page interface {
	policy.Document

	// Observe reports links inside scope (nil for the whole document) as they
	// become visible. The channel is closed when ctx ends, when the scope
	// element disappears or when the page has nothing more to show.
	Observe(ctx context.Context, scope policy.Element) (<-chan models.CandidateLink, error)

	Close() error
}

// Loader opens pages for observation
type Loader interface {
	Load(ctx context.Context, pageURL string) (Page, error)
}

// NewLoader creates the loader selected by cfg.Mode
func NewLoader(cfg config.ObserverConfig, logger zerolog.Logger) (Loader, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Mode)) {
	case "", config.ObserverModeStatic:
		return NewStaticLoader(cfg, logger), nil
	case config.ObserverModeHeadless:
		return NewHeadlessLoader(cfg, logger), nil
	default:
		return nil, errorwrapper.NewValidationError("mode", cfg.Mode, "unknown observer mode")
	}
}

// selectorElement is an Element identified by the selector that found it
type selectorElement struct {
	selector string
}

func (e selectorElement) Selector() string { return e.selector }

func scopeSelector(scope policy.Element) string {
	if scope == nil {
		return ""
	}
	return strings.TrimSpace(scope.Selector())
}

// emit sends link unless ctx ends first
func emit(ctx context.Context, out chan<- models.CandidateLink, rawURL string) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- models.NewCandidateLink(rawURL):
		return true
	}
}
