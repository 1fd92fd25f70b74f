package config

import "github.com/aleister1102/quicklink/internal/models"

// PrefetchConfig holds the two prefetch option layers and the startup queue.
// The option maps are passed untouched to the policy resolver, which applies
// its own fail-soft validation per key.
type PrefetchConfig struct {
	Defaults  map[string]any      `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	Overrides map[string]any      `json:"overrides,omitempty" yaml:"overrides,omitempty"`
	Queue     []models.QueueEntry `json:"queue,omitempty" yaml:"queue,omitempty" validate:"omitempty,dive"`
}

// DefaultIgnorePatterns keeps prefetching away from feeds, the admin area,
// login pages and archive listings.
var DefaultIgnorePatterns = []string{
	`feed=`,
	`/feed/?$`,
	`/wp-admin`,
	`/wp-login\.php`,
	`\.(zip|pdf|exe|dmg|tar\.gz)$`,
	`add-to-cart=`,
	`/(cart|checkout|my-account)(/|$|\?)`,
	`[?&]s=`,
}

// NewDefaultPrefetchOptions returns the site-wide option layer
func NewDefaultPrefetchOptions() map[string]any {
	ignores := make([]any, 0, len(DefaultIgnorePatterns))
	for _, pattern := range DefaultIgnorePatterns {
		ignores = append(ignores, pattern)
	}

	return map[string]any{
		"timeout":   DefaultPrefetchTimeoutMs,
		"timeoutFn": DefaultPrefetchTimeoutFn,
		"priority":  DefaultPrefetchPriority,
		"origins":   []any{},
		"ignores":   ignores,
	}
}

// NewDefaultPrefetchConfig creates default prefetch configuration
func NewDefaultPrefetchConfig() PrefetchConfig {
	return PrefetchConfig{
		Defaults:  NewDefaultPrefetchOptions(),
		Overrides: map[string]any{},
		Queue:     []models.QueueEntry{},
	}
}
