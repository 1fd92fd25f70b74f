package models

import "time"

// LinkSource identifies how a URL reached the dispatcher
type LinkSource string

const (
	LinkSourceObserver LinkSource = "observer"
	LinkSourceStatic   LinkSource = "static"
	LinkSourceQueue    LinkSource = "queue"
)

// CandidateLink is a link reported by an observer as visible.
// It is consumed immediately by the dispatcher and never stored.
type CandidateLink struct {
	URL          string     `json:"url"`
	Priority     bool       `json:"priority,omitempty"`
	DiscoveredAt time.Time  `json:"discovered_at"`
	Source       LinkSource `json:"source,omitempty"`
}

// NewCandidateLink creates an observer candidate stamped with the current time
func NewCandidateLink(rawURL string) CandidateLink {
	return CandidateLink{
		URL:          rawURL,
		DiscoveredAt: time.Now(),
		Source:       LinkSourceObserver,
	}
}

// QueueEntry is an explicit prefetch request processed at startup
type QueueEntry struct {
	URL      string `json:"url" yaml:"url" validate:"required,absurl"`
	Priority bool   `json:"priority,omitempty" yaml:"priority,omitempty"`
}
