package models

import "time"

// DispatchState is the lifecycle position of one URL within a page load
type DispatchState int

const (
	StateUnseen DispatchState = iota
	StateQueued
	StateInFlight
	StateDone
)

func (s DispatchState) String() string {
	switch s {
	case StateUnseen:
		return "unseen"
	case StateQueued:
		return "queued"
	case StateInFlight:
		return "in_flight"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Decision is the synchronous answer the dispatcher gives for a candidate
type Decision int

const (
	DecisionAccepted Decision = iota
	DecisionRejected
	DecisionDuplicate
)

func (d Decision) String() string {
	switch d {
	case DecisionAccepted:
		return "accepted"
	case DecisionRejected:
		return "rejected"
	case DecisionDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// PrefetchMode selects the resource-acquisition action
type PrefetchMode int

const (
	// ModeHint is a passive prefetch hint
	ModeHint PrefetchMode = iota
	// ModeFetch is an eager, high-priority fetch
	ModeFetch
)

func (m PrefetchMode) String() string {
	if m == ModeFetch {
		return "fetch"
	}
	return "hint"
}

// Outcome is the terminal result of one InFlight prefetch
type Outcome struct {
	URL        string        `json:"url"`
	Mode       PrefetchMode  `json:"mode"`
	Source     LinkSource    `json:"source"`
	StatusCode int           `json:"status_code,omitempty"`
	Bytes      int64         `json:"bytes,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Err        error         `json:"-"`
}

// Succeeded reports whether the prefetch completed with a success status
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}

// DispatchStats is a snapshot of dispatcher counters
type DispatchStats struct {
	Accepted   int64 `json:"accepted"`
	Rejected   int64 `json:"rejected"`
	Duplicates int64 `json:"duplicates"`
	Queued     int64 `json:"queued"`
	InFlight   int64 `json:"in_flight"`
	Succeeded  int64 `json:"succeeded"`
	Failed     int64 `json:"failed"`
	Abandoned  int64 `json:"abandoned"`
}

// Completed returns the number of prefetches that reached Done
func (s DispatchStats) Completed() int64 {
	return s.Succeeded + s.Failed
}

// SessionSummary describes one observed page load
type SessionSummary struct {
	PageURL    string         `json:"page_url"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Stats      DispatchStats  `json:"stats"`
	Rejections map[string]int `json:"rejections,omitempty"`
	Anomalies  int            `json:"config_anomalies"`
}

// Duration returns how long the session ran
func (s *SessionSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
