// Package idle schedules low-priority work for periods when the host has
// spare capacity, with a hard upper bound on how long the work may wait.
package idle

import (
	"context"
	"time"
)

// Registry names for the built-in schedulers
const (
	NameIdleCallback = "requestIdleCallback"
	NameTimeout      = "setTimeout"
	NameImmediate    = "immediate"
)

// Scheduler invokes fn exactly once, either when the host is idle or after
// timeout, whichever comes first. fn is never invoked once ctx is done.
type Scheduler interface {
	Schedule(ctx context.Context, timeout time.Duration, fn func())
}

// SchedulerFunc adapts a plain function to the Scheduler interface
type SchedulerFunc func(ctx context.Context, timeout time.Duration, fn func())

// Schedule calls f(ctx, timeout, fn)
func (f SchedulerFunc) Schedule(ctx context.Context, timeout time.Duration, fn func()) {
	f(ctx, timeout, fn)
}

// Immediate runs fn on a new goroutine without waiting for an idle period.
var Immediate Scheduler = SchedulerFunc(func(ctx context.Context, _ time.Duration, fn func()) {
	go func() {
		if ctx.Err() != nil {
			return
		}
		fn()
	}()
})

// TimerScheduler runs fn after a fixed delay, capped by the timeout.
type TimerScheduler struct {
	Delay time.Duration
}

// NewTimerScheduler creates a TimerScheduler
func NewTimerScheduler(delay time.Duration) *TimerScheduler {
	if delay < 0 {
		delay = 0
	}
	return &TimerScheduler{Delay: delay}
}

// Schedule implements Scheduler
func (s *TimerScheduler) Schedule(ctx context.Context, timeout time.Duration, fn func()) {
	wait := s.Delay
	if timeout > 0 && timeout < wait {
		wait = timeout
	}
	go runAfter(ctx, wait, fn)
}

func runAfter(ctx context.Context, wait time.Duration, fn func()) {
	if wait <= 0 {
		if ctx.Err() == nil {
			fn()
		}
		return
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
		fn()
	}
}
