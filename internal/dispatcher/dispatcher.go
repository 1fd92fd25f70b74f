// Package dispatcher turns eligible candidate links into prefetches. Each URL
// is prefetched at most once per page load, under a concurrency cap and an
// optional minimum spacing, during idle periods of the host.
package dispatcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aleister1102/quicklink/internal/eligibility"
	"github.com/aleister1102/quicklink/internal/fetcher"
	"github.com/aleister1102/quicklink/internal/idle"
	"github.com/aleister1102/quicklink/internal/models"
	"github.com/aleister1102/quicklink/internal/policy"
	"github.com/aleister1102/quicklink/internal/urlhandler"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Fetcher performs one prefetch
type Fetcher interface {
	Prefetch(ctx context.Context, url string, mode models.PrefetchMode) (*fetcher.Result, error)
}

// OutcomeSink receives the terminal outcome of every prefetch that ran
type OutcomeSink interface {
	Record(outcome models.Outcome)
}

// OutcomeSinkFunc adapts a function to OutcomeSink
type OutcomeSinkFunc func(outcome models.Outcome)

// Record calls f(outcome)
func (f OutcomeSinkFunc) Record(outcome models.Outcome) {
	f(outcome)
}

type job struct {
	key    string
	url    string
	mode   models.PrefetchMode
	source models.LinkSource
}

// Dispatcher owns the dispatch record for one page load
type Dispatcher struct {
	policy            *policy.Policy
	fetcher           Fetcher
	fallbackScheduler idle.Scheduler
	normalizer        *urlhandler.URLNormalizer
	sinks             []OutcomeSink
	logger            zerolog.Logger

	slots   *semaphore.Weighted
	limiter *rate.Limiter

	mu         sync.Mutex
	states     map[string]models.DispatchState
	stats      models.DispatchStats
	rejections map[string]int
	pending    sync.WaitGroup
}

// New creates a dispatcher for one resolved policy. A nil policy uses the defaults.
func New(p *policy.Policy, f Fetcher, opts ...Option) *Dispatcher {
	if p == nil {
		p = policy.Default(nil)
	}

	d := &Dispatcher{
		policy:            p,
		fetcher:           f,
		fallbackScheduler: idle.Immediate,
		normalizer:        urlhandler.NewURLNormalizer(urlhandler.DefaultURLNormalizationConfig()),
		logger:            zerolog.Nop(),
		slots:             semaphore.NewWeighted(int64(p.MaxConcurrentFetches())),
		states:            make(map[string]models.DispatchState),
		rejections:        make(map[string]int),
	}
	if interval := p.ThrottleInterval(); interval > 0 {
		d.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}

	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Policy returns the policy the dispatcher enforces
func (d *Dispatcher) Policy() *policy.Policy {
	return d.policy
}

// Dispatch evaluates a candidate and, when it is eligible and unseen,
// queues it for prefetching at the next idle period.
func (d *Dispatcher) Dispatch(ctx context.Context, link models.CandidateLink) models.Decision {
	result := eligibility.Evaluate(link.URL, d.policy)
	if !result.Verdict.IsAllowed() {
		d.reject(link.URL, result.Verdict.String())
		return models.DecisionRejected
	}

	source := link.Source
	if source == "" {
		source = models.LinkSourceObserver
	}
	return d.enqueue(ctx, result.URL, d.policyMode(link.Priority), source)
}

// PrefetchStatic queues a fixed list of URLs without eligibility filtering.
// Relative URLs are resolved against the policy's document.
func (d *Dispatcher) PrefetchStatic(ctx context.Context, urls []string) int {
	accepted := 0
	for _, raw := range urls {
		absolute, err := urlhandler.ResolveURL(raw, d.policy.Document())
		if err != nil {
			d.reject(raw, eligibility.RejectedMalformed.String())
			continue
		}
		if d.enqueue(ctx, absolute, d.policyMode(false), models.LinkSourceStatic) == models.DecisionAccepted {
			accepted++
		}
	}
	return accepted
}

// PrefetchQueue queues explicit entries, each with its own priority flag
func (d *Dispatcher) PrefetchQueue(ctx context.Context, entries []models.QueueEntry) int {
	accepted := 0
	for _, entry := range entries {
		absolute, err := urlhandler.ResolveURL(entry.URL, d.policy.Document())
		if err != nil {
			d.reject(entry.URL, eligibility.RejectedMalformed.String())
			continue
		}
		mode := models.ModeHint
		if entry.Priority {
			mode = models.ModeFetch
		}
		if d.enqueue(ctx, absolute, mode, models.LinkSourceQueue) == models.DecisionAccepted {
			accepted++
		}
	}
	return accepted
}

// Run dispatches candidates in arrival order until links is closed or ctx ends
func (d *Dispatcher) Run(ctx context.Context, links <-chan models.CandidateLink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case link, ok := <-links:
			if !ok {
				return nil
			}
			d.Dispatch(ctx, link)
		}
	}
}

// Wait blocks until every accepted URL has finished or been abandoned.
// It must not be called concurrently with Dispatch.
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}

// State returns the dispatch state of rawURL
func (d *Dispatcher) State(rawURL string) models.DispatchState {
	key := d.key(strings.TrimSpace(rawURL))
	if absolute, err := urlhandler.ResolveURL(rawURL, d.policy.Document()); err == nil {
		key = d.key(absolute)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.states[key]
}

// Stats returns a snapshot of the dispatcher counters
func (d *Dispatcher) Stats() models.DispatchStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Rejections returns the number of rejected candidates per reason
func (d *Dispatcher) Rejections() map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[string]int, len(d.rejections))
	for reason, count := range d.rejections {
		out[reason] = count
	}
	return out
}

func (d *Dispatcher) policyMode(priority bool) models.PrefetchMode {
	if priority || d.policy.PreferFetch() {
		return models.ModeFetch
	}
	return models.ModeHint
}

func (d *Dispatcher) key(absolute string) string {
	key, err := d.normalizer.NormalizeURL(absolute)
	if err != nil {
		return absolute
	}
	return key
}

func (d *Dispatcher) reject(rawURL, reason string) {
	d.mu.Lock()
	d.stats.Rejected++
	d.rejections[reason]++
	d.mu.Unlock()

	d.logger.Debug().Str("url", rawURL).Str("reason", reason).Msg("Candidate rejected")
}

func (d *Dispatcher) enqueue(ctx context.Context, absolute string, mode models.PrefetchMode, source models.LinkSource) models.Decision {
	j := job{key: d.key(absolute), url: absolute, mode: mode, source: source}

	d.mu.Lock()
	if _, seen := d.states[j.key]; seen {
		d.stats.Duplicates++
		d.mu.Unlock()
		return models.DecisionDuplicate
	}
	d.states[j.key] = models.StateQueued
	d.stats.Accepted++
	d.stats.Queued++
	d.pending.Add(1)
	d.mu.Unlock()

	d.logger.Debug().Str("url", j.url).Str("mode", mode.String()).Str("source", string(source)).Msg("Prefetch queued")

	// Whichever of cancellation and the scheduler comes first settles the job.
	// Schedulers may call back on the dispatching goroutine, so the work
	// always gets its own.
	stop := context.AfterFunc(ctx, func() { d.abandon(j, models.StateQueued) })
	d.scheduler().Schedule(ctx, d.policy.IdleTimeout(), func() {
		if !stop() {
			return
		}
		go d.execute(ctx, j)
	})

	return models.DecisionAccepted
}

func (d *Dispatcher) scheduler() idle.Scheduler {
	if s := d.policy.Scheduler(); s != nil {
		return s
	}
	return d.fallbackScheduler
}

func (d *Dispatcher) execute(ctx context.Context, j job) {
	if err := d.slots.Acquire(ctx, 1); err != nil {
		d.abandon(j, models.StateQueued)
		return
	}
	defer d.slots.Release(1)

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			d.abandon(j, models.StateQueued)
			return
		}
	}

	d.mu.Lock()
	d.states[j.key] = models.StateInFlight
	d.stats.Queued--
	d.stats.InFlight++
	d.mu.Unlock()

	startedAt := time.Now()
	result, err := d.safePrefetch(ctx, j)

	if err != nil && ctx.Err() != nil {
		d.abandon(j, models.StateInFlight)
		return
	}

	outcome := models.Outcome{
		URL:       j.url,
		Mode:      j.mode,
		Source:    j.source,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
		Err:       err,
	}
	if result != nil {
		outcome.StatusCode = result.StatusCode
		outcome.Bytes = result.Bytes
		if result.Duration > 0 {
			outcome.Duration = result.Duration
		}
	}

	d.mu.Lock()
	d.states[j.key] = models.StateDone
	d.stats.InFlight--
	if err != nil {
		d.stats.Failed++
	} else {
		d.stats.Succeeded++
	}
	d.mu.Unlock()

	if err != nil {
		d.logger.Warn().Err(err).Str("url", j.url).Msg("Prefetch failed")
		d.reportError(j.url, err)
	} else {
		d.logger.Debug().Str("url", j.url).Int("status_code", outcome.StatusCode).Dur("duration", outcome.Duration).Msg("Prefetch done")
	}
	for _, sink := range d.sinks {
		sink.Record(outcome)
	}

	d.pending.Done()
}

func (d *Dispatcher) safePrefetch(ctx context.Context, j job) (result *fetcher.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("prefetch panicked: %v", r)
		}
	}()
	if d.fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured")
	}
	return d.fetcher.Prefetch(ctx, j.url, j.mode)
}

// abandon settles a URL whose work will never complete. The URL is marked
// Done so it is not dispatched again within this page load.
func (d *Dispatcher) abandon(j job, from models.DispatchState) {
	d.mu.Lock()
	d.states[j.key] = models.StateDone
	switch from {
	case models.StateQueued:
		d.stats.Queued--
	case models.StateInFlight:
		d.stats.InFlight--
	}
	d.stats.Abandoned++
	d.mu.Unlock()

	d.logger.Debug().Str("url", j.url).Str("state", from.String()).Msg("Prefetch abandoned")
	d.pending.Done()
}

func (d *Dispatcher) reportError(url string, err error) {
	handler := d.policy.ErrorHandler()
	if handler == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn().Str("url", url).Interface("panic", r).Msg("Prefetch error handler panicked")
		}
	}()
	handler(url, err)
}
