// Package orchestrator runs one observed page load end to end: load the page,
// resolve its prefetch policy, then feed what the observer sees into a
// dispatcher until the page is exhausted or the session ends.
package orchestrator

import (
	"context"
	"time"

	"github.com/aleister1102/quicklink/internal/common/errorwrapper"
	"github.com/aleister1102/quicklink/internal/config"
	"github.com/aleister1102/quicklink/internal/dispatcher"
	"github.com/aleister1102/quicklink/internal/history"
	"github.com/aleister1102/quicklink/internal/models"
	"github.com/aleister1102/quicklink/internal/policy"
	"github.com/rs/zerolog"
)

// Session ties a loader, the policy resolver and a dispatcher together
type Session struct {
	config   *config.GlobalConfig
	deps     Dependencies
	resolver *policy.Resolver
	logger   zerolog.Logger
}

// NewSession creates a Session
func NewSession(cfg *config.GlobalConfig, deps Dependencies, logger zerolog.Logger) *Session {
	if cfg == nil {
		cfg = config.NewDefaultGlobalConfig()
	}
	return &Session{
		config:   cfg,
		deps:     deps,
		resolver: policy.NewResolver(deps.Registry, logger),
		logger:   logger.With().Str("component", "Session").Logger(),
	}
}

// Run observes pageURL and prefetches what becomes visible. Only a page that
// cannot be loaded is reported as an error; everything past that is fail-soft.
func (s *Session) Run(ctx context.Context, pageURL string) (*models.SessionSummary, error) {
	summary := &models.SessionSummary{
		PageURL:   pageURL,
		StartedAt: time.Now(),
	}

	sessionCtx, cancel := context.WithTimeout(ctx, s.config.ObserverConfig.SessionTimeout())
	defer cancel()

	if s.deps.Loader == nil {
		return nil, errorwrapper.NewPageLoadError(pageURL, errorwrapper.NewError("no page loader configured"))
	}

	runID := s.startHistory(pageURL, summary.StartedAt)

	page, err := s.deps.Loader.Load(sessionCtx, pageURL)
	if err != nil {
		s.logger.Error().Err(err).Str("page_url", pageURL).Msg("Failed to load page")
		summary.FinishedAt = time.Now()
		s.finishHistory(runID, summary, history.StatusFailed)
		return nil, err
	}
	defer func() {
		if err := page.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Failed to close page")
		}
	}()

	p := s.resolver.Resolve(page, s.config.PrefetchConfig.Defaults, s.config.PrefetchConfig.Overrides)
	for _, anomaly := range p.Anomalies() {
		s.logger.Warn().Str("anomaly", anomaly.String()).Msg("Prefetch option ignored")
	}
	summary.Anomalies = len(p.Anomalies())

	d := dispatcher.New(p, s.deps.Fetcher, s.dispatcherOptions(runID)...)

	static := d.PrefetchStatic(sessionCtx, p.StaticURLs())
	queued := d.PrefetchQueue(sessionCtx, s.config.PrefetchConfig.Queue)

	s.logger.Info().
		Str("page_url", page.Location().String()).
		Int("limit", p.MaxConcurrentFetches()).
		Dur("throttle", p.ThrottleInterval()).
		Dur("idle_timeout", p.IdleTimeout()).
		Bool("prefer_fetch", p.PreferFetch()).
		Int("static_urls", static).
		Int("queued_urls", queued).
		Msg("Observing page")

	links, err := page.Observe(sessionCtx, p.Scope())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to observe page, only static prefetches will run")
	} else if err := d.Run(sessionCtx, links); err != nil {
		s.logger.Info().Err(err).Msg("Observation ended before the page was exhausted")
	}

	d.Wait()

	summary.FinishedAt = time.Now()
	summary.Stats = d.Stats()
	summary.Rejections = d.Rejections()

	status := history.StatusCompleted
	if sessionCtx.Err() != nil {
		status = history.StatusFailed
	}
	s.finishHistory(runID, summary, status)

	s.logger.Info().
		Str("page_url", pageURL).
		Int64("accepted", summary.Stats.Accepted).
		Int64("rejected", summary.Stats.Rejected).
		Int64("duplicates", summary.Stats.Duplicates).
		Int64("succeeded", summary.Stats.Succeeded).
		Int64("failed", summary.Stats.Failed).
		Int64("abandoned", summary.Stats.Abandoned).
		Dur("duration", summary.Duration()).
		Msg("Session finished")

	return summary, nil
}

func (s *Session) dispatcherOptions(runID int64) []dispatcher.Option {
	opts := []dispatcher.Option{
		dispatcher.WithLogger(s.logger),
		dispatcher.WithScheduler(s.deps.Scheduler),
	}
	for _, sink := range s.deps.Sinks {
		opts = append(opts, dispatcher.WithSink(sink))
	}
	if s.deps.History != nil && runID > 0 {
		opts = append(opts, dispatcher.WithSink(s.deps.History.Recorder(runID)))
	}
	return opts
}

func (s *Session) startHistory(pageURL string, startedAt time.Time) int64 {
	if s.deps.History == nil {
		return 0
	}
	runID, err := s.deps.History.StartRun(pageURL, startedAt)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record run start, history disabled for this run")
		return 0
	}
	return runID
}

func (s *Session) finishHistory(runID int64, summary *models.SessionSummary, status string) {
	if s.deps.History == nil || runID == 0 {
		return
	}
	if err := s.deps.History.FinishRun(runID, summary, status); err != nil {
		s.logger.Warn().Err(err).Int64("run_id", runID).Msg("Failed to record run completion")
	}
}
