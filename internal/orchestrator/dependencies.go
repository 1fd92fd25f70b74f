package orchestrator

import (
	"io"
	"time"

	"github.com/aleister1102/quicklink/internal/config"
	"github.com/aleister1102/quicklink/internal/dispatcher"
	"github.com/aleister1102/quicklink/internal/fetcher"
	"github.com/aleister1102/quicklink/internal/history"
	"github.com/aleister1102/quicklink/internal/idle"
	"github.com/aleister1102/quicklink/internal/observer"
	"github.com/aleister1102/quicklink/internal/policy"
	"github.com/rs/zerolog"
)

// Names registered for the `onError` option
const (
	ErrorHandlerLog = "log"
)

// Dependencies are the collaborators a Session drives
type Dependencies struct {
	Loader    observer.Loader
	Fetcher   dispatcher.Fetcher
	Registry  *policy.Registry
	Scheduler idle.Scheduler
	History   *history.Store
	Sinks     []dispatcher.OutcomeSink
}

// Close releases resources held by the dependencies
func (d Dependencies) Close() error {
	var firstErr error
	if closer, ok := d.Loader.(io.Closer); ok {
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.History != nil {
		if err := d.History.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NewDependencies builds the production collaborators from cfg
func NewDependencies(cfg *config.GlobalConfig, logger zerolog.Logger) (Dependencies, error) {
	loader, err := observer.NewLoader(cfg.ObserverConfig, logger)
	if err != nil {
		return Dependencies{}, err
	}

	client, err := fetcher.NewHTTPClientBuilder(logger).WithConfig(cfg.HTTPClientConfig).Build()
	if err != nil {
		return Dependencies{}, err
	}

	deps := Dependencies{
		Loader:    loader,
		Fetcher:   client,
		Registry:  NewDefaultRegistry(cfg.IdleConfig, logger),
		Scheduler: NewLoadScheduler(cfg.IdleConfig, logger),
	}

	if cfg.HistoryConfig.Enabled {
		store, err := history.NewStore(cfg.HistoryConfig.SQLiteDBPath, logger)
		if err != nil {
			_ = deps.Close()
			return Dependencies{}, err
		}
		deps.History = store
	}

	return deps, nil
}

// NewLoadScheduler creates the default idle scheduler from cfg
func NewLoadScheduler(cfg config.IdleConfig, logger zerolog.Logger) *idle.LoadScheduler {
	return idle.NewLoadScheduler(idle.LoadConfig{
		CPUThreshold: cfg.CPUThreshold,
		PollInterval: time.Duration(cfg.PollIntervalMs) * time.Millisecond,
		SampleWindow: time.Duration(cfg.SampleWindowMs) * time.Millisecond,
	}, logger)
}

// NewDefaultRegistry registers the built-in schedulers and error handlers
// that prefetch options may refer to by name.
func NewDefaultRegistry(cfg config.IdleConfig, logger zerolog.Logger) *policy.Registry {
	registry := policy.NewRegistry()
	handlerLogger := logger.With().Str("component", "PrefetchErrors").Logger()

	_ = registry.RegisterScheduler(idle.NameTimeout, idle.NewTimerScheduler(time.Duration(cfg.TimerDelayMs)*time.Millisecond))
	_ = registry.RegisterScheduler(idle.NameImmediate, idle.Immediate)
	_ = registry.RegisterErrorHandler(ErrorHandlerLog, func(url string, err error) {
		handlerLogger.Warn().Err(err).Str("url", url).Msg("Prefetch error")
	})

	return registry
}
