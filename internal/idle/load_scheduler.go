package idle

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
)

const (
	DefaultCPUThreshold = 50.0
	DefaultPollInterval = 250 * time.Millisecond
	DefaultSampleWindow = 100 * time.Millisecond
)

// LoadConfig configures idle detection based on host CPU utilisation
type LoadConfig struct {
	// CPUThreshold is the utilisation percentage below which the host counts as idle
	CPUThreshold float64
	// PollInterval is how often a waiting callback re-checks the host
	PollInterval time.Duration
	// SampleWindow is the measurement window for one CPU sample
	SampleWindow time.Duration
}

// DefaultLoadConfig returns the default idle detection settings
func DefaultLoadConfig() LoadConfig {
	return LoadConfig{
		CPUThreshold: DefaultCPUThreshold,
		PollInterval: DefaultPollInterval,
		SampleWindow: DefaultSampleWindow,
	}
}

// LoadSampler measures host CPU utilisation in percent
type LoadSampler interface {
	CPUPercent(ctx context.Context) (float64, error)
}

// LoadSamplerFunc adapts a function to LoadSampler
type LoadSamplerFunc func(ctx context.Context) (float64, error)

// CPUPercent calls f(ctx)
func (f LoadSamplerFunc) CPUPercent(ctx context.Context) (float64, error) {
	return f(ctx)
}

type gopsutilSampler struct {
	window time.Duration
}

func (s gopsutilSampler) CPUPercent(ctx context.Context) (float64, error) {
	percents, err := cpu.PercentWithContext(ctx, s.window, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, nil
	}
	return percents[0], nil
}

// LoadScheduler is the default scheduler: callbacks wait until host CPU
// utilisation drops below the threshold, or until their timeout fires.
// Samples are shared between waiters and refreshed at most once per poll interval.
type LoadScheduler struct {
	config  LoadConfig
	sampler LoadSampler
	logger  zerolog.Logger

	mu        sync.Mutex
	lastIdle  bool
	sampledAt time.Time
}

// NewLoadScheduler creates a LoadScheduler backed by gopsutil
func NewLoadScheduler(config LoadConfig, logger zerolog.Logger) *LoadScheduler {
	defaults := DefaultLoadConfig()
	if config.CPUThreshold <= 0 {
		config.CPUThreshold = defaults.CPUThreshold
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.SampleWindow <= 0 {
		config.SampleWindow = defaults.SampleWindow
	}

	return &LoadScheduler{
		config:  config,
		sampler: gopsutilSampler{window: config.SampleWindow},
		logger:  logger.With().Str("component", "LoadScheduler").Logger(),
	}
}

// WithSampler replaces the CPU sampler
func (s *LoadScheduler) WithSampler(sampler LoadSampler) *LoadScheduler {
	if sampler != nil {
		s.sampler = sampler
	}
	return s
}

// Schedule implements Scheduler
func (s *LoadScheduler) Schedule(ctx context.Context, timeout time.Duration, fn func()) {
	go s.wait(ctx, timeout, fn)
}

func (s *LoadScheduler) wait(ctx context.Context, timeout time.Duration, fn func()) {
	if timeout <= 0 {
		if ctx.Err() == nil {
			fn()
		}
		return
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return
		}
		if s.isIdle(ctx) {
			fn()
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			s.logger.Debug().Dur("timeout", timeout).Msg("No idle period before timeout, forcing callback")
			fn()
			return
		case <-ticker.C:
		}
	}
}

// IsIdle reports whether the host currently counts as idle
func (s *LoadScheduler) IsIdle(ctx context.Context) bool {
	return s.isIdle(ctx)
}

func (s *LoadScheduler) isIdle(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sampledAt.IsZero() && time.Since(s.sampledAt) < s.config.PollInterval {
		return s.lastIdle
	}

	// The sample is shared, so one waiter's cancellation must not cut it short.
	sampleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.SampleWindow+time.Second)
	defer cancel()
	percent, err := s.sampler.CPUPercent(sampleCtx)
	if err != nil {
		// An unmeasurable host must not hold prefetches back.
		s.logger.Debug().Err(err).Msg("CPU sample failed, treating host as idle")
		s.lastIdle = true
	} else {
		s.lastIdle = percent < s.config.CPUThreshold
	}
	s.sampledAt = time.Now()

	return s.lastIdle
}
