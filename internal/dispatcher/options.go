package dispatcher

import (
	"github.com/aleister1102/quicklink/internal/idle"
	"github.com/aleister1102/quicklink/internal/urlhandler"
	"github.com/rs/zerolog"
)

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger.With().Str("component", "Dispatcher").Logger()
	}
}

// WithScheduler sets the idle scheduler used when the policy names none
func WithScheduler(scheduler idle.Scheduler) Option {
	return func(d *Dispatcher) {
		if scheduler != nil {
			d.fallbackScheduler = scheduler
		}
	}
}

// WithSink adds a sink that receives every terminal outcome
func WithSink(sink OutcomeSink) Option {
	return func(d *Dispatcher) {
		if sink != nil {
			d.sinks = append(d.sinks, sink)
		}
	}
}

// WithNormalization sets how URLs are keyed for de-duplication
func WithNormalization(config urlhandler.URLNormalizationConfig) Option {
	return func(d *Dispatcher) {
		d.normalizer = urlhandler.NewURLNormalizer(config)
	}
}
