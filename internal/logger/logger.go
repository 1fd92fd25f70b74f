package logger

import (
	"errors"
	"io"

	"github.com/aleister1102/quicklink/internal/config"
	"github.com/rs/zerolog"
)

// Logger represents the main logger with configuration
type Logger struct {
	zerolog zerolog.Logger
	config  LoggerConfig
	closers []io.Closer
}

// GetZerolog returns the underlying zerolog instance
func (l *Logger) GetZerolog() *zerolog.Logger {
	return &l.zerolog
}

// GetConfig returns the effective configuration
func (l *Logger) GetConfig() LoggerConfig {
	return l.config
}

// Close releases log files
func (l *Logger) Close() error {
	var errs []error
	for _, closer := range l.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	l.closers = nil
	return errors.Join(errs...)
}

// NewWithSessionID creates a logger from the application log configuration.
// File output is grouped under sessions/<sessionID>/ when sessionID is set.
func NewWithSessionID(cfg config.LogConfig, sessionID string) (*Logger, error) {
	return NewLoggerBuilder().
		WithConfig(cfg).
		WithSessionID(sessionID).
		Build()
}
