package config

// IdleConfig configures the default idle-time scheduler
type IdleConfig struct {
	CPUThreshold   float64 `json:"cpu_threshold,omitempty" yaml:"cpu_threshold,omitempty" validate:"omitempty,gt=0,lte=100"`
	PollIntervalMs int     `json:"poll_interval_ms,omitempty" yaml:"poll_interval_ms,omitempty" validate:"omitempty,min=10"`
	SampleWindowMs int     `json:"sample_window_ms,omitempty" yaml:"sample_window_ms,omitempty" validate:"omitempty,min=10"`
	TimerDelayMs   int     `json:"timer_delay_ms,omitempty" yaml:"timer_delay_ms,omitempty" validate:"omitempty,min=0"`
}

// NewDefaultIdleConfig creates default idle scheduler configuration
func NewDefaultIdleConfig() IdleConfig {
	return IdleConfig{
		CPUThreshold:   DefaultIdleCPUThreshold,
		PollIntervalMs: DefaultIdlePollIntervalMs,
		SampleWindowMs: DefaultIdleSampleWindowMs,
		TimerDelayMs:   DefaultIdleTimerDelayMs,
	}
}
