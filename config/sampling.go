package config

import "fmt"

// SamplingConfig defines how often readings are expected and how the RUL
// projection is smoothed.
type SamplingConfig struct {
	// PeriodSeconds is the nominal sampling period for simulated sources.
	PeriodSeconds int `json:"period_seconds"`
	// AverageSamples is the number of raw samples averaged per reading.
	AverageSamples int `json:"average_samples"`
	// SmoothingWindow is the number of capacity samples the degradation rate
	// is fitted over. 0 keeps the instantaneous single-sample projection.
	SmoothingWindow int `json:"smoothing_window"`
}

// SetDefaults applies the reference sampling behaviour.
func (c *SamplingConfig) SetDefaults() {
	if c.PeriodSeconds == 0 {
		c.PeriodSeconds = 20
	}
	if c.AverageSamples == 0 {
		c.AverageSamples = 20
	}
}

// Validate checks the section for degenerate values.
func (c SamplingConfig) Validate() error {
	if c.PeriodSeconds < 1 {
		return fmt.Errorf("period_seconds must be at least 1, got %d", c.PeriodSeconds)
	}
	if c.AverageSamples < 1 {
		return fmt.Errorf("average_samples must be at least 1, got %d", c.AverageSamples)
	}
	if c.SmoothingWindow < 0 {
		return fmt.Errorf("smoothing_window must not be negative, got %d", c.SmoothingWindow)
	}
	return nil
}
