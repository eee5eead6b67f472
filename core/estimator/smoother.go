package estimator

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// RateSmoother estimates the capacity degradation rate from a sliding window
// of (time, capacity) samples instead of the latest sample alone. The single
// sample projection is highly sensitive to current noise; fitting a line over
// the recent trajectory trades a little lag for stability.
type RateSmoother struct {
	window int
	origin time.Time

	hours      []float64
	capacities []float64
}

// NewRateSmoother creates a smoother keeping the last window samples. A
// window below 2 cannot fit a slope and effectively disables smoothing.
func NewRateSmoother(window int) *RateSmoother {
	return &RateSmoother{window: window}
}

// Observe appends one capacity sample to the window.
func (s *RateSmoother) Observe(t time.Time, capacityAh float64) {
	if s.origin.IsZero() {
		s.origin = t
	}
	s.hours = append(s.hours, t.Sub(s.origin).Hours())
	s.capacities = append(s.capacities, capacityAh)
	if s.window > 0 && len(s.hours) > s.window {
		s.hours = s.hours[len(s.hours)-s.window:]
		s.capacities = s.capacities[len(s.capacities)-s.window:]
	}
}

// AnnualLossAh returns the fitted capacity loss per year. ok is false while
// the window holds fewer than two distinct timestamps, in which case the
// caller should fall back to the instantaneous rate.
func (s *RateSmoother) AnnualLossAh() (rate float64, ok bool) {
	if len(s.hours) < 2 || s.hours[0] == s.hours[len(s.hours)-1] {
		return 0, false
	}
	// Slope is Ah per hour; a falling trajectory means positive loss.
	_, slope := stat.LinearRegression(s.hours, s.capacities, nil, false)
	return -slope * hoursPerYear, true
}
