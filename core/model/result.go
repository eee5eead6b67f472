package model

import (
	"math"
	"time"
)

// EstimationResult is the per-cycle output of the estimation engine. It is
// immutable; sinks must not feed anything back into the engine.
type EstimationResult struct {
	BatteryID  string
	SOC        float64 // state of charge in [0,1]
	SOH        float64 // tracked/nominal capacity ratio, unclamped
	RULHours   float64 // hours until end-of-life crossing, may be +Inf
	CapacityAh float64 // Coulomb-counted capacity
	Reading    Reading // the reading this result was derived from
	Time       time.Time
}

// RULUnbounded is the sentinel returned when no degradation has been observed
// and the remaining-life projection is undefined.
func RULUnbounded() float64 { return math.Inf(1) }

// RULIsUnbounded reports whether the remaining-life projection carries the
// unbounded sentinel.
func RULIsUnbounded(rulHours float64) bool { return math.IsInf(rulHours, 1) }
