// Package simulator provides a synthetic battery producing plausible noisy
// readings, used by the simulate command and by tests that need a reading
// stream without hardware.
package simulator

import (
	"math"
	"sync"
	"time"
)

// Battery models a simple cell with charge/discharge current limits.
type Battery struct {
	CapacityAh    float64 // total capacity
	Soc           float64 // state of charge [0,1]
	ChargeAmps    float64 // maximum charging current
	DischargeAmps float64 // maximum discharging current
	mu            sync.Mutex
}

// ApplyCurrent updates the SoC according to the requested current and
// duration. Positive current means discharge, negative means charging.
// It returns the actual current applied after enforcing limits.
func (b *Battery) ApplyCurrent(amps float64, dt time.Duration) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	hours := dt.Hours()
	if hours <= 0 {
		return 0
	}

	actual := amps
	if amps > 0 { // discharge
		if amps > b.DischargeAmps {
			actual = b.DischargeAmps
		}
		maxCharge := b.Soc * b.CapacityAh
		drawn := actual * hours
		if drawn > maxCharge {
			drawn = maxCharge
			actual = drawn / hours
		}
		b.Soc -= drawn / b.CapacityAh
	} else if amps < 0 { // charge
		a := math.Abs(amps)
		if a > b.ChargeAmps {
			a = b.ChargeAmps
		}
		room := (1 - b.Soc) * b.CapacityAh
		stored := a * hours
		if stored > room {
			stored = room
			a = stored / hours
		}
		b.Soc += stored / b.CapacityAh
		actual = -a
	}

	if b.Soc < 0 {
		b.Soc = 0
	}
	if b.Soc > 1 {
		b.Soc = 1
	}
	return actual
}

// SOC returns the current state of charge.
func (b *Battery) SOC() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.Soc
}
