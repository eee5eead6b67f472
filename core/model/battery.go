package model

import "fmt"

// BatteryConfig carries the immutable parameters of a monitored battery.
// A zero or malformed configuration must be rejected before the first
// estimation cycle runs.
type BatteryConfig struct {
	// NominalCapacityAh is the as-new capacity of the battery in amp-hours.
	NominalCapacityAh float64 `json:"nominal_capacity_ah"`
	// ProcessNoise (Q) expresses distrust in the Coulomb-counting prediction.
	ProcessNoise float64 `json:"process_noise"`
	// MeasurementNoise (R) expresses distrust in the voltage observation.
	MeasurementNoise float64 `json:"measurement_noise"`
	// CoulombicEfficiency scales the integrated charge, in (0,1].
	CoulombicEfficiency float64 `json:"coulombic_efficiency"`
	// VoltageMin and VoltageMax bound the linear voltage-to-SOC mapping.
	VoltageMin float64 `json:"voltage_min"`
	VoltageMax float64 `json:"voltage_max"`
	// EndOfLifeFraction is the fraction of nominal capacity at which the
	// battery is considered worn out. Typically 0.8.
	EndOfLifeFraction float64 `json:"end_of_life_fraction"`
	// LifeHorizonYears annualizes the observed capacity loss into a
	// degradation rate.
	LifeHorizonYears float64 `json:"life_horizon_years"`
}

// Validate checks mandatory fields. Any violation is a fatal configuration
// error; estimation must not start with an invalid config.
func (c BatteryConfig) Validate() error {
	if c.NominalCapacityAh <= 0 {
		return fmt.Errorf("nominal_capacity_ah must be positive, got %v", c.NominalCapacityAh)
	}
	if c.ProcessNoise <= 0 {
		return fmt.Errorf("process_noise must be strictly positive, got %v", c.ProcessNoise)
	}
	if c.MeasurementNoise <= 0 {
		return fmt.Errorf("measurement_noise must be strictly positive, got %v", c.MeasurementNoise)
	}
	if c.CoulombicEfficiency <= 0 || c.CoulombicEfficiency > 1 {
		return fmt.Errorf("coulombic_efficiency must be in (0,1], got %v", c.CoulombicEfficiency)
	}
	if c.VoltageMin >= c.VoltageMax {
		return fmt.Errorf("degenerate voltage range [%v,%v]", c.VoltageMin, c.VoltageMax)
	}
	if c.EndOfLifeFraction <= 0 || c.EndOfLifeFraction >= 1 {
		return fmt.Errorf("end_of_life_fraction must be in (0,1), got %v", c.EndOfLifeFraction)
	}
	if c.LifeHorizonYears <= 0 {
		return fmt.Errorf("life_horizon_years must be positive, got %v", c.LifeHorizonYears)
	}
	return nil
}

// VoltageSOC maps a terminal voltage onto [0,1] using the configured linear
// open-circuit-voltage proxy. Flat voltage profiles near full or empty give
// exaggerated confidence; this is an accepted model limitation.
func (c BatteryConfig) VoltageSOC(volts float64) float64 {
	soc := (volts - c.VoltageMin) / (c.VoltageMax - c.VoltageMin)
	if soc < 0 {
		return 0
	}
	if soc > 1 {
		return 1
	}
	return soc
}

// EndOfLifeCapacityAh returns the capacity threshold below which the battery
// is beyond its useful life.
func (c BatteryConfig) EndOfLifeCapacityAh() float64 {
	return c.EndOfLifeFraction * c.NominalCapacityAh
}
