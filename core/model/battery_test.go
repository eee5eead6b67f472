package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() BatteryConfig {
	return BatteryConfig{
		NominalCapacityAh:   4.1,
		ProcessNoise:        0.0001,
		MeasurementNoise:    0.1,
		CoulombicEfficiency: 0.98,
		VoltageMin:          2.5,
		VoltageMax:          4.0,
		EndOfLifeFraction:   0.8,
		LifeHorizonYears:    5,
	}
}

func TestValidateAccepts(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestVoltageSOCMidpoint(t *testing.T) {
	cfg := validConfig()
	assert.InDelta(t, 0.5, cfg.VoltageSOC(3.25), 1e-12)
}

func TestVoltageSOCClamps(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, 0.0, cfg.VoltageSOC(1.9))
	assert.Equal(t, 1.0, cfg.VoltageSOC(4.5))
}

func TestEndOfLifeCapacity(t *testing.T) {
	cfg := validConfig()
	assert.InDelta(t, 3.28, cfg.EndOfLifeCapacityAh(), 1e-12)
}

func TestRULSentinel(t *testing.T) {
	assert.True(t, RULIsUnbounded(RULUnbounded()))
	assert.False(t, RULIsUnbounded(120.5))
	assert.False(t, RULIsUnbounded(-5))
}
