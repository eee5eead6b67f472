package estimator

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/cellmon/core/model"
)

func testConfig() model.BatteryConfig {
	return model.BatteryConfig{
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

func reading(v, i float64, at time.Time) model.Reading {
	return model.Reading{VoltageVolts: v, CurrentAmps: i, TemperatureC: 25, Timestamp: at}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*model.BatteryConfig)
	}{
		{"zero capacity", func(c *model.BatteryConfig) { c.NominalCapacityAh = 0 }},
		{"zero process noise", func(c *model.BatteryConfig) { c.ProcessNoise = 0 }},
		{"negative measurement noise", func(c *model.BatteryConfig) { c.MeasurementNoise = -1 }},
		{"efficiency above one", func(c *model.BatteryConfig) { c.CoulombicEfficiency = 1.1 }},
		{"inverted voltage range", func(c *model.BatteryConfig) { c.VoltageMin = 4.2 }},
		{"eol fraction one", func(c *model.BatteryConfig) { c.EndOfLifeFraction = 1 }},
		{"zero horizon", func(c *model.BatteryConfig) { c.LifeHorizonYears = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			_, err := New(cfg, reading(3.25, 0, time.Now()))
			assert.Error(t, err)
		})
	}
}

func TestNewSeedsFromFirstVoltage(t *testing.T) {
	e, err := New(testConfig(), reading(3.25, 0, time.Now()))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, e.SOC(), 1e-12)
	assert.InDelta(t, 4.1*0.5, e.CapacityAh(), 1e-12)
	assert.Equal(t, 1.0, e.Covariance())
}

func TestIntegrateChargingHour(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	// Full battery, then one hour of 1A charge at 0.98 efficiency. The signed
	// current is added directly, so the tracked capacity drops to 3.12.
	e, err := New(testConfig(), reading(4.0, 0, t0))
	require.NoError(t, err)
	res := e.Step(reading(4.0, -1.0, t0.Add(time.Hour)))
	assert.InDelta(t, 3.12, res.CapacityAh, 1e-9)
}

func TestZeroDeltaLeavesCapacityUnchanged(t *testing.T) {
	t0 := time.Now()
	e, err := New(testConfig(), reading(3.25, 0, t0))
	require.NoError(t, err)
	before := e.CapacityAh()
	res := e.Step(reading(3.4, 2.5, t0))
	assert.Equal(t, before, res.CapacityAh)
}

func TestBackwardsClockClampsToZero(t *testing.T) {
	t0 := time.Now()
	e, err := New(testConfig(), reading(3.25, 0, t0))
	require.NoError(t, err)
	before := e.CapacityAh()
	res := e.Step(reading(3.25, 5, t0.Add(-time.Minute)))
	assert.Equal(t, before, res.CapacityAh)
	assert.GreaterOrEqual(t, res.SOC, 0.0)
	assert.LessOrEqual(t, res.SOC, 1.0)
}

func TestSOCAlwaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	t0 := time.Now()
	e, err := New(testConfig(), reading(3.1, 0, t0))
	require.NoError(t, err)
	for i := 1; i <= 5000; i++ {
		r := reading(
			2.0+rng.Float64()*3.0,  // voltage, deliberately beyond the range
			-20+rng.Float64()*40.0, // current swings between charge and discharge
			t0.Add(time.Duration(i)*10*time.Second),
		)
		res := e.Step(r)
		if res.SOC < 0 || res.SOC > 1 {
			t.Fatalf("step %d: SOC %v out of [0,1]", i, res.SOC)
		}
		if e.Covariance() < 0 {
			t.Fatalf("step %d: covariance %v went negative", i, e.Covariance())
		}
	}
}

func TestConvergenceToVoltageSOC(t *testing.T) {
	t0 := time.Now()
	// Start far away from the voltage-derived value.
	e, err := New(testConfig(), reading(4.0, 0, t0))
	require.NoError(t, err)
	var res model.EstimationResult
	for i := 1; i <= 500; i++ {
		res = e.Step(reading(3.25, 0, t0.Add(time.Duration(i)*time.Second)))
	}
	assert.InDelta(t, 0.5, res.SOC, 0.01)
}

func TestSOHRatio(t *testing.T) {
	cfg := testConfig()
	// Seed the capacity at exactly 3.5 Ah through the voltage mapping.
	soc0 := 3.5 / cfg.NominalCapacityAh
	v := cfg.VoltageMin + soc0*(cfg.VoltageMax-cfg.VoltageMin)
	t0 := time.Now()
	e, err := New(cfg, reading(v, 0, t0))
	require.NoError(t, err)
	res := e.Step(reading(v, 0, t0))
	assert.InDelta(t, 3.5/4.1, res.SOH, 1e-9)
	assert.False(t, model.RULIsUnbounded(res.RULHours))
}

func TestRULZeroAtEndOfLifeThreshold(t *testing.T) {
	cfg := testConfig()
	v := cfg.VoltageMin + cfg.EndOfLifeFraction*(cfg.VoltageMax-cfg.VoltageMin)
	t0 := time.Now()
	e, err := New(cfg, reading(v, 0, t0))
	require.NoError(t, err)
	res := e.Step(reading(v, 0, t0))
	assert.InDelta(t, 0, res.RULHours, 1e-6)
}

func TestRULUnboundedWithoutDegradation(t *testing.T) {
	t0 := time.Now()
	// A pristine battery at nominal capacity has a zero degradation rate; the
	// projection must return the sentinel, not divide by zero.
	e, err := New(testConfig(), reading(4.0, 0, t0))
	require.NoError(t, err)
	res := e.Step(reading(4.0, 0, t0))
	assert.True(t, model.RULIsUnbounded(res.RULHours))
	assert.False(t, math.IsNaN(res.RULHours))
}

func TestCovarianceShrinksUnderRepeatedCorrection(t *testing.T) {
	t0 := time.Now()
	e, err := New(testConfig(), reading(3.25, 0, t0))
	require.NoError(t, err)
	prev := e.Covariance()
	for i := 1; i <= 50; i++ {
		e.Step(reading(3.25, 0, t0.Add(time.Duration(i)*time.Second)))
	}
	assert.Less(t, e.Covariance(), prev)
	assert.GreaterOrEqual(t, e.Covariance(), 0.0)
}
