package estimator

import (
	"time"

	"github.com/kilianp07/cellmon/core/model"
)

// initialCovariance is the prior uncertainty assigned to the first
// voltage-derived SOC estimate.
const initialCovariance = 1.0

const (
	secondsPerHour = 3600.0
	hoursPerYear   = 8760.0
)

// Estimator holds the recursive estimation state for a single battery. It is
// owned by exactly one goroutine; concurrent use requires one Estimator per
// battery with no sharing.
type Estimator struct {
	cfg      model.BatteryConfig
	smoother *RateSmoother

	soc        float64 // current best SOC estimate, always in [0,1]
	covariance float64 // Kalman error covariance P, never negative
	capacityAh float64 // Coulomb-counted capacity
	lastUpdate time.Time
}

// Option configures an Estimator at construction.
type Option func(*Estimator)

// WithRateSmoother replaces the instantaneous degradation rate used for the
// RUL projection with a windowed linear-regression estimate. A nil smoother
// keeps the reference single-sample behaviour.
func WithRateSmoother(s *RateSmoother) Option {
	return func(e *Estimator) { e.smoother = s }
}

// New creates an Estimator seeded from the first reading: the initial SOC
// comes from the voltage-to-SOC mapping and the capacity zero-point is tied
// to that SOC, not to zero. The configuration is validated here so that no
// estimation cycle can run with degenerate noise terms or voltage bounds.
func New(cfg model.BatteryConfig, first model.Reading, opts ...Option) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	soc := cfg.VoltageSOC(first.VoltageVolts)
	e := &Estimator{
		cfg:        cfg,
		soc:        soc,
		covariance: initialCovariance,
		capacityAh: cfg.NominalCapacityAh * soc,
		lastUpdate: first.Timestamp,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.smoother != nil {
		e.smoother.Observe(first.Timestamp, e.capacityAh)
	}
	return e, nil
}

// Step runs one full estimation cycle for the given reading: capacity
// integration, Kalman correction and health derivation, in that order.
func (e *Estimator) Step(r model.Reading) model.EstimationResult {
	dt := r.Timestamp.Sub(e.lastUpdate).Seconds()
	if dt < 0 {
		// Clock went backwards; never let a negative delta corrupt the
		// integral or the prediction.
		dt = 0
	}
	e.integrate(r, dt)
	e.correct(r, dt)
	soh, rul := e.deriveHealth()
	return model.EstimationResult{
		SOC:        e.soc,
		SOH:        soh,
		RULHours:   rul,
		CapacityAh: e.capacityAh,
		Reading:    r,
		Time:       r.Timestamp,
	}
}

// integrate advances the Coulomb counter. The signed current is added
// directly, without negating for discharge: positive current increases the
// tracked capacity. This matches the original field firmware; the SOC
// prediction applies the opposite sign separately.
func (e *Estimator) integrate(r model.Reading, dtSeconds float64) {
	e.capacityAh += (r.CurrentAmps * dtSeconds / secondsPerHour) * e.cfg.CoulombicEfficiency
	e.lastUpdate = r.Timestamp
	if e.smoother != nil {
		e.smoother.Observe(r.Timestamp, e.capacityAh)
	}
}

// correct runs one scalar Kalman update fusing the Coulomb-predicted SOC with
// the voltage-derived observation. With dtSeconds == 0 the prediction is a
// pass-through and only the correction applies.
func (e *Estimator) correct(r model.Reading, dtSeconds float64) {
	predicted := e.soc - (r.CurrentAmps*dtSeconds)/(e.cfg.NominalCapacityAh*secondsPerHour)
	e.covariance += e.cfg.ProcessNoise

	measured := e.cfg.VoltageSOC(r.VoltageVolts)

	// Q and R are validated strictly positive, so the gain denominator can
	// never be zero.
	gain := e.covariance / (e.covariance + e.cfg.MeasurementNoise)
	e.soc = clamp01(predicted + gain*(measured-predicted))
	e.covariance *= 1 - gain
	if e.covariance < 0 {
		e.covariance = 0
	}
}

// deriveHealth computes SOH and the remaining-useful-life projection from the
// current capacity. SOH is intentionally unclamped: values above 1 or below 0
// signal model drift and are left for the caller to interpret.
func (e *Estimator) deriveHealth() (soh, rulHours float64) {
	soh = e.capacityAh / e.cfg.NominalCapacityAh

	annualRateAh := e.annualLossAh(soh)
	if annualRateAh == 0 {
		return soh, model.RULUnbounded()
	}
	rulHours = (e.capacityAh - e.cfg.EndOfLifeCapacityAh()) / annualRateAh * hoursPerYear
	return soh, rulHours
}

// annualLossAh returns the projected capacity loss per year. Without a
// smoother it linearly annualizes the loss observed so far over the
// configured life horizon; with a smoother it uses the fitted slope of the
// recent capacity trajectory.
func (e *Estimator) annualLossAh(soh float64) float64 {
	if e.smoother != nil {
		if rate, ok := e.smoother.AnnualLossAh(); ok {
			return rate
		}
	}
	degradationPct := (1 - soh) * 100
	return e.cfg.NominalCapacityAh * (degradationPct / e.cfg.LifeHorizonYears) / 100
}

// SOC returns the current state-of-charge estimate.
func (e *Estimator) SOC() float64 { return e.soc }

// Covariance returns the filter's current error covariance.
func (e *Estimator) Covariance() float64 { return e.covariance }

// CapacityAh returns the Coulomb-counted capacity.
func (e *Estimator) CapacityAh() float64 { return e.capacityAh }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
