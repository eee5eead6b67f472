// Package estimator implements the battery state-estimation engine: a
// Coulomb-counting capacity integrator, a scalar Kalman filter fusing the
// model-predicted state of charge with a voltage-derived observation, and the
// derived state-of-health and remaining-useful-life projections.
//
// One Estimator owns the mutable state of one battery. Updates are O(1) in
// time and memory; no sample history is retained beyond the optional rate
// smoother window.
package estimator
