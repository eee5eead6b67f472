package model

import "time"

// Reading is one scaled physical sample of a battery. Values are expected to
// be already linearized by the acquisition layer; the engine performs no
// transducer conversion.
//
// Sign convention for CurrentAmps: positive means discharge, negative means
// charge. The whole engine relies on this polarity.
type Reading struct {
	VoltageVolts float64   // terminal voltage in volts
	CurrentAmps  float64   // signed current in amps, positive = discharge
	TemperatureC float64   // pack temperature in degrees Celsius, reported only
	Timestamp    time.Time // acquisition time, drives integration deltas
}
