// Package sampler defines the input boundary of the engine: something that
// produces timestamped battery readings. Concrete providers (MQTT, simulator)
// live outside the core.
package sampler

import (
	"context"

	"github.com/kilianp07/cellmon/core/model"
)

// Sample is one reading tagged with the battery it belongs to.
type Sample struct {
	BatteryID string
	Reading   model.Reading
}

// Stream delivers samples until the context driving the provider ends.
type Stream interface {
	// Samples returns the channel of incoming samples. The channel is closed
	// when the provider shuts down.
	Samples() <-chan Sample
	Close() error
}

// RawSampler acquires a single raw reading. It may block briefly while the
// hardware converts.
type RawSampler interface {
	Sample(ctx context.Context) (model.Reading, error)
}

// Averaging wraps a RawSampler and averages Count raw samples per delivered
// reading, which tames ADC noise before it reaches the filter. The timestamp
// of the last raw sample is kept.
type Averaging struct {
	Sampler RawSampler
	Count   int
}

// Next acquires Count raw samples and returns their mean. A Count below 2
// degenerates into a single passthrough sample.
func (a Averaging) Next(ctx context.Context) (model.Reading, error) {
	n := a.Count
	if n < 1 {
		n = 1
	}
	var out model.Reading
	for i := 0; i < n; i++ {
		r, err := a.Sampler.Sample(ctx)
		if err != nil {
			return model.Reading{}, err
		}
		out.VoltageVolts += r.VoltageVolts
		out.CurrentAmps += r.CurrentAmps
		out.TemperatureC += r.TemperatureC
		out.Timestamp = r.Timestamp
	}
	out.VoltageVolts /= float64(n)
	out.CurrentAmps /= float64(n)
	out.TemperatureC /= float64(n)
	return out, nil
}
