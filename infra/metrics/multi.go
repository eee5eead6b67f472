package metrics

import coremetrics "github.com/kilianp07/cellmon/core/metrics"

// MultiSink fans estimation records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordEstimation forwards the record to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordEstimation(rec coremetrics.EstimationRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordEstimation(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordDelivery forwards delivery records to sinks that support them.
func (m *MultiSink) RecordDelivery(rec coremetrics.DeliveryRecord) error {
	for _, s := range m.Sinks {
		if dr, ok := s.(coremetrics.DeliveryRecorder); ok {
			if err := dr.RecordDelivery(rec); err != nil {
				return err
			}
		}
	}
	return nil
}
