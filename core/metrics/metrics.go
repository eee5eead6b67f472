package metrics

import (
	"time"

	"github.com/kilianp07/cellmon/core/model"
)

// EstimationRecord captures one estimation cycle for recording.
type EstimationRecord struct {
	Result model.EstimationResult
	Time   time.Time
}

// MetricsSink records estimation results for observability purposes.
type MetricsSink interface {
	RecordEstimation(rec EstimationRecord) error
}

// DeliveryRecord captures the outcome of pushing a result downstream.
type DeliveryRecord struct {
	BatteryID string
	Target    string
	OK        bool
	Error     string
	Latency   time.Duration
	Time      time.Time
}

// DeliveryRecorder records delivery outcomes.
type DeliveryRecorder interface {
	RecordDelivery(rec DeliveryRecord) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordEstimation(EstimationRecord) error { return nil }

func (NopSink) RecordDelivery(DeliveryRecord) error { return nil }
