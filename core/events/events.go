// Package events defines the notifications circulating on the internal event
// bus. Sinks subscribe to them for observability; nothing feeds back into the
// estimation engine.
package events

import (
	"time"

	"github.com/kilianp07/cellmon/core/model"
)

// EstimationEvent is emitted after each completed estimation cycle.
type EstimationEvent struct {
	Result model.EstimationResult
}

// DeliveryEvent is emitted when a result delivery attempt finishes, whether
// or not it succeeded.
type DeliveryEvent struct {
	BatteryID string
	Target    string // "uplink" or "mqtt"
	Err       error
	Latency   time.Duration
	Time      time.Time
}
