package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/cellmon/core/events"
	coremetrics "github.com/kilianp07/cellmon/core/metrics"
	"github.com/kilianp07/cellmon/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// estimation and delivery events. It stops when the context is canceled.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				switch e := ev.(type) {
				case events.EstimationEvent:
					_ = sink.RecordEstimation(coremetrics.EstimationRecord{
						Result: e.Result,
						Time:   time.Now(),
					})
				case events.DeliveryEvent:
					if dr, ok := sink.(coremetrics.DeliveryRecorder); ok {
						errStr := ""
						if e.Err != nil {
							errStr = e.Err.Error()
						}
						_ = dr.RecordDelivery(coremetrics.DeliveryRecord{
							BatteryID: e.BatteryID,
							Target:    e.Target,
							OK:        e.Err == nil,
							Error:     errStr,
							Latency:   e.Latency,
							Time:      e.Time,
						})
					}
				}
			}
		}
	}()
}
