package metrics

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/cellmon/core/metrics"
	"github.com/kilianp07/cellmon/core/model"
	"github.com/kilianp07/cellmon/infra/logger"
)

// InfluxSink writes estimation cycles to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and returns a
// NopSink if the health check fails, so a dead database never blocks the
// monitor loop.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordEstimation writes one battery_state point per cycle. An unbounded RUL
// is stored as a separate boolean field instead of an infinite float, which
// line protocol cannot carry.
func (s *InfluxSink) RecordEstimation(rec coremetrics.EstimationRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r := rec.Result
	p := write.NewPointWithMeasurement("battery_state").
		AddTag("battery_id", r.BatteryID).
		AddField("voltage_v", round3(r.Reading.VoltageVolts)).
		AddField("current_a", round3(r.Reading.CurrentAmps)).
		AddField("temperature_c", round3(r.Reading.TemperatureC)).
		AddField("soc", round3(r.SOC)).
		AddField("soh", round3(r.SOH)).
		AddField("capacity_ah", round3(r.CapacityAh)).
		AddField("rul_unbounded", model.RULIsUnbounded(r.RULHours)).
		SetTime(r.Time)
	if !model.RULIsUnbounded(r.RULHours) {
		p.AddField("rul_hours", round3(r.RULHours))
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordDelivery writes one delivery_attempt point.
func (s *InfluxSink) RecordDelivery(rec coremetrics.DeliveryRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("delivery_attempt").
		AddTag("battery_id", rec.BatteryID).
		AddTag("target", rec.Target).
		AddField("ok", rec.OK).
		AddField("latency_ms", round3(rec.Latency.Seconds()*1000)).
		AddField("errors", rec.Error).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
