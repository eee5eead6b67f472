package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/cellmon/core/metrics"
	"github.com/kilianp07/cellmon/core/model"
)

// PromSink exposes the latest estimation state as Prometheus metrics.
type PromSink struct {
	soc        *prometheus.GaugeVec
	soh        *prometheus.GaugeVec
	rul        *prometheus.GaugeVec
	capacity   *prometheus.GaugeVec
	voltage    *prometheus.GaugeVec
	current    *prometheus.GaugeVec
	cycles     *prometheus.CounterVec
	deliveries *prometheus.CounterVec
}

// NewPromSink registers estimation metrics on the default Prometheus
// registerer. The metrics server is started separately.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(cfg coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		soc: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "battery_soc_ratio",
			Help: "Estimated state of charge in [0,1]",
		}, []string{"battery_id"}),
		soh: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "battery_soh_ratio",
			Help: "Estimated state of health (tracked/nominal capacity)",
		}, []string{"battery_id"}),
		rul: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "battery_rul_hours",
			Help: "Projected hours until the end-of-life capacity threshold",
		}, []string{"battery_id"}),
		capacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "battery_capacity_ah",
			Help: "Coulomb-counted capacity in amp-hours",
		}, []string{"battery_id"}),
		voltage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "battery_voltage_volts",
			Help: "Last sampled terminal voltage",
		}, []string{"battery_id"}),
		current: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "battery_current_amps",
			Help: "Last sampled current, positive = discharge",
		}, []string{"battery_id"}),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "estimation_cycles_total",
			Help: "Number of completed estimation cycles",
		}, []string{"battery_id"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "result_deliveries_total",
			Help: "Result delivery attempts by target and outcome",
		}, []string{"target", "ok"}),
	}
	collectors := []prometheus.Collector{
		s.soc, s.soh, s.rul, s.capacity, s.voltage, s.current, s.cycles, s.deliveries,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return s, nil
}

// RecordEstimation updates the per-battery gauges. An unbounded RUL is not
// representable as a meaningful gauge value and leaves the gauge untouched.
func (s *PromSink) RecordEstimation(rec coremetrics.EstimationRecord) error {
	r := rec.Result
	s.soc.WithLabelValues(r.BatteryID).Set(r.SOC)
	s.soh.WithLabelValues(r.BatteryID).Set(r.SOH)
	if !model.RULIsUnbounded(r.RULHours) {
		s.rul.WithLabelValues(r.BatteryID).Set(r.RULHours)
	}
	s.capacity.WithLabelValues(r.BatteryID).Set(r.CapacityAh)
	s.voltage.WithLabelValues(r.BatteryID).Set(r.Reading.VoltageVolts)
	s.current.WithLabelValues(r.BatteryID).Set(r.Reading.CurrentAmps)
	s.cycles.WithLabelValues(r.BatteryID).Inc()
	return nil
}

// RecordDelivery counts delivery attempts by target and outcome.
func (s *PromSink) RecordDelivery(rec coremetrics.DeliveryRecord) error {
	s.deliveries.WithLabelValues(rec.Target, strconv.FormatBool(rec.OK)).Inc()
	return nil
}
