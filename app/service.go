package app

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/cellmon/config"
	"github.com/kilianp07/cellmon/core/estimator"
	"github.com/kilianp07/cellmon/core/events"
	coremetrics "github.com/kilianp07/cellmon/core/metrics"
	"github.com/kilianp07/cellmon/core/model"
	"github.com/kilianp07/cellmon/core/sampler"
	"github.com/kilianp07/cellmon/infra/logger"
	"github.com/kilianp07/cellmon/infra/metrics"
	"github.com/kilianp07/cellmon/infra/mqtt"
	"github.com/kilianp07/cellmon/infra/uplink"
	"github.com/kilianp07/cellmon/internal/eventbus"
	"github.com/kilianp07/cellmon/simulator"
)

// Service owns the monitor loop: it consumes readings from a stream, runs one
// estimation cycle per reading and fans the results out to the configured
// sinks. Each battery gets its own Estimator; no state is shared between
// batteries.
type Service struct {
	cfg     *config.Config
	stream  sampler.Stream
	pub     *mqtt.ResultPublisher
	up      *uplink.Client
	sink    coremetrics.MetricsSink
	bus     eventbus.EventBus
	log     logger.Logger
	engines map[string]*estimator.Estimator

	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration. Readings come from MQTT when
// enabled, otherwise from a local simulated battery.
func New(cfg *config.Config) (*Service, error) {
	var stream sampler.Stream
	var pub *mqtt.ResultPublisher
	if cfg.MQTT.Enabled {
		src, err := mqtt.NewReadingSource(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt source: %w", err)
		}
		stream = src
		pub, err = mqtt.NewResultPublisher(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
	} else {
		stream = simulator.NewSource(simulator.Config{
			BatteryID:      "sim",
			CapacityAh:     cfg.Battery.NominalCapacityAh,
			InitialSoc:     0.9,
			VoltageMin:     cfg.Battery.VoltageMin,
			VoltageMax:     cfg.Battery.VoltageMax,
			LoadAmps:       cfg.Battery.NominalCapacityAh / 10,
			NoiseStdDev:    0.01,
			Period:         time.Duration(cfg.Sampling.PeriodSeconds) * time.Second,
			AverageSamples: cfg.Sampling.AverageSamples,
		})
	}
	svc := newService(cfg, stream)
	svc.pub = pub
	return svc, nil
}

// newService wires everything except the reading stream provider, which
// tests substitute directly.
func newService(cfg *config.Config, stream sampler.Stream) *Service {
	logg := logger.New("service")

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			logg.Errorf("prom sink: %v", err)
		} else {
			sinks = append(sinks, sink)
		}
	}
	if cfg.Metrics.InfluxEnabled {
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(
			cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket))
	}
	var sink coremetrics.MetricsSink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	var up *uplink.Client
	if cfg.Uplink.Enabled {
		up = uplink.NewClient(cfg.Uplink)
	}

	return &Service{
		cfg:         cfg,
		stream:      stream,
		up:          up,
		sink:        sink,
		bus:         eventbus.New(),
		log:         logg,
		engines:     make(map[string]*estimator.Estimator),
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}
}

// Run consumes the reading stream until the context is canceled or the
// stream closes.
func (s *Service) Run(ctx context.Context) error {
	metrics.StartEventCollector(ctx, s.bus, s.sink)
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if src, ok := s.stream.(*simulator.Source); ok {
		src.Run(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case smp, ok := <-s.stream.Samples():
			if !ok {
				return nil
			}
			s.handle(ctx, smp)
		}
	}
}

// handle runs one estimation cycle for the sample. The first reading of a
// battery only seeds its estimator; results start with the second reading.
func (s *Service) handle(ctx context.Context, smp sampler.Sample) {
	eng, ok := s.engines[smp.BatteryID]
	if !ok {
		opts := []estimator.Option{}
		if w := s.cfg.Sampling.SmoothingWindow; w > 1 {
			opts = append(opts, estimator.WithRateSmoother(estimator.NewRateSmoother(w)))
		}
		seeded, err := estimator.New(s.cfg.Battery, smp.Reading, opts...)
		if err != nil {
			// Config is validated at load time, so this should be unreachable.
			s.log.Errorf("estimator init for %s: %v", smp.BatteryID, err)
			return
		}
		s.engines[smp.BatteryID] = seeded
		s.log.Infof("battery %s initialized at SOC %.3f", smp.BatteryID, seeded.SOC())
		return
	}

	res := eng.Step(smp.Reading)
	res.BatteryID = smp.BatteryID
	s.log.Debugw("estimation cycle", map[string]any{
		"battery_id":  res.BatteryID,
		"soc":         res.SOC,
		"soh":         res.SOH,
		"capacity_ah": res.CapacityAh,
	})
	s.bus.Publish(events.EstimationEvent{Result: res})
	s.deliver(ctx, res)
}

// deliver pushes the result downstream. Deliveries are fire-and-forget: a
// failed or slow target is recorded and the next cycle proceeds regardless.
func (s *Service) deliver(ctx context.Context, res model.EstimationResult) {
	if s.pub != nil {
		go func() {
			start := time.Now()
			err := s.pub.Publish(res)
			s.bus.Publish(events.DeliveryEvent{
				BatteryID: res.BatteryID,
				Target:    "mqtt",
				Err:       err,
				Latency:   time.Since(start),
				Time:      time.Now(),
			})
		}()
	}
	if s.up != nil {
		go func() {
			start := time.Now()
			err := s.up.Send(ctx, res)
			if err != nil {
				s.log.Warnf("uplink delivery for %s: %v", res.BatteryID, err)
			}
			s.bus.Publish(events.DeliveryEvent{
				BatteryID: res.BatteryID,
				Target:    "uplink",
				Err:       err,
				Latency:   time.Since(start),
				Time:      time.Now(),
			})
		}()
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var first error
	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			first = err
		}
	}
	if s.pub != nil {
		if err := s.pub.Close(); err != nil && first == nil {
			first = err
		}
	}
	s.bus.Close()
	return first
}
