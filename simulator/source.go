package simulator

import (
	"context"
	"math/rand"
	"time"

	"github.com/kilianp07/cellmon/core/model"
	"github.com/kilianp07/cellmon/core/sampler"
)

// Config drives the synthetic reading source.
type Config struct {
	BatteryID    string
	CapacityAh   float64
	InitialSoc   float64
	VoltageMin   float64
	VoltageMax   float64
	LoadAmps     float64       // constant load drawn from the battery
	NoiseStdDev  float64       // gaussian noise added to voltage and current
	Period       time.Duration // sampling period
	// AverageSamples is the number of raw noisy readings averaged per
	// delivered sample, mirroring multi-read ADC acquisition.
	AverageSamples int
	TemperatureC   float64
	Seed           int64
}

// Source produces readings from a simulated battery on a fixed period and
// implements sampler.Stream.
type Source struct {
	cfg     Config
	battery *Battery
	rng     *rand.Rand
	samples chan sampler.Sample
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSource creates a Source; Run must be called to start production.
func NewSource(cfg Config) *Source {
	if cfg.Period <= 0 {
		cfg.Period = time.Second
	}
	if cfg.TemperatureC == 0 {
		cfg.TemperatureC = 25
	}
	return &Source{
		cfg: cfg,
		battery: &Battery{
			CapacityAh:    cfg.CapacityAh,
			Soc:           cfg.InitialSoc,
			ChargeAmps:    cfg.CapacityAh, // 1C limits are plenty for simulation
			DischargeAmps: cfg.CapacityAh,
		},
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		samples: make(chan sampler.Sample, 16),
		done:    make(chan struct{}),
	}
}

// Run produces one reading per period until ctx is done. Each delivered
// reading is the mean of AverageSamples raw noisy acquisitions.
func (s *Source) Run(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	avg := sampler.Averaging{Sampler: rawSampler{src: s}, Count: s.cfg.AverageSamples}
	go func() {
		defer close(s.done)
		defer close(s.samples)
		ticker := time.NewTicker(s.cfg.Period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.battery.ApplyCurrent(s.cfg.LoadAmps, s.cfg.Period)
				r, err := avg.Next(ctx)
				if err != nil {
					return
				}
				select {
				case s.samples <- sampler.Sample{BatteryID: s.cfg.BatteryID, Reading: r}:
				default:
				}
			}
		}
	}()
}

// rawSampler exposes one noisy acquisition at a time so the averaging
// decorator can fold several of them into each delivered reading.
type rawSampler struct {
	src *Source
}

func (r rawSampler) Sample(ctx context.Context) (model.Reading, error) {
	if err := ctx.Err(); err != nil {
		return model.Reading{}, err
	}
	return r.src.reading(time.Now()), nil
}

// reading synthesizes a noisy terminal reading from the battery state.
func (s *Source) reading(now time.Time) model.Reading {
	soc := s.battery.SOC()
	voltage := s.cfg.VoltageMin + soc*(s.cfg.VoltageMax-s.cfg.VoltageMin)
	return model.Reading{
		VoltageVolts: voltage + s.rng.NormFloat64()*s.cfg.NoiseStdDev,
		CurrentAmps:  s.cfg.LoadAmps + s.rng.NormFloat64()*s.cfg.NoiseStdDev,
		TemperatureC: s.cfg.TemperatureC,
		Timestamp:    now,
	}
}

// Samples returns the channel of synthetic readings.
func (s *Source) Samples() <-chan sampler.Sample { return s.samples }

// Close stops production and waits for the producer goroutine to exit.
func (s *Source) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}
