package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/cellmon/config"
	"github.com/kilianp07/cellmon/core/estimator"
	"github.com/kilianp07/cellmon/infra/logger"
	"github.com/kilianp07/cellmon/simulator"
)

var (
	simLoadAmps float64
	simSeconds  int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the estimator against a synthetic battery",
	RunE:  simulate,
}

func init() {
	simulateCmd.Flags().Float64Var(&simLoadAmps, "load", 0.5, "constant load current in amps")
	simulateCmd.Flags().IntVar(&simSeconds, "period", 1, "sampling period in seconds")
	rootCmd.AddCommand(simulateCmd)
}

func simulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logg := logger.New("simulate")
	src := simulator.NewSource(simulator.Config{
		BatteryID:      "sim",
		CapacityAh:     cfg.Battery.NominalCapacityAh,
		InitialSoc:     0.9,
		VoltageMin:     cfg.Battery.VoltageMin,
		VoltageMax:     cfg.Battery.VoltageMax,
		LoadAmps:       simLoadAmps,
		NoiseStdDev:    0.005,
		Period:         time.Duration(simSeconds) * time.Second,
		AverageSamples: cfg.Sampling.AverageSamples,
		Seed:           time.Now().UnixNano(),
	})
	src.Run(ctx)
	defer func() {
		if err := src.Close(); err != nil {
			logg.Errorf("source close: %v", err)
		}
	}()

	var eng *estimator.Estimator
	for {
		select {
		case <-ctx.Done():
			return nil
		case smp, ok := <-src.Samples():
			if !ok {
				return nil
			}
			if eng == nil {
				eng, err = estimator.New(cfg.Battery, smp.Reading)
				if err != nil {
					return err
				}
				logg.Infof("seeded at SOC %.3f", eng.SOC())
				continue
			}
			res := eng.Step(smp.Reading)
			logg.Infof("soc=%.3f soh=%.3f capacity=%.3fAh rul=%.1fh",
				res.SOC, res.SOH, res.CapacityAh, res.RULHours)
		}
	}
}
