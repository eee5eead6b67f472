package test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/cellmon/app"
	"github.com/kilianp07/cellmon/config"
	"github.com/kilianp07/cellmon/core/model"
	infmqtt "github.com/kilianp07/cellmon/infra/mqtt"
	"github.com/kilianp07/cellmon/test/util"
)

// TestEndToEndReadingToState publishes sensor readings to a real broker and
// expects the monitor service to publish estimation state for the battery.
func TestEndToEndReadingToState(t *testing.T) {
	if os.Getenv("CI_SKIP_DOCKER") != "" {
		t.Skip("docker not available")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	broker, cleanup, err := util.StartMosquitto(ctx)
	require.NoError(t, err)
	defer cleanup()

	cfg := &config.Config{
		Battery: model.BatteryConfig{
			NominalCapacityAh:   4.1,
			ProcessNoise:        0.0001,
			MeasurementNoise:    0.1,
			CoulombicEfficiency: 0.98,
			VoltageMin:          2.5,
			VoltageMax:          4.0,
			EndOfLifeFraction:   0.8,
			LifeHorizonYears:    5,
		},
		Sampling: config.SamplingConfig{PeriodSeconds: 1, AverageSamples: 1},
		MQTT:     infmqtt.Config{Enabled: true, Broker: broker, ClientID: "cellmon-e2e"},
	}

	svc, err := app.New(cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, svc.Close()) }()

	svcCtx, svcCancel := context.WithCancel(ctx)
	defer svcCancel()
	go func() {
		if err := svc.Run(svcCtx); err != nil {
			t.Errorf("service run: %v", err)
		}
	}()

	// Observer client records every published state.
	obs := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("observer"))
	tok := obs.Connect()
	tok.Wait()
	require.NoError(t, tok.Error())
	defer obs.Disconnect(250)

	states := make(chan map[string]any, 10)
	tok = obs.Subscribe("battery/cell1/state", 0, func(_ paho.Client, msg paho.Message) {
		var m map[string]any
		if err := json.Unmarshal(msg.Payload(), &m); err == nil {
			states <- m
		}
	})
	tok.Wait()
	require.NoError(t, tok.Error())

	// Sensor client pushes readings.
	sensor := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("sensor"))
	tok = sensor.Connect()
	tok.Wait()
	require.NoError(t, tok.Error())
	defer sensor.Disconnect(250)

	base := time.Now().Unix()
	for i := 0; i < 3; i++ {
		payload := fmt.Sprintf(`{"voltage":3.25,"current":0.5,"temperature":24.0,"ts":%d}`, base+int64(i*20))
		tok := sensor.Publish("battery/cell1/reading", 0, false, []byte(payload))
		tok.Wait()
		require.NoError(t, tok.Error())
		time.Sleep(200 * time.Millisecond)
	}

	select {
	case st := <-states:
		assert.Equal(t, "cell1", st["battery_id"])
		soc, ok := st["soc"].(float64)
		require.True(t, ok, "soc missing in state payload")
		assert.GreaterOrEqual(t, soc, 0.0)
		assert.LessOrEqual(t, soc, 1.0)
	case <-time.After(15 * time.Second):
		t.Fatal("no state published for cell1")
	}
}
