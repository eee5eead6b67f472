package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `battery:
  nominal_capacity_ah: 4.1
  process_noise: 0.0001
  measurement_noise: 0.1
  coulombic_efficiency: 0.98
  voltage_min: 2.5
  voltage_max: 4.0
  end_of_life_fraction: 0.8
  life_horizon_years: 5
sampling:
  period_seconds: 20
  average_samples: 20
  smoothing_window: 8
mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
  client_id: "cellmon"
uplink:
  enabled: true
  url: "http://localhost:8266"
  api_key: "secret"
metrics:
  prometheus_enabled: true
  prometheus_port: ":2112"
`

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"nominal_capacity_ah", cfg.Battery.NominalCapacityAh, 4.1},
		{"process_noise", cfg.Battery.ProcessNoise, 0.0001},
		{"voltage_min", cfg.Battery.VoltageMin, 2.5},
		{"period_seconds", cfg.Sampling.PeriodSeconds, 20},
		{"smoothing_window", cfg.Sampling.SmoothingWindow, 8},
		{"mqtt.broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"mqtt.reading_topic", cfg.MQTT.ReadingTopic, "battery/+/reading"},
		{"uplink.url", cfg.Uplink.URL, "http://localhost:8266"},
		{"uplink.timeout_default", cfg.Uplink.TimeoutSeconds, 5},
		{"metrics.prometheus_port", cfg.Metrics.PrometheusPort, ":2112"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadRejectsBadBattery(t *testing.T) {
	bad := `battery:
  nominal_capacity_ah: 4.1
  process_noise: 0
  measurement_noise: 0.1
  coulombic_efficiency: 0.98
  voltage_min: 2.5
  voltage_max: 4.0
  end_of_life_fraction: 0.8
  life_horizon_years: 5
`
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Fatal("expected validation error for zero process noise")
	}
}

func TestLoadRejectsEnabledMQTTWithoutBroker(t *testing.T) {
	bad := `battery:
  nominal_capacity_ah: 4.1
  process_noise: 0.0001
  measurement_noise: 0.1
  coulombic_efficiency: 0.98
  voltage_min: 2.5
  voltage_max: 4.0
  end_of_life_fraction: 0.8
  life_horizon_years: 5
mqtt:
  enabled: true
`
	if _, err := Load(writeConfig(t, bad)); err == nil {
		t.Fatal("expected validation error for enabled mqtt without broker")
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("CM_BATTERY__NOMINAL_CAPACITY_AH", "5.0")
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Battery.NominalCapacityAh != 5.0 {
		t.Errorf("env override ignored, got %v", cfg.Battery.NominalCapacityAh)
	}
}
