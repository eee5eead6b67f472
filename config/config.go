package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/cellmon/core/metrics"
	"github.com/kilianp07/cellmon/core/model"
	"github.com/kilianp07/cellmon/infra/mqtt"
	"github.com/kilianp07/cellmon/infra/uplink"
)

type Config struct {
	Battery  model.BatteryConfig `json:"battery"`
	Sampling SamplingConfig      `json:"sampling"`
	MQTT     mqtt.Config         `json:"mqtt"`
	Uplink   uplink.Config       `json:"uplink"`
	Metrics  metrics.Config      `json:"metrics"`
}

// Load reads the configuration file, applies CM_* environment overrides and
// validates every section. A malformed configuration is a fatal error; no
// estimation cycle may run before Load succeeds.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("CM_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "cm_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Sampling.SetDefaults()
	cfg.MQTT.SetDefaults()
	cfg.Uplink.SetDefaults()
	cfg.Metrics.SetDefaults()
	if err := cfg.Battery.Validate(); err != nil {
		return nil, fmt.Errorf("battery: %w", err)
	}
	if err := cfg.Sampling.Validate(); err != nil {
		return nil, fmt.Errorf("sampling: %w", err)
	}
	if err := cfg.MQTT.Validate(); err != nil {
		return nil, fmt.Errorf("mqtt: %w", err)
	}
	if err := cfg.Uplink.Validate(); err != nil {
		return nil, fmt.Errorf("uplink: %w", err)
	}
	return &cfg, nil
}
