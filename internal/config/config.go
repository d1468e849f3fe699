// Package config loads daemon configuration from an optional YAML file
// layered over defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/aquarium-ml/internal/record"
)

// Duration wraps time.Duration so YAML values like "6h" decode directly.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the full daemon configuration.
type Config struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`

	DatabasePath string `yaml:"database_path"`
	HTTPAddr     string `yaml:"http_addr"`

	Hemisphere string  `yaml:"hemisphere"`
	TankVolume float64 `yaml:"tank_volume_litres"`

	GainInterval  Duration `yaml:"gain_interval"`
	CycleInterval Duration `yaml:"cycle_interval"`
	SchedulerTick Duration `yaml:"scheduler_tick"`

	MinGainSamples   int     `yaml:"min_gain_samples"`
	MinWaterChanges  int     `yaml:"min_water_changes"`
	PublishThreshold float64 `yaml:"publish_threshold"`

	SensorRetentionDays int `yaml:"sensor_retention_days"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		Broker:              "tcp://localhost:1883",
		ClientID:            "aquarium-ml",
		TopicPrefix:         "aquarium",
		DatabasePath:        "aquarium-ml.db",
		HTTPAddr:            ":8080",
		Hemisphere:          string(record.Northern),
		TankVolume:          record.DefaultTankVolume,
		GainInterval:        Duration(6 * time.Hour),
		CycleInterval:       Duration(24 * time.Hour),
		SchedulerTick:       Duration(time.Minute),
		MinGainSamples:      50,
		MinWaterChanges:     5,
		PublishThreshold:    0.6,
		SensorRetentionDays: 90,
		LogLevel:            "info",
	}
}

// Load reads the YAML file at path over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot run with.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker must not be empty")
	}
	if c.TopicPrefix == "" {
		return fmt.Errorf("topic_prefix must not be empty")
	}
	if c.Hemisphere != string(record.Northern) && c.Hemisphere != string(record.Southern) {
		return fmt.Errorf("hemisphere must be %q or %q, got %q", record.Northern, record.Southern, c.Hemisphere)
	}
	if c.TankVolume <= 0 {
		return fmt.Errorf("tank_volume_litres must be positive")
	}
	if c.GainInterval <= 0 || c.CycleInterval <= 0 || c.SchedulerTick <= 0 {
		return fmt.Errorf("intervals must be positive")
	}
	if c.PublishThreshold < 0 || c.PublishThreshold > 1 {
		return fmt.Errorf("publish_threshold must be in [0,1], got %v", c.PublishThreshold)
	}
	if c.MinGainSamples < 1 || c.MinWaterChanges < 2 {
		return fmt.Errorf("sample minimums too low")
	}
	return nil
}

// HemisphereValue converts the configured string to the record type.
func (c Config) HemisphereValue() record.Hemisphere {
	return record.Hemisphere(c.Hemisphere)
}
