package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
broker: tcp://broker.local:1883
hemisphere: southern
tank_volume_litres: 350
gain_interval: 2h
publish_threshold: 0.7
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "tcp://broker.local:1883", cfg.Broker)
	assert.Equal(t, "southern", cfg.Hemisphere)
	assert.Equal(t, 350.0, cfg.TankVolume)
	assert.Equal(t, 2*time.Hour, cfg.GainInterval.Std())
	assert.Equal(t, 0.7, cfg.PublishThreshold)
	// Untouched fields keep their defaults.
	assert.Equal(t, Default().TopicPrefix, cfg.TopicPrefix)
	assert.Equal(t, Default().CycleInterval, cfg.CycleInterval)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad hemisphere", "hemisphere: equatorial"},
		{"zero tank", "tank_volume_litres: 0"},
		{"threshold out of range", "publish_threshold: 1.5"},
		{"empty broker", `broker: ""`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
