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
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestLoadOverlaysFileOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "platoonctl.yaml")
	doc := `
vehicle:
  speed: 12
  count: 5
platoon:
  radius: 30
engine:
  step_interval: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg := Default()
	require.NoError(t, Load(path, &cfg, false))

	assert.Equal(t, 12.0, cfg.Vehicle.Speed)
	assert.Equal(t, 5, cfg.Vehicle.Count)
	assert.Equal(t, 30.0, cfg.Platoon.Radius)
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.StepInterval)
	// Untouched keys keep their defaults.
	assert.Equal(t, 30.0, cfg.Vehicle.MaxSpeed)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{"misspelt section", "vehickle:\n  speed: 12\n"},
		{"unknown vehicle key", "vehicle:\n  type: passenger\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "platoonctl.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.doc), 0o600))

			cfg := Default()
			require.Error(t, Load(path, &cfg, false))
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg := Default()
	assert.NoError(t, Load("/does/not/exist.yaml", &cfg, true))
	assert.Error(t, Load("/does/not/exist.yaml", &cfg, false))
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero speed", func(c *Config) { c.Vehicle.Speed = 0 }},
		{"max below speed", func(c *Config) { c.Vehicle.MaxSpeed = 5 }},
		{"negative count", func(c *Config) { c.Vehicle.Count = -1 }},
		{"zero radius", func(c *Config) { c.Platoon.Radius = 0 }},
		{"negative interval", func(c *Config) { c.Engine.StepInterval = -time.Second }},
		{"tiny grid", func(c *Config) { c.Engine.GridSize = 1 }},
		{"zero edge length", func(c *Config) { c.Engine.EdgeLength = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}
