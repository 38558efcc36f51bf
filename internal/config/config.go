// Package config holds the startup configuration for platoonctl.
// Values come from built-in defaults, then an optional YAML file, then
// command-line flags; the file wins over flags for keys it sets, which
// keeps a project config authoritative over ad-hoc invocations.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid configuration")

// Vehicle holds the defaults applied to newly injected vehicles.
type Vehicle struct {
	// Speed is the target speed applied after injection.
	Speed float64 `yaml:"speed"`
	// MaxSpeed is the ceiling applied after injection.
	MaxSpeed float64 `yaml:"max_speed"`
	// Count is the number of vehicles injected at startup.
	Count int `yaml:"count"`
}

// Platoon holds platoon formation defaults.
type Platoon struct {
	// Radius is the claim distance threshold new platoons start with.
	Radius float64 `yaml:"radius"`
	// FocalDirection selects whether corridor eligibility follows the
	// focal vehicle's remaining route.
	FocalDirection bool `yaml:"focal_direction"`
}

// Engine holds settings for the in-process engine.
type Engine struct {
	// StepInterval paces background steps.
	StepInterval time.Duration `yaml:"step_interval"`
	// Seed drives the engine's and the reroute chooser's randomness.
	Seed int64 `yaml:"seed"`
	// GridSize is the side length of the generated road grid.
	GridSize int `yaml:"grid_size"`
	// EdgeLength is the length of each grid edge, in metres.
	EdgeLength float64 `yaml:"edge_length"`
}

// Logging mirrors the logging package's config.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the root configuration document.
type Config struct {
	Vehicle     Vehicle `yaml:"vehicle"`
	Platoon     Platoon `yaml:"platoon"`
	Engine      Engine  `yaml:"engine"`
	Logging     Logging `yaml:"logging"`
	MetricsAddr string  `yaml:"metrics_addr"`
}

// Default returns the configuration used when no file and no flags are
// given.
func Default() Config {
	return Config{
		Vehicle: Vehicle{
			Speed:    10,
			MaxSpeed: 30,
			Count:    0,
		},
		Platoon: Platoon{
			Radius:         15,
			FocalDirection: true,
		},
		Engine: Engine{
			StepInterval: 500 * time.Millisecond,
			Seed:         1,
			GridSize:     4,
			EdgeLength:   100,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		MetricsAddr: ":9090",
	}
}

// Load overlays the YAML file at path onto cfg. A missing path is not
// an error when optional is true.
func Load(path string, cfg *Config, optional bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return cfg.Validate()
}

// Validate rejects values the control layer cannot operate with.
func (c *Config) Validate() error {
	if c.Vehicle.Speed <= 0 {
		return fmt.Errorf("%w: vehicle.speed must be positive, got %v", ErrInvalid, c.Vehicle.Speed)
	}
	if c.Vehicle.MaxSpeed < c.Vehicle.Speed {
		return fmt.Errorf("%w: vehicle.max_speed %v below vehicle.speed %v", ErrInvalid, c.Vehicle.MaxSpeed, c.Vehicle.Speed)
	}
	if c.Vehicle.Count < 0 {
		return fmt.Errorf("%w: vehicle.count must not be negative", ErrInvalid)
	}
	if c.Platoon.Radius <= 0 {
		return fmt.Errorf("%w: platoon.radius must be positive, got %v", ErrInvalid, c.Platoon.Radius)
	}
	if c.Engine.StepInterval < 0 {
		return fmt.Errorf("%w: engine.step_interval must not be negative", ErrInvalid)
	}
	if c.Engine.GridSize < 2 {
		return fmt.Errorf("%w: engine.grid_size must be at least 2", ErrInvalid)
	}
	if c.Engine.EdgeLength <= 0 {
		return fmt.Errorf("%w: engine.edge_length must be positive", ErrInvalid)
	}
	return nil
}
