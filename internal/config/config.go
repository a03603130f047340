// Package config loads ring-road scenarios from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/cxd309/ringwave/internal/vehicle"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Environment variables consulted by Load when the file leaves a value empty.
const (
	EnvConfigPath = "RINGWAVE_CONFIG"
	EnvLogLevel   = "RINGWAVE_LOG_LEVEL"
)

// Config holds the application configuration.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Log        LogConfig        `yaml:"log"`
}

// SimulationConfig describes the population, the road and the car-following rule.
type SimulationConfig struct {
	ID         string  `yaml:"simulation_id"`
	Vehicles   int     `yaml:"vehicles"`    // N
	RoadLength float64 `yaml:"road_length"` // D, metres
	TimeStep   float64 `yaml:"time_step"`   // dt, seconds

	// Default parameters for every vehicle.
	Vehicle vehicle.Params `yaml:"vehicle"`

	InitialVelocityFraction float64 `yaml:"initial_velocity_fraction"` // of v_max
	Policy                  string  `yaml:"policy"`
	// CollisionBand is the width of the near-collision reporting band in
	// metres. Nil means the mean vehicle spacing D/N; 0 disables reporting.
	CollisionBand *float64 `yaml:"collision_band,omitempty"`
	BrakeScale    float64  `yaml:"brake_scale"`
	Parallel      int      `yaml:"parallel"` // Phase A workers; 0 or 1 runs sequentially
	Record        bool     `yaml:"record"`   // keep a per-tick log of every vehicle

	Overrides     []Override     `yaml:"overrides,omitempty"`
	Perturbations []Perturbation `yaml:"perturbations,omitempty"`
}

// Override replaces some of the default parameters of a single vehicle. It is
// how an external parameter generator feeds heterogeneous cars in.
type Override struct {
	VehicleID     int      `yaml:"vehicle_id"`
	VMax          *float64 `yaml:"v_max,omitempty"`
	ReactionTicks *int     `yaml:"reaction_ticks,omitempty"`
	Acceleration  *float64 `yaml:"acceleration,omitempty"`
	Deceleration  *float64 `yaml:"deceleration,omitempty"`
}

// Apply returns p with the override's set fields replaced.
func (o Override) Apply(p vehicle.Params) vehicle.Params {
	if o.VMax != nil {
		p.VMax = *o.VMax
	}
	if o.ReactionTicks != nil {
		p.ReactionTicks = *o.ReactionTicks
	}
	if o.Acceleration != nil {
		p.Acceleration = *o.Acceleration
	}
	if o.Deceleration != nil {
		p.Deceleration = *o.Deceleration
	}
	return p
}

// Perturbation forces one vehicle's velocity once, after setup, to seed a wave.
type Perturbation struct {
	VehicleID int     `yaml:"vehicle_id"`
	Velocity  float64 `yaml:"velocity"`
}

// AnalysisConfig configures the wave measurement run.
type AnalysisConfig struct {
	Ticks        int     `yaml:"ticks"`
	StartTick    int     `yaml:"start_tick"`
	StopTick     int     `yaml:"stop_tick"`
	SlowFraction float64 `yaml:"slow_fraction"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"` // optional file sink
}

// DefaultConfig returns the default configuration: fifty identical cars on a
// 30 km ring in steady state. Scenarios decoded over it keep an empty
// perturbation list unless they name one, whatever their vehicle count.
func DefaultConfig() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Vehicles:   50,
			RoadLength: 30000,
			TimeStep:   0.1,
			Vehicle: vehicle.Params{
				VMax:          400,
				ReactionTicks: 4,
				Acceleration:  50,
				Deceleration:  50,
			},
			InitialVelocityFraction: 1.0,
			Policy:                  "basic",
			BrakeScale:              1.1,
		},
		Analysis: AnalysisConfig{
			Ticks:        100,
			StartTick:    30,
			StopTick:     100,
			SlowFraction: 0.95,
		},
		Log: LogConfig{
			Level: "INFO",
		},
	}
}

// Parse decodes YAML (or JSON) over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads the config at path. A missing file is created with the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		cfg, err = Parse(data)
		if err != nil {
			return nil, err
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		cfg = seededConfig()
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to save config file: %w", err)
		}
	}

	// Env only fills in, it is never written back to disk.
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		cfg.Log.Level = lvl
	}
	return cfg, nil
}

// Validate checks the cross-field constraints that the vehicle and engine
// constructors cannot see on their own.
func (c *Config) Validate() error {
	s := c.Simulation
	a := c.Analysis
	switch {
	case s.Vehicles < 1:
		return fmt.Errorf("%w: vehicles must be positive, got %d", ErrInvalidConfig, s.Vehicles)
	case !(s.RoadLength > 0):
		return fmt.Errorf("%w: road_length must be positive, got %v", ErrInvalidConfig, s.RoadLength)
	case !(s.TimeStep > 0):
		return fmt.Errorf("%w: time_step must be positive, got %v", ErrInvalidConfig, s.TimeStep)
	case s.InitialVelocityFraction < 0 || s.InitialVelocityFraction > 1:
		return fmt.Errorf("%w: initial_velocity_fraction must be in [0, 1], got %v", ErrInvalidConfig, s.InitialVelocityFraction)
	case s.CollisionBand != nil && *s.CollisionBand < 0:
		return fmt.Errorf("%w: collision_band must be non-negative, got %v", ErrInvalidConfig, *s.CollisionBand)
	case s.Parallel < 0:
		return fmt.Errorf("%w: parallel must be non-negative, got %d", ErrInvalidConfig, s.Parallel)
	case a.Ticks < 1:
		return fmt.Errorf("%w: analysis ticks must be positive, got %d", ErrInvalidConfig, a.Ticks)
	case a.StartTick < 0 || a.StartTick >= a.StopTick || a.StopTick > a.Ticks:
		return fmt.Errorf("%w: analysis window [%d, %d] must satisfy 0 <= start < stop <= ticks (%d)", ErrInvalidConfig, a.StartTick, a.StopTick, a.Ticks)
	case !(a.SlowFraction > 0) || a.SlowFraction > 1:
		return fmt.Errorf("%w: slow_fraction must be in (0, 1], got %v", ErrInvalidConfig, a.SlowFraction)
	}
	for _, o := range s.Overrides {
		if o.VehicleID < 0 || o.VehicleID >= s.Vehicles {
			return fmt.Errorf("%w: override for unknown vehicle %d", ErrInvalidConfig, o.VehicleID)
		}
	}
	for _, p := range s.Perturbations {
		if p.VehicleID < 0 || p.VehicleID >= s.Vehicles {
			return fmt.Errorf("%w: perturbation for unknown vehicle %d", ErrInvalidConfig, p.VehicleID)
		}
	}
	return nil
}

// EffectiveCollisionBand resolves the nil default to the mean vehicle spacing.
func (s SimulationConfig) EffectiveCollisionBand() float64 {
	if s.CollisionBand != nil {
		return *s.CollisionBand
	}
	return s.RoadLength / float64(s.Vehicles)
}

// Save writes cfg to path as YAML with a short header.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# ringwave scenario
# ------------------
# Units: metres, seconds, m/s, m/s². Deceleration may be given with either sign.

`)
	data = append(header, data...)

	rePolicy := regexp.MustCompile(`(?m)^(\s+)policy:`)
	data = rePolicy.ReplaceAll(data, []byte("${1}# Options: basic, distance-scaled, live-leader\n${1}policy:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return Save(path, seededConfig())
}

// seededConfig is the defaults with car 17 slowed to half speed, the scenario
// written out for new config files.
func seededConfig() *Config {
	cfg := DefaultConfig()
	cfg.Simulation.Perturbations = []Perturbation{
		{VehicleID: 17, Velocity: cfg.Simulation.Vehicle.VMax / 2},
	}
	return cfg
}
