// Package config provides configuration loading for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ErrInvalid is wrapped by every validation failure returned from Load.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all simulation configuration parameters.
type Config struct {
	Screen    ScreenConfig    `yaml:"screen"`
	Sim       SimConfig       `yaml:"sim"`
	Boids     BoidSettings    `yaml:"boids"`
	Grid      GridConfig      `yaml:"grid"`
	Obstacles ObstacleConfig  `yaml:"obstacles"`
	Compute   ComputeConfig   `yaml:"compute"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Observer  ObserverConfig  `yaml:"observer"`
	Metrics   MetricsConfig   `yaml:"metrics"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// Vec3 is a YAML-friendly 3-vector written as a flow sequence.
type Vec3 [3]float64

// R3 converts to a gonum vector.
func (v Vec3) R3() r3.Vec { return r3.Vec{X: v[0], Y: v[1], Z: v[2]} }

// ScreenConfig holds display settings.
type ScreenConfig struct {
	Width     int `yaml:"width" validate:"gt=0"`
	Height    int `yaml:"height" validate:"gt=0"`
	TargetFPS int `yaml:"target_fps" validate:"gte=0"`
}

// SimConfig holds population and stepping parameters.
type SimConfig struct {
	DT          float64 `yaml:"dt" validate:"gt=0"`
	Agents      int     `yaml:"agents" validate:"gte=0"`
	SpawnCenter Vec3    `yaml:"spawn_center"`
	SpawnRadius float64 `yaml:"spawn_radius" validate:"gte=0"`
	Seed        int64   `yaml:"seed"`
}

// BoidSettings is the steering configuration shared by every agent.
// It is passed by value; components keep their own copy.
type BoidSettings struct {
	MinSpeed      float64 `yaml:"min_speed" validate:"gte=0"`
	MaxSpeed      float64 `yaml:"max_speed" validate:"gt=0,gtefield=MinSpeed"`
	MaxSteerForce float64 `yaml:"max_steer_force" validate:"gte=0"`

	PerceptionRadius float64 `yaml:"perception_radius" validate:"gte=0"`
	AvoidanceRadius  float64 `yaml:"avoidance_radius" validate:"gte=0"`
	ObstacleRadius   float64 `yaml:"obstacle_radius" validate:"gte=0"`

	AlignWeight             float64 `yaml:"align_weight"`
	CohesionWeight          float64 `yaml:"cohesion_weight"`
	SeperateWeight          float64 `yaml:"seperate_weight"`
	TargetWeight            float64 `yaml:"target_weight"`
	ObstacleAvoidanceWeight float64 `yaml:"obstacle_avoidance_weight"`

	// Reactive sphere-cast avoidance.
	RaycastAvoidance  bool    `yaml:"raycast_avoidance"`
	BoundsRadius      float64 `yaml:"bounds_radius" validate:"gte=0"`
	CollisionAvoidDst float64 `yaml:"collision_avoid_dst" validate:"gte=0"`
	ObstacleMask      uint32  `yaml:"obstacle_mask"`
}

// GridConfig describes the voxel volume used to hash obstacle probes.
type GridConfig struct {
	VoxelSize    float64 `yaml:"voxel_size" validate:"gt=0"`
	BoundsExtent Vec3    `yaml:"bounds_extent"`
	// Center defaults to (0, extent.y, 0) so the volume sits on the floor.
	Center *Vec3 `yaml:"center,omitempty"`
}

// ObstacleConfig selects the probe source.
type ObstacleConfig struct {
	// TotalObstacleCount is the declared probe count; -1 accepts whatever the source yields.
	TotalObstacleCount int           `yaml:"total_obstacle_count" validate:"gte=-1"`
	File               string        `yaml:"file"`
	Watch              bool          `yaml:"watch"`
	Spacing            float64       `yaml:"spacing" validate:"gt=0"`
	Shapes             []ShapeConfig `yaml:"shapes" validate:"dive"`
}

// ShapeConfig is one procedural probe volume.
type ShapeConfig struct {
	Kind      string  `yaml:"kind" validate:"oneof=sphere shell box noise"`
	Center    Vec3    `yaml:"center"`
	Radius    float64 `yaml:"radius" validate:"gte=0"`
	Size      Vec3    `yaml:"size"`
	Threshold float64 `yaml:"threshold"`
	Scale     float64 `yaml:"scale" validate:"gte=0"`
	Seed      int64   `yaml:"seed"`
	Layer     uint32  `yaml:"layer"`
}

// ComputeConfig selects the perception backend and parallelism.
type ComputeConfig struct {
	Backend           string `yaml:"backend" validate:"oneof=cpu opencl"`
	Workers           int    `yaml:"workers" validate:"gte=0"`
	ParallelThreshold int    `yaml:"parallel_threshold" validate:"gte=0"`
	BuildWorkers      int    `yaml:"build_workers" validate:"gte=0"`
}

// TelemetryConfig holds telemetry and logging parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window" validate:"gt=0"`
	PerfCollectorWindow int     `yaml:"perf_collector_window" validate:"gt=0"`
	Trajectory          string  `yaml:"trajectory"`
	TrajectoryEvery     int     `yaml:"trajectory_every" validate:"gte=1"`
}

// ObserverConfig holds websocket stream parameters.
type ObserverConfig struct {
	Addr  string  `yaml:"addr"`
	MaxHz float64 `yaml:"max_hz" validate:"gt=0"`
}

// MetricsConfig holds the Prometheus endpoint address.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// DerivedConfig holds values computed from other config values.
type DerivedConfig struct {
	DT32       float32
	GridCenter r3.Vec
	GridExtent r3.Vec
}

// Load reads configuration from a YAML file, using embedded defaults for missing values.
// If path is empty, only defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// MustLoad is like Load but panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for i, e := range c.Grid.BoundsExtent {
		if e <= 0 {
			return fmt.Errorf("%w: grid.bounds_extent[%d] must be positive, got %v", ErrInvalid, i, e)
		}
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.DT32 = float32(c.Sim.DT)
	c.Derived.GridExtent = c.Grid.BoundsExtent.R3()
	if c.Grid.Center != nil {
		c.Derived.GridCenter = c.Grid.Center.R3()
	} else {
		c.Derived.GridCenter = r3.Vec{Y: c.Grid.BoundsExtent[1]}
	}
}

// Recompute refreshes derived values after fields were modified in code.
func (c *Config) Recompute() {
	c.computeDerived()
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
