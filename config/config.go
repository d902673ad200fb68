// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Movement backend names accepted by ArchetypeConfig.Movement.
const (
	MovementDirect = "direct"
	MovementAgent  = "agent"
)

// Config holds all simulation configuration parameters.
type Config struct {
	Simulation SimulationConfig  `yaml:"simulation"`
	Navigation NavigationConfig  `yaml:"navigation"`
	Player     PlayerConfig      `yaml:"player"`
	Telemetry  TelemetryConfig   `yaml:"telemetry"`
	Logging    LoggingConfig     `yaml:"logging"`
	Archetypes []ArchetypeConfig `yaml:"archetypes"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimulationConfig holds tick loop parameters.
type SimulationConfig struct {
	DT                float64 `yaml:"dt"`                 // Seconds per tick
	ParallelThreshold int     `yaml:"parallel_threshold"` // NPC count at which sensing runs in parallel (0 = never)
	Workers           int     `yaml:"workers"`            // Sensing workers (0 = GOMAXPROCS)
}

// NavigationConfig holds nav grid and path service parameters.
type NavigationConfig struct {
	CellSize          float64 `yaml:"cell_size"`           // Nav grid cell size in world units
	Inflation         float64 `yaml:"inflation"`           // Obstacle inflation (agent radius)
	SampleRadius      float64 `yaml:"sample_radius"`       // Destination snap radius
	SpawnSampleRadius float64 `yaml:"spawn_sample_radius"` // Spawn snap radius
	PlanLatencyTicks  int     `yaml:"plan_latency_ticks"`  // Ticks a path request stays pending
	MaxSolvesPerTick  int     `yaml:"max_solves_per_tick"` // Path requests resolved per tick (0 = unlimited)
	RepathDistance    float64 `yaml:"repath_distance"`     // Goal drift before a moving goal is re-issued
	WaypointTolerance float64 `yaml:"waypoint_tolerance"`  // Distance at which an intermediate waypoint counts as reached
}

// PlayerConfig holds player movement and noise parameters.
type PlayerConfig struct {
	WalkSpeed   float64 `yaml:"walk_speed"`
	RunSpeed    float64 `yaml:"run_speed"`
	CrouchSpeed float64 `yaml:"crouch_speed"`
	IdleNoise   float64 `yaml:"idle_noise"`   // Noise radius when standing still
	WalkNoise   float64 `yaml:"walk_noise"`   // Noise radius when walking
	RunNoise    float64 `yaml:"run_noise"`    // Noise radius when running
	CrouchNoise float64 `yaml:"crouch_noise"` // Noise radius when crouch-walking
	BodyRadius  float64 `yaml:"body_radius"`  // Player collider radius
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         float64 `yaml:"stats_window"`          // Seconds per stats window
	TraceEvery          int     `yaml:"trace_every"`           // Ticks between per-NPC trace rows (0 = off)
	PerfCollectorWindow int     `yaml:"perf_collector_window"` // Ticks averaged by the perf collector
}

// LoggingConfig holds logger parameters.
type LoggingConfig struct {
	Level      string `yaml:"level"`        // debug, info, warn, error
	File       string `yaml:"file"`         // Optional rotating log file
	MaxSizeMB  int    `yaml:"max_size_mb"`  // Rotate after this many megabytes
	MaxBackups int    `yaml:"max_backups"`  // Rotated files kept
	MaxAgeDays int    `yaml:"max_age_days"` // Days a rotated file is kept
	Compress   bool   `yaml:"compress"`
}

// ArchetypeConfig defines the stats record shared by every NPC of one kind.
type ArchetypeConfig struct {
	Name                       string  `yaml:"name"`
	PatrolSpeed                float64 `yaml:"patrol_speed"`
	InvestigateSpeed           float64 `yaml:"investigate_speed"`
	EngageSpeed                float64 `yaml:"engage_speed"`
	InvestigateSpeedMultiplier float64 `yaml:"investigate_speed_multiplier"`
	EngageSpeedMultiplier      float64 `yaml:"engage_speed_multiplier"`
	SoundThreshold             float64 `yaml:"sound_threshold"` // Hearing radius added to the source radius
	VisionRange                float64 `yaml:"vision_range"`
	VisionHalfAngle            float64 `yaml:"vision_half_angle"` // Degrees either side of the facing
	ArriveDistance             float64 `yaml:"arrive_distance"`
	IdleDuration               float64 `yaml:"idle_duration"`           // Seconds in Idle before patrolling
	InvestigatePause           float64 `yaml:"investigate_pause"`       // Seconds before moving to the noise
	InvestigateFinalPause      float64 `yaml:"investigate_final_pause"` // Seconds at the noise before giving up
	Movement                   string  `yaml:"movement"`                // direct or agent
	MinFacingVelocitySqr       float64 `yaml:"min_facing_velocity_sqr"` // Below this |v|^2 facing is kept
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	ArchetypeIndex   map[string]uint8 // name -> index for archetype lookup
	StatsWindowTicks int              // Telemetry.StatsWindow / Simulation.DT
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

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

	cfg.computeDerived()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports configuration values the simulation cannot run with.
func (c *Config) Validate() error {
	if c.Simulation.DT <= 0 {
		return fmt.Errorf("simulation.dt must be positive, got %v", c.Simulation.DT)
	}
	if c.Navigation.CellSize <= 0 {
		return fmt.Errorf("navigation.cell_size must be positive, got %v", c.Navigation.CellSize)
	}
	for _, arch := range c.Archetypes {
		if arch.Name == "" {
			return fmt.Errorf("archetype without a name")
		}
		switch arch.Movement {
		case MovementDirect, MovementAgent:
		default:
			return fmt.Errorf("archetype %q: unknown movement %q", arch.Name, arch.Movement)
		}
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	if len(c.Archetypes) == 0 {
		c.Archetypes = []ArchetypeConfig{{Name: "guard"}}
	}

	for i := range c.Archetypes {
		arch := &c.Archetypes[i]
		if arch.InvestigateSpeedMultiplier == 0 {
			arch.InvestigateSpeedMultiplier = 1.0
		}
		if arch.EngageSpeedMultiplier == 0 {
			arch.EngageSpeedMultiplier = 1.0
		}
		if arch.ArriveDistance == 0 {
			arch.ArriveDistance = 0.1
		}
		if arch.IdleDuration == 0 {
			arch.IdleDuration = 1.5
		}
		if arch.InvestigatePause == 0 {
			arch.InvestigatePause = 1.0
		}
		if arch.InvestigateFinalPause == 0 {
			arch.InvestigateFinalPause = 2.0
		}
		if arch.Movement == "" {
			arch.Movement = MovementAgent
		}
		if arch.MinFacingVelocitySqr == 0 {
			arch.MinFacingVelocitySqr = 0.0001
		}
	}

	c.Derived.ArchetypeIndex = make(map[string]uint8, len(c.Archetypes))
	for i, arch := range c.Archetypes {
		c.Derived.ArchetypeIndex[arch.Name] = uint8(i)
	}

	c.Derived.StatsWindowTicks = 0
	if c.Simulation.DT > 0 && c.Telemetry.StatsWindow > 0 {
		c.Derived.StatsWindowTicks = int(c.Telemetry.StatsWindow/c.Simulation.DT + 0.5)
	}
}

// Archetype returns the archetype with the given name.
func (c *Config) Archetype(name string) (*ArchetypeConfig, bool) {
	idx, ok := c.Derived.ArchetypeIndex[name]
	if !ok {
		return nil, false
	}
	return &c.Archetypes[idx], true
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
