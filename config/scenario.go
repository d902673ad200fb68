package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed scenario.yaml
var scenarioYAML []byte

// Obstacle kinds accepted by ObstacleSpec.Kind.
const (
	ObstacleBox     = "box"
	ObstacleSegment = "segment"
)

// Scenario describes a scene: static geometry, patrol routes, NPC spawns and
// the scripted player used for headless runs.
type Scenario struct {
	Name      string             `yaml:"name"`
	World     WorldBounds        `yaml:"world"`
	Obstacles []ObstacleSpec     `yaml:"obstacles"`
	Routes    map[string][]Point `yaml:"routes"`
	NPCs      []NPCSpec          `yaml:"npcs"`
	Player    PlayerSpec         `yaml:"player"`
}

// Point is a 2D world position.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// WorldBounds is the walkable extent of the scene, anchored at the origin.
type WorldBounds struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// ObstacleSpec is a static collider. Boxes use Min/Max, segments use From/To.
type ObstacleSpec struct {
	Name          string `yaml:"name"`
	Kind          string `yaml:"kind"`
	Min           Point  `yaml:"min"`
	Max           Point  `yaml:"max"`
	From          Point  `yaml:"from"`
	To            Point  `yaml:"to"`
	CanHideBehind bool   `yaml:"can_hide_behind"` // Blocks line of sight
	Trigger       bool   `yaml:"trigger"`         // Never blocks sight or movement
}

// NPCSpec places one NPC.
type NPCSpec struct {
	Name      string `yaml:"name"`
	Archetype string `yaml:"archetype"`
	Position  Point  `yaml:"position"`
	Route     string `yaml:"route"`  // Key into Scenario.Routes, empty = no patrol
	Facing    string `yaml:"facing"` // up, down, left, right (default down)
}

// PlayerSpec is the scripted player.
type PlayerSpec struct {
	Position   Point        `yaml:"position"`
	Script     []ScriptStep `yaml:"script"`
	DiesAtTick int          `yaml:"dies_at_tick"` // 0 = never
}

// ScriptStep holds one input for a number of ticks.
type ScriptStep struct {
	Ticks int    `yaml:"ticks"`
	Input Point  `yaml:"input"` // Movement direction, normalized by the player system
	Mode  string `yaml:"mode"`  // idle, walk, run, crouch
	Hide  bool   `yaml:"hide"`
}

// LoadScenario loads a scenario from a YAML file.
// If path is empty, the embedded scenario is used.
func LoadScenario(path string) (*Scenario, error) {
	data := scenarioYAML
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading scenario file: %w", err)
		}
	}

	sc := &Scenario{}
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("parsing scenario: %w", err)
	}
	return sc, nil
}

// Validate reports structural problems with the scenario. NPC identity is
// checked at spawn time, not here.
func (s *Scenario) Validate() error {
	var errs []error
	if s.World.Width <= 0 || s.World.Height <= 0 {
		errs = append(errs, fmt.Errorf("world bounds must be positive, got %vx%v", s.World.Width, s.World.Height))
	}
	for i, ob := range s.Obstacles {
		switch ob.Kind {
		case ObstacleBox:
			if ob.Max.X < ob.Min.X || ob.Max.Y < ob.Min.Y {
				errs = append(errs, fmt.Errorf("obstacle %d (%s): max below min", i, ob.Name))
			}
		case ObstacleSegment:
		default:
			errs = append(errs, fmt.Errorf("obstacle %d (%s): unknown kind %q", i, ob.Name, ob.Kind))
		}
	}
	for _, npc := range s.NPCs {
		if npc.Route == "" {
			continue
		}
		if _, ok := s.Routes[npc.Route]; !ok {
			errs = append(errs, fmt.Errorf("npc %q: unknown route %q", npc.Name, npc.Route))
		}
	}
	for i, step := range s.Player.Script {
		if step.Ticks < 0 {
			errs = append(errs, fmt.Errorf("player script step %d: negative ticks", i))
		}
	}
	return errors.Join(errs...)
}

// ScriptLength returns the number of ticks covered by the player script.
func (s *Scenario) ScriptLength() int {
	n := 0
	for _, step := range s.Player.Script {
		n += step.Ticks
	}
	return n
}
