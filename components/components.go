// Package components defines ECS components for the simulation.
package components

import "gonum.org/v1/gonum/spatial/r2"

// Position represents an entity's world position.
type Position struct {
	X, Y float64
}

// Vec returns the position as a vector.
func (p Position) Vec() r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }

// Set overwrites the position.
func (p *Position) Set(v r2.Vec) { p.X, p.Y = v.X, v.Y }

// Velocity represents an entity's velocity in world units per second.
type Velocity struct {
	X, Y float64
}

// Vec returns the velocity as a vector.
func (v Velocity) Vec() r2.Vec { return r2.Vec{X: v.X, Y: v.Y} }

// Set overwrites the velocity.
func (v *Velocity) Set(u r2.Vec) { v.X, v.Y = u.X, u.Y }

// Identity names an entity. NPCs without a name are never spawned.
type Identity struct {
	Name      string
	Archetype uint8 // index into config.Archetypes
}

// NoiseMode is the player's current way of moving.
type NoiseMode uint8

const (
	NoiseIdle NoiseMode = iota
	NoiseWalk
	NoiseRun
	NoiseCrouch
)

// NoiseEmitter holds the noise a source is currently making.
// Radius is recomputed whenever Mode or Hiding changes.
type NoiseEmitter struct {
	Mode   NoiseMode
	Hiding bool
	Radius float64
}

// PlayerControl holds the player's per-tick input.
type PlayerControl struct {
	Input r2.Vec // desired movement direction, not normalized
	Mode  NoiseMode
	Hide  bool
	Dead  bool
}

// Player tag component for the noise source and vision target.
type Player struct{}

// NPC tag component for perceiving entities.
type NPC struct{}
