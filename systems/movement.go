package systems

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/prowl/components"
)

// Body is the per-tick view of an entity's kinematic components.
// The pointers come from an ECS query and must not be kept across ticks.
type Body struct {
	ID     uint32
	Pos    *components.Position
	Vel    *components.Velocity
	Facing *components.Facing
}

// Mover drives an entity's position. A state binds one mover at a time.
type Mover interface {
	SetVelocity(b *Body, v r2.Vec)
	SetVelocityZero(b *Body)
	// SetDestination starts moving toward dst. Returns ErrNavigationUnavailable
	// when the backend cannot reach any point near dst.
	SetDestination(b *Body, dst r2.Vec) error
	// Stop halts movement and forgets the destination. Idempotent.
	Stop(b *Body)
	HasArrived(b *Body) bool
	Speed() float64
	SetSpeed(speed float64)
	// Integrate advances the body by dt seconds and updates its facing.
	Integrate(b *Body, dt float64)
	CurrentFacing(b *Body) components.Facing
}

// NavMover is a Mover backed by asynchronous path planning.
type NavMover interface {
	Mover
	// Pending reports whether a path request is still being computed.
	Pending() bool
	// Failed reports whether the last path request could not be satisfied.
	Failed() bool
	RemainingDistance(b *Body) float64
}

// MoverParams holds the tuning shared by both movement backends.
type MoverParams struct {
	Speed                float64
	ArriveDistance       float64
	MinFacingVelocitySqr float64
}

// updateFacing turns the body toward its velocity, ignoring tiny velocities.
func updateFacing(b *Body, vel r2.Vec, minSqr float64) {
	if b.Facing == nil {
		return
	}
	if r2.Norm2(vel) < minSqr || r2.Norm2(vel) == 0 {
		return
	}
	b.Facing.SetAngle(headingDegrees(vel))
}

// DirectMover moves an entity in a straight line, with no path planning.
type DirectMover struct {
	params  MoverParams
	dest    r2.Vec
	hasDest bool
}

// NewDirectMover creates a direct movement backend.
func NewDirectMover(params MoverParams) *DirectMover {
	return &DirectMover{params: params}
}

// SetVelocity drives the body at v and drops any destination.
func (m *DirectMover) SetVelocity(b *Body, v r2.Vec) {
	m.hasDest = false
	b.Vel.Set(v)
}

// SetVelocityZero stops the body without touching the destination.
func (m *DirectMover) SetVelocityZero(b *Body) {
	b.Vel.Set(r2.Vec{})
}

// SetDestination steers straight toward dst. It never fails.
func (m *DirectMover) SetDestination(b *Body, dst r2.Vec) error {
	m.dest = dst
	m.hasDest = true
	b.Vel.Set(stepToward(b.Pos.Vec(), dst, m.params.Speed, 1))
	return nil
}

// Destination returns the current destination, if any.
func (m *DirectMover) Destination() (r2.Vec, bool) {
	return m.dest, m.hasDest
}

func (m *DirectMover) Stop(b *Body) {
	m.hasDest = false
	b.Vel.Set(r2.Vec{})
}

// HasArrived reports whether the body is within the arrive distance of its
// destination. With no destination there is nothing left to reach.
func (m *DirectMover) HasArrived(b *Body) bool {
	if !m.hasDest {
		return true
	}
	return r2.Norm(r2.Sub(m.dest, b.Pos.Vec())) <= m.params.ArriveDistance
}

func (m *DirectMover) Speed() float64         { return m.params.Speed }
func (m *DirectMover) SetSpeed(speed float64) { m.params.Speed = speed }

func (m *DirectMover) Integrate(b *Body, dt float64) {
	if m.hasDest {
		if m.HasArrived(b) {
			b.Vel.Set(r2.Vec{})
		} else {
			b.Vel.Set(stepToward(b.Pos.Vec(), m.dest, m.params.Speed, dt))
		}
	}
	vel := b.Vel.Vec()
	b.Pos.Set(r2.Add(b.Pos.Vec(), r2.Scale(dt, vel)))
	updateFacing(b, vel, m.params.MinFacingVelocitySqr)
}

func (m *DirectMover) CurrentFacing(b *Body) components.Facing {
	return *b.Facing
}
