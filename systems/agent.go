package systems

import (
	"fmt"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/prowl/components"
)

// AgentParams tunes an AgentMover.
type AgentParams struct {
	MoverParams
	SampleRadius      float64 // destination snap radius
	WaypointTolerance float64 // distance at which intermediate waypoints are passed
}

// AgentMover follows paths from an asynchronous planner.
// While a request is pending the agent keeps following its previous path, if
// it has one, and never reports arrival.
type AgentMover struct {
	planner PathPlanner
	sampler NavSampler
	params  AgentParams

	req     *PathRequest
	dest    r2.Vec
	hasDest bool
	path    []r2.Vec
	index   int
	failed  bool
}

// NewAgentMover creates a path-following backend.
func NewAgentMover(planner PathPlanner, sampler NavSampler, params AgentParams) *AgentMover {
	return &AgentMover{planner: planner, sampler: sampler, params: params}
}

// SetVelocity drives the body at v and abandons any path.
func (m *AgentMover) SetVelocity(b *Body, v r2.Vec) {
	m.reset()
	b.Vel.Set(v)
}

func (m *AgentMover) SetVelocityZero(b *Body) {
	b.Vel.Set(r2.Vec{})
}

// SetDestination snaps dst onto the navigable area and requests a path to it.
// Re-issuing the destination already being followed keeps the current request.
// A new destination supersedes the pending request, but the old path is
// followed until the new one resolves.
func (m *AgentMover) SetDestination(b *Body, dst r2.Vec) error {
	if m.planner == nil || m.sampler == nil {
		return fmt.Errorf("agent has no planner: %w", ErrNavigationUnavailable)
	}
	target, ok := m.sampler.SampleNearestNavigablePoint(dst, m.params.SampleRadius)
	if !ok {
		return fmt.Errorf("no navigable point within %.2f of (%.2f, %.2f): %w",
			m.params.SampleRadius, dst.X, dst.Y, ErrNavigationUnavailable)
	}
	m.poll()
	if m.hasDest && !m.failed && target == m.dest {
		return nil
	}

	m.cancel()
	if m.failed {
		m.path = nil
		m.index = 0
	}
	m.failed = false
	m.dest = target
	m.hasDest = true
	m.req = m.planner.ComputePathAsync(b.Pos.Vec(), target)
	return nil
}

// Destination returns the snapped destination, if any.
func (m *AgentMover) Destination() (r2.Vec, bool) {
	return m.dest, m.hasDest
}

// Stop cancels any pending request, clears the path and zeroes velocity.
func (m *AgentMover) Stop(b *Body) {
	m.reset()
	b.Vel.Set(r2.Vec{})
}

// reset drops the destination and path, cancelling an in-flight request.
func (m *AgentMover) reset() {
	m.cancel()
	m.hasDest = false
	m.path = nil
	m.index = 0
	m.failed = false
}

func (m *AgentMover) cancel() {
	if m.req != nil {
		m.req.Cancel()
		m.req = nil
	}
}

// Pending reports whether the path request is still being computed.
func (m *AgentMover) Pending() bool {
	return m.req != nil && m.req.Status() == PathPending
}

// Failed reports whether the last request could not be satisfied.
func (m *AgentMover) Failed() bool {
	m.poll()
	return m.failed
}

// poll picks up a resolved request.
func (m *AgentMover) poll() {
	if m.req == nil {
		return
	}
	switch m.req.Status() {
	case PathReady:
		m.path = m.req.Waypoints()
		m.index = 0
		m.req = nil
	case PathFailed, PathCancelled:
		m.failed = true
		m.path = nil
		m.index = 0
		m.req = nil
	}
}

// RemainingDistance returns the distance left along the path.
// While a path is being computed it is the straight-line distance to the destination.
func (m *AgentMover) RemainingDistance(b *Body) float64 {
	if !m.hasDest {
		return 0
	}
	pos := b.Pos.Vec()
	if len(m.path) == 0 || m.Pending() {
		return r2.Norm(r2.Sub(m.dest, pos))
	}
	total := r2.Norm(r2.Sub(m.path[m.index], pos))
	for i := m.index + 1; i < len(m.path); i++ {
		total += r2.Norm(r2.Sub(m.path[i], m.path[i-1]))
	}
	return total
}

// HasArrived is true once nothing is pending, the remaining distance is
// within the arrive distance and the agent has come to rest.
func (m *AgentMover) HasArrived(b *Body) bool {
	m.poll()
	if m.Pending() || m.failed {
		return false
	}
	if m.RemainingDistance(b) > m.params.ArriveDistance {
		return false
	}
	return scalar.EqualWithinAbs(r2.Norm(b.Vel.Vec()), 0, 1e-9)
}

func (m *AgentMover) Speed() float64         { return m.params.Speed }
func (m *AgentMover) SetSpeed(speed float64) { m.params.Speed = speed }

func (m *AgentMover) Integrate(b *Body, dt float64) {
	m.poll()
	switch {
	case m.failed:
		b.Vel.Set(r2.Vec{})
	case m.hasDest:
		// With no path yet this holds still
		b.Vel.Set(m.steer(b.Pos.Vec(), dt))
	}

	vel := b.Vel.Vec()
	b.Pos.Set(r2.Add(b.Pos.Vec(), r2.Scale(dt, vel)))
	updateFacing(b, vel, m.params.MinFacingVelocitySqr)
}

// steer advances past reached waypoints and returns the velocity toward the next one.
func (m *AgentMover) steer(pos r2.Vec, dt float64) r2.Vec {
	if len(m.path) == 0 {
		return r2.Vec{}
	}
	last := len(m.path) - 1
	for m.index < last && r2.Norm(r2.Sub(m.path[m.index], pos)) <= m.params.WaypointTolerance {
		m.index++
	}
	wp := m.path[m.index]
	if m.index == last && r2.Norm(r2.Sub(wp, pos)) <= m.params.ArriveDistance {
		return r2.Vec{}
	}
	return stepToward(pos, wp, m.params.Speed, dt)
}

// CurrentVelocity returns the body's velocity.
func (m *AgentMover) CurrentVelocity(b *Body) r2.Vec {
	return b.Vel.Vec()
}

func (m *AgentMover) CurrentFacing(b *Body) components.Facing {
	return *b.Facing
}
