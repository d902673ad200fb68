package systems

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/prowl/components"
)

func testStats() *components.Stats {
	return &components.Stats{
		Archetype:                  "guard",
		PatrolSpeed:                2,
		InvestigateSpeed:           2,
		EngageSpeed:                3,
		InvestigateSpeedMultiplier: 1,
		EngageSpeedMultiplier:      1,
		SoundThreshold:             3,
		VisionRange:                5,
		VisionHalfAngle:            45,
		ArriveDistance:             0.1,
		IdleDuration:               1.5,
		InvestigatePause:           1,
		InvestigateFinalPause:      2,
		MinFacingVelocitySqr:       0.0001,
	}
}

type recorder struct {
	transitions []Transition
	fallbacks   []error
}

func (r *recorder) OnTransition(_ string, tr Transition) { r.transitions = append(r.transitions, tr) }
func (r *recorder) OnNavFallback(_ string, err error)    { r.fallbacks = append(r.fallbacks, err) }

func (r *recorder) last() Transition {
	if len(r.transitions) == 0 {
		return Transition{}
	}
	return r.transitions[len(r.transitions)-1]
}

type harness struct {
	ctrl     *Controller
	body     *Body
	detector *NoiseDetector
	rec      *recorder
}

func newHarness(stats *components.Stats, route *PatrolRoute, agent NavMover) *harness {
	h := &harness{
		body:     newBody(0, 0),
		detector: &NoiseDetector{},
		rec:      &recorder{},
	}
	h.ctrl = NewController(ControllerDeps{
		Name:     "guard_1",
		Stats:    stats,
		Detector: h.detector,
		Route:    route,
		Direct: NewDirectMover(MoverParams{
			Speed:                stats.PatrolSpeed,
			ArriveDistance:       stats.ArriveDistance,
			MinFacingVelocitySqr: stats.MinFacingVelocitySqr,
		}),
		Agent:          agent,
		RepathDistance: 0.5,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Listener:       h.rec,
	})
	return h
}

// step runs one tick of behavior then movement.
func (h *harness) step(in Perception, dt float64) (Transition, bool) {
	tr, ok := h.ctrl.Update(h.body, in, dt)
	h.ctrl.Integrate(h.body, dt)
	return tr, ok
}

// runUntil steps until the controller reaches want, returning the tick count.
func (h *harness) runUntil(t *testing.T, want components.BehaviorState, in func() Perception, dt float64, maxTicks int) int {
	t.Helper()
	for i := 1; i <= maxTicks; i++ {
		h.step(in(), dt)
		if h.ctrl.State() == want {
			return i
		}
	}
	t.Fatalf("state %s not reached after %d ticks (at %s)", want, maxTicks, h.ctrl.State())
	return 0
}

func quiet() Perception { return Perception{TargetPos: r2.Vec{X: 50, Y: 50}} }

func twoPointRoute() *PatrolRoute {
	return &PatrolRoute{Name: "hall", Points: []r2.Vec{{X: 3}, {Y: 5}}}
}

func TestIdleStartsPatrolAfterDuration(t *testing.T) {
	h := newHarness(testStats(), twoPointRoute(), nil)
	assert.Equal(t, components.StateIdle, h.ctrl.State())
	assert.Equal(t, "Idle", h.ctrl.AnimationState())

	_, changed := h.step(quiet(), 0.5)
	assert.False(t, changed)
	_, changed = h.step(quiet(), 0.5)
	assert.False(t, changed)

	tr, changed := h.step(quiet(), 0.5)
	require.True(t, changed)
	assert.Equal(t, Transition{From: components.StateIdle, To: components.StatePatrolMove, Reason: CondIdleElapsed}, tr)

	bb := h.ctrl.Blackboard()
	assert.True(t, bb.TargetAssigned)
	assert.Equal(t, 0, bb.PatrolIndex)
	assert.Equal(t, r2.Vec{X: 3}, bb.MoveTarget)
	assert.True(t, bb.Moving)
	assert.Equal(t, "Walk", h.ctrl.AnimationState())
	assert.Equal(t, []bool{true, false}, h.ctrl.Visited())
}

func TestPatrolArrivalReturnsToIdle(t *testing.T) {
	h := newHarness(testStats(), twoPointRoute(), nil)

	h.runUntil(t, components.StatePatrolMove, quiet, 0.5, 10)
	h.runUntil(t, components.StateIdle, quiet, 0.5, 20)

	assert.Equal(t, CondArrived, h.rec.last().Reason)
	assert.InDelta(t, 3.0, h.body.Pos.X, 0.1)
	assert.False(t, h.ctrl.Blackboard().TargetAssigned)
	assert.Equal(t, r2.Vec{}, h.body.Vel.Vec())

	// The next patrol leg goes to the remaining point
	h.runUntil(t, components.StatePatrolMove, quiet, 0.5, 10)
	assert.Equal(t, 1, h.ctrl.Blackboard().PatrolIndex)
	assert.Equal(t, 2, VisitedCount(h.ctrl.Visited()))
}

func TestSightEngagesUntilTargetDies(t *testing.T) {
	h := newHarness(testStats(), nil, nil)
	seen := func() Perception { return Perception{PlayerInSight: true, TargetPos: r2.Vec{X: 5}} }
	lost := func() Perception { return Perception{TargetPos: r2.Vec{X: 5}} }

	tr, changed := h.step(seen(), 0.1)
	require.True(t, changed)
	assert.Equal(t, Transition{From: components.StateIdle, To: components.StateEngage, Reason: CondSeeTarget}, tr)
	assert.Equal(t, 3.0, h.ctrl.deps.Direct.Speed())

	// Engage does not drop out when sight is lost
	for i := 0; i < 50; i++ {
		_, changed = h.step(lost(), 0.1)
		assert.False(t, changed)
	}
	assert.Equal(t, components.StateEngage, h.ctrl.State())

	dead := Perception{PlayerInSight: true, TargetPos: r2.Vec{X: 5}, TargetDead: true}
	tr, changed = h.step(dead, 0.1)
	require.True(t, changed)
	assert.Equal(t, CondTargetDead, tr.Reason)
	assert.Equal(t, components.StateIdle, tr.To)
	assert.Equal(t, r2.Vec{}, h.body.Vel.Vec())

	// A dead target is never engaged again, even if reported in sight
	for i := 0; i < 50; i++ {
		h.step(seen(), 0.1)
		assert.NotEqual(t, components.StateEngage, h.ctrl.State())
	}
	assert.True(t, h.ctrl.Blackboard().TargetIsDead)
	assert.False(t, h.ctrl.Blackboard().PlayerInSight)
}

func TestEngageHoldsWithinArriveDistance(t *testing.T) {
	h := newHarness(testStats(), nil, nil)
	near := Perception{PlayerInSight: true, TargetPos: r2.Vec{X: 0.05}}

	h.step(near, 0.1)
	require.Equal(t, components.StateEngage, h.ctrl.State())
	h.step(near, 0.1)

	assert.Equal(t, r2.Vec{}, h.body.Pos.Vec())
	assert.Equal(t, r2.Vec{}, h.body.Vel.Vec())
	assert.False(t, h.ctrl.Blackboard().Moving)

	// Resumes the chase once the target moves away
	h.step(Perception{TargetPos: r2.Vec{X: 2}}, 0.1)
	assert.True(t, h.ctrl.Blackboard().Moving)
	assert.Greater(t, h.body.Pos.X, 0.0)
}

func TestInvestigationCycle(t *testing.T) {
	h := newHarness(testStats(), twoPointRoute(), nil)
	source := r2.Vec{X: 2}
	heard := func() Perception {
		return Perception{
			TargetPos: source,
			Noise:     h.detector.Update(h.body.Pos.Vec(), source, 4, 3),
		}
	}

	tr, changed := h.step(heard(), 0.25)
	require.True(t, changed)
	assert.Equal(t, Transition{From: components.StateIdle, To: components.StateInvestigateIdle, Reason: CondHearNoise}, tr)
	bb := h.ctrl.Blackboard()
	assert.True(t, bb.HasHeardPlayer)
	assert.Equal(t, source, bb.LastHeardPosition)
	assert.Equal(t, r2.Vec{}, h.body.Vel.Vec())

	ticks := h.runUntil(t, components.StateInvestigateMove, heard, 0.25, 10)
	assert.Equal(t, 4, ticks, "pause before moving")
	assert.Equal(t, source, h.ctrl.Blackboard().MoveTarget)

	h.runUntil(t, components.StateInvestigateIdle, heard, 0.25, 40)
	assert.Equal(t, CondArrived, h.rec.last().Reason)
	assert.InDelta(t, 0.0, r2.Norm(r2.Sub(source, h.body.Pos.Vec())), 0.1)

	ticks = h.runUntil(t, components.StatePatrolMove, heard, 0.25, 20)
	assert.Equal(t, 8, ticks, "final pause at the noise")
	assert.Equal(t, CondInvestigationComplete, h.rec.last().Reason)

	bb = h.ctrl.Blackboard()
	assert.False(t, bb.HasHeardPlayer)
	assert.False(t, bb.InvestigationComplete)
	assert.Equal(t, NoiseReading{}, h.detector.Reading())

	want := []components.BehaviorState{
		components.StateInvestigateIdle,
		components.StateInvestigateMove,
		components.StateInvestigateIdle,
		components.StatePatrolMove,
	}
	var got []components.BehaviorState
	for _, tr := range h.rec.transitions {
		got = append(got, tr.To)
	}
	assert.Equal(t, want, got)
}

func TestHeardNoiseIgnoredWhileInvestigating(t *testing.T) {
	h := newHarness(testStats(), nil, nil)
	noise := Perception{Noise: NoiseReading{Detected: true, NewDetection: true, LastHeardPosition: r2.Vec{X: 1}}}

	h.step(noise, 0.25)
	require.Equal(t, components.StateInvestigateIdle, h.ctrl.State())

	// A second fresh detection does not restart the pause
	_, changed := h.step(noise, 0.25)
	assert.False(t, changed)
	assert.Len(t, h.rec.transitions, 1)
}

func TestPatrolResumesAfterInterruption(t *testing.T) {
	route := &PatrolRoute{Points: []r2.Vec{{X: 5}, {Y: 5}}}
	h := newHarness(testStats(), route, nil)

	h.runUntil(t, components.StatePatrolMove, quiet, 0.5, 10)
	h.step(quiet(), 0.5)
	require.Equal(t, r2.Vec{X: 5}, h.ctrl.Blackboard().PatrolTarget)

	h.step(Perception{PlayerInSight: true, TargetPos: r2.Vec{X: -3}}, 0.5)
	require.Equal(t, components.StateEngage, h.ctrl.State())
	assert.Equal(t, r2.Vec{X: -3}, h.ctrl.Blackboard().MoveTarget)

	tr := h.ctrl.ForceState(h.body, components.StatePatrolMove)
	assert.Equal(t, CondForced, tr.Reason)

	bb := h.ctrl.Blackboard()
	assert.Equal(t, r2.Vec{X: 5}, bb.MoveTarget)
	assert.Equal(t, 0, bb.PatrolIndex)
	assert.Equal(t, 1, VisitedCount(h.ctrl.Visited()))
}

func TestForceStateStopsMovement(t *testing.T) {
	h := newHarness(testStats(), twoPointRoute(), nil)
	h.runUntil(t, components.StatePatrolMove, quiet, 0.5, 10)
	h.step(quiet(), 0.5)
	require.NotEqual(t, r2.Vec{}, h.body.Vel.Vec())

	tr := h.ctrl.ForceState(h.body, components.StateIdle)
	assert.Equal(t, Transition{From: components.StatePatrolMove, To: components.StateIdle, Reason: CondForced}, tr)
	assert.Equal(t, r2.Vec{}, h.body.Vel.Vec())
	assert.False(t, h.ctrl.Blackboard().Moving)
}

func TestPatrolWithoutRouteHolds(t *testing.T) {
	h := newHarness(testStats(), nil, nil)
	h.runUntil(t, components.StatePatrolMove, quiet, 0.5, 10)

	for i := 0; i < 10; i++ {
		h.step(quiet(), 0.5)
	}
	assert.Equal(t, components.StatePatrolMove, h.ctrl.State())
	assert.Equal(t, r2.Vec{}, h.body.Pos.Vec())
	assert.False(t, h.ctrl.Blackboard().Moving)
}

func TestMissingDependenciesHoldStill(t *testing.T) {
	var buf bytes.Buffer
	ctrl := NewController(ControllerDeps{
		Name:   "broken",
		Direct: NewDirectMover(MoverParams{Speed: 1}),
		Logger: slog.New(slog.NewJSONHandler(&buf, nil)),
	})
	body := newBody(1, 1)
	body.Vel.Set(r2.Vec{X: 1, Y: 1})

	err := ctrl.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingDependency))

	for i := 0; i < 3; i++ {
		_, changed := ctrl.Update(body, Perception{PlayerInSight: true}, 0.1)
		assert.False(t, changed)
		ctrl.Integrate(body, 0.1)
	}
	assert.Equal(t, r2.Vec{X: 1, Y: 1}, body.Pos.Vec())
	assert.Equal(t, components.StateIdle, ctrl.State())
	assert.Equal(t, 1, strings.Count(buf.String(), "behavior skipped"), "warning should be logged once")
}

// fakeAgent is a NavMover whose outcome is set by the test.
type fakeAgent struct {
	setErr  error
	failed  bool
	pending bool
	sets    int
	stops   int
	speed   float64
}

func (f *fakeAgent) SetVelocity(b *Body, v r2.Vec) { b.Vel.Set(v) }
func (f *fakeAgent) SetVelocityZero(b *Body)       { b.Vel.Set(r2.Vec{}) }
func (f *fakeAgent) SetDestination(*Body, r2.Vec) error {
	f.sets++
	return f.setErr
}
func (f *fakeAgent) Stop(b *Body) {
	f.stops++
	b.Vel.Set(r2.Vec{})
}
func (f *fakeAgent) HasArrived(*Body) bool                   { return false }
func (f *fakeAgent) Speed() float64                          { return f.speed }
func (f *fakeAgent) SetSpeed(speed float64)                  { f.speed = speed }
func (f *fakeAgent) Integrate(*Body, float64)                {}
func (f *fakeAgent) CurrentFacing(b *Body) components.Facing { return *b.Facing }
func (f *fakeAgent) Pending() bool                           { return f.pending }
func (f *fakeAgent) Failed() bool                            { return f.failed }
func (f *fakeAgent) RemainingDistance(*Body) float64         { return 1 }

func agentStats() *components.Stats {
	s := testStats()
	s.PreferAgent = true
	return s
}

func TestAgentErrorFallsBackToDirect(t *testing.T) {
	agent := &fakeAgent{setErr: fmt.Errorf("no point: %w", ErrNavigationUnavailable)}
	h := newHarness(agentStats(), twoPointRoute(), agent)

	h.runUntil(t, components.StatePatrolMove, quiet, 0.5, 10)
	assert.False(t, h.ctrl.UsingAgent())
	require.Len(t, h.rec.fallbacks, 1)
	assert.ErrorIs(t, h.rec.fallbacks[0], ErrNavigationUnavailable)

	// Direct movement takes over
	assert.Greater(t, h.body.Pos.X, 0.0)
	h.step(quiet(), 0.5)
	assert.Equal(t, 1, agent.sets, "agent is not retried within the state")
}

func TestAgentFailureFallsBackToDirect(t *testing.T) {
	agent := &fakeAgent{}
	h := newHarness(agentStats(), twoPointRoute(), agent)

	h.runUntil(t, components.StatePatrolMove, quiet, 0.5, 10)
	require.True(t, h.ctrl.UsingAgent())
	assert.Equal(t, r2.Vec{}, h.body.Pos.Vec(), "fake agent never moves")
	assert.Equal(t, 2.0, agent.Speed())

	agent.failed = true
	h.step(quiet(), 0.5)
	assert.False(t, h.ctrl.UsingAgent())
	require.Len(t, h.rec.fallbacks, 1)
	assert.ErrorIs(t, h.rec.fallbacks[0], ErrNavigationUnavailable)
	assert.Greater(t, h.body.Pos.X, 0.0)

	agent.failed = false
	h.step(quiet(), 0.5)
	assert.False(t, h.ctrl.UsingAgent(), "fallback lasts for the rest of the state")
}

func TestPendingAgentHoldsStill(t *testing.T) {
	planner := &scriptedPlanner{}
	stats := agentStats()
	agent := NewAgentMover(planner, openSampler{}, AgentParams{
		MoverParams: MoverParams{Speed: stats.PatrolSpeed, ArriveDistance: stats.ArriveDistance},
	})
	h := newHarness(stats, twoPointRoute(), agent)

	h.runUntil(t, components.StatePatrolMove, quiet, 0.5, 10)
	for i := 0; i < 5; i++ {
		h.step(quiet(), 0.5)
	}
	assert.Equal(t, components.StatePatrolMove, h.ctrl.State())
	assert.Equal(t, r2.Vec{}, h.body.Pos.Vec())
	assert.Len(t, planner.requests, 1, "unchanged goal is not re-requested")
	assert.Empty(t, h.rec.fallbacks)
}

func TestNoiseHeardWhileEngagingIsForgottenOnExit(t *testing.T) {
	source := r2.Vec{X: 2}
	tests := []struct {
		name  string
		setup func(h *harness, heard func() NoiseReading)
	}{
		{
			name: "heard on the tick sight engages",
			setup: func(h *harness, heard func() NoiseReading) {
				h.step(Perception{PlayerInSight: true, TargetPos: source, Noise: heard()}, 0.1)
			},
		},
		{
			name: "heard after engaging",
			setup: func(h *harness, heard func() NoiseReading) {
				h.step(Perception{PlayerInSight: true, TargetPos: source}, 0.1)
				h.step(Perception{TargetPos: source, Noise: heard()}, 0.1)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(testStats(), nil, nil)
			heard := func() NoiseReading { return h.detector.Update(h.body.Pos.Vec(), source, 4, 3) }

			tt.setup(h, heard)
			require.Equal(t, components.StateEngage, h.ctrl.State())
			require.True(t, h.detector.Reading().Detected)
			require.False(t, h.ctrl.Blackboard().HasHeardPlayer)

			h.ctrl.ForceState(h.body, components.StateIdle)
			assert.Equal(t, NoiseReading{}, h.detector.Reading())

			for i := 0; i < 5; i++ {
				h.step(quiet(), 0.1)
			}
			require.Equal(t, components.StateIdle, h.ctrl.State())

			tr, changed := h.step(Perception{TargetPos: source, Noise: heard()}, 0.1)
			require.True(t, changed)
			assert.Equal(t, Transition{From: components.StateIdle, To: components.StateInvestigateIdle, Reason: CondHearNoise}, tr)
		})
	}
}

func TestSightInterruptsInvestigation(t *testing.T) {
	source := r2.Vec{X: 2}
	tests := []struct {
		name     string
		useAgent bool
		reach    func(t *testing.T, h *harness, heard func() Perception)
		from     components.BehaviorState
	}{
		{
			name: "pause before moving",
			reach: func(t *testing.T, h *harness, heard func() Perception) {
				h.step(heard(), 0.25)
				require.False(t, h.ctrl.finalPause)
			},
			from: components.StateInvestigateIdle,
		},
		{
			name: "moving to the noise",
			reach: func(t *testing.T, h *harness, heard func() Perception) {
				h.runUntil(t, components.StateInvestigateMove, heard, 0.25, 10)
				h.step(heard(), 0.25)
				require.Greater(t, h.body.Pos.X, 0.0)
			},
			from: components.StateInvestigateMove,
		},
		{
			name:     "moving to the noise with the agent",
			useAgent: true,
			reach: func(t *testing.T, h *harness, heard func() Perception) {
				h.runUntil(t, components.StateInvestigateMove, heard, 0.25, 10)
				require.True(t, h.ctrl.UsingAgent())
				h.body.Vel.Set(r2.Vec{X: 2})
			},
			from: components.StateInvestigateMove,
		},
		{
			name: "final pause at the noise",
			reach: func(t *testing.T, h *harness, heard func() Perception) {
				h.runUntil(t, components.StateInvestigateMove, heard, 0.25, 10)
				h.runUntil(t, components.StateInvestigateIdle, heard, 0.25, 40)
				require.True(t, h.ctrl.finalPause)
			},
			from: components.StateInvestigateIdle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var agent *fakeAgent
			var h *harness
			if tt.useAgent {
				agent = &fakeAgent{}
				h = newHarness(agentStats(), twoPointRoute(), agent)
			} else {
				h = newHarness(testStats(), twoPointRoute(), nil)
			}
			heard := func() Perception {
				return Perception{
					TargetPos: source,
					Noise:     h.detector.Update(h.body.Pos.Vec(), source, 4, 3),
				}
			}

			tt.reach(t, h, heard)
			require.Equal(t, tt.from, h.ctrl.State())
			stops := 0
			if agent != nil {
				stops = agent.stops
			}

			target := r2.Add(h.body.Pos.Vec(), r2.Vec{Y: -4})
			tr, changed := h.ctrl.Update(h.body, Perception{PlayerInSight: true, TargetPos: target}, 0.25)
			require.True(t, changed)
			assert.Equal(t, Transition{From: tt.from, To: components.StateEngage, Reason: CondSeeTarget}, tr)
			assert.Equal(t, target, h.ctrl.Blackboard().MoveTarget)

			vel := h.body.Vel.Vec()
			if agent != nil {
				// The agent was stopped on exit and has not moved the body yet
				assert.Greater(t, agent.stops, stops)
				assert.True(t, h.ctrl.UsingAgent())
				assert.Equal(t, r2.Vec{}, vel)
				return
			}
			// Only the chase velocity remains, nothing of the walk to the noise
			assert.InDelta(t, 0.0, vel.X, 1e-9)
			assert.InDelta(t, -3.0, vel.Y, 1e-9)
		})
	}
}
