package systems

import (
	"errors"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/prowl/components"
)

// Condition names what caused a state transition.
type Condition uint8

const (
	CondNone Condition = iota
	CondSeeTarget
	CondHearNoise
	CondIdleElapsed
	CondArrived
	CondInvestigationComplete
	CondTargetDead
	CondForced
)

var conditionNames = [...]string{"none", "see_target", "hear_noise", "idle_elapsed", "arrived", "investigation_complete", "target_dead", "forced"}

// String returns the log name for a Condition.
func (c Condition) String() string {
	if int(c) < len(conditionNames) {
		return conditionNames[c]
	}
	return "unknown"
}

// Transition records one state change.
type Transition struct {
	From   components.BehaviorState
	To     components.BehaviorState
	Reason Condition
}

// Perception is what an NPC sensed this tick.
type Perception struct {
	PlayerInSight bool
	Noise         NoiseReading
	TargetPos     r2.Vec
	TargetDead    bool
}

// Blackboard is the behavior state of one NPC, readable by presentation code.
type Blackboard struct {
	State                 components.BehaviorState
	MoveTarget            r2.Vec // current movement goal
	Moving                bool   // actively moving toward MoveTarget
	TargetAssigned        bool   // a patrol point is assigned and not yet reached
	PatrolTarget          r2.Vec // kept across interruptions so patrol resumes
	PatrolIndex           int
	LastHeardPosition     r2.Vec
	HasHeardPlayer        bool
	InvestigationComplete bool
	PlayerInSight         bool
	TargetIsDead          bool
}

// Listener receives controller events. Calls happen on the simulation goroutine.
type Listener interface {
	OnTransition(npc string, tr Transition)
	OnNavFallback(npc string, err error)
}

// ControllerDeps are the collaborators of a Controller, wired by the caller.
type ControllerDeps struct {
	Name           string
	Stats          *components.Stats
	Detector       *NoiseDetector
	Route          *PatrolRoute // nil = no patrol
	Direct         Mover
	Agent          NavMover // nil = navigation unavailable
	RepathDistance float64  // goal drift before the agent is re-issued a moving goal
	Logger         *slog.Logger
	Listener       Listener
}

// Controller is the behavior state machine of one NPC.
//
// Every Update applies the first matching transition in priority order:
// target death (Engage only), sight, a new noise (Idle and PatrolMove only),
// then the state's own timer or arrival condition. The state's per-tick
// action then runs for whatever state is current.
type Controller struct {
	deps    ControllerDeps
	logger  *slog.Logger
	bb      Blackboard
	visited []bool

	started    bool
	stateTime  float64 // seconds since the current state was entered
	finalPause bool    // InvestigateIdle is the pause at the noise, not the one before moving
	newNoise   bool
	targetPos  r2.Vec

	usingAgent bool
	goal       r2.Vec
	goalIssued bool
	holding    bool // Engage is within arrive distance of the target

	warnedMissing bool
	warnedRoute   bool
}

// NewController creates a controller in the Idle state.
func NewController(deps ControllerDeps) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		deps:    deps,
		logger:  logger.With("npc", deps.Name),
		visited: deps.Route.NewVisited(),
	}
}

// Validate reports missing collaborators. A controller that fails validation
// holds its NPC still.
func (c *Controller) Validate() error {
	var errs []error
	if c.deps.Stats == nil {
		errs = append(errs, fmt.Errorf("stats: %w", ErrMissingDependency))
	}
	if c.deps.Detector == nil {
		errs = append(errs, fmt.Errorf("noise detector: %w", ErrMissingDependency))
	}
	if c.deps.Direct == nil {
		errs = append(errs, fmt.Errorf("direct mover: %w", ErrMissingDependency))
	}
	return errors.Join(errs...)
}

// Name returns the NPC name the controller was created for.
func (c *Controller) Name() string { return c.deps.Name }

// State returns the current state.
func (c *Controller) State() components.BehaviorState { return c.bb.State }

// Blackboard returns a copy of the behavior state.
func (c *Controller) Blackboard() Blackboard { return c.bb }

// Visited returns the patrol bookkeeping for the current cycle.
func (c *Controller) Visited() []bool { return c.visited }

// UsingAgent reports whether the path agent drives the NPC in this state.
func (c *Controller) UsingAgent() bool { return c.usingAgent }

// AnimationState returns the animation name for the presentation layer.
func (c *Controller) AnimationState() string {
	if c.bb.Moving {
		return "Walk"
	}
	return "Idle"
}

// Update absorbs this tick's perception, applies at most one transition and
// runs the current state's action.
func (c *Controller) Update(body *Body, in Perception, dt float64) (Transition, bool) {
	if err := c.Validate(); err != nil {
		if !c.warnedMissing {
			c.logger.Warn("behavior skipped", "error", err)
			c.warnedMissing = true
		}
		if body.Vel != nil {
			body.Vel.Set(r2.Vec{})
		}
		return Transition{}, false
	}
	if !c.started {
		c.started = true
		c.enter(body, c.bb.State)
	}

	c.stateTime += dt
	c.absorb(in)

	var tr Transition
	changed := false
	if to, reason, ok := c.evaluate(body); ok {
		tr = c.transition(body, to, reason)
		changed = true
	}

	c.act(body)
	return tr, changed
}

// ForceState switches to the given state from outside the machine.
func (c *Controller) ForceState(body *Body, to components.BehaviorState) Transition {
	if !c.started {
		c.started = true
		c.enter(body, c.bb.State)
	}
	tr := c.transition(body, to, CondForced)
	c.act(body)
	return tr
}

// Integrate moves the NPC with the backend bound to the current state.
func (c *Controller) Integrate(body *Body, dt float64) {
	if c.deps.Direct == nil {
		return
	}
	c.active().Integrate(body, dt)
}

// absorb copies perception into the blackboard.
func (c *Controller) absorb(in Perception) {
	if in.TargetDead {
		c.bb.TargetIsDead = true
	}
	dead := c.bb.TargetIsDead

	c.bb.PlayerInSight = in.PlayerInSight && !dead
	c.newNoise = in.Noise.NewDetection && !dead
	if in.Noise.Detected && !dead {
		c.bb.LastHeardPosition = in.Noise.LastHeardPosition
	}
	c.targetPos = in.TargetPos
}

// evaluate returns the transition to take this tick, if any.
func (c *Controller) evaluate(body *Body) (components.BehaviorState, Condition, bool) {
	stats := c.deps.Stats

	if c.bb.State == components.StateEngage {
		if c.bb.TargetIsDead {
			return components.StateIdle, CondTargetDead, true
		}
		return c.bb.State, CondNone, false
	}
	if c.bb.PlayerInSight {
		return components.StateEngage, CondSeeTarget, true
	}

	hears := c.newNoise && !c.bb.HasHeardPlayer

	switch c.bb.State {
	case components.StateIdle:
		if hears {
			return components.StateInvestigateIdle, CondHearNoise, true
		}
		if c.stateTime >= stats.IdleDuration {
			return components.StatePatrolMove, CondIdleElapsed, true
		}

	case components.StatePatrolMove:
		if hears {
			return components.StateInvestigateIdle, CondHearNoise, true
		}
		if c.bb.TargetAssigned && c.goalIssued && c.active().HasArrived(body) {
			return components.StateIdle, CondArrived, true
		}

	case components.StateInvestigateIdle:
		if !c.finalPause && c.stateTime >= stats.InvestigatePause {
			return components.StateInvestigateMove, CondIdleElapsed, true
		}
		if c.finalPause && c.stateTime >= stats.InvestigateFinalPause {
			c.bb.InvestigationComplete = true
			return components.StatePatrolMove, CondInvestigationComplete, true
		}

	case components.StateInvestigateMove:
		if c.goalIssued && c.active().HasArrived(body) {
			return components.StateInvestigateIdle, CondArrived, true
		}
	}

	return c.bb.State, CondNone, false
}

// transition runs exit and enter actions and reports the change.
func (c *Controller) transition(body *Body, to components.BehaviorState, reason Condition) Transition {
	from := c.bb.State
	c.exit(body, from, reason)

	c.bb.State = to
	c.stateTime = 0
	if reason == CondHearNoise {
		c.bb.HasHeardPlayer = true
	}
	if to == components.StateInvestigateIdle {
		c.finalPause = from == components.StateInvestigateMove
	}
	c.enter(body, to)

	tr := Transition{From: from, To: to, Reason: reason}
	c.logger.Debug("state transition", "from", from.String(), "to", to.String(), "reason", reason.String())
	if c.deps.Listener != nil {
		c.deps.Listener.OnTransition(c.deps.Name, tr)
	}
	return tr
}

func (c *Controller) exit(body *Body, from components.BehaviorState, reason Condition) {
	if from == components.StatePatrolMove && reason == CondArrived {
		c.bb.TargetAssigned = false
	}
	c.stopAll(body)
}

func (c *Controller) enter(body *Body, s components.BehaviorState) {
	stats := c.deps.Stats

	switch s {
	case components.StateIdle:
		c.clearInvestigation()
		c.stopAll(body)

	case components.StatePatrolMove:
		c.clearInvestigation()
		if c.deps.Route.Len() == 0 {
			if !c.warnedRoute {
				c.logger.Warn("no patrol route, holding position")
				c.warnedRoute = true
			}
			return
		}
		if !c.bb.TargetAssigned {
			idx, target, _ := c.deps.Route.NextTarget(body.Pos.Vec(), &c.visited)
			c.bb.PatrolIndex = idx
			c.bb.PatrolTarget = target
			c.bb.TargetAssigned = true
		}
		c.bb.MoveTarget = c.bb.PatrolTarget
		c.bind(stats.PatrolSpeed)
		c.issue(body, c.bb.MoveTarget)

	case components.StateInvestigateIdle:
		c.stopAll(body)

	case components.StateInvestigateMove:
		c.bind(stats.InvestigateSpeed * stats.InvestigateSpeedMultiplier)
		c.bb.MoveTarget = c.bb.LastHeardPosition
		c.issue(body, c.bb.MoveTarget)

	case components.StateEngage:
		c.bind(stats.EngageSpeed * stats.EngageSpeedMultiplier)
		c.pursue(body)
	}
}

// act runs the per-tick action of the current state.
func (c *Controller) act(body *Body) {
	switch c.bb.State {
	case components.StatePatrolMove:
		if c.bb.TargetAssigned {
			c.checkNav(body)
		}
	case components.StateInvestigateMove:
		c.bb.MoveTarget = c.bb.LastHeardPosition
		c.checkNav(body)
		c.issue(body, c.bb.MoveTarget)
	case components.StateEngage:
		c.pursue(body)
	}
	c.bb.Moving = c.moving(body)
}

// moving reports whether the NPC is actively heading somewhere.
func (c *Controller) moving(body *Body) bool {
	switch c.bb.State {
	case components.StatePatrolMove:
		return c.bb.TargetAssigned && c.goalIssued && !c.active().HasArrived(body)
	case components.StateInvestigateMove:
		return c.goalIssued && !c.active().HasArrived(body)
	case components.StateEngage:
		return c.goalIssued && !c.holding
	default:
		return false
	}
}

// pursue chases the live target, holding position once within arrive distance.
func (c *Controller) pursue(body *Body) {
	c.bb.MoveTarget = c.targetPos
	if r2.Norm(r2.Sub(c.targetPos, body.Pos.Vec())) <= c.deps.Stats.ArriveDistance {
		if !c.holding {
			c.active().Stop(body)
			c.goalIssued = false
			c.holding = true
		}
		c.active().SetVelocityZero(body)
		return
	}
	c.holding = false
	c.checkNav(body)
	c.issue(body, c.targetPos)
}

// bind picks the movement backend for the state being entered.
func (c *Controller) bind(speed float64) {
	c.usingAgent = c.deps.Stats.PreferAgent && c.deps.Agent != nil
	c.deps.Direct.SetSpeed(speed)
	if c.deps.Agent != nil {
		c.deps.Agent.SetSpeed(speed)
	}
}

// active returns the backend driving the NPC.
func (c *Controller) active() Mover {
	if c.usingAgent {
		return c.deps.Agent
	}
	return c.deps.Direct
}

// issue sends goal to the active backend. The agent is only re-issued once
// the goal has drifted past the repath distance.
func (c *Controller) issue(body *Body, goal r2.Vec) {
	if c.usingAgent {
		if c.goalIssued && r2.Norm(r2.Sub(goal, c.goal)) <= c.deps.RepathDistance {
			return
		}
		err := c.deps.Agent.SetDestination(body, goal)
		if err == nil {
			c.goal = goal
			c.goalIssued = true
			return
		}
		c.fallback(body, err)
	}

	// Direct movement cannot fail
	_ = c.deps.Direct.SetDestination(body, goal)
	c.goal = goal
	c.goalIssued = true
}

// checkNav downgrades to direct movement when the agent's path failed.
func (c *Controller) checkNav(body *Body) {
	if !c.usingAgent || !c.deps.Agent.Failed() {
		return
	}
	goal := c.goal
	c.fallback(body, fmt.Errorf("path to (%.2f, %.2f) failed: %w", goal.X, goal.Y, ErrNavigationUnavailable))
	c.issue(body, goal)
}

// fallback stops the agent and switches to direct movement for the rest of the state.
func (c *Controller) fallback(body *Body, err error) {
	c.deps.Agent.Stop(body)
	c.usingAgent = false
	c.goalIssued = false
	c.logger.Debug("navigation fallback", "state", c.bb.State.String(), "error", err)
	if c.deps.Listener != nil {
		c.deps.Listener.OnNavFallback(c.deps.Name, err)
	}
}

// stopAll halts both backends and zeroes velocity.
func (c *Controller) stopAll(body *Body) {
	c.deps.Direct.Stop(body)
	if c.deps.Agent != nil {
		c.deps.Agent.Stop(body)
	}
	c.deps.Direct.SetVelocityZero(body)
	c.usingAgent = false
	c.goalIssued = false
	c.holding = false
	c.bb.Moving = false
}

// clearInvestigation forgets the heard noise, once per investigation. A noise
// first heard while engaging leaves the detector latched without an
// investigation, so that is cleared too.
func (c *Controller) clearInvestigation() {
	latched := c.deps.Detector != nil && c.deps.Detector.Reading().Detected
	if !c.bb.HasHeardPlayer && !c.bb.InvestigationComplete && !latched {
		return
	}
	c.bb.InvestigationComplete = false
	c.bb.HasHeardPlayer = false
	c.bb.LastHeardPosition = r2.Vec{}
	c.deps.Detector.ClearDetection()
}
