package telemetry

import (
	"github.com/pthm-cable/prowl/components"
	"github.com/pthm-cable/prowl/systems"
)

// Collector accumulates behavior events within time windows and produces WindowStats.
// It implements systems.Listener and is driven from the simulation goroutine.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int
	dt                  float64

	// Current window tracking
	windowStartTick int
	tick            int

	// Event counters for current window
	transitions  int
	reasons      [int(systems.CondForced) + 1]int
	navFallbacks int
	path         systems.PathStats
	stateTicks   [stateCount]int

	events    []Event
	lifetimes *LifetimeTracker
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec, dt float64) *Collector {
	ticksPerWindow := int(windowDurationSec/dt + 0.5)
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
		lifetimes:           NewLifetimeTracker(),
	}
}

// SetTick sets the tick stamped on events recorded from now on.
func (c *Collector) SetTick(tick int) {
	c.tick = tick
}

// OnTransition records a controller state change.
func (c *Collector) OnTransition(npc string, tr systems.Transition) {
	c.transitions++
	if int(tr.Reason) < len(c.reasons) {
		c.reasons[tr.Reason]++
	}
	c.events = append(c.events, NewTransitionEvent(c.tick, npc, tr))
	c.lifetimes.RecordTransition(npc, tr)
}

// OnNavFallback records an NPC dropping from path following to direct movement.
func (c *Collector) OnNavFallback(npc string, err error) {
	c.navFallbacks++
	c.events = append(c.events, NewNavFallbackEvent(c.tick, npc, err))
	c.lifetimes.RecordNavFallback(npc)
}

// RecordSpawn registers a new NPC.
func (c *Collector) RecordSpawn(npc, archetype string) {
	c.events = append(c.events, NewSpawnEvent(c.tick, npc, archetype))
	c.lifetimes.Register(npc, archetype, c.tick)
}

// RecordDespawn marks an NPC as removed.
func (c *Collector) RecordDespawn(npc string) {
	c.events = append(c.events, NewDespawnEvent(c.tick, npc))
	c.lifetimes.MarkDespawned(npc, c.tick)
}

// RecordState counts one NPC tick in state.
func (c *Collector) RecordState(npc string, state components.BehaviorState, moved float64) {
	if int(state) < stateCount {
		c.stateTicks[state]++
	}
	c.lifetimes.RecordTick(npc, state, moved)
}

// RecordPathStats adds path service counters.
func (c *Collector) RecordPathStats(st systems.PathStats) {
	c.path.Requests += st.Requests
	c.path.Solved += st.Solved
	c.path.Failed += st.Failed
	c.path.Cancelled += st.Cancelled
}

// TakeEvents returns the events recorded since the last call.
func (c *Collector) TakeEvents() []Event {
	ev := c.events
	c.events = nil
	return ev
}

// Lifetimes returns the per-NPC tracker.
func (c *Collector) Lifetimes() *LifetimeTracker {
	return c.lifetimes
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats and resets counters for the next window.
// distances are the NPC-to-player distances sampled at window end.
func (c *Collector) Flush(currentTick, npcCount int, playerDead bool, distances []float64) WindowStats {
	var stateTotal int
	for _, n := range c.stateTicks {
		stateTotal += n
	}
	share := func(s components.BehaviorState) float64 {
		if stateTotal == 0 {
			return 0
		}
		return float64(c.stateTicks[s]) / float64(stateTotal)
	}

	distMean, distP10, distP50, distP90 := ComputeDistanceStats(distances)

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,

		NPCs:       npcCount,
		PlayerDead: playerDead,

		Transitions:            c.transitions,
		Sightings:              c.reasons[systems.CondSeeTarget],
		NoiseAlerts:            c.reasons[systems.CondHearNoise],
		InvestigationsComplete: c.reasons[systems.CondInvestigationComplete],
		Arrivals:               c.reasons[systems.CondArrived],
		TargetLost:             c.reasons[systems.CondTargetDead],
		Forced:                 c.reasons[systems.CondForced],
		NavFallbacks:           c.navFallbacks,

		PathRequests:  c.path.Requests,
		PathSolved:    c.path.Solved,
		PathFailed:    c.path.Failed,
		PathCancelled: c.path.Cancelled,

		IdleShare:            share(components.StateIdle),
		PatrolShare:          share(components.StatePatrolMove),
		InvestigateIdleShare: share(components.StateInvestigateIdle),
		InvestigateMoveShare: share(components.StateInvestigateMove),
		EngageShare:          share(components.StateEngage),

		PlayerDistMean: distMean,
		PlayerDistP10:  distP10,
		PlayerDistP50:  distP50,
		PlayerDistP90:  distP90,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.transitions = 0
	c.reasons = [len(c.reasons)]int{}
	c.navFallbacks = 0
	c.path = systems.PathStats{}
	c.stateTicks = [stateCount]int{}

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int {
	return c.windowDurationTicks
}
