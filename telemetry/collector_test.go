package telemetry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/prowl/components"
	"github.com/pthm-cable/prowl/systems"
)

func TestCollectorWindow(t *testing.T) {
	c := NewCollector(1.0, 0.25)
	assert.Equal(t, 4, c.WindowDurationTicks())

	c.RecordSpawn("guard_1", "guard")
	c.RecordSpawn("guard_2", "sentry")

	c.SetTick(1)
	c.OnTransition("guard_1", systems.Transition{From: components.StateIdle, To: components.StateEngage, Reason: systems.CondSeeTarget})
	c.OnTransition("guard_2", systems.Transition{From: components.StateIdle, To: components.StateInvestigateIdle, Reason: systems.CondHearNoise})
	c.OnNavFallback("guard_1", errors.New("no path"))
	c.RecordPathStats(systems.PathStats{Requests: 3, Solved: 2, Failed: 1})

	for i := 0; i < 3; i++ {
		c.RecordState("guard_1", components.StateEngage, 0.5)
		c.RecordState("guard_2", components.StateInvestigateIdle, 0)
	}
	c.RecordState("guard_2", components.StateIdle, 0)

	assert.False(t, c.ShouldFlush(3))
	require.True(t, c.ShouldFlush(4))

	stats := c.Flush(4, 2, false, []float64{2, 4})
	assert.Equal(t, 4, stats.WindowEndTick)
	assert.Equal(t, 1.0, stats.SimTimeSec)
	assert.Equal(t, 2, stats.NPCs)
	assert.Equal(t, 2, stats.Transitions)
	assert.Equal(t, 1, stats.Sightings)
	assert.Equal(t, 1, stats.NoiseAlerts)
	assert.Equal(t, 2, stats.Alerted())
	assert.Equal(t, 1, stats.NavFallbacks)
	assert.Equal(t, 3, stats.PathRequests)
	assert.Equal(t, 1, stats.PathFailed)
	assert.InDelta(t, 3.0/7.0, stats.EngageShare, 1e-9)
	assert.InDelta(t, 1.0/7.0, stats.IdleShare, 1e-9)
	assert.Equal(t, 3.0, stats.PlayerDistMean)

	// Counters reset for the next window
	next := c.Flush(8, 2, false, nil)
	assert.Equal(t, 4, next.WindowStartTick)
	assert.Zero(t, next.Transitions)
	assert.Zero(t, next.PathRequests)
	assert.Zero(t, next.EngageShare)
}

func TestCollectorEventsAndLifetimes(t *testing.T) {
	c := NewCollector(5, 0.1)
	c.RecordSpawn("guard_1", "guard")

	c.SetTick(12)
	c.OnTransition("guard_1", systems.Transition{From: components.StateIdle, To: components.StatePatrolMove, Reason: systems.CondIdleElapsed})
	c.RecordState("guard_1", components.StatePatrolMove, 0.25)
	c.RecordState("guard_1", components.StatePatrolMove, 0.25)

	c.SetTick(20)
	c.RecordDespawn("guard_1")

	events := c.TakeEvents()
	require.Len(t, events, 3)
	assert.Equal(t, EventSpawn, events[0].Type)
	assert.Equal(t, EventRecord{
		Tick:   12,
		Type:   "transition",
		NPC:    "guard_1",
		From:   "Idle",
		To:     "PatrolMove",
		Reason: "idle_elapsed",
	}, events[1].Record())
	assert.Equal(t, EventDespawn, events[2].Type)
	assert.Empty(t, c.TakeEvents())

	lt := c.Lifetimes().Get("guard_1")
	require.NotNil(t, lt)
	assert.Equal(t, 1, lt.Transitions)
	assert.Equal(t, 2, lt.StateTicks[components.StatePatrolMove])
	assert.InDelta(t, 0.5, lt.Distance, 1e-9)
	assert.Equal(t, 20, lt.DespawnTick)

	summaries := c.Lifetimes().Summaries()
	require.Len(t, summaries, 1)
	assert.Equal(t, "guard", summaries[0].Archetype)
	assert.Equal(t, 2, summaries[0].PatrolTicks)
}

func TestLifetimeTrackerIgnoresUnknown(t *testing.T) {
	lt := NewLifetimeTracker()
	lt.RecordTick("ghost", components.StateIdle, 1)
	lt.RecordTransition("ghost", systems.Transition{Reason: systems.CondSeeTarget})
	lt.RecordNavFallback("ghost")
	lt.MarkDespawned("ghost", 3)

	assert.Nil(t, lt.Get("ghost"))
	assert.Equal(t, 0, lt.Count())
}

func TestLifetimeSummariesSorted(t *testing.T) {
	lt := NewLifetimeTracker()
	for _, name := range []string{"watcher", "guard_east", "guard_west"} {
		lt.Register(name, "sentry", 0)
	}

	var names []string
	for _, s := range lt.Summaries() {
		names = append(names, s.NPC)
	}
	assert.Equal(t, []string{"guard_east", "guard_west", "watcher"}, names)
}
