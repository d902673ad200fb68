package telemetry

import (
	"slices"
	"strings"

	"github.com/pthm-cable/prowl/components"
	"github.com/pthm-cable/prowl/systems"
)

const stateCount = int(components.StateEngage) + 1

// LifetimeStats tracks per-NPC statistics over its lifetime.
type LifetimeStats struct {
	Archetype   string
	SpawnTick   int
	DespawnTick int // -1 while alive

	StateTicks   [stateCount]int
	Transitions  int
	Sightings    int
	Heard        int
	Completed    int // investigations that ran to the end
	NavFallbacks int
	Distance     float64
}

// LifetimeTracker manages per-NPC lifetime statistics.
type LifetimeTracker struct {
	stats map[string]*LifetimeStats
}

// NewLifetimeTracker creates a new lifetime tracker.
func NewLifetimeTracker() *LifetimeTracker {
	return &LifetimeTracker{
		stats: make(map[string]*LifetimeStats),
	}
}

// Register creates lifetime stats for a spawned NPC.
func (lt *LifetimeTracker) Register(npc, archetype string, tick int) {
	lt.stats[npc] = &LifetimeStats{
		Archetype:   archetype,
		SpawnTick:   tick,
		DespawnTick: -1,
	}
}

// MarkDespawned records when an NPC left the simulation. Its stats are kept.
func (lt *LifetimeTracker) MarkDespawned(npc string, tick int) {
	if s := lt.stats[npc]; s != nil {
		s.DespawnTick = tick
	}
}

// Get returns the stats for an NPC, or nil if not tracked.
func (lt *LifetimeTracker) Get(npc string) *LifetimeStats {
	return lt.stats[npc]
}

// RecordTick adds one tick in state and the distance moved during it.
func (lt *LifetimeTracker) RecordTick(npc string, state components.BehaviorState, moved float64) {
	s := lt.stats[npc]
	if s == nil || int(state) >= stateCount {
		return
	}
	s.StateTicks[state]++
	s.Distance += moved
}

// RecordTransition counts a state change.
func (lt *LifetimeTracker) RecordTransition(npc string, tr systems.Transition) {
	s := lt.stats[npc]
	if s == nil {
		return
	}
	s.Transitions++
	switch tr.Reason {
	case systems.CondSeeTarget:
		s.Sightings++
	case systems.CondHearNoise:
		s.Heard++
	case systems.CondInvestigationComplete:
		s.Completed++
	}
}

// RecordNavFallback counts a navigation fallback.
func (lt *LifetimeTracker) RecordNavFallback(npc string) {
	if s := lt.stats[npc]; s != nil {
		s.NavFallbacks++
	}
}

// NPCSummary is the flat CSV form of one NPC's lifetime stats.
type NPCSummary struct {
	NPC             string  `csv:"npc"`
	Archetype       string  `csv:"archetype"`
	SpawnTick       int     `csv:"spawn_tick"`
	DespawnTick     int     `csv:"despawn_tick"`
	Transitions     int     `csv:"transitions"`
	Sightings       int     `csv:"sightings"`
	Heard           int     `csv:"heard"`
	Completed       int     `csv:"investigations_completed"`
	NavFallbacks    int     `csv:"nav_fallbacks"`
	Distance        float64 `csv:"distance"`
	IdleTicks       int     `csv:"idle_ticks"`
	PatrolTicks     int     `csv:"patrol_ticks"`
	InvestigateIdle int     `csv:"investigate_idle_ticks"`
	InvestigateMove int     `csv:"investigate_move_ticks"`
	EngageTicks     int     `csv:"engage_ticks"`
}

// Summaries returns one summary per tracked NPC, ordered by name.
func (lt *LifetimeTracker) Summaries() []NPCSummary {
	out := make([]NPCSummary, 0, len(lt.stats))
	for name, s := range lt.stats {
		out = append(out, NPCSummary{
			NPC:             name,
			Archetype:       s.Archetype,
			SpawnTick:       s.SpawnTick,
			DespawnTick:     s.DespawnTick,
			Transitions:     s.Transitions,
			Sightings:       s.Sightings,
			Heard:           s.Heard,
			Completed:       s.Completed,
			NavFallbacks:    s.NavFallbacks,
			Distance:        s.Distance,
			IdleTicks:       s.StateTicks[components.StateIdle],
			PatrolTicks:     s.StateTicks[components.StatePatrolMove],
			InvestigateIdle: s.StateTicks[components.StateInvestigateIdle],
			InvestigateMove: s.StateTicks[components.StateInvestigateMove],
			EngageTicks:     s.StateTicks[components.StateEngage],
		})
	}
	slices.SortFunc(out, func(a, b NPCSummary) int { return strings.Compare(a.NPC, b.NPC) })
	return out
}

// Count returns the number of tracked NPCs.
func (lt *LifetimeTracker) Count() int {
	return len(lt.stats)
}
