// Package telemetry provides behavior statistics, event logs, traces and run output.
package telemetry

import (
	"github.com/pthm-cable/prowl/components"
	"github.com/pthm-cable/prowl/systems"
)

// EventType identifies telemetry events.
type EventType uint8

const (
	EventTransition EventType = iota
	EventNavFallback
	EventSpawn
	EventDespawn
)

// String returns the CSV name for an EventType.
func (t EventType) String() string {
	switch t {
	case EventTransition:
		return "transition"
	case EventNavFallback:
		return "nav_fallback"
	case EventSpawn:
		return "spawn"
	default:
		return "despawn"
	}
}

// Event represents a single telemetry event.
type Event struct {
	Type EventType
	Tick int
	NPC  string

	// Transition events only
	From   components.BehaviorState
	To     components.BehaviorState
	Reason systems.Condition

	Detail string // error text or archetype
}

// NewTransitionEvent creates a state transition event.
func NewTransitionEvent(tick int, npc string, tr systems.Transition) Event {
	return Event{
		Type:   EventTransition,
		Tick:   tick,
		NPC:    npc,
		From:   tr.From,
		To:     tr.To,
		Reason: tr.Reason,
	}
}

// NewNavFallbackEvent creates an event for an NPC dropping to direct movement.
func NewNavFallbackEvent(tick int, npc string, err error) Event {
	e := Event{Type: EventNavFallback, Tick: tick, NPC: npc}
	if err != nil {
		e.Detail = err.Error()
	}
	return e
}

// NewSpawnEvent creates a spawn event.
func NewSpawnEvent(tick int, npc, archetype string) Event {
	return Event{Type: EventSpawn, Tick: tick, NPC: npc, Detail: archetype}
}

// NewDespawnEvent creates a despawn event.
func NewDespawnEvent(tick int, npc string) Event {
	return Event{Type: EventDespawn, Tick: tick, NPC: npc}
}

// EventRecord is the flat CSV form of an Event.
type EventRecord struct {
	Tick   int    `csv:"tick"`
	Type   string `csv:"type"`
	NPC    string `csv:"npc"`
	From   string `csv:"from"`
	To     string `csv:"to"`
	Reason string `csv:"reason"`
	Detail string `csv:"detail"`
}

// Record converts the event to its CSV form.
func (e Event) Record() EventRecord {
	r := EventRecord{
		Tick:   e.Tick,
		Type:   e.Type.String(),
		NPC:    e.NPC,
		Detail: e.Detail,
	}
	if e.Type == EventTransition {
		r.From = e.From.String()
		r.To = e.To.String()
		r.Reason = e.Reason.String()
	}
	return r
}
