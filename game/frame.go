package game

import (
	"slices"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/prowl/components"
	"github.com/pthm-cable/prowl/systems"
)

// NPCFrame is the presentation view of one NPC.
type NPCFrame struct {
	Name      string
	Archetype string
	Position  r2.Vec
	Velocity  r2.Vec
	Facing    components.Facing
	State     components.BehaviorState
	Animation string
	Cone      systems.VisionCone
	Outline   []r2.Vec // nil unless outline segments were requested

	MoveTarget    r2.Vec
	Moving        bool
	PlayerInSight bool
	HeardPlayer   bool
}

// Frame is what a presentation layer needs to draw one tick.
type Frame struct {
	Tick        int
	Player      r2.Vec
	PlayerNoise float64
	PlayerDead  bool
	NPCs        []NPCFrame // sorted by name
}

// Frame builds the presentation frame for the current state.
// outlineSegments > 0 also computes each cone's occlusion-clipped outline.
func (s *Simulation) Frame(outlineSegments int) Frame {
	noise := s.noiseMap.Get(s.player)
	f := Frame{
		Tick:        s.tick,
		Player:      s.posMap.Get(s.player).Vec(),
		PlayerNoise: noise.Radius,
		PlayerDead:  s.controlMap.Get(s.player).Dead,
		NPCs:        make([]NPCFrame, 0, len(s.brains)),
	}

	query := s.npcFilter.Query()
	for query.Next() {
		entity := query.Entity()
		pos, vel, facing, _, _ := query.Get()

		brain, ok := s.brains[entity.ID()]
		if !ok {
			continue
		}
		bb := brain.ctrl.Blackboard()

		npc := NPCFrame{
			Name:          brain.name,
			Archetype:     brain.archetype,
			Position:      pos.Vec(),
			Velocity:      vel.Vec(),
			Facing:        *facing,
			State:         bb.State,
			Animation:     brain.ctrl.AnimationState(),
			Cone:          systems.NewVisionCone(pos.Vec(), *facing, brain.stats),
			MoveTarget:    bb.MoveTarget,
			Moving:        bb.Moving,
			PlayerInSight: bb.PlayerInSight,
			HeardPlayer:   bb.HasHeardPlayer,
		}
		if outlineSegments > 0 {
			npc.Outline = systems.ConeOutline(npc.Cone, outlineSegments, s.obstacles)
		}
		f.NPCs = append(f.NPCs, npc)
	}

	slices.SortFunc(f.NPCs, func(a, b NPCFrame) int {
		return strings.Compare(a.Name, b.Name)
	})
	return f
}
