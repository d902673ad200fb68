package systems

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/prowl/components"
)

// Target is the player as the sensing phase sees it.
type Target struct {
	ID          uint32 // entity ID; colliders owned by it never occlude it
	Pos         r2.Vec
	NoiseRadius float64
	Hiding      bool
	Dead        bool
}

// Sense computes one NPC's perception of the target: sight through the vision
// cone and hearing through the NPC's own detector. It only mutates detector,
// so NPCs with distinct detectors may be sensed concurrently.
func Sense(pos r2.Vec, facing components.Facing, stats *components.Stats, detector *NoiseDetector, target Target, world RayCaster) Perception {
	p := Perception{TargetPos: target.Pos, TargetDead: target.Dead}
	if stats == nil || detector == nil {
		return p
	}

	if !target.Hiding && !target.Dead {
		cone := NewVisionCone(pos, facing, stats)
		p.PlayerInSight = IsVisible(cone, target.Pos, target.ID, world)
	}

	radius := target.NoiseRadius
	if target.Dead {
		radius = 0
	}
	p.Noise = detector.Update(pos, target.Pos, radius, stats.SoundThreshold)
	return p
}
