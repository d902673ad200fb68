package systems

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/prowl/components"
)

// VisionCone is the sight volume of an NPC for one tick.
// HalfAngle is in degrees; a zero Range or HalfAngle means the NPC is blind.
type VisionCone struct {
	Origin    r2.Vec
	Forward   r2.Vec // unit facing vector
	Range     float64
	HalfAngle float64
}

// NewVisionCone builds the cone for an NPC at pos with the given facing and stats.
func NewVisionCone(pos r2.Vec, facing components.Facing, stats *components.Stats) VisionCone {
	cone := VisionCone{Origin: pos, Forward: facing.Vector()}
	if stats != nil {
		cone.Range = stats.VisionRange
		cone.HalfAngle = stats.VisionHalfAngle
	}
	return cone
}

// Blind reports whether the cone can never see anything.
func (c VisionCone) Blind() bool {
	return c.Range <= 0 || c.HalfAngle <= 0
}

// InCone reports whether target lies inside the cone, ignoring occlusion.
// Both the range and the angle boundaries count as inside.
func (c VisionCone) InCone(target r2.Vec) bool {
	if c.Blind() {
		return false
	}
	to := r2.Sub(target, c.Origin)
	if r2.Norm2(to) > c.Range*c.Range {
		return false
	}
	if r2.Norm2(to) < geomEpsilon {
		return true
	}
	return angleBetweenDeg(c.Forward, to) <= c.HalfAngle
}

// IsVisible reports whether target is inside the cone with a clear line of sight.
// Only colliders that can be hidden behind block sight; triggers and colliders
// owned by the target itself are ignored.
func IsVisible(cone VisionCone, target r2.Vec, targetID uint32, world RayCaster) bool {
	if !cone.InCone(target) {
		return false
	}
	if world == nil {
		return true
	}

	to := r2.Sub(target, cone.Origin)
	dist := r2.Norm(to)
	if dist < geomEpsilon {
		return true
	}

	for _, hit := range world.RaycastAll(cone.Origin, to, dist) {
		if blocksSight(hit, dist, targetID) {
			return false
		}
	}
	return true
}

// blocksSight reports whether a hit in front of the target occludes it.
func blocksSight(hit RayHit, targetDist float64, targetID uint32) bool {
	c := hit.Collider
	if c == nil || hit.Distance >= targetDist {
		return false
	}
	if c.IsTrigger || (targetID != 0 && c.Owner == targetID) {
		return false
	}
	return c.CanHideBehind
}

// ConeOutline returns the cone as a fan: the origin followed by segments+1 arc
// points, each clipped at the first occluder along its ray. Blind cones return nil.
func ConeOutline(cone VisionCone, segments int, world RayCaster) []r2.Vec {
	if cone.Blind() {
		return nil
	}
	if segments < 1 {
		segments = 1
	}

	points := make([]r2.Vec, 0, segments+2)
	points = append(points, cone.Origin)

	step := 2 * cone.HalfAngle / float64(segments)
	for i := 0; i <= segments; i++ {
		dir := rotateDeg(cone.Forward, -cone.HalfAngle+step*float64(i))
		reach := cone.Range
		if world != nil {
			for _, hit := range world.RaycastAll(cone.Origin, dir, cone.Range) {
				if blocksSight(hit, cone.Range+1, 0) {
					reach = hit.Distance
					break
				}
			}
		}
		points = append(points, r2.Add(cone.Origin, r2.Scale(reach, dir)))
	}
	return points
}
