package systems

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"
)

// ShapeKind selects which geometry fields of a Collider are used.
type ShapeKind uint8

const (
	ShapeBox ShapeKind = iota
	ShapeSegment
	ShapeCircle
)

// Collider is a static or owned shape in the world.
type Collider struct {
	ID   uint32 // assigned by ObstacleWorld.Add, never 0
	Name string
	Kind ShapeKind

	Box    r2.Box // ShapeBox
	A, B   r2.Vec // ShapeSegment
	Center r2.Vec // ShapeCircle
	Radius float64

	CanHideBehind bool   // blocks line of sight
	IsTrigger     bool   // ignored by sight and navigation
	Owner         uint32 // entity ID of the body this collider belongs to, 0 for scene geometry
}

// Bounds returns the axis-aligned bounding box of the shape.
func (c *Collider) Bounds() r2.Box {
	switch c.Kind {
	case ShapeSegment:
		return r2.Box{
			Min: r2.Vec{X: math.Min(c.A.X, c.B.X), Y: math.Min(c.A.Y, c.B.Y)},
			Max: r2.Vec{X: math.Max(c.A.X, c.B.X), Y: math.Max(c.A.Y, c.B.Y)},
		}
	case ShapeCircle:
		r := r2.Vec{X: c.Radius, Y: c.Radius}
		return r2.Box{Min: r2.Sub(c.Center, r), Max: r2.Add(c.Center, r)}
	default:
		return c.Box
	}
}

// intersectRay returns the distance along a unit ray to the shape.
func (c *Collider) intersectRay(origin, dir r2.Vec) (float64, bool) {
	switch c.Kind {
	case ShapeSegment:
		return raySegment(origin, dir, c.A, c.B)
	case ShapeCircle:
		return rayCircle(origin, dir, c.Center, c.Radius)
	default:
		return rayBox(origin, dir, c.Box)
	}
}

// DistanceTo returns the distance from p to the shape, 0 when inside.
func (c *Collider) DistanceTo(p r2.Vec) float64 {
	switch c.Kind {
	case ShapeSegment:
		return pointSegmentDistance(p, c.A, c.B)
	case ShapeCircle:
		return math.Max(0, r2.Norm(r2.Sub(p, c.Center))-c.Radius)
	default:
		return pointBoxDistance(p, c.Box)
	}
}

// RayHit is one collider crossed by a ray.
type RayHit struct {
	Point    r2.Vec
	Distance float64
	Collider *Collider
}

// RayCaster answers "all hits along a ray" queries.
type RayCaster interface {
	RaycastAll(origin, dir r2.Vec, maxDist float64) []RayHit
}

// ObstacleWorld holds the colliders of a scene behind a grid broadphase.
// Adding and moving colliders must not overlap with RaycastAll calls;
// concurrent RaycastAll calls are safe.
type ObstacleWorld struct {
	bounds    r2.Box
	colliders []Collider
	grid      *SpatialGrid
}

// NewObstacleWorld creates an empty world covering bounds.
func NewObstacleWorld(bounds r2.Box, cellSize float64) *ObstacleWorld {
	return &ObstacleWorld{
		bounds: bounds,
		grid:   NewSpatialGrid(bounds, cellSize),
	}
}

// Bounds returns the extent of the world.
func (w *ObstacleWorld) Bounds() r2.Box { return w.bounds }

// Add registers a collider and returns its ID.
func (w *ObstacleWorld) Add(c Collider) uint32 {
	idx := len(w.colliders)
	c.ID = uint32(idx + 1)
	w.colliders = append(w.colliders, c)
	w.grid.Insert(idx, c.Bounds())
	return c.ID
}

// Collider returns the collider with the given ID, or nil.
func (w *ObstacleWorld) Collider(id uint32) *Collider {
	if id == 0 || int(id) > len(w.colliders) {
		return nil
	}
	return &w.colliders[id-1]
}

// Colliders returns all colliders. The slice must not be modified.
func (w *ObstacleWorld) Colliders() []Collider {
	return w.colliders
}

// MoveCircle recenters a circle collider and updates the broadphase.
func (w *ObstacleWorld) MoveCircle(id uint32, center r2.Vec) {
	c := w.Collider(id)
	if c == nil || c.Kind != ShapeCircle {
		return
	}
	idx := int(id - 1)
	w.grid.Remove(idx, c.Bounds())
	c.Center = center
	w.grid.Insert(idx, c.Bounds())
}

// RaycastAll returns every collider hit within maxDist, ordered by distance.
func (w *ObstacleWorld) RaycastAll(origin, dir r2.Vec, maxDist float64) []RayHit {
	n := r2.Norm(dir)
	if n < geomEpsilon || maxDist <= 0 {
		return nil
	}
	dir = r2.Scale(1/n, dir)
	end := r2.Add(origin, r2.Scale(maxDist, dir))

	sweep := r2.Box{
		Min: r2.Vec{X: math.Min(origin.X, end.X), Y: math.Min(origin.Y, end.Y)},
		Max: r2.Vec{X: math.Max(origin.X, end.X), Y: math.Max(origin.Y, end.Y)},
	}

	var scratch [32]int
	candidates := w.grid.QueryBoxInto(scratch[:0], sweep)

	var hits []RayHit
	for _, idx := range candidates {
		c := &w.colliders[idx]
		t, ok := c.intersectRay(origin, dir)
		if !ok || t > maxDist {
			continue
		}
		hits = append(hits, RayHit{
			Point:    r2.Add(origin, r2.Scale(t, dir)),
			Distance: t,
			Collider: c,
		})
	}

	slices.SortFunc(hits, func(a, b RayHit) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return int(a.Collider.ID) - int(b.Collider.ID)
		}
	})
	return hits
}
