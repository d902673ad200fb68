package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// NavGrid stores a navigation grid for A* pathfinding.
// Cells are marked as blocked (true) or open (false).
type NavGrid struct {
	cells    []bool // true = blocked
	origin   r2.Vec // world position of cell (0, 0)'s corner
	cellSize float64
	width    int // grid width in cells
	height   int // grid height in cells
}

// NewNavGrid rasterizes the static colliders of a world into a nav grid.
// A cell is blocked when a solid collider lies within inflation of its center.
// Triggers and colliders owned by an entity are not navigation obstacles.
func NewNavGrid(bounds r2.Box, cellSize, inflation float64, colliders []Collider) *NavGrid {
	size := r2.Sub(bounds.Max, bounds.Min)
	w := int(math.Ceil(size.X / cellSize))
	h := int(math.Ceil(size.Y / cellSize))

	grid := &NavGrid{
		cells:    make([]bool, w*h),
		origin:   bounds.Min,
		cellSize: cellSize,
		width:    w,
		height:   h,
	}

	for i := range colliders {
		c := &colliders[i]
		if c.IsTrigger || c.Owner != 0 {
			continue
		}

		// Only visit cells inside the inflated bounds of the collider
		b := c.Bounds()
		gx0, gy0 := grid.WorldToGrid(r2.Vec{X: b.Min.X - inflation, Y: b.Min.Y - inflation})
		gx1, gy1 := grid.WorldToGrid(r2.Vec{X: b.Max.X + inflation, Y: b.Max.Y + inflation})
		gx0, gy0 = max(gx0, 0), max(gy0, 0)
		gx1, gy1 = min(gx1, w-1), min(gy1, h-1)

		for gy := gy0; gy <= gy1; gy++ {
			for gx := gx0; gx <= gx1; gx++ {
				if grid.cells[gy*w+gx] {
					continue
				}
				if c.DistanceTo(grid.GridToWorld(gx, gy)) <= inflation {
					grid.cells[gy*w+gx] = true
				}
			}
		}
	}

	return grid
}

// Width returns the grid width in cells.
func (g *NavGrid) Width() int { return g.width }

// Height returns the grid height in cells.
func (g *NavGrid) Height() int { return g.height }

// CellSize returns the cell size in world units.
func (g *NavGrid) CellSize() float64 { return g.cellSize }

// IsBlocked returns true if the given nav grid cell is blocked.
func (g *NavGrid) IsBlocked(gx, gy int) bool {
	if gx < 0 || gx >= g.width || gy < 0 || gy >= g.height {
		return true // Out of bounds is blocked
	}
	return g.cells[gy*g.width+gx]
}

// IsBlockedWorld returns true if the world position is in a blocked cell.
func (g *NavGrid) IsBlockedWorld(p r2.Vec) bool {
	return g.IsBlocked(g.WorldToGrid(p))
}

// WorldToGrid converts world coordinates to nav grid coordinates.
func (g *NavGrid) WorldToGrid(p r2.Vec) (gx, gy int) {
	gx = int(math.Floor((p.X - g.origin.X) / g.cellSize))
	gy = int(math.Floor((p.Y - g.origin.Y) / g.cellSize))
	return
}

// GridToWorld converts nav grid coordinates to world coordinates (cell center).
func (g *NavGrid) GridToWorld(gx, gy int) r2.Vec {
	return r2.Vec{
		X: g.origin.X + (float64(gx)+0.5)*g.cellSize,
		Y: g.origin.Y + (float64(gy)+0.5)*g.cellSize,
	}
}

// SampleNearestNavigablePoint returns pos itself when it is navigable, otherwise
// the center of the closest open cell within radius. ok is false when no open
// cell is that close.
func (g *NavGrid) SampleNearestNavigablePoint(pos r2.Vec, radius float64) (r2.Vec, bool) {
	if !g.IsBlockedWorld(pos) {
		return pos, true
	}
	if radius <= 0 {
		return r2.Vec{}, false
	}

	gx, gy := g.WorldToGrid(pos)
	maxRing := int(math.Ceil(radius/g.cellSize)) + 1

	best := r2.Vec{}
	bestDist := math.Inf(1)
	for ring := 1; ring <= maxRing; ring++ {
		// Any cell in a later ring is at least (ring-1) cells away
		if float64(ring-1)*g.cellSize > bestDist {
			break
		}
		for dy := -ring; dy <= ring; dy++ {
			for dx := -ring; dx <= ring; dx++ {
				// Only check cells at the current ring
				if abs(dx) != ring && abs(dy) != ring {
					continue
				}
				if g.IsBlocked(gx+dx, gy+dy) {
					continue
				}
				c := g.GridToWorld(gx+dx, gy+dy)
				d := r2.Norm(r2.Sub(c, pos))
				if d <= radius && d < bestDist {
					best, bestDist = c, d
				}
			}
		}
	}

	if math.IsInf(bestDist, 1) {
		return r2.Vec{}, false
	}
	return best, true
}

// NavSampler snaps positions onto the navigable area.
type NavSampler interface {
	SampleNearestNavigablePoint(pos r2.Vec, radius float64) (r2.Vec, bool)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
