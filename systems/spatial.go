// Package systems provides the perception, movement and behavior systems for NPCs.
package systems

import (
	"slices"

	"gonum.org/v1/gonum/spatial/r2"
)

// SpatialGrid is a uniform-grid broadphase over collider bounding boxes.
// Each cell lists the indices of colliders whose bounds overlap it.
type SpatialGrid struct {
	origin   r2.Vec
	cellSize float64
	cols     int
	rows     int
	cells    [][]int
}

// NewSpatialGrid creates a spatial grid covering bounds.
func NewSpatialGrid(bounds r2.Box, cellSize float64) *SpatialGrid {
	size := r2.Sub(bounds.Max, bounds.Min)
	cols := int(size.X/cellSize) + 1
	rows := int(size.Y/cellSize) + 1

	cells := make([][]int, cols*rows)
	for i := range cells {
		cells[i] = make([]int, 0, 4)
	}

	return &SpatialGrid{
		origin:   bounds.Min,
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		cells:    cells,
	}
}

// Insert registers item in every cell its bounds overlap.
func (g *SpatialGrid) Insert(item int, bounds r2.Box) {
	c0, r0, c1, r1 := g.cellRange(bounds)
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			idx := r*g.cols + c
			g.cells[idx] = append(g.cells[idx], item)
		}
	}
}

// Remove unregisters item from the cells its old bounds overlapped.
func (g *SpatialGrid) Remove(item int, bounds r2.Box) {
	c0, r0, c1, r1 := g.cellRange(bounds)
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			idx := r*g.cols + c
			if i := slices.Index(g.cells[idx], item); i >= 0 {
				g.cells[idx] = slices.Delete(g.cells[idx], i, i+1)
			}
		}
	}
}

// QueryBoxInto appends every item registered in cells overlapping bounds to dst.
// The result is sorted and free of duplicates. Safe for concurrent readers.
func (g *SpatialGrid) QueryBoxInto(dst []int, bounds r2.Box) []int {
	start := len(dst)
	c0, r0, c1, r1 := g.cellRange(bounds)
	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			dst = append(dst, g.cells[r*g.cols+c]...)
		}
	}
	found := dst[start:]
	slices.Sort(found)
	found = slices.Compact(found)
	return dst[:start+len(found)]
}

// cellRange returns the clamped inclusive cell range overlapped by bounds.
func (g *SpatialGrid) cellRange(bounds r2.Box) (c0, r0, c1, r1 int) {
	c0, r0 = g.cellCoords(bounds.Min)
	c1, r1 = g.cellCoords(bounds.Max)
	return
}

// cellCoords returns the clamped cell for a world position.
func (g *SpatialGrid) cellCoords(p r2.Vec) (col, row int) {
	col = int((p.X - g.origin.X) / g.cellSize)
	row = int((p.Y - g.origin.Y) / g.cellSize)

	if col < 0 {
		col = 0
	} else if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	} else if row >= g.rows {
		row = g.rows - 1
	}
	return
}
