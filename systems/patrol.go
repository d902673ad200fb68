package systems

import "gonum.org/v1/gonum/spatial/r2"

// PatrolRoute is an ordered list of patrol points shared by NPCs.
// Visit bookkeeping lives with each NPC, so one route can serve many.
type PatrolRoute struct {
	Name   string
	Points []r2.Vec
}

// Len returns the number of points on the route.
func (r *PatrolRoute) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Points)
}

// NewVisited returns fresh visit bookkeeping for the route.
func (r *PatrolRoute) NewVisited() []bool {
	return make([]bool, r.Len())
}

// NextTarget picks the nearest unvisited point to current, marks it visited
// and returns its index. Ties go to the lowest index. When every point has
// been visited the bookkeeping is reset first, so a full cycle visits each
// point exactly once. ok is false only for an empty route.
//
// A visited slice of the wrong length is replaced with fresh bookkeeping.
func (r *PatrolRoute) NextTarget(current r2.Vec, visited *[]bool) (idx int, target r2.Vec, ok bool) {
	n := r.Len()
	if n == 0 || visited == nil {
		return -1, r2.Vec{}, false
	}
	if len(*visited) != n {
		*visited = r.NewVisited()
	}
	seen := *visited

	idx = r.nearestUnvisited(current, seen)
	if idx < 0 {
		clear(seen)
		idx = r.nearestUnvisited(current, seen)
	}

	seen[idx] = true
	return idx, r.Points[idx], true
}

// nearestUnvisited returns the index of the closest unvisited point, or -1.
func (r *PatrolRoute) nearestUnvisited(current r2.Vec, visited []bool) int {
	best := -1
	bestDist := 0.0
	for i, p := range r.Points {
		if visited[i] {
			continue
		}
		d := r2.Norm2(r2.Sub(p, current))
		// Strict less keeps the lowest index on ties
		if best < 0 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// VisitedCount returns how many points of the current cycle have been visited.
func VisitedCount(visited []bool) int {
	n := 0
	for _, v := range visited {
		if v {
			n++
		}
	}
	return n
}
