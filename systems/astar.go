package systems

import (
	"container/heap"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// AStarPlanner provides A* pathfinding over a navigation grid.
// It reuses its search buffers and is not safe for concurrent use.
type AStarPlanner struct {
	grid *NavGrid

	// Reusable data structures (cleared between searches)
	openHeap  *nodeHeap
	closedSet map[int]struct{}
	cameFrom  map[int]int
	gScore    map[int]float64
}

// astarNode is a node in the A* search.
type astarNode struct {
	gx, gy int     // Grid coordinates
	f      float64 // f = g + h (priority)
	index  int     // Heap index
}

// nodeHeap implements heap.Interface for A* open set.
type nodeHeap []*astarNode

func (h nodeHeap) Len() int           { return len(h) }
func (h nodeHeap) Less(i, j int) bool { return h[i].f < h[j].f }
func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *nodeHeap) Push(x any) {
	n := x.(*astarNode)
	n.index = len(*h)
	*h = append(*h, n)
}

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	node.index = -1
	*h = old[0 : n-1]
	return node
}

// NewAStarPlanner creates an A* planner over grid.
func NewAStarPlanner(grid *NavGrid) *AStarPlanner {
	return &AStarPlanner{
		grid:      grid,
		openHeap:  &nodeHeap{},
		closedSet: make(map[int]struct{}, 256),
		cameFrom:  make(map[int]int, 256),
		gScore:    make(map[int]float64, 256),
	}
}

// Grid returns the grid the planner searches.
func (a *AStarPlanner) Grid() *NavGrid { return a.grid }

// FindPath computes a path from start to goal using A*.
// The returned waypoints exclude the start and end exactly at goal when goal
// is navigable. Returns nil if no path exists.
func (a *AStarPlanner) FindPath(start, goal r2.Vec) []r2.Vec {
	grid := a.grid

	startGX, startGY := grid.WorldToGrid(start)
	goalGX, goalGY := grid.WorldToGrid(goal)

	if grid.IsBlocked(startGX, startGY) {
		// Agents pushed into inflation still need to get out
		startGX, startGY = a.findNearestOpen(startGX, startGY)
		if startGX < 0 {
			return nil
		}
	}
	exactGoal := true
	if grid.IsBlocked(goalGX, goalGY) {
		goalGX, goalGY = a.findNearestOpen(goalGX, goalGY)
		if goalGX < 0 {
			return nil
		}
		exactGoal = false
	}

	end := goal
	if !exactGoal {
		end = grid.GridToWorld(goalGX, goalGY)
	}

	// Same cell - no search needed
	if startGX == goalGX && startGY == goalGY {
		return []r2.Vec{end}
	}

	// Clear reusable data structures
	*a.openHeap = (*a.openHeap)[:0]
	clear(a.closedSet)
	clear(a.cameFrom)
	clear(a.gScore)

	startID := startGY*grid.width + startGX
	goalID := goalGY*grid.width + goalGX

	a.gScore[startID] = 0
	heap.Push(a.openHeap, &astarNode{gx: startGX, gy: startGY, f: a.heuristic(startGX, startGY, goalGX, goalGY)})

	maxIterations := grid.width * grid.height
	iterations := 0

	for a.openHeap.Len() > 0 && iterations < maxIterations {
		iterations++

		current := heap.Pop(a.openHeap).(*astarNode)
		currentID := current.gy*grid.width + current.gx

		if currentID == goalID {
			path := a.reconstructPath(startID, goalID)
			path[len(path)-1] = end
			return path[1:]
		}

		if _, ok := a.closedSet[currentID]; ok {
			continue
		}
		a.closedSet[currentID] = struct{}{}

		// Check 8-connected neighbors
		neighbors := [8][2]int{
			{current.gx - 1, current.gy},     // W
			{current.gx + 1, current.gy},     // E
			{current.gx, current.gy - 1},     // S
			{current.gx, current.gy + 1},     // N
			{current.gx - 1, current.gy - 1}, // SW
			{current.gx + 1, current.gy - 1}, // SE
			{current.gx - 1, current.gy + 1}, // NW
			{current.gx + 1, current.gy + 1}, // NE
		}

		for i, n := range neighbors {
			ngx, ngy := n[0], n[1]

			if grid.IsBlocked(ngx, ngy) {
				continue
			}

			// Diagonal moves must not cut corners
			if i >= 4 {
				dx := ngx - current.gx
				dy := ngy - current.gy
				if grid.IsBlocked(current.gx+dx, current.gy) || grid.IsBlocked(current.gx, current.gy+dy) {
					continue
				}
			}

			neighborID := ngy*grid.width + ngx
			if _, ok := a.closedSet[neighborID]; ok {
				continue
			}

			moveCost := 1.0
			if i >= 4 {
				moveCost = math.Sqrt2
			}

			tentativeG := a.gScore[currentID] + moveCost
			existingG, exists := a.gScore[neighborID]
			if exists && tentativeG >= existingG {
				continue
			}

			a.cameFrom[neighborID] = currentID
			a.gScore[neighborID] = tentativeG
			// Stale entries are skipped by the closed set check on pop
			heap.Push(a.openHeap, &astarNode{gx: ngx, gy: ngy, f: tentativeG + a.heuristic(ngx, ngy, goalGX, goalGY)})
		}
	}

	return nil
}

// heuristic computes the Euclidean distance heuristic for A*.
func (a *AStarPlanner) heuristic(gx1, gy1, gx2, gy2 int) float64 {
	return math.Hypot(float64(gx2-gx1), float64(gy2-gy1))
}

// reconstructPath builds the simplified cell-center path from cameFrom.
func (a *AStarPlanner) reconstructPath(startID, goalID int) []r2.Vec {
	grid := a.grid

	var pathIDs []int
	current := goalID
	for current != startID {
		pathIDs = append(pathIDs, current)
		var ok bool
		current, ok = a.cameFrom[current]
		if !ok {
			break
		}
	}
	pathIDs = append(pathIDs, startID)

	path := make([]r2.Vec, len(pathIDs))
	for i := range pathIDs {
		id := pathIDs[len(pathIDs)-1-i]
		path[i] = grid.GridToWorld(id%grid.width, id/grid.width)
	}

	return a.simplifyPath(path)
}

// simplifyPath removes waypoints that can be skipped with a clear line.
func (a *AStarPlanner) simplifyPath(path []r2.Vec) []r2.Vec {
	if len(path) <= 2 {
		return path
	}

	simplified := make([]r2.Vec, 0, len(path))
	simplified = append(simplified, path[0])
	anchor := path[0]

	for i := 1; i < len(path)-1; i++ {
		if !a.HasLineOfSight(anchor, path[i+1]) {
			simplified = append(simplified, path[i])
			anchor = path[i]
		}
	}

	simplified = append(simplified, path[len(path)-1])
	return simplified
}

// HasLineOfSight checks if there's a clear line between two points on the nav grid.
func (a *AStarPlanner) HasLineOfSight(from, to r2.Vec) bool {
	delta := r2.Sub(to, from)
	dist := r2.Norm(delta)
	if dist < 0.01 {
		return true
	}

	// Step along the line, checking each nav cell
	stepSize := a.grid.cellSize * 0.5
	steps := int(dist/stepSize) + 1
	dir := r2.Scale(1/dist, delta)

	for i := 0; i <= steps; i++ {
		t := math.Min(float64(i)*stepSize, dist)
		if a.grid.IsBlockedWorld(r2.Add(from, r2.Scale(t, dir))) {
			return false
		}
	}
	return true
}

// findNearestOpen finds the nearest unblocked cell to the given cell.
// Returns (-1, -1) if no open cell found within search radius.
func (a *AStarPlanner) findNearestOpen(gx, gy int) (int, int) {
	for radius := 1; radius < 10; radius++ {
		for dy := -radius; dy <= radius; dy++ {
			for dx := -radius; dx <= radius; dx++ {
				if abs(dx) != radius && abs(dy) != radius {
					continue
				}
				if !a.grid.IsBlocked(gx+dx, gy+dy) {
					return gx + dx, gy + dy
				}
			}
		}
	}
	return -1, -1
}
