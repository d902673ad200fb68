package systems

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

func TestNextTargetEmptyRoute(t *testing.T) {
	var route PatrolRoute
	visited := route.NewVisited()
	if _, _, ok := route.NextTarget(r2.Vec{}, &visited); ok {
		t.Error("empty route should report no target")
	}

	var nilRoute *PatrolRoute
	if _, _, ok := nilRoute.NextTarget(r2.Vec{}, &visited); ok {
		t.Error("nil route should report no target")
	}
}

func TestNextTargetNearestFirst(t *testing.T) {
	route := &PatrolRoute{Points: []r2.Vec{{X: 5, Y: 5}, {X: 1, Y: 1}, {X: 3, Y: 3}}}
	visited := route.NewVisited()

	pos := r2.Vec{}
	var order []int
	for range route.Points {
		idx, target, ok := route.NextTarget(pos, &visited)
		if !ok {
			t.Fatal("expected a target")
		}
		order = append(order, idx)
		pos = target
	}

	want := []int{1, 2, 0}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("visit order = %v, want %v", order, want)
		}
	}
}

func TestNextTargetTieLowestIndex(t *testing.T) {
	route := &PatrolRoute{Points: []r2.Vec{{X: 1}, {X: -1}, {Y: 1}}}
	visited := route.NewVisited()
	idx, _, _ := route.NextTarget(r2.Vec{}, &visited)
	if idx != 0 {
		t.Errorf("tie should pick index 0, got %d", idx)
	}
	idx, _, _ = route.NextTarget(r2.Vec{}, &visited)
	if idx != 1 {
		t.Errorf("second tie should pick index 1, got %d", idx)
	}
}

func TestNextTargetFullCycle(t *testing.T) {
	starts := []r2.Vec{{}, {X: 10, Y: -3}, {X: -7, Y: 4}}
	for n := 1; n <= 6; n++ {
		points := make([]r2.Vec, n)
		for i := range points {
			points[i] = r2.Vec{X: float64((i * 7) % 5), Y: float64((i * 3) % 4)}
		}
		route := &PatrolRoute{Points: points}

		for _, start := range starts {
			visited := route.NewVisited()
			seen := make(map[int]int)
			pos := start
			for i := 0; i < n; i++ {
				idx, target, ok := route.NextTarget(pos, &visited)
				if !ok {
					t.Fatalf("n=%d: no target", n)
				}
				seen[idx]++
				pos = target
				if got := VisitedCount(visited); got != i+1 {
					t.Fatalf("n=%d: visited count %d after %d calls", n, got, i+1)
				}
			}
			for i := 0; i < n; i++ {
				if seen[i] != 1 {
					t.Errorf("n=%d start=%v: index %d visited %d times in one cycle", n, start, i, seen[i])
				}
			}

			// The next call starts a fresh cycle
			if _, _, ok := route.NextTarget(pos, &visited); !ok {
				t.Fatalf("n=%d: no target after reset", n)
			}
			if got := VisitedCount(visited); got != 1 {
				t.Errorf("n=%d: visited count after reset = %d, want 1", n, got)
			}
		}
	}
}

func TestNextTargetResizesBookkeeping(t *testing.T) {
	route := &PatrolRoute{Points: []r2.Vec{{X: 1}, {X: 2}}}
	visited := []bool{true, true, true, true}
	idx, _, ok := route.NextTarget(r2.Vec{}, &visited)
	if !ok || idx != 0 {
		t.Fatalf("NextTarget = %d, %v; want 0, true", idx, ok)
	}
	if len(visited) != 2 || !visited[0] || visited[1] {
		t.Errorf("visited = %v, want [true false]", visited)
	}
}
