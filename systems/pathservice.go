package systems

import (
	"gonum.org/v1/gonum/spatial/r2"
)

// PathStatus is the state of an asynchronous path request.
type PathStatus uint8

const (
	PathPending PathStatus = iota
	PathReady
	PathFailed
	PathCancelled
)

// String returns the display name for a PathStatus.
func (s PathStatus) String() string {
	switch s {
	case PathPending:
		return "pending"
	case PathReady:
		return "ready"
	case PathFailed:
		return "failed"
	default:
		return "cancelled"
	}
}

// PathRequest is a ticket for one path computation. Callers poll Status each
// tick; the planner resolves it on a later tick.
type PathRequest struct {
	From, To  r2.Vec
	status    PathStatus
	waypoints []r2.Vec
	readyTick int
}

// NewPathRequest creates a pending request.
func NewPathRequest(from, to r2.Vec) *PathRequest {
	return &PathRequest{From: from, To: to}
}

// Status returns the current state of the request.
func (r *PathRequest) Status() PathStatus { return r.status }

// Waypoints returns the path once the request is ready.
func (r *PathRequest) Waypoints() []r2.Vec { return r.waypoints }

// Cancel abandons the request. Resolving a cancelled request has no effect.
func (r *PathRequest) Cancel() {
	if r.status == PathPending {
		r.status = PathCancelled
	}
}

// Resolve completes a pending request with waypoints, or fails it when the
// path is empty.
func (r *PathRequest) Resolve(waypoints []r2.Vec) {
	if r.status != PathPending {
		return
	}
	if len(waypoints) == 0 {
		r.status = PathFailed
		return
	}
	r.waypoints = waypoints
	r.status = PathReady
}

// PathPlanner accepts asynchronous path requests.
type PathPlanner interface {
	ComputePathAsync(from, to r2.Vec) *PathRequest
}

// PathServiceParams tunes PathService.
type PathServiceParams struct {
	LatencyTicks     int // ticks a request stays pending
	MaxSolvesPerTick int // 0 = unlimited
}

// PathStats counts path service activity since the last reset.
type PathStats struct {
	Requests  int
	Solved    int
	Failed    int
	Cancelled int
}

// PathService resolves path requests on later ticks using A*.
// It is driven from the single-threaded part of the tick.
type PathService struct {
	planner *AStarPlanner
	params  PathServiceParams
	queue   []*PathRequest
	tick    int
	stats   PathStats
}

// NewPathService creates a path service over grid.
func NewPathService(grid *NavGrid, params PathServiceParams) *PathService {
	return &PathService{
		planner: NewAStarPlanner(grid),
		params:  params,
	}
}

// Grid returns the nav grid the service plans on.
func (s *PathService) Grid() *NavGrid { return s.planner.Grid() }

// ComputePathAsync queues a request that resolves no earlier than
// LatencyTicks steps from now.
func (s *PathService) ComputePathAsync(from, to r2.Vec) *PathRequest {
	req := NewPathRequest(from, to)
	req.readyTick = s.tick + s.params.LatencyTicks
	s.queue = append(s.queue, req)
	s.stats.Requests++
	return req
}

// SampleNearestNavigablePoint forwards to the nav grid.
func (s *PathService) SampleNearestNavigablePoint(pos r2.Vec, radius float64) (r2.Vec, bool) {
	return s.planner.Grid().SampleNearestNavigablePoint(pos, radius)
}

// Step advances the service one tick and resolves due requests in FIFO order.
func (s *PathService) Step() {
	s.tick++

	solved := 0
	kept := s.queue[:0]
	for _, req := range s.queue {
		if req.status == PathCancelled {
			s.stats.Cancelled++
			continue
		}
		limited := s.params.MaxSolvesPerTick > 0 && solved >= s.params.MaxSolvesPerTick
		if req.readyTick > s.tick || limited {
			kept = append(kept, req)
			continue
		}

		req.Resolve(s.planner.FindPath(req.From, req.To))
		solved++
		if req.status == PathFailed {
			s.stats.Failed++
		} else {
			s.stats.Solved++
		}
	}
	clear(s.queue[len(kept):])
	s.queue = kept
}

// Pending returns the number of unresolved requests.
func (s *PathService) Pending() int { return len(s.queue) }

// TakeStats returns the counters and resets them.
func (s *PathService) TakeStats() PathStats {
	st := s.stats
	s.stats = PathStats{}
	return st
}
