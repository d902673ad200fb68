package game

import (
	"context"
	"runtime"
	"slices"

	"github.com/mlange-42/ark/ecs"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/prowl/components"
	"github.com/pthm-cable/prowl/systems"
)

// sensingSnapshot captures what one NPC needs to sense, read before the
// compute phase so workers never touch the ECS world.
type sensingSnapshot struct {
	entity ecs.Entity
	pos    r2.Vec
	facing components.Facing
	brain  *npcBrain
}

// sensingState holds the buffers of the sensing phase.
// results[i] is the perception of snapshots[i].
type sensingState struct {
	snapshots []sensingSnapshot
	results   []systems.Perception
	threshold int // NPC count at which sensing runs in parallel, 0 = never
	workers   int
	parallel  bool // last phase ran on the worker pool
}

func newSensingState(threshold, workers int) *sensingState {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &sensingState{
		snapshots: make([]sensingSnapshot, 0, 64),
		results:   make([]systems.Perception, 0, 64),
		threshold: threshold,
		workers:   workers,
	}
}

// sense computes this tick's perception for every NPC.
func (s *Simulation) sense(ctx context.Context, target systems.Target) error {
	st := s.sensing
	st.parallel = false

	// Phase A: snapshot (single-threaded)
	st.snapshots = st.snapshots[:0]
	query := s.npcFilter.Query()
	for query.Next() {
		entity := query.Entity()
		pos, _, facing, _, _ := query.Get()

		brain, ok := s.brains[entity.ID()]
		if !ok {
			continue
		}
		st.snapshots = append(st.snapshots, sensingSnapshot{
			entity: entity,
			pos:    pos.Vec(),
			facing: *facing,
			brain:  brain,
		})
	}

	n := len(st.snapshots)
	st.results = slices.Grow(st.results[:0], n)[:n]
	if n == 0 {
		return nil
	}

	// Phase B: compute, single-threaded for small populations
	if st.threshold <= 0 || n < st.threshold {
		s.senseRange(0, n, target)
		return nil
	}
	st.parallel = true
	return s.senseParallel(ctx, n, target)
}

// senseParallel splits the snapshots into one chunk per worker. Each worker
// writes only its own result slots and its NPCs' detectors; the obstacle
// world is read-only for the whole phase.
func (s *Simulation) senseParallel(ctx context.Context, n int, target systems.Target) error {
	st := s.sensing
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(st.workers)

	chunk := (n + st.workers - 1) / st.workers
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s.senseRange(start, end, target)
			return nil
		})
	}
	return g.Wait()
}

// senseRange senses snapshots [start, end).
func (s *Simulation) senseRange(start, end int, target systems.Target) {
	st := s.sensing
	for i := start; i < end; i++ {
		snap := &st.snapshots[i]
		st.results[i] = systems.Sense(snap.pos, snap.facing, snap.brain.stats, snap.brain.detector, target, s.obstacles)
	}
}
