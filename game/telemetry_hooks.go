package game

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/prowl/telemetry"
)

// recordTelemetry runs the end-of-tick telemetry: path counters, trace rows,
// events and, when a window is complete, stats and bookmarks.
func (s *Simulation) recordTelemetry(simTick int, playerPos r2.Vec) {
	s.collector.RecordPathStats(s.paths.TakeStats())

	if telemetry.ShouldTrace(simTick, s.cfg.Telemetry.TraceEvery) {
		s.recordTrace(simTick, playerPos)
	}

	if events := s.collector.TakeEvents(); len(events) > 0 {
		if err := s.opts.Output.WriteEvents(events); err != nil {
			s.logger.Error("failed to write events", "error", err)
		}
	}

	s.flushTelemetry()
}

// recordTrace writes one trace row per NPC.
func (s *Simulation) recordTrace(simTick int, playerPos r2.Vec) {
	s.trace = s.trace[:0]
	for i := range s.sensing.snapshots {
		snap := &s.sensing.snapshots[i]
		pos := s.posMap.Get(snap.entity)
		facing := s.facingMap.Get(snap.entity)
		bb := snap.brain.ctrl.Blackboard()

		s.trace = append(s.trace, telemetry.TraceRecord{
			Tick:          simTick,
			NPC:           snap.brain.name,
			State:         bb.State.String(),
			X:             pos.X,
			Y:             pos.Y,
			Facing:        facing.Angle,
			Moving:        bb.Moving,
			UsingAgent:    snap.brain.ctrl.UsingAgent(),
			PlayerInSight: bb.PlayerInSight,
			HeardPlayer:   bb.HasHeardPlayer,
			PlayerX:       playerPos.X,
			PlayerY:       playerPos.Y,
		})
	}

	if err := s.opts.Output.WriteTrace(s.trace); err != nil {
		s.logger.Error("failed to write trace", "error", err)
	}
}

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (s *Simulation) flushTelemetry() {
	if !s.collector.ShouldFlush(s.tick) {
		return
	}

	stats := s.collector.Flush(s.tick, len(s.brains), s.PlayerDead(), s.playerDistances())
	perfStats := s.perf.Stats()

	// Call stats callback if provided
	if s.opts.StatsCallback != nil {
		s.opts.StatsCallback(stats)
	}

	if s.opts.LogStats {
		s.logger.Info("stats", "window", stats)
		s.logger.Info("perf", "window", perfStats)
	}

	if err := s.opts.Output.WriteTelemetry(stats); err != nil {
		s.logger.Error("failed to write telemetry", "error", err)
	}
	if err := s.opts.Output.WritePerf(perfStats, stats.WindowEndTick); err != nil {
		s.logger.Error("failed to write perf", "error", err)
	}

	for _, bm := range s.bookmarks.Check(stats) {
		if s.opts.LogStats {
			s.logger.Info("bookmark", "bookmark", bm)
		}
		if err := s.opts.Output.WriteBookmark(bm); err != nil {
			s.logger.Error("failed to write bookmark", "error", err)
		}
		if s.opts.Snapshots {
			s.saveSnapshot(&bm)
		}
	}
}

// playerDistances samples every NPC's distance to the player.
func (s *Simulation) playerDistances() []float64 {
	player := s.PlayerPosition()
	distances := make([]float64, 0, len(s.brains))

	query := s.npcFilter.Query()
	for query.Next() {
		pos, _, _, _, _ := query.Get()
		distances = append(distances, r2.Norm(r2.Sub(pos.Vec(), player)))
	}
	return distances
}

// saveSnapshot creates and saves a snapshot to disk.
func (s *Simulation) saveSnapshot(bookmark *telemetry.Bookmark) {
	path, err := s.opts.Output.WriteSnapshot(s.createSnapshot(bookmark))
	if err != nil {
		s.logger.Error("failed to save snapshot", "error", err)
		return
	}
	if path != "" {
		s.logger.Info("snapshot saved", "path", path, "tick", s.tick)
	}
}

// Snapshot returns the observable state of the run at the current tick.
func (s *Simulation) Snapshot() *telemetry.Snapshot {
	return s.createSnapshot(nil)
}

// createSnapshot builds a snapshot from the current state.
func (s *Simulation) createSnapshot(bookmark *telemetry.Bookmark) *telemetry.Snapshot {
	noise := s.noiseMap.Get(s.player)
	pos := s.posMap.Get(s.player)

	snapshot := &telemetry.Snapshot{
		Version:  telemetry.SnapshotVersion,
		RunID:    s.opts.RunID,
		Scenario: s.scenario.Name,
		Tick:     s.tick,
		Player: telemetry.PlayerState{
			X:      pos.X,
			Y:      pos.Y,
			Mode:   noise.Mode.String(),
			Noise:  noise.Radius,
			Hiding: noise.Hiding,
			Dead:   s.PlayerDead(),
		},
		Bookmark: bookmark,
	}

	// Collect NPC states
	query := s.npcFilter.Query()
	for query.Next() {
		entity := query.Entity()
		pos, vel, facing, _, _ := query.Get()

		brain, ok := s.brains[entity.ID()]
		if !ok {
			continue
		}
		bb := brain.ctrl.Blackboard()

		// Copy so later ticks do not change a saved snapshot
		var lifetime *telemetry.LifetimeStats
		if ls := s.collector.Lifetimes().Get(brain.name); ls != nil {
			c := *ls
			lifetime = &c
		}

		snapshot.NPCs = append(snapshot.NPCs, telemetry.NPCState{
			Name:           brain.name,
			Archetype:      brain.archetype,
			X:              pos.X,
			Y:              pos.Y,
			VelX:           vel.X,
			VelY:           vel.Y,
			Facing:         facing.Angle,
			FacingValid:    facing.Valid,
			Animation:      brain.ctrl.AnimationState(),
			State:          bb.State.String(),
			UsingAgent:     brain.ctrl.UsingAgent(),
			MoveTargetX:    bb.MoveTarget.X,
			MoveTargetY:    bb.MoveTarget.Y,
			PatrolIndex:    bb.PatrolIndex,
			HasHeardPlayer: bb.HasHeardPlayer,
			PlayerInSight:  bb.PlayerInSight,
			TargetIsDead:   bb.TargetIsDead,
			Lifetime:       lifetime,
		})
	}

	slices.SortFunc(snapshot.NPCs, func(a, b telemetry.NPCState) int {
		return strings.Compare(a.Name, b.Name)
	})
	return snapshot
}

// Finish writes the per-NPC summaries and a final snapshot.
func (s *Simulation) Finish() error {
	var errs []error
	if err := s.opts.Output.WriteSummaries(s.collector.Lifetimes().Summaries()); err != nil {
		errs = append(errs, fmt.Errorf("writing summaries: %w", err))
	}
	if _, err := s.opts.Output.WriteSnapshot(s.createSnapshot(nil)); err != nil {
		errs = append(errs, fmt.Errorf("writing final snapshot: %w", err))
	}
	return errors.Join(errs...)
}
