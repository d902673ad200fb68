// Package game wires the perception, movement and behavior systems into a
// tick-driven simulation over an ECS world.
package game

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/prowl/components"
	"github.com/pthm-cable/prowl/config"
	"github.com/pthm-cable/prowl/systems"
	"github.com/pthm-cable/prowl/telemetry"
)

// Simulation constants
const (
	BroadphaseCellSize = 2.0 // obstacle broadphase cell size in world units
	BookmarkHistory    = 10  // stats windows kept for bookmark detection
)

// Options configures a Simulation beyond its config and scenario.
type Options struct {
	Logger        *slog.Logger             // nil = slog.Default()
	Output        *telemetry.OutputManager // nil = no files
	RunID         string
	LogStats      bool // log window stats, perf and bookmarks
	Snapshots     bool // save a snapshot on every bookmark
	StatsCallback func(telemetry.WindowStats)
}

// npcBrain holds the behavior collaborators of one NPC.
type npcBrain struct {
	name      string
	archetype string
	stats     *components.Stats
	detector  *systems.NoiseDetector
	agent     *systems.AgentMover // nil for direct archetypes
	ctrl      *systems.Controller
}

// Simulation holds the complete simulation state.
type Simulation struct {
	cfg      *config.Config
	scenario *config.Scenario
	opts     Options
	logger   *slog.Logger

	world *ecs.World

	// Entity mappers
	npcMapper *ecs.Map5[
		components.Position,
		components.Velocity,
		components.Facing,
		components.Identity,
		components.NPC,
	]
	npcFilter *ecs.Filter5[
		components.Position,
		components.Velocity,
		components.Facing,
		components.Identity,
		components.NPC,
	]
	playerMapper *ecs.Map6[
		components.Position,
		components.Velocity,
		components.Facing,
		components.NoiseEmitter,
		components.PlayerControl,
		components.Player,
	]

	// Individual component mappers for lookups
	posMap     *ecs.Map1[components.Position]
	velMap     *ecs.Map1[components.Velocity]
	facingMap  *ecs.Map1[components.Facing]
	noiseMap   *ecs.Map1[components.NoiseEmitter]
	controlMap *ecs.Map1[components.PlayerControl]

	// Behavior storage (per entity by ID)
	brains map[uint32]*npcBrain
	byName map[string]ecs.Entity
	stats  map[string]*components.Stats
	routes map[string]*systems.PatrolRoute

	player         ecs.Entity
	playerCollider uint32
	script         *playerScript

	obstacles *systems.ObstacleWorld
	navGrid   *systems.NavGrid
	paths     *systems.PathService

	sensing *sensingState

	// Telemetry
	collector *telemetry.Collector
	bookmarks *telemetry.BookmarkDetector
	perf      *telemetry.PerfCollector
	trace     []telemetry.TraceRecord

	tick   int
	halted error // cancellation that left a tick half applied
}

// NewSimulation builds the scene, the player and every NPC of the scenario.
// An invalid scenario is an error; NPCs that cannot be spawned are logged and skipped.
func NewSimulation(cfg *config.Config, scenario *config.Scenario, opts Options) (*Simulation, error) {
	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	world := ecs.NewWorld()

	s := &Simulation{
		cfg:      cfg,
		scenario: scenario,
		opts:     opts,
		logger:   logger,
		world:    world,
		npcMapper: ecs.NewMap5[
			components.Position,
			components.Velocity,
			components.Facing,
			components.Identity,
			components.NPC,
		](world),
		npcFilter: ecs.NewFilter5[
			components.Position,
			components.Velocity,
			components.Facing,
			components.Identity,
			components.NPC,
		](world),
		playerMapper: ecs.NewMap6[
			components.Position,
			components.Velocity,
			components.Facing,
			components.NoiseEmitter,
			components.PlayerControl,
			components.Player,
		](world),
		posMap:     ecs.NewMap1[components.Position](world),
		velMap:     ecs.NewMap1[components.Velocity](world),
		facingMap:  ecs.NewMap1[components.Facing](world),
		noiseMap:   ecs.NewMap1[components.NoiseEmitter](world),
		controlMap: ecs.NewMap1[components.PlayerControl](world),
		brains:     make(map[uint32]*npcBrain),
		byName:     make(map[string]ecs.Entity),
		stats:      make(map[string]*components.Stats, len(cfg.Archetypes)),
		routes:     make(map[string]*systems.PatrolRoute, len(scenario.Routes)),
		script:     newPlayerScript(scenario.Player.Script),
		sensing:    newSensingState(cfg.Simulation.ParallelThreshold, cfg.Simulation.Workers),
		collector:  telemetry.NewCollector(cfg.Telemetry.StatsWindow, cfg.Simulation.DT),
		bookmarks:  telemetry.NewBookmarkDetector(BookmarkHistory),
		perf:       telemetry.NewPerfCollector(cfg.Telemetry.PerfCollectorWindow),
	}

	// Stats records are shared by every NPC of an archetype
	for i := range cfg.Archetypes {
		arch := &cfg.Archetypes[i]
		s.stats[arch.Name] = components.StatsFromArchetype(arch)
	}
	for name, points := range scenario.Routes {
		route := &systems.PatrolRoute{Name: name, Points: make([]r2.Vec, len(points))}
		for i, p := range points {
			route.Points[i] = r2.Vec{X: p.X, Y: p.Y}
		}
		s.routes[name] = route
	}

	s.buildScene()
	s.spawnPlayer()

	for _, spec := range scenario.NPCs {
		if _, err := s.SpawnNPC(spec); err != nil {
			logger.Warn("spawn skipped", "npc", spec.Name, "error", err)
		}
	}

	logger.Info("simulation ready",
		"scenario", scenario.Name,
		"npcs", len(s.brains),
		"obstacles", len(scenario.Obstacles),
		"nav_cells", s.navGrid.Width()*s.navGrid.Height(),
	)
	return s, nil
}

// buildScene adds the static colliders and plans the nav grid over them.
func (s *Simulation) buildScene() {
	nav := s.cfg.Navigation
	bounds := r2.Box{Max: r2.Vec{X: s.scenario.World.Width, Y: s.scenario.World.Height}}

	s.obstacles = systems.NewObstacleWorld(bounds, BroadphaseCellSize)
	for _, spec := range s.scenario.Obstacles {
		s.obstacles.Add(colliderFromSpec(spec))
	}

	s.navGrid = systems.NewNavGrid(bounds, nav.CellSize, nav.Inflation, s.obstacles.Colliders())
	s.paths = systems.NewPathService(s.navGrid, systems.PathServiceParams{
		LatencyTicks:     nav.PlanLatencyTicks,
		MaxSolvesPerTick: nav.MaxSolvesPerTick,
	})
}

// colliderFromSpec converts a scenario obstacle to a collider.
func colliderFromSpec(spec config.ObstacleSpec) systems.Collider {
	c := systems.Collider{
		Name:          spec.Name,
		CanHideBehind: spec.CanHideBehind,
		IsTrigger:     spec.Trigger,
	}
	if spec.Kind == config.ObstacleSegment {
		c.Kind = systems.ShapeSegment
		c.A = r2.Vec{X: spec.From.X, Y: spec.From.Y}
		c.B = r2.Vec{X: spec.To.X, Y: spec.To.Y}
		return c
	}
	c.Kind = systems.ShapeBox
	c.Box = r2.Box{
		Min: r2.Vec{X: spec.Min.X, Y: spec.Min.Y},
		Max: r2.Vec{X: spec.Max.X, Y: spec.Max.Y},
	}
	return c
}

// Step runs a single tick of the simulation.
// The only error is cancellation of ctx during the sensing phase. By then the
// path service and the player have advanced and some detectors have sampled,
// so the cancelled tick is not counted and every later Step returns ErrHalted.
// Finish and Snapshot still work on a halted simulation.
func (s *Simulation) Step(ctx context.Context) error {
	if s.halted != nil {
		return fmt.Errorf("%w: %w", ErrHalted, s.halted)
	}
	dt := s.cfg.Simulation.DT
	simTick := s.tick
	s.collector.SetTick(simTick)
	s.perf.StartTick()

	// 1. Resolve due path requests
	s.perf.StartPhase(telemetry.PhasePath)
	s.paths.Step()

	// 2. Player input, noise and collider
	s.perf.StartPhase(telemetry.PhasePlayer)
	s.stepPlayer(dt)
	target := s.target()

	// 3. Vision and hearing
	s.perf.StartPhase(telemetry.PhaseSensing)
	if err := s.sense(ctx, target); err != nil {
		s.halted = fmt.Errorf("sensing at tick %d: %w", simTick, err)
		return s.halted
	}

	// 4. State machines
	s.perf.StartPhase(telemetry.PhaseBehavior)
	s.updateBehavior(dt)

	// 5. Movement and facing
	s.perf.StartPhase(telemetry.PhaseMovement)
	s.integrate(dt)

	// 6. Telemetry
	s.perf.StartPhase(telemetry.PhaseTelemetry)
	s.tick++
	s.recordTelemetry(simTick, target.Pos)
	s.perf.EndTick(len(s.brains), s.sensing.parallel)

	return nil
}

// updateBehavior runs every controller on this tick's perception.
// Transitions reach the collector through the controller listener.
func (s *Simulation) updateBehavior(dt float64) {
	st := s.sensing
	for i := range st.snapshots {
		snap := &st.snapshots[i]
		body := s.body(snap.entity)
		snap.brain.ctrl.Update(&body, st.results[i], dt)
	}
}

// integrate moves every NPC with the backend bound to its state.
func (s *Simulation) integrate(dt float64) {
	for i := range s.sensing.snapshots {
		snap := &s.sensing.snapshots[i]
		body := s.body(snap.entity)
		before := body.Pos.Vec()
		snap.brain.ctrl.Integrate(&body, dt)
		moved := r2.Norm(r2.Sub(body.Pos.Vec(), before))
		s.collector.RecordState(snap.brain.name, snap.brain.ctrl.State(), moved)
	}
}

// body returns the kinematic view of an entity for this tick.
func (s *Simulation) body(e ecs.Entity) systems.Body {
	return systems.Body{
		ID:     e.ID(),
		Pos:    s.posMap.Get(e),
		Vel:    s.velMap.Get(e),
		Facing: s.facingMap.Get(e),
	}
}

// Tick returns the number of completed ticks.
func (s *Simulation) Tick() int {
	return s.tick
}

// NPCCount returns the number of live NPCs.
func (s *Simulation) NPCCount() int {
	return len(s.brains)
}

// RunID returns the run identifier stamped on snapshots.
func (s *Simulation) RunID() string {
	return s.opts.RunID
}

// Collector returns the behavior statistics collector.
func (s *Simulation) Collector() *telemetry.Collector {
	return s.collector
}

// PathService returns the path planning service.
func (s *Simulation) PathService() *systems.PathService {
	return s.paths
}

// Obstacles returns the scene's collision world.
func (s *Simulation) Obstacles() *systems.ObstacleWorld {
	return s.obstacles
}

// Blackboard returns the behavior state of the named NPC.
func (s *Simulation) Blackboard(name string) (systems.Blackboard, bool) {
	brain, ok := s.brain(name)
	if !ok {
		return systems.Blackboard{}, false
	}
	return brain.ctrl.Blackboard(), true
}

// NPCPosition returns the position of the named NPC.
func (s *Simulation) NPCPosition(name string) (r2.Vec, bool) {
	e, ok := s.byName[name]
	if !ok {
		return r2.Vec{}, false
	}
	return s.posMap.Get(e).Vec(), true
}

// ForceState switches the named NPC's controller to state from outside the machine.
func (s *Simulation) ForceState(name string, state components.BehaviorState) error {
	e, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("npc %q: %w", name, ErrUnknownNPC)
	}
	s.collector.SetTick(s.tick)
	body := s.body(e)
	s.brains[e.ID()].ctrl.ForceState(&body, state)
	return nil
}

// brain returns the behavior collaborators of the named NPC.
func (s *Simulation) brain(name string) (*npcBrain, bool) {
	e, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	brain, ok := s.brains[e.ID()]
	return brain, ok
}
