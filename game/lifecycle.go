package game

import (
	"errors"
	"fmt"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/prowl/components"
	"github.com/pthm-cable/prowl/config"
	"github.com/pthm-cable/prowl/systems"
)

var (
	// ErrMissingIdentity aborts a spawn without a name. The NPC is not added.
	ErrMissingIdentity = errors.New("npc has no name")

	// ErrDuplicateName aborts a spawn whose name is already in use.
	ErrDuplicateName = errors.New("npc name already in use")

	// ErrUnknownArchetype aborts a spawn that names no configured archetype.
	ErrUnknownArchetype = errors.New("unknown archetype")

	// ErrNoSpawnPoint aborts a spawn with no navigable point near its position.
	ErrNoSpawnPoint = errors.New("no navigable spawn point")

	// ErrUnknownNPC is returned for operations on a name that is not spawned.
	ErrUnknownNPC = errors.New("unknown npc")

	// ErrHalted is returned by Step after a tick was cancelled part way.
	ErrHalted = errors.New("simulation halted")
)

// SpawnNPC creates an NPC entity with its behavior collaborators.
// The position is snapped to the nearest navigable point within the spawn
// sample radius.
func (s *Simulation) SpawnNPC(spec config.NPCSpec) (ecs.Entity, error) {
	if spec.Name == "" {
		return ecs.Entity{}, ErrMissingIdentity
	}
	if _, ok := s.byName[spec.Name]; ok {
		return ecs.Entity{}, fmt.Errorf("npc %q: %w", spec.Name, ErrDuplicateName)
	}

	arch, err := s.archetype(spec.Archetype)
	if err != nil {
		return ecs.Entity{}, fmt.Errorf("npc %q: %w", spec.Name, err)
	}
	stats := s.stats[arch.Name]

	nav := s.cfg.Navigation
	at, ok := s.paths.SampleNearestNavigablePoint(r2.Vec{X: spec.Position.X, Y: spec.Position.Y}, nav.SpawnSampleRadius)
	if !ok {
		return ecs.Entity{}, fmt.Errorf("npc %q at (%.2f, %.2f): %w",
			spec.Name, spec.Position.X, spec.Position.Y, ErrNoSpawnPoint)
	}

	var route *systems.PatrolRoute
	if spec.Route != "" {
		route = s.routes[spec.Route]
	}

	moverParams := systems.MoverParams{
		Speed:                stats.PatrolSpeed,
		ArriveDistance:       stats.ArriveDistance,
		MinFacingVelocitySqr: stats.MinFacingVelocitySqr,
	}
	brain := &npcBrain{
		name:      spec.Name,
		archetype: arch.Name,
		stats:     stats,
		detector:  &systems.NoiseDetector{},
	}
	deps := systems.ControllerDeps{
		Name:           spec.Name,
		Stats:          stats,
		Detector:       brain.detector,
		Route:          route,
		Direct:         systems.NewDirectMover(moverParams),
		RepathDistance: nav.RepathDistance,
		Logger:         s.logger,
		Listener:       s.collector,
	}
	if stats.PreferAgent {
		brain.agent = systems.NewAgentMover(s.paths, s.paths, systems.AgentParams{
			MoverParams:       moverParams,
			SampleRadius:      nav.SampleRadius,
			WaypointTolerance: nav.WaypointTolerance,
		})
		deps.Agent = brain.agent
	}
	brain.ctrl = systems.NewController(deps)

	pos := components.Position{X: at.X, Y: at.Y}
	vel := components.Velocity{}
	facing := components.Facing{Dir: components.ParseFacingDir(spec.Facing)}
	ident := components.Identity{Name: spec.Name, Archetype: s.cfg.Derived.ArchetypeIndex[arch.Name]}

	entity := s.npcMapper.NewEntity(&pos, &vel, &facing, &ident, &components.NPC{})
	s.brains[entity.ID()] = brain
	s.byName[spec.Name] = entity

	s.collector.SetTick(s.tick)
	s.collector.RecordSpawn(spec.Name, arch.Name)
	s.logger.Debug("npc spawned",
		"npc", spec.Name,
		"archetype", arch.Name,
		"x", at.X,
		"y", at.Y,
		"route", spec.Route,
	)

	return entity, nil
}

// archetype resolves an archetype name. Empty selects the first configured one.
func (s *Simulation) archetype(name string) (*config.ArchetypeConfig, error) {
	if name == "" {
		return &s.cfg.Archetypes[0], nil
	}
	arch, ok := s.cfg.Archetype(name)
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrUnknownArchetype)
	}
	return arch, nil
}

// Despawn removes the named NPC and cancels its pending path request.
// Must not be called during Step.
func (s *Simulation) Despawn(name string) error {
	entity, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("npc %q: %w", name, ErrUnknownNPC)
	}

	if brain := s.brains[entity.ID()]; brain != nil && brain.agent != nil {
		body := s.body(entity)
		brain.agent.Stop(&body)
	}

	delete(s.brains, entity.ID())
	delete(s.byName, name)
	s.world.RemoveEntity(entity)

	s.collector.SetTick(s.tick)
	s.collector.RecordDespawn(name)
	s.logger.Debug("npc despawned", "npc", name)
	return nil
}
