package game

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/pthm-cable/prowl/components"
	"github.com/pthm-cable/prowl/config"
	"github.com/pthm-cable/prowl/systems"
)

// playerScript replays the scenario's scripted input one tick at a time.
type playerScript struct {
	steps []config.ScriptStep
	index int
	used  int // ticks consumed from steps[index]
}

func newPlayerScript(steps []config.ScriptStep) *playerScript {
	return &playerScript{steps: steps}
}

// next returns the input for this tick, or false once the script is spent.
func (p *playerScript) next() (config.ScriptStep, bool) {
	for p.index < len(p.steps) && p.used >= p.steps[p.index].Ticks {
		p.index++
		p.used = 0
	}
	if p.index >= len(p.steps) {
		return config.ScriptStep{}, false
	}
	p.used++
	return p.steps[p.index], true
}

// finished reports whether a non-empty script has run out.
func (p *playerScript) finished() bool {
	return len(p.steps) > 0 && p.index >= len(p.steps)
}

// spawnPlayer creates the player entity and its body collider.
func (s *Simulation) spawnPlayer() {
	spec := s.scenario.Player
	pos := components.Position{X: spec.Position.X, Y: spec.Position.Y}
	vel := components.Velocity{}
	facing := components.Facing{Dir: components.FacingDown}
	noise := components.NoiseEmitter{
		Mode:   components.NoiseIdle,
		Radius: components.NoiseRadius(&s.cfg.Player, components.NoiseIdle, false),
	}
	control := components.PlayerControl{}

	s.player = s.playerMapper.NewEntity(&pos, &vel, &facing, &noise, &control, &components.Player{})

	// The body hides things behind it but never hides the player itself
	s.playerCollider = s.obstacles.Add(systems.Collider{
		Name:          "player",
		Kind:          systems.ShapeCircle,
		Center:        pos.Vec(),
		Radius:        s.cfg.Player.BodyRadius,
		CanHideBehind: true,
		Owner:         s.player.ID(),
	})
}

// SetPlayerControl replaces the player's input. A running script overrides it
// on the next tick. Death cannot be undone through c.Dead.
func (s *Simulation) SetPlayerControl(c components.PlayerControl) {
	control := s.controlMap.Get(s.player)
	c.Dead = c.Dead || control.Dead
	*control = c
}

// KillPlayer marks the player dead. Death is permanent for the run.
func (s *Simulation) KillPlayer() {
	control := s.controlMap.Get(s.player)
	if control.Dead {
		return
	}
	control.Dead = true
	s.logger.Info("player down", "tick", s.tick)
}

// PlayerDead reports whether the player has died.
func (s *Simulation) PlayerDead() bool {
	return s.controlMap.Get(s.player).Dead
}

// PlayerPosition returns the player's position.
func (s *Simulation) PlayerPosition() r2.Vec {
	return s.posMap.Get(s.player).Vec()
}

// PlayerNoise returns the player's current noise emitter.
func (s *Simulation) PlayerNoise() components.NoiseEmitter {
	return *s.noiseMap.Get(s.player)
}

// stepPlayer applies scripted input, scheduled death, movement and noise.
func (s *Simulation) stepPlayer(dt float64) {
	control := s.controlMap.Get(s.player)
	if step, ok := s.script.next(); ok {
		control.Input = r2.Vec{X: step.Input.X, Y: step.Input.Y}
		control.Mode = components.ParseNoiseMode(step.Mode)
		control.Hide = step.Hide
	} else if s.script.finished() {
		control.Input = r2.Vec{}
		control.Mode = components.NoiseIdle
		control.Hide = false
	}

	if dies := s.scenario.Player.DiesAtTick; dies > 0 && s.tick >= dies {
		s.KillPlayer()
	}

	pos := s.posMap.Get(s.player)
	vel := s.velMap.Get(s.player)
	noise := s.noiseMap.Get(s.player)

	if control.Dead {
		vel.Set(r2.Vec{})
		noise.Mode = components.NoiseIdle
		noise.Hiding = false
		noise.Radius = 0
		return
	}

	dir := control.Input
	if n := r2.Norm(dir); n > 0 {
		dir = r2.Scale(1/n, dir)
	}
	v := r2.Scale(components.MoveSpeed(&s.cfg.Player, control.Mode), dir)
	vel.Set(v)

	// Standing still is idle whatever the selected mode
	mode := control.Mode
	if r2.Norm2(v) == 0 {
		mode = components.NoiseIdle
	}
	if noise.Mode != mode || noise.Hiding != control.Hide {
		noise.Mode = mode
		noise.Hiding = control.Hide
		noise.Radius = components.NoiseRadius(&s.cfg.Player, mode, control.Hide)
	}

	if r2.Norm2(v) == 0 {
		return
	}

	next := s.clampToWorld(r2.Add(pos.Vec(), r2.Scale(dt, v)))
	pos.Set(next)
	s.facingMap.Get(s.player).SetAngle(math.Atan2(v.Y, v.X) * 180 / math.Pi)
	s.obstacles.MoveCircle(s.playerCollider, next)
}

// clampToWorld keeps p inside the scene bounds.
func (s *Simulation) clampToWorld(p r2.Vec) r2.Vec {
	b := s.obstacles.Bounds()
	return r2.Vec{
		X: math.Min(math.Max(p.X, b.Min.X), b.Max.X),
		Y: math.Min(math.Max(p.Y, b.Min.Y), b.Max.Y),
	}
}

// target returns the player as the sensing phase sees it.
func (s *Simulation) target() systems.Target {
	noise := s.noiseMap.Get(s.player)
	return systems.Target{
		ID:          s.player.ID(),
		Pos:         s.posMap.Get(s.player).Vec(),
		NoiseRadius: noise.Radius,
		Hiding:      noise.Hiding,
		Dead:        s.controlMap.Get(s.player).Dead,
	}
}
