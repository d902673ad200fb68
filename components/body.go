package components

import "github.com/pthm-cable/prowl/config"

// Stats is the immutable per-archetype record shared by all NPCs of one kind.
type Stats struct {
	Archetype                  string
	PatrolSpeed                float64
	InvestigateSpeed           float64
	EngageSpeed                float64
	InvestigateSpeedMultiplier float64
	EngageSpeedMultiplier      float64
	SoundThreshold             float64 // hearing radius
	VisionRange                float64
	VisionHalfAngle            float64 // degrees either side of the facing
	ArriveDistance             float64
	IdleDuration               float64 // seconds
	InvestigatePause           float64 // seconds
	InvestigateFinalPause      float64 // seconds
	PreferAgent                bool    // use the path agent when navigation is available
	MinFacingVelocitySqr       float64
}

// StatsFromArchetype returns the stats record for the given archetype.
func StatsFromArchetype(arch *config.ArchetypeConfig) *Stats {
	return &Stats{
		Archetype:                  arch.Name,
		PatrolSpeed:                arch.PatrolSpeed,
		InvestigateSpeed:           arch.InvestigateSpeed,
		EngageSpeed:                arch.EngageSpeed,
		InvestigateSpeedMultiplier: arch.InvestigateSpeedMultiplier,
		EngageSpeedMultiplier:      arch.EngageSpeedMultiplier,
		SoundThreshold:             arch.SoundThreshold,
		VisionRange:                arch.VisionRange,
		VisionHalfAngle:            arch.VisionHalfAngle,
		ArriveDistance:             arch.ArriveDistance,
		IdleDuration:               arch.IdleDuration,
		InvestigatePause:           arch.InvestigatePause,
		InvestigateFinalPause:      arch.InvestigateFinalPause,
		PreferAgent:                arch.Movement == config.MovementAgent,
		MinFacingVelocitySqr:       arch.MinFacingVelocitySqr,
	}
}

// NoiseRadius returns the noise a player makes in the given mode.
// A hiding player that is not moving makes no noise.
func NoiseRadius(cfg *config.PlayerConfig, mode NoiseMode, hiding bool) float64 {
	switch mode {
	case NoiseWalk:
		return cfg.WalkNoise
	case NoiseRun:
		return cfg.RunNoise
	case NoiseCrouch:
		return cfg.CrouchNoise
	default:
		if hiding {
			return 0
		}
		return cfg.IdleNoise
	}
}

// MoveSpeed returns the player's speed in the given mode.
func MoveSpeed(cfg *config.PlayerConfig, mode NoiseMode) float64 {
	switch mode {
	case NoiseWalk:
		return cfg.WalkSpeed
	case NoiseRun:
		return cfg.RunSpeed
	case NoiseCrouch:
		return cfg.CrouchSpeed
	default:
		return 0
	}
}
