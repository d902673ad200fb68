package main

import (
	"fmt"

	"github.com/pthm-cable/prowl/config"
)

// ParamSpec defines a single tunable archetype parameter.
type ParamSpec struct {
	Name string  // yaml key under archetypes[]
	Min  float64 // Lower bound
	Max  float64 // Upper bound
}

// ParamVector holds the tunable parameters of one archetype.
type ParamVector struct {
	Archetype string
	Specs     []ParamSpec
}

// NewParamVector creates the standard set of perception and pacing parameters.
func NewParamVector(archetype string) *ParamVector {
	return &ParamVector{
		Archetype: archetype,
		Specs: []ParamSpec{
			// Perception
			{Name: "vision_range", Min: 2, Max: 12},
			{Name: "vision_half_angle", Min: 10, Max: 80},
			{Name: "sound_threshold", Min: 0, Max: 8},
			// Pacing
			{Name: "idle_duration", Min: 0.2, Max: 6},
			{Name: "investigate_pause", Min: 0.2, Max: 4},
			{Name: "patrol_speed", Min: 0.5, Max: 4},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig writes clamped parameter values into the archetype.
// Order must match Specs order.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) error {
	arch, ok := cfg.Archetype(pv.Archetype)
	if !ok {
		return fmt.Errorf("unknown archetype %q", pv.Archetype)
	}
	clamped := pv.Clamp(values)
	arch.VisionRange = clamped[0]
	arch.VisionHalfAngle = clamped[1]
	arch.SoundThreshold = clamped[2]
	arch.IdleDuration = clamped[3]
	arch.InvestigatePause = clamped[4]
	arch.PatrolSpeed = clamped[5]
	return nil
}

// ExtractFromConfig reads the current parameter values from the archetype.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) ([]float64, error) {
	arch, ok := cfg.Archetype(pv.Archetype)
	if !ok {
		return nil, fmt.Errorf("unknown archetype %q", pv.Archetype)
	}
	return []float64{
		arch.VisionRange,
		arch.VisionHalfAngle,
		arch.SoundThreshold,
		arch.IdleDuration,
		arch.InvestigatePause,
		arch.PatrolSpeed,
	}, nil
}
