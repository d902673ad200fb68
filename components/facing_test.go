package components

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirFromAngle(t *testing.T) {
	tests := []struct {
		deg  float64
		want FacingDir
	}{
		{0, FacingRight},
		{44.9, FacingRight},
		{45, FacingUp},
		{90, FacingUp},
		{134.9, FacingUp},
		{135, FacingLeft},
		{180, FacingLeft},
		{225, FacingDown},
		{270, FacingDown},
		{315, FacingRight},
		{-90, FacingDown},
		{450, FacingUp},
	}

	for _, tt := range tests {
		if got := DirFromAngle(tt.deg); got != tt.want {
			t.Errorf("DirFromAngle(%v) = %v, want %v", tt.deg, got, tt.want)
		}
	}
}

func TestNormalizeDegrees(t *testing.T) {
	assert.InDelta(t, 0.0, NormalizeDegrees(360), 1e-12)
	assert.InDelta(t, 270.0, NormalizeDegrees(-90), 1e-12)
	assert.InDelta(t, 10.0, NormalizeDegrees(730), 1e-12)
}

func TestFacingVector(t *testing.T) {
	var f Facing
	// Unset angle falls back to the default discrete direction
	assert.Equal(t, FacingDown, f.Dir)
	v := f.Vector()
	assert.InDelta(t, 0.0, v.X, 1e-12)
	assert.InDelta(t, -1.0, v.Y, 1e-12)

	f.SetAngle(90)
	assert.True(t, f.Valid)
	assert.Equal(t, FacingUp, f.Dir)
	v = f.Vector()
	assert.InDelta(t, 0.0, v.X, 1e-12)
	assert.InDelta(t, 1.0, v.Y, 1e-12)
}

func TestParseNames(t *testing.T) {
	assert.Equal(t, FacingLeft, ParseFacingDir("left"))
	assert.Equal(t, FacingDown, ParseFacingDir(""))
	assert.Equal(t, NoiseRun, ParseNoiseMode("run"))
	assert.Equal(t, NoiseIdle, ParseNoiseMode("sprint"))
	assert.Equal(t, "InvestigateMove", StateInvestigateMove.String())
	assert.Equal(t, "Unknown", BehaviorState(99).String())
	assert.Equal(t, 5, BehaviorStateCount())
}
