package components

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// FacingDir is a discrete four-way facing used when no continuous angle is known.
type FacingDir uint8

const (
	FacingDown FacingDir = iota
	FacingUp
	FacingLeft
	FacingRight
)

// Facing holds the heading of an entity.
// Angle is in degrees, [0, 360), counter-clockwise from +X. It is only
// meaningful when Valid is set, which happens on the first real motion.
type Facing struct {
	Angle float64
	Dir   FacingDir
	Valid bool
}

// Vector returns the unit facing vector, falling back to Dir when Angle is unset.
func (f Facing) Vector() r2.Vec {
	if f.Valid {
		rad := f.Angle * math.Pi / 180
		return r2.Vec{X: math.Cos(rad), Y: math.Sin(rad)}
	}
	return f.Dir.Vector()
}

// SetAngle sets the continuous angle and the matching discrete direction.
func (f *Facing) SetAngle(deg float64) {
	f.Angle = NormalizeDegrees(deg)
	f.Dir = DirFromAngle(f.Angle)
	f.Valid = true
}

// Vector returns the unit vector for the direction.
func (d FacingDir) Vector() r2.Vec {
	switch d {
	case FacingUp:
		return r2.Vec{Y: 1}
	case FacingLeft:
		return r2.Vec{X: -1}
	case FacingRight:
		return r2.Vec{X: 1}
	default:
		return r2.Vec{Y: -1}
	}
}

// DirFromAngle maps an angle in degrees to a four-way direction.
// [45,135) is Up, [135,225) Left, [225,315) Down, everything else Right.
func DirFromAngle(deg float64) FacingDir {
	a := NormalizeDegrees(deg)
	switch {
	case a >= 45 && a < 135:
		return FacingUp
	case a >= 135 && a < 225:
		return FacingLeft
	case a >= 225 && a < 315:
		return FacingDown
	default:
		return FacingRight
	}
}

// ParseFacingDir parses up/down/left/right. Unknown or empty input yields Down.
func ParseFacingDir(s string) FacingDir {
	switch s {
	case "up":
		return FacingUp
	case "left":
		return FacingLeft
	case "right":
		return FacingRight
	default:
		return FacingDown
	}
}

// NormalizeDegrees wraps an angle to [0, 360).
func NormalizeDegrees(deg float64) float64 {
	a := math.Mod(deg, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a = 0
	}
	return a
}
