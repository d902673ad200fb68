package systems

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

const geomEpsilon = 1e-9

// headingDegrees returns the angle of v in degrees, [0, 360).
func headingDegrees(v r2.Vec) float64 {
	deg := math.Atan2(v.Y, v.X) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// angleBetweenDeg returns the unsigned angle between a and b in degrees, [0, 180].
func angleBetweenDeg(a, b r2.Vec) float64 {
	return math.Atan2(math.Abs(r2.Cross(a, b)), r2.Dot(a, b)) * 180 / math.Pi
}

// rotateDeg rotates v counter-clockwise by deg degrees.
func rotateDeg(v r2.Vec, deg float64) r2.Vec {
	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return r2.Vec{X: v.X*cos - v.Y*sin, Y: v.X*sin + v.Y*cos}
}

// raySegment returns the distance along a unit ray to segment ab.
func raySegment(origin, dir, a, b r2.Vec) (float64, bool) {
	seg := r2.Sub(b, a)
	denom := r2.Cross(dir, seg)
	if math.Abs(denom) < geomEpsilon {
		return 0, false // parallel or degenerate
	}
	ao := r2.Sub(a, origin)
	t := r2.Cross(ao, seg) / denom
	u := r2.Cross(ao, dir) / denom
	if t < 0 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}

// rayBox returns the entry distance along a unit ray into box, using the slab test.
// A ray starting inside the box hits at distance 0.
func rayBox(origin, dir r2.Vec, box r2.Box) (float64, bool) {
	tMin, tMax := 0.0, math.Inf(1)

	o := [2]float64{origin.X, origin.Y}
	d := [2]float64{dir.X, dir.Y}
	lo := [2]float64{box.Min.X, box.Min.Y}
	hi := [2]float64{box.Max.X, box.Max.Y}

	for i := 0; i < 2; i++ {
		if math.Abs(d[i]) < geomEpsilon {
			if o[i] < lo[i] || o[i] > hi[i] {
				return 0, false
			}
			continue
		}
		t1 := (lo[i] - o[i]) / d[i]
		t2 := (hi[i] - o[i]) / d[i]
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return 0, false
		}
	}
	return tMin, true
}

// rayCircle returns the entry distance along a unit ray into a circle.
func rayCircle(origin, dir, center r2.Vec, radius float64) (float64, bool) {
	oc := r2.Sub(origin, center)
	b := r2.Dot(oc, dir)
	c := r2.Norm2(oc) - radius*radius
	if c <= 0 {
		return 0, true // inside
	}
	disc := b*b - c
	if disc < 0 || b > 0 {
		return 0, false
	}
	return -b - math.Sqrt(disc), true
}

// pointSegmentDistance returns the distance from p to segment ab.
func pointSegmentDistance(p, a, b r2.Vec) float64 {
	ab := r2.Sub(b, a)
	l2 := r2.Norm2(ab)
	if l2 < geomEpsilon {
		return r2.Norm(r2.Sub(p, a))
	}
	t := r2.Dot(r2.Sub(p, a), ab) / l2
	t = math.Max(0, math.Min(1, t))
	return r2.Norm(r2.Sub(p, r2.Add(a, r2.Scale(t, ab))))
}

// pointBoxDistance returns the distance from p to box, 0 when inside.
func pointBoxDistance(p r2.Vec, box r2.Box) float64 {
	dx := math.Max(math.Max(box.Min.X-p.X, 0), p.X-box.Max.X)
	dy := math.Max(math.Max(box.Min.Y-p.Y, 0), p.Y-box.Max.Y)
	return math.Hypot(dx, dy)
}

// stepToward moves pos toward target at speed for dt without overshooting.
// Returns the velocity that performs the step.
func stepToward(pos, target r2.Vec, speed, dt float64) r2.Vec {
	delta := r2.Sub(target, pos)
	d := r2.Norm(delta)
	if d < geomEpsilon || speed <= 0 || dt <= 0 {
		return r2.Vec{}
	}
	if speed*dt >= d {
		return r2.Scale(1/dt, delta)
	}
	return r2.Scale(speed/d, delta)
}
