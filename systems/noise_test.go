package systems

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

func TestAudibleBoundary(t *testing.T) {
	tests := []struct {
		name      string
		source    r2.Vec
		radius    float64
		threshold float64
		want      bool
	}{
		{"exact boundary", r2.Vec{X: 7}, 4, 3, true},
		{"just outside", r2.Vec{X: 7.01}, 4, 3, false},
		{"inside", r2.Vec{X: 3, Y: 3}, 4, 3, true},
		{"silent source", r2.Vec{X: 1}, 0, 3, false},
		{"deaf observer", r2.Vec{X: 1}, 4, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Audible(r2.Vec{}, tt.source, tt.radius, tt.threshold); got != tt.want {
				t.Errorf("Audible = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNoiseDetectorEdge(t *testing.T) {
	var d NoiseDetector
	observer := r2.Vec{}
	near := r2.Vec{X: 2}
	far := r2.Vec{X: 50}

	r := d.Update(observer, near, 1, 3)
	if !r.Detected || !r.NewDetection {
		t.Fatalf("first audible tick: got %+v, want detected and new", r)
	}
	if r.LastHeardPosition != near {
		t.Errorf("LastHeardPosition = %v, want %v", r.LastHeardPosition, near)
	}

	moved := r2.Vec{X: 2.5}
	r = d.Update(observer, moved, 1, 3)
	if !r.Detected || r.NewDetection {
		t.Errorf("second audible tick: got %+v, want detected, not new", r)
	}
	if r.LastHeardPosition != moved {
		t.Errorf("LastHeardPosition should follow the source, got %v", r.LastHeardPosition)
	}

	// Inaudible ticks keep the sticky state
	r = d.Update(observer, far, 1, 3)
	if !r.Detected || r.NewDetection || r.LastHeardPosition != moved {
		t.Errorf("inaudible tick changed sticky state: %+v", r)
	}

	d.ClearDetection()
	if d.Reading() != (NoiseReading{}) {
		t.Errorf("ClearDetection left %+v", d.Reading())
	}

	r = d.Update(observer, near, 1, 3)
	if !r.NewDetection {
		t.Error("detection after clear should be new again")
	}
}
