package systems

import "gonum.org/v1/gonum/spatial/r2"

// Audible reports whether a source with sourceRadius is heard by an observer
// with hearing radius threshold. The boundary counts as heard; a zero radius
// on either side never is.
func Audible(observer, source r2.Vec, sourceRadius, threshold float64) bool {
	if sourceRadius <= 0 || threshold <= 0 {
		return false
	}
	reach := sourceRadius + threshold
	return r2.Norm2(r2.Sub(source, observer)) <= reach*reach
}

// NoiseReading is the detector state after an update.
type NoiseReading struct {
	Detected          bool   // sticky until ClearDetection
	NewDetection      bool   // true only on the first audible tick
	LastHeardPosition r2.Vec // source position on the last audible tick
}

// NoiseDetector tracks whether an NPC has heard the player.
// One detector belongs to one NPC; it is not safe for concurrent use.
type NoiseDetector struct {
	reading NoiseReading
}

// Update samples the source and returns the new reading.
// An inaudible tick leaves the sticky state untouched apart from NewDetection.
func (d *NoiseDetector) Update(observer, source r2.Vec, sourceRadius, threshold float64) NoiseReading {
	d.reading.NewDetection = false
	if !Audible(observer, source, sourceRadius, threshold) {
		return d.reading
	}
	if !d.reading.Detected {
		d.reading.Detected = true
		d.reading.NewDetection = true
	}
	d.reading.LastHeardPosition = source
	return d.reading
}

// Reading returns the current state without sampling.
func (d *NoiseDetector) Reading() NoiseReading {
	return d.reading
}

// ClearDetection forgets everything the detector has heard.
func (d *NoiseDetector) ClearDetection() {
	d.reading = NoiseReading{}
}
