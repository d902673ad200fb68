package systems

import "errors"

var (
	// ErrMissingDependency is reported when a controller lacks stats, a mover or a detector.
	// The behavior is skipped for the tick and the simulation continues.
	ErrMissingDependency = errors.New("missing dependency")

	// ErrNavigationUnavailable is returned when no navigable point exists near a destination.
	// Callers fall back to direct movement.
	ErrNavigationUnavailable = errors.New("navigation unavailable")
)
