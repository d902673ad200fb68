package components

// BehaviorState is the active state of an NPC's behavior controller.
type BehaviorState uint8

const (
	StateIdle BehaviorState = iota
	StatePatrolMove
	StateInvestigateIdle
	StateInvestigateMove
	StateEngage
)

// String returns the display name for a BehaviorState.
func (s BehaviorState) String() string {
	names := BehaviorStateNames()
	if int(s) < len(names) {
		return names[s]
	}
	return "Unknown"
}

// BehaviorStateNames returns the display names for all behavior states.
// The order matches the BehaviorState constants.
func BehaviorStateNames() []string {
	return []string{"Idle", "PatrolMove", "InvestigateIdle", "InvestigateMove", "Engage"}
}

// BehaviorStateCount returns the number of behavior states.
func BehaviorStateCount() int {
	return len(BehaviorStateNames())
}

// String returns the display name for a NoiseMode.
func (m NoiseMode) String() string {
	names := NoiseModeNames()
	if int(m) < len(names) {
		return names[m]
	}
	return "unknown"
}

// NoiseModeNames returns the names for all noise modes, as used in scenario files.
func NoiseModeNames() []string {
	return []string{"idle", "walk", "run", "crouch"}
}

// ParseNoiseMode parses a scenario mode name. Unknown names yield idle.
func ParseNoiseMode(s string) NoiseMode {
	for i, name := range NoiseModeNames() {
		if name == s {
			return NoiseMode(i)
		}
	}
	return NoiseIdle
}

// String returns the display name for a FacingDir.
func (d FacingDir) String() string {
	switch d {
	case FacingUp:
		return "Up"
	case FacingLeft:
		return "Left"
	case FacingRight:
		return "Right"
	default:
		return "Down"
	}
}
