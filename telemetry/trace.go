package telemetry

// TraceRecord is one sampled row of an NPC's state, for trace.csv.
type TraceRecord struct {
	Tick          int     `csv:"tick"`
	NPC           string  `csv:"npc"`
	State         string  `csv:"state"`
	X             float64 `csv:"x"`
	Y             float64 `csv:"y"`
	Facing        float64 `csv:"facing"`
	Moving        bool    `csv:"moving"`
	UsingAgent    bool    `csv:"using_agent"`
	PlayerInSight bool    `csv:"player_in_sight"`
	HeardPlayer   bool    `csv:"heard_player"`
	PlayerX       float64 `csv:"player_x"`
	PlayerY       float64 `csv:"player_y"`
}

// ShouldTrace reports whether tick is a trace sample tick.
// every <= 0 disables tracing.
func ShouldTrace(tick, every int) bool {
	return every > 0 && tick%every == 0
}
