package telemetry

import (
	"log/slog"
	"slices"
)

// WindowStats holds aggregated behavior statistics for a time window.
type WindowStats struct {
	WindowStartTick int     `csv:"-"`
	WindowEndTick   int     `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	NPCs       int  `csv:"npcs"`
	PlayerDead bool `csv:"player_dead"`

	// Transitions during window, by reason
	Transitions            int `csv:"transitions"`
	Sightings              int `csv:"sightings"`
	NoiseAlerts            int `csv:"noise_alerts"`
	InvestigationsComplete int `csv:"investigations_complete"`
	Arrivals               int `csv:"arrivals"`
	TargetLost             int `csv:"target_lost"`
	Forced                 int `csv:"forced"`
	NavFallbacks           int `csv:"nav_fallbacks"`

	// Path service
	PathRequests  int `csv:"path_requests"`
	PathSolved    int `csv:"path_solved"`
	PathFailed    int `csv:"path_failed"`
	PathCancelled int `csv:"path_cancelled"`

	// Fraction of NPC ticks spent in each state
	IdleShare            float64 `csv:"idle_share"`
	PatrolShare          float64 `csv:"patrol_share"`
	InvestigateIdleShare float64 `csv:"investigate_idle_share"`
	InvestigateMoveShare float64 `csv:"investigate_move_share"`
	EngageShare          float64 `csv:"engage_share"`

	// NPC-to-player distance (sampled at window end)
	PlayerDistMean float64 `csv:"player_dist_mean"`
	PlayerDistP10  float64 `csv:"player_dist_p10"`
	PlayerDistP50  float64 `csv:"player_dist_p50"`
	PlayerDistP90  float64 `csv:"player_dist_p90"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeDistanceStats calculates mean and percentiles from distance samples.
func ComputeDistanceStats(values []float64) (mean, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(n)

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, p10, p50, p90
}

// Alerted returns the number of transitions that raised an NPC's alertness.
func (s WindowStats) Alerted() int {
	return s.Sightings + s.NoiseAlerts
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", s.WindowStartTick),
		slog.Int("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("npcs", s.NPCs),
		slog.Bool("player_dead", s.PlayerDead),
		slog.Int("transitions", s.Transitions),
		slog.Int("sightings", s.Sightings),
		slog.Int("noise_alerts", s.NoiseAlerts),
		slog.Int("investigations_complete", s.InvestigationsComplete),
		slog.Int("arrivals", s.Arrivals),
		slog.Int("target_lost", s.TargetLost),
		slog.Int("forced", s.Forced),
		slog.Int("nav_fallbacks", s.NavFallbacks),
		slog.Int("path_requests", s.PathRequests),
		slog.Int("path_solved", s.PathSolved),
		slog.Int("path_failed", s.PathFailed),
		slog.Int("path_cancelled", s.PathCancelled),
		slog.Float64("idle_share", s.IdleShare),
		slog.Float64("patrol_share", s.PatrolShare),
		slog.Float64("investigate_idle_share", s.InvestigateIdleShare),
		slog.Float64("investigate_move_share", s.InvestigateMoveShare),
		slog.Float64("engage_share", s.EngageShare),
		slog.Float64("player_dist_mean", s.PlayerDistMean),
		slog.Float64("player_dist_p50", s.PlayerDistP50),
	)
}
