package telemetry

import (
	"log/slog"
	"time"
)

// Phase identifies one stage of the simulation step.
type Phase uint8

// Tick phases in execution order.
const (
	PhasePath Phase = iota
	PhasePlayer
	PhaseSensing
	PhaseBehavior
	PhaseMovement
	PhaseTelemetry
	phaseCount
)

var phaseNames = [phaseCount]string{"path", "player", "sensing", "behavior", "movement", "telemetry"}

// String returns the log name for a Phase.
func (p Phase) String() string {
	if p >= phaseCount {
		return "unknown"
	}
	return phaseNames[p]
}

// perfSample holds timing data for a single tick.
type perfSample struct {
	tick     time.Duration
	phases   [phaseCount]time.Duration
	npcs     int
	parallel bool // sensing ran on the worker pool
}

// PerfCollector tracks step timings over a rolling window of ticks.
// Phase durations live in fixed arrays, so recording a tick does not allocate.
type PerfCollector struct {
	samples     []perfSample
	writeIndex  int
	sampleCount int

	current    perfSample
	tickStart  time.Time
	phaseStart time.Time
	phase      Phase
	inPhase    bool
}

// NewPerfCollector creates a collector averaging over windowSize ticks.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{samples: make([]perfSample, windowSize)}
}

// StartTick begins timing a new simulation tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	p.current = perfSample{}
	p.inPhase = false
}

// StartPhase closes the running phase, if any, and starts timing phase.
func (p *PerfCollector) StartPhase(phase Phase) {
	now := time.Now()
	p.closePhase(now)
	p.phaseStart = now
	p.phase = phase
	p.inPhase = true
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.inPhase && p.phase < phaseCount {
		p.current.phases[p.phase] += now.Sub(p.phaseStart)
	}
}

// EndTick finishes the tick. npcs is the live NPC count and parallel reports
// whether sensing used the worker pool this tick.
func (p *PerfCollector) EndTick(npcs int, parallel bool) {
	now := time.Now()
	p.closePhase(now)
	p.inPhase = false

	p.current.tick = now.Sub(p.tickStart)
	p.current.npcs = npcs
	p.current.parallel = parallel

	p.samples[p.writeIndex] = p.current
	p.writeIndex = (p.writeIndex + 1) % len(p.samples)
	if p.sampleCount < len(p.samples) {
		p.sampleCount++
	}
}

// PerfStats holds step timings averaged over the window.
type PerfStats struct {
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration
	TicksPerSecond  float64

	PhaseAvg [phaseCount]time.Duration
	PhasePct [phaseCount]float64 // share of the average tick, 0-100

	AvgNPCs       float64
	SensingPerNPC time.Duration // average sensing time divided by NPCs sensed
	ParallelShare float64       // fraction of ticks that sensed in parallel
	SampledTicks  int
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	var out PerfStats
	n := p.sampleCount
	if n == 0 {
		return out
	}
	out.SampledTicks = n

	var total time.Duration
	var phaseSum [phaseCount]time.Duration
	var npcTicks, parallelTicks int
	for i := 0; i < n; i++ {
		s := &p.samples[i]
		total += s.tick
		if i == 0 || s.tick < out.MinTickDuration {
			out.MinTickDuration = s.tick
		}
		out.MaxTickDuration = max(out.MaxTickDuration, s.tick)
		for ph, d := range s.phases {
			phaseSum[ph] += d
		}
		npcTicks += s.npcs
		if s.parallel {
			parallelTicks++
		}
	}

	out.AvgTickDuration = total / time.Duration(n)
	for ph := range phaseSum {
		out.PhaseAvg[ph] = phaseSum[ph] / time.Duration(n)
		if out.AvgTickDuration > 0 {
			out.PhasePct[ph] = float64(out.PhaseAvg[ph]) / float64(out.AvgTickDuration) * 100
		}
	}
	if out.AvgTickDuration > 0 {
		out.TicksPerSecond = float64(time.Second) / float64(out.AvgTickDuration)
	}

	out.AvgNPCs = float64(npcTicks) / float64(n)
	if npcTicks > 0 {
		out.SensingPerNPC = phaseSum[PhaseSensing] / time.Duration(npcTicks)
	}
	out.ParallelShare = float64(parallelTicks) / float64(n)
	return out
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_tick_us", s.AvgTickDuration.Microseconds()),
		slog.Int64("max_tick_us", s.MaxTickDuration.Microseconds()),
		slog.Float64("ticks_per_sec", s.TicksPerSecond),
		slog.Float64("npcs", s.AvgNPCs),
		slog.Int64("sensing_per_npc_ns", s.SensingPerNPC.Nanoseconds()),
		slog.Float64("parallel_share", s.ParallelShare),
	}
	for ph := Phase(0); ph < phaseCount; ph++ {
		attrs = append(attrs, slog.Float64(ph.String()+"_pct", s.PhasePct[ph]))
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat row of perf.csv.
type PerfStatsCSV struct {
	WindowEnd       int     `csv:"window_end"`
	AvgTickUS       int64   `csv:"avg_tick_us"`
	MinTickUS       int64   `csv:"min_tick_us"`
	MaxTickUS       int64   `csv:"max_tick_us"`
	TicksPerSec     float64 `csv:"ticks_per_sec"`
	NPCs            float64 `csv:"npcs"`
	SensingPerNPCNS int64   `csv:"sensing_per_npc_ns"`
	ParallelShare   float64 `csv:"parallel_share"`
	PathPct         float64 `csv:"path_pct"`
	PlayerPct       float64 `csv:"player_pct"`
	SensingPct      float64 `csv:"sensing_pct"`
	BehaviorPct     float64 `csv:"behavior_pct"`
	MovementPct     float64 `csv:"movement_pct"`
	TelemetryPct    float64 `csv:"telemetry_pct"`
}

// ToCSV flattens the stats of the window ending at windowEnd.
func (s PerfStats) ToCSV(windowEnd int) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:       windowEnd,
		AvgTickUS:       s.AvgTickDuration.Microseconds(),
		MinTickUS:       s.MinTickDuration.Microseconds(),
		MaxTickUS:       s.MaxTickDuration.Microseconds(),
		TicksPerSec:     s.TicksPerSecond,
		NPCs:            s.AvgNPCs,
		SensingPerNPCNS: s.SensingPerNPC.Nanoseconds(),
		ParallelShare:   s.ParallelShare,
		PathPct:         s.PhasePct[PhasePath],
		PlayerPct:       s.PhasePct[PhasePlayer],
		SensingPct:      s.PhasePct[PhaseSensing],
		BehaviorPct:     s.PhasePct[PhaseBehavior],
		MovementPct:     s.PhasePct[PhaseMovement],
		TelemetryPct:    s.PhasePct[PhaseTelemetry],
	}
}
