package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/prowl/config"
	"github.com/pthm-cable/prowl/game"
	"github.com/pthm-cable/prowl/telemetry"
)

// Fitness weights.
const (
	neverSeenCost     = 2.0  // cost of a run where nobody ever sees the player
	navFallbackWeight = 0.05 // per agent-to-direct downgrade
	earlyHearingBonus = 0.1  // noise alerts before first sight shorten the run's cost
)

// runResult holds the outcome of one scenario run.
type runResult struct {
	firstSeen    int // tick the player was first in any NPC's sight, -1 if never
	firstHeard   int // tick any NPC first heard the player, -1 if never
	navFallbacks int
	windows      []telemetry.WindowStats
}

// FitnessEvaluator runs headless simulations and scores them against a target
// first-sighting tick. Evaluate is safe for concurrent use.
type FitnessEvaluator struct {
	params     *ParamVector
	configPath string
	scenarios  []*config.Scenario
	targetTick int
	maxTicks   int // 0 = each scenario's script length

	mu          sync.Mutex
	bestFitness float64
	best        []runResult
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, configPath string, scenarios []*config.Scenario, targetTick, maxTicks int) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		configPath:  configPath,
		scenarios:   scenarios,
		targetTick:  targetTick,
		maxTicks:    maxTicks,
		bestFitness: math.Inf(1),
	}
}

// Best returns the per-scenario results of the best evaluation so far.
func (fe *FitnessEvaluator) Best() []runResult {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.best
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
// Scenarios run in parallel; a run that cannot be set up scores as never seen.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]runResult, len(fe.scenarios))

	var g errgroup.Group
	for i, sc := range fe.scenarios {
		g.Go(func() error {
			res, err := fe.runScenario(x, sc)
			if err != nil {
				slog.Warn("evaluation failed", "scenario", sc.Name, "error", err)
				res = runResult{firstSeen: -1, firstHeard: -1}
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	var total float64
	for i := range results {
		total += fe.computeFitness(&results[i])
	}
	fitness := total / float64(len(results))

	fe.mu.Lock()
	if fitness < fe.bestFitness {
		fe.bestFitness = fitness
		fe.best = results
	}
	fe.mu.Unlock()

	return fitness
}

// runScenario executes a single headless run with the parameters applied.
func (fe *FitnessEvaluator) runScenario(x []float64, sc *config.Scenario) (runResult, error) {
	// Fresh config per run so concurrent evaluations never share archetypes
	cfg, err := config.Load(fe.configPath)
	if err != nil {
		return runResult{}, err
	}
	if err := fe.params.ApplyToConfig(cfg, x); err != nil {
		return runResult{}, err
	}

	result := runResult{firstSeen: -1, firstHeard: -1}
	sim, err := game.NewSimulation(cfg, sc, game.Options{
		Logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
		StatsCallback: func(stats telemetry.WindowStats) {
			result.windows = append(result.windows, stats)
		},
	})
	if err != nil {
		return runResult{}, fmt.Errorf("building simulation: %w", err)
	}

	ticks := fe.maxTicks
	if ticks <= 0 {
		ticks = sc.ScriptLength()
	}

	ctx := context.Background()
	for sim.Tick() < ticks && result.firstSeen < 0 {
		if err := sim.Step(ctx); err != nil {
			return runResult{}, err
		}
		frame := sim.Frame(0)
		for _, npc := range frame.NPCs {
			if npc.PlayerInSight && result.firstSeen < 0 {
				result.firstSeen = frame.Tick
			}
			if npc.HeardPlayer && result.firstHeard < 0 {
				result.firstHeard = frame.Tick
			}
		}
	}

	for _, s := range sim.Collector().Lifetimes().Summaries() {
		result.navFallbacks += s.NavFallbacks
	}
	return result, nil
}

// computeFitness scores one run.
// Formula: |firstSeen - target| / target + 0.05 × fallbacks, minus a small
// bonus when the NPCs heard the player before spotting it.
func (fe *FitnessEvaluator) computeFitness(r *runResult) float64 {
	cost := neverSeenCost
	if r.firstSeen >= 0 {
		target := float64(max(fe.targetTick, 1))
		cost = math.Abs(float64(r.firstSeen)-target) / target
		if r.firstHeard >= 0 && r.firstHeard < r.firstSeen {
			cost -= earlyHearingBonus
		}
	}
	return cost + navFallbackWeight*float64(r.navFallbacks)
}
