// Package main tunes one archetype's perception and pacing parameters with
// CMA-ES so the scripted player is first spotted near a target tick.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/prowl/config"
	"github.com/pthm-cable/prowl/game"
)

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	if err := run(); err != nil {
		slog.Error("tune failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	scenarioList := flag.String("scenarios", "", "Comma-separated scenario files (empty = built-in storeroom)")
	archetype := flag.String("archetype", "guard", "Archetype to tune")
	targetTick := flag.Int("target-tick", 600, "Tick at which the player should first be seen")
	maxTicks := flag.Int("max-ticks", 0, "Ticks per run (0 = script length)")
	maxEvals := flag.Int("max-evals", 200, "Maximum number of evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	workers := flag.Int("workers", 0, "Concurrent evaluations (0 = sequential)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		return fmt.Errorf("-output is required")
	}

	logger, _, err := game.NewLogger(config.LoggingConfig{Level: "info"}, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	baseCfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	scenarios, err := loadScenarios(*scenarioList)
	if err != nil {
		return err
	}

	params := NewParamVector(*archetype)
	initRaw, err := params.ExtractFromConfig(baseCfg)
	if err != nil {
		return err
	}
	evaluator := NewFitnessEvaluator(params, *configPath, scenarios, *targetTick, *maxTicks)

	dim := params.Dim()
	popSize := *population
	if popSize == 0 {
		popSize = 4 + int(3.0*float64(dim)/2.0)
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}
	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      *workers,
	}

	logPath := filepath.Join(*outputDir, "tune_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("creating log file: %w", err)
	}
	defer logFile.Close()

	logWriter := csv.NewWriter(logFile)
	defer logWriter.Flush()

	header := []string{"eval", "fitness"}
	for _, spec := range params.Specs {
		header = append(header, spec.Name)
	}
	if err := logWriter.Write(header); err != nil {
		return fmt.Errorf("writing log header: %w", err)
	}

	// Evaluations may run concurrently; the log and best tracking are shared
	var (
		mu          sync.Mutex
		evalCount   int
		bestFitness = 1e9
		bestParams  []float64
	)
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			clamped := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(clamped)

			mu.Lock()
			defer mu.Unlock()
			evalCount++
			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = clamped
			}

			row := []string{strconv.Itoa(evalCount), fmt.Sprintf("%.6f", fitness)}
			for _, v := range clamped {
				row = append(row, fmt.Sprintf("%.6f", v))
			}
			_ = logWriter.Write(row)
			logWriter.Flush()

			elapsed := time.Since(startTime)
			remaining := time.Duration(*maxEvals-evalCount) * (elapsed / time.Duration(evalCount))
			slog.Info("evaluation",
				"eval", evalCount,
				"max_evals", *maxEvals,
				"fitness", fitness,
				"best", bestFitness,
				"elapsed", formatDuration(elapsed),
				"eta", formatDuration(remaining),
			)
			return fitness
		},
	}

	slog.Info("starting CMA-ES",
		"archetype", *archetype,
		"params", dim,
		"population", popSize,
		"max_evals", *maxEvals,
		"scenarios", len(scenarios),
		"target_tick", *targetTick,
	)

	result, err := optimize.Minimize(problem, params.Normalize(initRaw), settings, method)
	if err != nil {
		slog.Warn("optimization ended", "error", err)
	}
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		return fmt.Errorf("no evaluation completed")
	}

	slog.Info("optimization complete",
		"evals", evalCount,
		"elapsed", formatDuration(time.Since(startTime)),
		"best_fitness", bestFitness,
	)
	for i, spec := range params.Specs {
		slog.Info("best parameter", "name", spec.Name, "value", bestParams[i])
	}
	for i, r := range evaluator.Best() {
		slog.Info("best run", "scenario", scenarios[i].Name, "first_seen", r.firstSeen, "first_heard", r.firstHeard, "windows", len(r.windows))
	}

	if err := params.ApplyToConfig(baseCfg, bestParams); err != nil {
		return err
	}
	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := baseCfg.WriteYAML(configOutPath); err != nil {
		return err
	}
	slog.Info("best config saved", "path", configOutPath)
	return nil
}

// loadScenarios reads a comma-separated list of scenario files.
func loadScenarios(list string) ([]*config.Scenario, error) {
	var paths []string
	for _, p := range strings.Split(list, ",") {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		paths = []string{""}
	}

	scenarios := make([]*config.Scenario, 0, len(paths))
	for _, p := range paths {
		sc, err := config.LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("loading scenario %q: %w", p, err)
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}
