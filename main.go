package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pthm-cable/prowl/config"
	"github.com/pthm-cable/prowl/game"
	"github.com/pthm-cable/prowl/telemetry"
)

func main() {
	if err := run(); err != nil {
		slog.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	scenarioPath := flag.String("scenario", "", "Path to scenario.yaml (empty = built-in storeroom)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = length of the player script)")
	outputDir := flag.String("out", "", "Output directory for CSV logs, snapshots and config")
	logLevel := flag.String("log-level", "", "Override logging.level")
	logStats := flag.Bool("log-stats", false, "Log window stats and bookmarks")
	snapshots := flag.Bool("snapshots", false, "Save a snapshot on every bookmark (needs -out)")
	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := config.Cfg()
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger, closeLog, err := game.NewLogger(cfg.Logging, os.Stdout)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	scenario, err := config.LoadScenario(*scenarioPath)
	if err != nil {
		return fmt.Errorf("loading scenario: %w", err)
	}

	ticks := *maxTicks
	if ticks <= 0 {
		ticks = scenario.ScriptLength()
	}

	output, err := telemetry.NewOutputManager(*outputDir)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer func() {
		if err := output.Close(); err != nil {
			logger.Error("failed to close output", "error", err)
		}
	}()

	info := telemetry.NewRunInfo(scenario.Name, len(scenario.NPCs), ticks, cfg.Simulation.DT)
	if err := output.WriteConfig(cfg); err != nil {
		return err
	}
	if err := output.WriteRunInfo(info); err != nil {
		return err
	}

	sim, err := game.NewSimulation(cfg, scenario, game.Options{
		Logger:    logger,
		Output:    output,
		RunID:     info.ID,
		LogStats:  *logStats,
		Snapshots: *snapshots,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting headless simulation",
		"run_id", info.ID,
		"scenario", scenario.Name,
		"max_ticks", ticks,
		"output", output.Dir(),
	)

	for sim.Tick() < ticks {
		if err := sim.Step(ctx); err != nil {
			logger.Warn("simulation interrupted", "tick", sim.Tick(), "error", err)
			break
		}
	}

	logger.Info("simulation finished",
		"tick", sim.Tick(),
		"npcs", sim.NPCCount(),
		"player_dead", sim.PlayerDead(),
	)
	return sim.Finish()
}
