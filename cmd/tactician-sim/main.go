// Package main runs a headless combat: it loads a scenario, attaches the
// decision core to every unit, and plays turns until one faction remains.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/tactician/internal/arena"
	"github.com/cory-johannsen/tactician/internal/config"
	"github.com/cory-johannsen/tactician/internal/observability"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	scenarioPath := flag.String("scenario", "content/scenarios/skirmish.yaml", "path to scenario YAML file")
	batchDir := flag.String("batch", "", "run every scenario in this directory concurrently instead of -scenario")
	seed := flag.Uint64("seed", 0, "override the scenario's damage seed; 0 keeps it")
	quiet := flag.Bool("quiet", false, "print only the summary, not the combat log")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, "tactician-sim")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	content, err := arena.LoadContent(ctx, cfg.Content, logger)
	if err != nil {
		logger.Fatal("loading content", zap.Error(err))
	}
	defer content.Close()

	if *batchDir != "" {
		if err := runBatch(ctx, cfg, content, *batchDir, logger); err != nil {
			logger.Error("batch failed", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	scn, err := arena.LoadScenarioFromFile(*scenarioPath)
	if err != nil {
		logger.Fatal("loading scenario", zap.Error(err))
	}
	if *seed != 0 {
		scn.Seed = *seed
	}

	eng, err := arena.NewEngine(cfg, scn, content, logger)
	if err != nil {
		logger.Fatal("assembling engine", zap.Error(err))
	}
	logger.Info("starting combat",
		zap.String("scenario", scn.ID),
		zap.Int("units", len(scn.Units)),
		zap.Uint64("seed", scn.Seed),
		zap.Duration("startup", time.Since(start)),
	)

	rep, err := eng.Simulator.Run(ctx)
	if err != nil {
		logger.Error("combat interrupted", zap.Error(err))
	}
	if !*quiet {
		for _, e := range rep.Events {
			fmt.Println(e)
		}
	}
	printSummary(rep, time.Since(start))
	if err != nil {
		os.Exit(1)
	}
}

// runBatch plays every scenario in dir on its own engine, concurrently, and
// prints one summary line per scenario in directory order.
func runBatch(ctx context.Context, cfg config.Config, content *arena.Content, dir string, logger *zap.Logger) error {
	scenarios, err := arena.LoadScenariosFromDir(dir)
	if err != nil {
		return err
	}
	reports := make([]arena.Report, len(scenarios))
	elapsed := make([]time.Duration, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	for i, scn := range scenarios {
		g.Go(func() error {
			began := time.Now()
			eng, err := arena.NewEngine(cfg, scn, content, logger.With(zap.String("scenario", scn.ID)))
			if err != nil {
				return err
			}
			reports[i], err = eng.Simulator.Run(ctx)
			elapsed[i] = time.Since(began)
			return err
		})
	}
	err = g.Wait()
	for i, rep := range reports {
		if rep.Scenario != "" {
			printSummary(rep, elapsed[i])
		}
	}
	return err
}

func printSummary(rep arena.Report, elapsed time.Duration) {
	winner := rep.Winner
	if winner == "" {
		winner = "draw"
	}
	fmt.Printf("scenario=%s winner=%s rounds=%d turns=%d actions=%d elapsed=%s\n",
		rep.Scenario, winner, rep.Rounds, rep.Turns, rep.Actions, elapsed.Round(time.Millisecond))
}
