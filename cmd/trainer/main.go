// Command trainer runs the background DQN training loop against the
// shared policy checkpoint (spec §4.7): it loads the checkpoint, trains on
// a fixed cadence, and persists the result back for the ingress processes
// to pick up.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	obsadapter "github.com/fairyhunter13/ai-cv-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/config"
	obs "github.com/fairyhunter13/ai-cv-evaluator/internal/observability"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/policy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	logger := obsadapter.SetupLogger(cfg)
	slog.SetDefault(logger)
	obsadapter.InitMetrics()

	pol := policy.New(cfg)
	if err := pol.Load(); err != nil {
		logger.Warn("policy checkpoint load failed, starting cold", "error", err)
	}

	trainer := policy.NewTrainer(pol, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down trainer")
		cancel()
	}()

	ctx = obs.ContextWithLogger(ctx, logger)
	logger.Info("trainer starting", "interval", cfg.TrainerInterval, "batch_size", cfg.BatchSize)
	trainer.Run(ctx)

	if err := pol.Save(); err != nil {
		logger.Warn("final policy checkpoint save failed", "error", err)
	}
}
