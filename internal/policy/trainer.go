package policy

import (
	"context"
	"time"

	"github.com/fairyhunter13/ai-cv-evaluator/internal/config"
	obs "github.com/fairyhunter13/ai-cv-evaluator/internal/observability"
)

// Trainer runs Policy.Train on a fixed cadence until its context is
// canceled, per spec §4.7's Background Trainer. A failed training pass is
// logged and retried on the next tick rather than stopping the loop.
type Trainer struct {
	policy   *Policy
	interval time.Duration
	batch    int
	steps    int
}

// NewTrainer builds a Trainer from cfg's TrainerInterval/BatchSize/
// TrainerIterations.
func NewTrainer(p *Policy, cfg config.Config) *Trainer {
	return &Trainer{
		policy:   p,
		interval: cfg.TrainerInterval,
		batch:    cfg.BatchSize,
		steps:    cfg.TrainerIterations,
	}
}

// Run blocks, training every interval until ctx is canceled.
func (t *Trainer) Run(ctx context.Context) {
	logger := obs.LoggerFromContext(ctx)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := t.policy.Train(t.batch, t.steps)
			if err != nil {
				logger.Error("policy training pass failed", "error", err)
				continue
			}
			if stats.Iterations == 0 {
				continue
			}
			logger.Info("policy training pass complete",
				"iterations", stats.Iterations,
				"mean_loss", stats.MeanLoss,
				"epsilon", stats.Epsilon,
				"steps", stats.Steps,
			)
			if err := t.policy.Save(); err != nil {
				logger.Warn("policy checkpoint save failed", "error", err)
			}
		}
	}
}
