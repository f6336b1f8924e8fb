// Command encoder runs the Q_enc worker: it embeds a job's query text and
// forwards the job onto Q_ret (spec §4.2).
package main

import (
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/fairyhunter13/ai-cv-evaluator/internal/adapter/ai"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/adapter/queue/asynqq"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/config"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/worker/encoder"
)

const defaultConcurrency = 10

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	redisConnOpt, err := asynqq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Error("asynq redis uri parse failed", "error", err)
		os.Exit(1)
	}
	q := asynqq.New(redisConnOpt)
	defer func() { _ = q.Close() }()

	embedder := ai.NewEmbedderClient(cfg.EmbedderURL, cfg)
	handler := encoder.New(embedder, q)

	logger.Info("encoder worker starting", "queue", asynqq.QueueEnc)
	if err := asynqq.RunServer(redisConnOpt, asynqq.QueueEnc, defaultConcurrency, asynqq.TaskEncode, asynq.HandlerFunc(handler.ProcessTask)); err != nil {
		logger.Error("encoder worker stopped", "error", err)
		os.Exit(1)
	}
}
