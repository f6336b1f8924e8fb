// Command retriever runs the Q_ret worker: it searches the vector index for
// contexts, builds the augmented prompt, and forwards the job onto Q_llm
// (spec §4.3).
package main

import (
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/fairyhunter13/ai-cv-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/adapter/queue/asynqq"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/adapter/vector/qdrant"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/config"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/worker/retriever"
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

	vectorClient := qdrant.New(cfg.QdrantURL, cfg.QdrantAPIKey)
	handler := retriever.New(vectorClient, q, cfg.QdrantCollection, cfg.TopK)

	logger.Info("retriever worker starting", "queue", asynqq.QueueRet)
	if err := asynqq.RunServer(redisConnOpt, asynqq.QueueRet, defaultConcurrency, asynqq.TaskRetrieve, asynq.HandlerFunc(handler.ProcessTask)); err != nil {
		logger.Error("retriever worker stopped", "error", err)
		os.Exit(1)
	}
}
