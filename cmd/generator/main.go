// Command generator runs one Q_llm shard worker: it calls the LLM backend
// and writes the completion record (spec §4.4). One process per replica;
// REPLICA_INDEX selects which shard this process consumes.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/fairyhunter13/ai-cv-evaluator/internal/adapter/ai"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/adapter/completion"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/adapter/queue/asynqq"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/config"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/worker/generator"
	"github.com/redis/go-redis/v9"
)

const defaultConcurrency = 5

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg).With("replica", cfg.ReplicaIndex)
	slog.SetDefault(logger)
	observability.InitMetrics()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("redis url parse failed", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()
	completionStore := completion.New(rdb)

	redisConnOpt, err := asynqq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Error("asynq redis uri parse failed", "error", err)
		os.Exit(1)
	}

	llmClient := ai.NewLLMClient(cfg.LLMURL, cfg.LLMModel, cfg)
	workerName := fmt.Sprintf("generator-%d", cfg.ReplicaIndex)
	handler := generator.New(llmClient, completionStore, workerName)

	queueName := asynqq.QueueLLM(cfg.ReplicaIndex)
	logger.Info("generator worker starting", "queue", queueName, "worker", workerName)
	if err := asynqq.RunServer(redisConnOpt, queueName, defaultConcurrency, asynqq.TaskGenerate, asynq.HandlerFunc(handler.ProcessTask)); err != nil {
		logger.Error("generator worker stopped", "error", err)
		os.Exit(1)
	}
}
