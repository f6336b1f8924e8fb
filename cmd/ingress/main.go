// Command ingress runs the RAG serving backend's HTTP ingress: it accepts
// POST /query, dispatches jobs onto the encode/retrieve/generate pipeline,
// and polls the completion store for the answer (spec §4.1).
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-cv-evaluator/internal/adapter/completion"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/adapter/httpserver"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/adapter/loadacct"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/adapter/queue/asynqq"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/app"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/config"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/policy"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/service/ratelimiter"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracing, err := observability.SetupTracing(cfg)
	if err != nil {
		logger.Error("tracing setup failed", "error", err)
		os.Exit(1)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("redis url parse failed", "error", err)
		os.Exit(1)
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	redisConnOpt, err := asynqq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Error("asynq redis uri parse failed", "error", err)
		os.Exit(1)
	}
	q := asynqq.New(redisConnOpt)
	defer func() { _ = q.Close() }()

	loadAccount := loadacct.New(rdb)
	completionStore := completion.New(rdb)

	pol := policy.New(cfg)
	if err := pol.Load(); err != nil {
		logger.Warn("policy checkpoint load failed, starting cold", "error", err)
	}
	stateCollector := policy.NewStateCollector(60 * time.Second)

	orchestrator := usecase.NewOrchestrator(q, loadAccount, completionStore, pol, stateCollector, cfg)

	limiter := ratelimiter.NewRedisLuaLimiter(rdb, nil)

	readyChecks := app.BuildReadinessChecks(cfg, rdb)
	srv := httpserver.NewServer(cfg, orchestrator, readyChecks)
	router := app.BuildRouter(cfg, srv, limiter)

	httpSrv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		logger.Info("ingress listening", "port", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ingress server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down ingress")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("ingress shutdown error", "error", err)
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}
	if err := pol.Save(); err != nil {
		logger.Warn("policy checkpoint save on shutdown failed", "error", err)
	}
}
