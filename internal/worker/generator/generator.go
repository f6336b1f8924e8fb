// Package generator implements the Generator stage worker of spec §4.4: it
// pops a retrieved Job off its replica's Q_llm shard, calls the LLM, and
// writes the completion record exactly once, keyed by job id with a 60s
// TTL.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-cv-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/domain"
)

// CompletionTTL is the fixed lifetime of a completion record (spec §3).
const CompletionTTL = 60 * time.Second

// Handler processes one Generator-stage task.
type Handler struct {
	LLM        domain.LLMClient
	Completion domain.CompletionStore
	WorkerName string
}

// New constructs a Handler identified by workerName in its completion
// records (spec §3's "worker" field), matching the original's
// WORKER_NAME env var per replica.
func New(llm domain.LLMClient, completion domain.CompletionStore, workerName string) *Handler {
	return &Handler{LLM: llm, Completion: completion, WorkerName: workerName}
}

// ProcessTask implements asynq.Handler.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var job domain.Job
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		return fmt.Errorf("op=generator.ProcessTask: unmarshal: %w", err)
	}
	return h.handle(ctx, job)
}

func (h *Handler) handle(ctx context.Context, job domain.Job) error {
	tr := otel.Tracer("worker.generator")
	ctx, span := tr.Start(ctx, "generator.handle")
	defer span.End()

	observability.StartProcessingJob("generate")
	start := time.Now()

	prompt := job.AugmentedPrompt
	if prompt == "" {
		prompt = job.Text
	}

	response, err := h.LLM.Generate(ctx, prompt)
	elapsed := time.Since(start)
	job.GenerationTimingMS = elapsed.Milliseconds()

	rec := domain.CompletionRecord{
		Worker:           h.WorkerName,
		GenerationTimeMS: elapsed.Milliseconds(),
		Timestamp:        time.Now().Unix(),
	}
	if err != nil {
		rec.Success = false
		rec.Error = err.Error()
	} else {
		rec.Success = true
		rec.Response = response
	}

	if putErr := h.Completion.Put(ctx, job.JobID, rec, CompletionTTL); putErr != nil {
		observability.FailJob("generate")
		return fmt.Errorf("op=generator.handle: completion put: %w", putErr)
	}

	if err != nil {
		// The failure completion record is already persisted, so the job
		// is terminal: returning nil here stops asynq from retrying and
		// re-invoking the LLM, which would re-write (and could overwrite)
		// the completion record already written exactly once (spec §3/§4.4).
		observability.FailJob("generate")
		slog.WarnContext(ctx, "generation failed, completion recorded as terminal failure", "job_id", job.JobID, "error", err)
		return nil
	}
	observability.CompleteJob("generate")
	return nil
}
