// Package encoder implements the Encoder stage worker of spec §4.2: it
// pops a Job off Q_enc, embeds its text, and forwards the enriched Job
// onto Q_ret.
package encoder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-cv-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/domain"
)

// Handler processes one Encoder-stage task: unmarshal, embed, forward.
type Handler struct {
	Embedder domain.Embedder
	Queue    domain.Queue
}

// New constructs a Handler.
func New(embedder domain.Embedder, queue domain.Queue) *Handler {
	return &Handler{Embedder: embedder, Queue: queue}
}

// ProcessTask implements asynq.Handler, satisfying asynqq.RunServer's
// asynq.HandlerFunc parameter via the method value h.ProcessTask.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var job domain.Job
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		return fmt.Errorf("op=encoder.ProcessTask: unmarshal: %w", err)
	}
	return h.handle(ctx, job)
}

func (h *Handler) handle(ctx context.Context, job domain.Job) error {
	if job.JobID == "" || job.Text == "" {
		slog.WarnContext(ctx, "dropping encode task with missing job_id/text", "job_id", job.JobID)
		return nil
	}

	tr := otel.Tracer("worker.encoder")
	ctx, span := tr.Start(ctx, "encoder.handle")
	defer span.End()

	observability.StartProcessingJob("encode")
	start := time.Now()

	vec, err := h.Embedder.Embed(ctx, job.Text)
	if err != nil {
		observability.FailJob("encode")
		// The job is dropped here: returning nil stops asynq from retrying
		// the embed call.
		slog.ErrorContext(ctx, "embedding failed, dropping job", "job_id", job.JobID, "error", err)
		return nil
	}

	job.Embedding = normalizeL2(vec)
	job.EmbeddingTimingMS = time.Since(start).Milliseconds()

	if err := h.Queue.EnqueueRetrieve(ctx, job); err != nil {
		observability.FailJob("encode")
		return fmt.Errorf("op=encoder.handle: enqueue retrieve: %w", err)
	}
	observability.CompleteJob("encode")
	return nil
}

// normalizeL2 scales vec to unit L2 norm, matching spec §3/§4.2's
// "unit-normalized real vector" contract. A zero vector is returned
// unchanged since it has no direction to normalize to.
func normalizeL2(vec []float32) []float32 {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return vec
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
