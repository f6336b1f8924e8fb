// Package retriever implements the Retriever stage worker of spec §4.3: it
// pops an embedded Job off Q_ret, searches the vector index, augments the
// prompt with retrieved context, and forwards onto Q_llm.
package retriever

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-cv-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/domain"
)

// Handler processes one Retriever-stage task.
type Handler struct {
	Vector     domain.VectorIndex
	Queue      domain.Queue
	Collection string
	TopK       int
}

// New constructs a Handler.
func New(vector domain.VectorIndex, queue domain.Queue, collection string, topK int) *Handler {
	return &Handler{Vector: vector, Queue: queue, Collection: collection, TopK: topK}
}

// ProcessTask implements asynq.Handler.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var job domain.Job
	if err := json.Unmarshal(t.Payload(), &job); err != nil {
		return fmt.Errorf("op=retriever.ProcessTask: unmarshal: %w", err)
	}
	return h.handle(ctx, job)
}

func (h *Handler) handle(ctx context.Context, job domain.Job) error {
	tr := otel.Tracer("worker.retriever")
	ctx, span := tr.Start(ctx, "retriever.handle")
	defer span.End()

	observability.StartProcessingJob("retrieve")
	start := time.Now()

	hits, err := h.Vector.Search(ctx, h.Collection, job.Embedding, h.TopK)
	var contexts []string
	if err != nil {
		// A search failure yields empty contexts rather than dropping the
		// job (spec §4.3): the generator still produces an answer, just
		// without retrieved context. This is not a stage failure — the
		// retrieve stage still completes and forwards the job — so it
		// does not count against the "retrieve" FailJob/CompleteJob pair.
		slog.WarnContext(ctx, "vector search failed, continuing with empty contexts", "job_id", job.JobID, "error", err)
	} else {
		contexts = extractTexts(hits)
	}
	job.Contexts = contexts
	job.AugmentedPrompt = BuildAugmentedPrompt(job.Text, contexts)
	job.RetrievalTimingMS = time.Since(start).Milliseconds()

	if err := h.Queue.EnqueueGenerate(ctx, job); err != nil {
		observability.FailJob("retrieve")
		return fmt.Errorf("op=retriever.handle: enqueue generate: %w", err)
	}
	observability.CompleteJob("retrieve")
	return nil
}

func extractTexts(hits []map[string]any) []string {
	out := make([]string, 0, len(hits))
	for _, hit := range hits {
		payload, ok := hit["payload"].(map[string]any)
		if !ok {
			continue
		}
		text, ok := payload["text"].(string)
		if !ok || text == "" {
			continue
		}
		out = append(out, text)
	}
	return out
}

// BuildAugmentedPrompt reproduces the prompt template of spec §3 exactly:
// when no context was retrieved, the query passes through unchanged;
// otherwise each context is numbered and the query is appended as the
// final question.
func BuildAugmentedPrompt(query string, contexts []string) string {
	if len(contexts) == 0 {
		return query
	}
	var b strings.Builder
	for i, c := range contexts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s", i+1, c)
	}
	return fmt.Sprintf("You are a helpful assistant. Use the following context to answer the question.\n\nContext:\n%s\n\nQuestion: %s\n\nAnswer:", b.String(), query)
}
