package retriever

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-cv-evaluator/internal/domain"
)

type stubVector struct {
	hits []map[string]any
	err  error
}

func (s stubVector) Search(_ domain.Context, _ string, _ []float32, _ int) ([]map[string]any, error) {
	return s.hits, s.err
}

type stubQueue struct {
	forwarded []domain.Job
}

func (s *stubQueue) EnqueueEncode(_ domain.Context, _ domain.Job) error  { return nil }
func (s *stubQueue) EnqueueRetrieve(_ domain.Context, _ domain.Job) error { return nil }
func (s *stubQueue) EnqueueGenerate(_ domain.Context, j domain.Job) error {
	s.forwarded = append(s.forwarded, j)
	return nil
}

func TestHandle_BuildsAugmentedPromptFromHits(t *testing.T) {
	hits := []map[string]any{
		{"payload": map[string]any{"text": "Paris is the capital of France."}},
		{"payload": map[string]any{"text": "France is in Europe."}},
	}
	q := &stubQueue{}
	h := New(stubVector{hits: hits}, q, "docs", 5)

	err := h.handle(context.Background(), domain.Job{JobID: "j1", Text: "what is the capital of france?"})
	require.NoError(t, err)
	require.Len(t, q.forwarded, 1)
	got := q.forwarded[0]
	assert.Equal(t, []string{"Paris is the capital of France.", "France is in Europe."}, got.Contexts)
	assert.Contains(t, got.AugmentedPrompt, "[1] Paris is the capital of France.")
	assert.Contains(t, got.AugmentedPrompt, "Question: what is the capital of france?")
}

func TestBuildAugmentedPrompt_NoContextsPassesQueryThrough(t *testing.T) {
	assert.Equal(t, "hello", BuildAugmentedPrompt("hello", nil))
}

func TestHandle_SearchFailureYieldsEmptyContextsAndStillForwards(t *testing.T) {
	q := &stubQueue{}
	h := New(stubVector{err: assertErr{}}, q, "docs", 5)
	err := h.handle(context.Background(), domain.Job{JobID: "j1", Text: "what is the capital of france?"})
	require.NoError(t, err)
	require.Len(t, q.forwarded, 1)
	got := q.forwarded[0]
	assert.Empty(t, got.Contexts)
	assert.Equal(t, "what is the capital of france?", got.AugmentedPrompt)
}

type assertErr struct{}

func (assertErr) Error() string { return "search failed" }
