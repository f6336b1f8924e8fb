package encoder

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-cv-evaluator/internal/domain"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s stubEmbedder) Embed(_ domain.Context, _ string) ([]float32, error) { return s.vec, s.err }

type stubQueue struct {
	forwarded []domain.Job
	err       error
}

func (s *stubQueue) EnqueueEncode(_ domain.Context, _ domain.Job) error   { return nil }
func (s *stubQueue) EnqueueRetrieve(_ domain.Context, j domain.Job) error {
	if s.err != nil {
		return s.err
	}
	s.forwarded = append(s.forwarded, j)
	return nil
}
func (s *stubQueue) EnqueueGenerate(_ domain.Context, _ domain.Job) error { return nil }

func TestHandle_EmbedsNormalizesAndForwards(t *testing.T) {
	q := &stubQueue{}
	h := New(stubEmbedder{vec: []float32{3, 4}}, q)

	err := h.handle(context.Background(), domain.Job{JobID: "j1", Text: "hello"})
	require.NoError(t, err)
	require.Len(t, q.forwarded, 1)
	got := q.forwarded[0].Embedding
	require.Len(t, got, 2)
	assert.InDelta(t, 0.6, got[0], 1e-6)
	assert.InDelta(t, 0.8, got[1], 1e-6)

	var sumSq float64
	for _, v := range got {
		sumSq += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sumSq), 1e-6)
	assert.GreaterOrEqual(t, q.forwarded[0].EmbeddingTimingMS, int64(0))
}

func TestHandle_EmbedFailureIsDroppedNotRetried(t *testing.T) {
	q := &stubQueue{}
	h := New(stubEmbedder{err: assertErr{}}, q)
	err := h.handle(context.Background(), domain.Job{JobID: "j1", Text: "hello"})
	require.NoError(t, err)
	assert.Empty(t, q.forwarded)
}

func TestHandle_MissingJobIDOrTextIsDroppedNotError(t *testing.T) {
	q := &stubQueue{}
	h := New(stubEmbedder{vec: []float32{1, 0}}, q)

	err := h.handle(context.Background(), domain.Job{JobID: "", Text: "hello"})
	require.NoError(t, err)
	assert.Empty(t, q.forwarded)

	err = h.handle(context.Background(), domain.Job{JobID: "j1", Text: ""})
	require.NoError(t, err)
	assert.Empty(t, q.forwarded)
}

type assertErr struct{}

func (assertErr) Error() string { return "embed failed" }
