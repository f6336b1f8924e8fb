package generator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-cv-evaluator/internal/domain"
)

type stubLLM struct {
	resp string
	err  error
}

func (s stubLLM) Generate(_ domain.Context, _ string) (string, error) { return s.resp, s.err }

type stubCompletion struct {
	put domain.CompletionRecord
	ttl time.Duration
}

func (s *stubCompletion) Put(_ domain.Context, _ string, rec domain.CompletionRecord, ttl time.Duration) error {
	s.put = rec
	s.ttl = ttl
	return nil
}
func (s *stubCompletion) Get(_ domain.Context, _ string) (domain.CompletionRecord, bool, error) {
	return domain.CompletionRecord{}, false, nil
}

func TestHandle_SuccessWritesCompletionRecord(t *testing.T) {
	c := &stubCompletion{}
	h := New(stubLLM{resp: "Paris"}, c, "generator-0")

	err := h.handle(context.Background(), domain.Job{JobID: "j1", AugmentedPrompt: "q?"})
	require.NoError(t, err)
	assert.True(t, c.put.Success)
	assert.Equal(t, "Paris", c.put.Response)
	assert.Equal(t, "generator-0", c.put.Worker)
	assert.Equal(t, CompletionTTL, c.ttl)
}

func TestHandle_FailureWritesFailedCompletionRecordAndReturnsNilSoAsynqDoesNotRetry(t *testing.T) {
	c := &stubCompletion{}
	h := New(stubLLM{err: assertErr{}}, c, "generator-0")

	err := h.handle(context.Background(), domain.Job{JobID: "j1", AugmentedPrompt: "q?"})
	require.NoError(t, err)
	assert.False(t, c.put.Success)
	assert.NotEmpty(t, c.put.Error)
}

func TestHandle_FallsBackToRawTextWhenNoAugmentedPrompt(t *testing.T) {
	c := &stubCompletion{}
	var seenPrompt string
	h := New(promptCapturingLLM{capture: &seenPrompt}, c, "generator-0")
	err := h.handle(context.Background(), domain.Job{JobID: "j1", Text: "raw question"})
	require.NoError(t, err)
	assert.Equal(t, "raw question", seenPrompt)
}

type promptCapturingLLM struct {
	capture *string
}

func (p promptCapturingLLM) Generate(_ domain.Context, prompt string) (string, error) {
	*p.capture = prompt
	return "ok", nil
}

type assertErr struct{}

func (assertErr) Error() string { return "generation failed" }
