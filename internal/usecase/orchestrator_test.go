package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-cv-evaluator/internal/config"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/domain"
)

// fakeQueue is an in-memory domain.Queue that optionally simulates the
// downstream pipeline by writing a completion record once a job is
// enqueued, letting Orchestrator.Query tests run without Redis/asynq.
type fakeQueue struct {
	mu          sync.Mutex
	encoded     []domain.Job
	enqueueErr  error
	onEncode    func(domain.Job)
}

func (f *fakeQueue) EnqueueEncode(_ domain.Context, j domain.Job) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.mu.Lock()
	f.encoded = append(f.encoded, j)
	f.mu.Unlock()
	if f.onEncode != nil {
		f.onEncode(j)
	}
	return nil
}
func (f *fakeQueue) EnqueueRetrieve(_ domain.Context, _ domain.Job) error { return nil }
func (f *fakeQueue) EnqueueGenerate(_ domain.Context, _ domain.Job) error { return nil }

// fakeLoad is an in-memory domain.LoadAccount.
type fakeLoad struct {
	mu     sync.Mutex
	counts map[int]int64
}

func newFakeLoad(n int) *fakeLoad {
	return &fakeLoad{counts: make(map[int]int64, n)}
}
func (f *fakeLoad) Incr(_ domain.Context, replica int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[replica]++
	return f.counts[replica], nil
}
func (f *fakeLoad) Decr(_ domain.Context, replica int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts[replica] > 0 {
		f.counts[replica]--
	}
	return f.counts[replica], nil
}
func (f *fakeLoad) Get(_ domain.Context, replica int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[replica], nil
}
func (f *fakeLoad) Snapshot(_ domain.Context, n int) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		out[i] = f.counts[i]
	}
	return out, nil
}

// fakeCompletion is an in-memory domain.CompletionStore.
type fakeCompletion struct {
	mu   sync.Mutex
	recs map[string]domain.CompletionRecord
}

func newFakeCompletion() *fakeCompletion {
	return &fakeCompletion{recs: make(map[string]domain.CompletionRecord)}
}
func (f *fakeCompletion) Put(_ domain.Context, jobID string, rec domain.CompletionRecord, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs[jobID] = rec
	return nil
}
func (f *fakeCompletion) Get(_ domain.Context, jobID string) (domain.CompletionRecord, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recs[jobID]
	return rec, ok, nil
}

func testOrchestratorConfig() config.Config {
	return config.Config{
		ReplicaCount:   3,
		JobTimeoutS:    1,
		PollIntervalMS: 10,
	}
}

func TestQuery_HappyPath(t *testing.T) {
	completion := newFakeCompletion()
	load := newFakeLoad(3)
	queue := &fakeQueue{}
	queue.onEncode = func(j domain.Job) {
		go func() {
			time.Sleep(5 * time.Millisecond)
			_ = completion.Put(nil, j.JobID, domain.CompletionRecord{Success: true, Response: "paris"}, time.Minute)
		}()
	}
	orch := NewOrchestrator(queue, load, completion, nil, nil, testOrchestratorConfig())

	jobID, answer, latencyMS, replica, err := orch.Query(contextTODO(), "capital of france?")
	require.NoError(t, err)
	assert.NotEmpty(t, jobID)
	assert.Equal(t, "paris", answer)
	assert.GreaterOrEqual(t, latencyMS, int64(0))
	assert.NotEmpty(t, replica)

	// The load counter must be back at zero on every replica after completion.
	snap, err := load.Snapshot(contextTODO(), 3)
	require.NoError(t, err)
	for _, v := range snap {
		assert.Equal(t, int64(0), v)
	}
}

func TestQuery_EmptyTextIsBadInput(t *testing.T) {
	orch := NewOrchestrator(&fakeQueue{}, newFakeLoad(3), newFakeCompletion(), nil, nil, testOrchestratorConfig())
	_, _, _, _, err := orch.Query(contextTODO(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBadInput)
}

func TestQuery_TimesOutWhenNoCompletionArrives(t *testing.T) {
	completion := newFakeCompletion()
	load := newFakeLoad(3)
	queue := &fakeQueue{}
	orch := NewOrchestrator(queue, load, completion, nil, nil, testOrchestratorConfig())

	_, _, _, _, err := orch.Query(contextTODO(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTimeout)

	snap, err := load.Snapshot(contextTODO(), 3)
	require.NoError(t, err)
	for _, v := range snap {
		assert.Equal(t, int64(0), v)
	}
}

func TestQuery_EnqueueFailureDecrementsLoad(t *testing.T) {
	completion := newFakeCompletion()
	load := newFakeLoad(3)
	queue := &fakeQueue{enqueueErr: assertError{}}
	orch := NewOrchestrator(queue, load, completion, nil, nil, testOrchestratorConfig())

	_, _, _, _, err := orch.Query(contextTODO(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)

	snap, err := load.Snapshot(contextTODO(), 3)
	require.NoError(t, err)
	for _, v := range snap {
		assert.Equal(t, int64(0), v)
	}
}

func TestQuery_GenerationFailureSurfacesError(t *testing.T) {
	completion := newFakeCompletion()
	load := newFakeLoad(3)
	queue := &fakeQueue{}
	queue.onEncode = func(j domain.Job) {
		_ = completion.Put(nil, j.JobID, domain.CompletionRecord{Success: false, Error: "llm exploded"}, time.Minute)
	}
	orch := NewOrchestrator(queue, load, completion, nil, nil, testOrchestratorConfig())

	_, _, _, _, err := orch.Query(contextTODO(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
}

type assertError struct{}

func (assertError) Error() string { return "enqueue failed" }

func contextTODO() domain.Context { return context.Background() }
