package completion

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-cv-evaluator/internal/domain"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb), mr
}

func TestPutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	rec := domain.CompletionRecord{
		Success:          true,
		Response:         "Paris is the capital of France.",
		Worker:           "generator-0",
		GenerationTimeMS: 123,
		Timestamp:        1000,
	}
	require.NoError(t, s.Put(ctx, "job-1", rec, time.Minute))

	got, ok, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec, got)
}

func TestGetMissing(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, ok, err := s.Get(ctx, "does-not-exist")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetExpired(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	rec := domain.CompletionRecord{Success: false, Error: "boom", Worker: "generator-1"}
	require.NoError(t, s.Put(ctx, "job-2", rec, time.Second))
	mr.FastForward(2 * time.Second)

	_, ok, err := s.Get(ctx, "job-2")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestNeverObservesAnotherJobsRecord(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.Put(ctx, "job-a", domain.CompletionRecord{Success: true, Response: "A"}, time.Minute))
	require.NoError(t, s.Put(ctx, "job-b", domain.CompletionRecord{Success: true, Response: "B"}, time.Minute))

	got, ok, err := s.Get(ctx, "job-a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "A", got.Response)
}
