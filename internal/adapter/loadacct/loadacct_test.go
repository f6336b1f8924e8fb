package loadacct

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestAccounting(t *testing.T) *Accounting {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb)
}

func TestIncrDecrGet(t *testing.T) {
	ctx := context.Background()
	a := newTestAccounting(t)

	v, err := a.Incr(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), v)

	v, err = a.Incr(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), v)

	v, err = a.Get(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), v)

	v, err = a.Decr(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), v)
}

func TestDecrClampsToZero(t *testing.T) {
	ctx := context.Background()
	a := newTestAccounting(t)

	v, err := a.Decr(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(0), v)

	v, err = a.Decr(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(0), v)

	v, err = a.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(0), v)
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	a := newTestAccounting(t)

	_, _ = a.Incr(ctx, 0)
	_, _ = a.Incr(ctx, 0)
	_, _ = a.Incr(ctx, 2)

	snap, err := a.Snapshot(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, []int64{2, 0, 1}, snap)
}
