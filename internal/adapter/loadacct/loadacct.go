// Package loadacct implements the per-replica load:<replica_id> counters
// (spec §4.5) atop Redis, using a Lua script so increment/decrement/clamp
// happen as a single atomic round trip.
package loadacct

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-cv-evaluator/internal/domain"
)

// Accounting implements domain.LoadAccount atop a *redis.Client, grounded
// on the token-bucket Lua pattern used by the rate limiter.
type Accounting struct {
	rdb        redis.Cmdable
	incrScript *redis.Script
	decrScript *redis.Script
}

// New constructs an Accounting backed by rdb. rdb may be a *redis.Client or
// any other redis.Cmdable (e.g. a miniredis-backed client in tests).
func New(rdb redis.Cmdable) *Accounting {
	return &Accounting{
		rdb:        rdb,
		incrScript: redis.NewScript(luaIncrScript),
		decrScript: redis.NewScript(luaDecrClampScript),
	}
}

func key(replica int) string {
	return fmt.Sprintf("load:%d", replica)
}

// luaIncrScript increments the counter unconditionally.
const luaIncrScript = `
return redis.call("INCR", KEYS[1])
`

// luaDecrClampScript decrements the counter and floors it to zero so a
// racing double-decrement (e.g. a late completion arriving after a
// timeout already cleaned up) can never drive the counter negative.
const luaDecrClampScript = `
local v = redis.call("DECR", KEYS[1])
if v < 0 then
  redis.call("SET", KEYS[1], 0)
  return 0
end
return v
`

// Incr atomically increments the counter for replica and returns the new value.
func (a *Accounting) Incr(ctx domain.Context, replica int) (int64, error) {
	v, err := a.incrScript.Run(ctx, a.rdb, []string{key(replica)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("op=loadacct.Incr: %w", err)
	}
	return v, nil
}

// Decr atomically decrements the counter for replica, clamped to zero.
func (a *Accounting) Decr(ctx domain.Context, replica int) (int64, error) {
	v, err := a.decrScript.Run(ctx, a.rdb, []string{key(replica)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("op=loadacct.Decr: %w", err)
	}
	return v, nil
}

// Get returns the current counter value for replica.
func (a *Accounting) Get(ctx domain.Context, replica int) (int64, error) {
	v, err := a.rdb.Get(ctx, key(replica)).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("op=loadacct.Get: %w", err)
	}
	return v, nil
}

// Snapshot returns the current counter values for replicas [0, n).
func (a *Accounting) Snapshot(ctx domain.Context, n int) ([]int64, error) {
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		v, err := a.Get(ctx, i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
