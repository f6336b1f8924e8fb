// Package completion implements the completion:<job_id> TTL'd record store
// (spec §3) atop Redis SETEX/GET, mirroring the field names of the Python
// predecessor's llm_generator worker so the wire format stays recognizable.
package completion

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/ai-cv-evaluator/internal/domain"
)

// Store implements domain.CompletionStore atop a *redis.Client.
type Store struct {
	rdb redis.Cmdable
}

// New constructs a Store backed by rdb.
func New(rdb redis.Cmdable) *Store {
	return &Store{rdb: rdb}
}

func completionKey(jobID string) string {
	return "completion:" + jobID
}

// Put writes the completion record for jobID with the given TTL.
func (s *Store) Put(ctx domain.Context, jobID string, rec domain.CompletionRecord, ttl time.Duration) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("op=completion.Put: marshal: %w", err)
	}
	if err := s.rdb.Set(ctx, completionKey(jobID), b, ttl).Err(); err != nil {
		return fmt.Errorf("op=completion.Put: %w", err)
	}
	return nil
}

// Get reads the completion record for jobID, or (_, false, nil) if absent.
func (s *Store) Get(ctx domain.Context, jobID string) (domain.CompletionRecord, bool, error) {
	var rec domain.CompletionRecord
	b, err := s.rdb.Get(ctx, completionKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return domain.CompletionRecord{}, false, nil
		}
		return domain.CompletionRecord{}, false, fmt.Errorf("op=completion.Get: %w", err)
	}
	if err := json.Unmarshal(b, &rec); err != nil {
		return domain.CompletionRecord{}, false, fmt.Errorf("op=completion.Get: unmarshal: %w", err)
	}
	return rec, true, nil
}
