// Package asynqq implements the Q_enc/Q_ret/Q_llm pipeline queues (spec §3)
// atop asynq/Redis. Q_llm is sharded one asynq queue per generator replica
// so that the replica the ingress selects for load accounting is the same
// replica that actually consumes the job — see SPEC_FULL.md §9 (Open
// Question resolution: strict binding).
package asynqq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fairyhunter13/ai-cv-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/domain"
)

// Task type names. Each pipeline stage binary registers a handler for
// exactly one of these on a mux bound to the queue it consumes.
const (
	TaskEncode   = "job:encode"
	TaskRetrieve = "job:retrieve"
	TaskGenerate = "job:generate"
)

// QueueEnc, QueueRet are the fixed single-shard stage queues. QueueLLM
// returns the replica-sharded generator queue name.
const (
	QueueEnc = "q_enc"
	QueueRet = "q_ret"
)

// QueueLLM returns the asynq queue name for generator replica r.
func QueueLLM(replica int) string {
	return fmt.Sprintf("q_llm_%d", replica)
}

// MaxRetry bounds at-least-once redelivery attempts before asynq moves a
// task to its dead-letter archive; workers are expected to be idempotent
// per spec §3, but a BAD_INPUT job should not be retried forever.
const MaxRetry = 3

// Retention keeps a processed task's result around briefly for inspection;
// not relied upon by any component (completion state lives in Redis).
const Retention = 1 * time.Hour

// Queue implements domain.Queue atop an asynq.Client.
type Queue struct {
	client *asynq.Client
}

// New constructs a Queue from a parsed Redis connection option.
func New(redisOpt asynq.RedisConnOpt) *Queue {
	return &Queue{client: asynq.NewClient(redisOpt)}
}

// ParseRedisURI parses a redis:// URI into an asynq.RedisConnOpt.
func ParseRedisURI(uri string) (asynq.RedisConnOpt, error) {
	opt, err := asynq.ParseRedisURI(uri)
	if err != nil {
		return nil, fmt.Errorf("op=asynqq.ParseRedisURI: %w", err)
	}
	return opt, nil
}

// Close releases the underlying asynq client connection.
func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) enqueue(ctx domain.Context, taskType, queue string, j domain.Job) error {
	b, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("op=asynqq.enqueue: marshal: %w", err)
	}
	t := asynq.NewTask(taskType, b)
	if _, err := q.client.EnqueueContext(ctx, t,
		asynq.Queue(queue),
		asynq.MaxRetry(MaxRetry),
		asynq.Retention(Retention),
	); err != nil {
		return fmt.Errorf("op=asynqq.enqueue: %w", err)
	}
	observability.EnqueueJob(queue)
	return nil
}

// EnqueueEncode publishes a fresh Job onto Q_enc.
func (q *Queue) EnqueueEncode(ctx domain.Context, j domain.Job) error {
	return q.enqueue(ctx, TaskEncode, QueueEnc, j)
}

// EnqueueRetrieve publishes an embedded Job onto Q_ret.
func (q *Queue) EnqueueRetrieve(ctx domain.Context, j domain.Job) error {
	return q.enqueue(ctx, TaskRetrieve, QueueRet, j)
}

// EnqueueGenerate publishes a retrieved Job onto the Q_llm shard for
// j.SelectedReplica.
func (q *Queue) EnqueueGenerate(ctx domain.Context, j domain.Job) error {
	return q.enqueue(ctx, TaskGenerate, QueueLLM(j.SelectedReplica), j)
}
