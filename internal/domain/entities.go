// Package domain defines core entities, ports, and domain-specific errors
// for the RAG serving backend.
package domain

import (
	"context"
	"errors"
	"time"
)

// Context is a type alias to stdlib context.Context for convenience across layers.
type Context = context.Context

// Error taxonomy (sentinels). See spec §7 for the full mapping to HTTP status.
var (
	// ErrBadInput means a job reached a worker missing required fields.
	// Workers drop the job silently; the ingress eventually observes ErrTimeout.
	ErrBadInput = errors.New("bad input")
	// ErrUpstreamUnavailable means the ingress could not enqueue a job (broker down).
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrBackendFailure means an external backend call (embed/search/generate) failed.
	ErrBackendFailure = errors.New("backend failure")
	// ErrTimeout means the ingress exhausted its wall-clock budget without a completion.
	ErrTimeout = errors.New("timeout")
	// ErrGenerationFailed means the completion record reported success=false.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrPolicyUnavailable means the RL policy could not be consulted; caller should
	// fall back to the least-loaded heuristic and continue.
	ErrPolicyUnavailable = errors.New("policy unavailable")
)

// Job is the progressively augmented record of a single user query as it
// traverses Q_enc -> Q_ret -> Q_llm. It is strictly append-only: no stage
// overwrites a field populated by an earlier stage.
type Job struct {
	// JobID uniquely identifies this query (ULID, minted by the ingress).
	JobID string `json:"job_id"`
	// Text is the original user query.
	Text string `json:"text"`
	// Timestamp is when the ingress created the job (unix millis).
	Timestamp int64 `json:"timestamp"`
	// SelectedReplica is the generator replica chosen by the ingress at dispatch.
	SelectedReplica int `json:"selected_replica"`

	// Embedding is filled by the encoder worker: a unit-normalized vector.
	Embedding []float32 `json:"embedding,omitempty"`
	// EmbeddingTimingMS is the encoder's wall-clock cost.
	EmbeddingTimingMS int64 `json:"embedding_timing_ms,omitempty"`

	// Contexts is filled by the retriever worker: ordered retrieved passages.
	Contexts []string `json:"contexts,omitempty"`
	// AugmentedPrompt is filled by the retriever worker.
	AugmentedPrompt string `json:"augmented_prompt,omitempty"`
	// RetrievalTimingMS is the retriever's wall-clock cost.
	RetrievalTimingMS int64 `json:"retrieval_timing_ms,omitempty"`

	// GenerationTimingMS is the generator's wall-clock cost, set just before
	// the completion record is written.
	GenerationTimingMS int64 `json:"generation_timing_ms,omitempty"`
}

// CompletionRecord is the terminal record a generator writes for a job,
// keyed by completion:<job_id> with a bounded TTL. Written exactly once.
type CompletionRecord struct {
	Success          bool   `json:"success"`
	Response         string `json:"response,omitempty"`
	Error            string `json:"error,omitempty"`
	Worker           string `json:"worker"`
	GenerationTimeMS int64  `json:"generation_time_ms"`
	Timestamp        int64  `json:"timestamp"`
}

// Experience is a DQN transition tuple recorded after every Query completes
// (or times out). Done is always false: every transition is continuing.
type Experience struct {
	State     []float64 `json:"state"`
	Action    int       `json:"action"`
	Reward    float64   `json:"reward"`
	NextState []float64 `json:"next_state"`
	Done      bool      `json:"done"`
}

// Queue (port). Implementations enqueue progressively-filled Jobs onto the
// named FIFO stage queues (Q_enc, Q_ret, or a replica-sharded Q_llm).
type Queue interface {
	// EnqueueEncode publishes a fresh Job onto Q_enc.
	EnqueueEncode(ctx Context, j Job) error
	// EnqueueRetrieve publishes an embedded Job onto Q_ret.
	EnqueueRetrieve(ctx Context, j Job) error
	// EnqueueGenerate publishes a retrieved Job onto the Q_llm shard for
	// j.SelectedReplica.
	EnqueueGenerate(ctx Context, j Job) error
}

// CompletionStore (port) manages the completion:<job_id> key/value records.
type CompletionStore interface {
	// Put writes the completion record for jobID with the given TTL. Called
	// exactly once per job, by the generator that handled it.
	Put(ctx Context, jobID string, rec CompletionRecord, ttl time.Duration) error
	// Get reads the completion record for jobID, or (_, false, nil) if absent.
	Get(ctx Context, jobID string) (CompletionRecord, bool, error)
}

// LoadAccount (port) manages the per-replica load:<replica_id> counters.
type LoadAccount interface {
	// Incr atomically increments the counter for replica and returns the new value.
	Incr(ctx Context, replica int) (int64, error)
	// Decr atomically decrements the counter for replica, clamped to zero, and
	// returns the resulting value.
	Decr(ctx Context, replica int) (int64, error)
	// Get returns the current counter value for replica.
	Get(ctx Context, replica int) (int64, error)
	// Snapshot returns the current counter values for replicas [0, n).
	Snapshot(ctx Context, n int) ([]int64, error)
}

// Embedder (port) abstracts the embedding backend (black-box callable per
// spec §1). Implementations need not normalize; the encoder worker does.
type Embedder interface {
	// Embed returns the embedding vector for text.
	Embed(ctx Context, text string) ([]float32, error)
}

// LLMClient (port) abstracts the generation backend, matching the
// Ollama-style contract in spec §6.
type LLMClient interface {
	// Generate invokes the LLM with prompt and returns the raw response text.
	Generate(ctx Context, prompt string) (response string, err error)
}

// VectorIndex (port) abstracts the vector similarity search backend.
type VectorIndex interface {
	// Search returns up to topK hits for vector in collection, each exposing
	// a "text" field under payload, preserving rank order.
	Search(ctx Context, collection string, vector []float32, topK int) ([]map[string]any, error)
}

// Policy (port) abstracts the RL replica-selection control plane so the
// ingress and the background trainer depend on a narrow interface rather
// than the concrete internal/policy implementation.
type Policy interface {
	// Select returns a replica index given the current system state.
	Select(ctx Context, state []float64) (action int, err error)
	// Record scores a completed dispatch and returns the computed reward.
	Record(ctx Context, state []float64, action int, latencyMS int64, success bool, loads []int64, nextState []float64) (reward float64, err error)
	// Stats reports current ε, step count, and buffer size.
	Stats() PolicyStats
}

// PolicyStats is the snapshot returned by Policy.Stats.
type PolicyStats struct {
	Epsilon    float64 `json:"epsilon"`
	Steps      int64   `json:"steps"`
	BufferSize int     `json:"buffer_size"`
}
