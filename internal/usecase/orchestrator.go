// Package usecase contains application business logic services.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/ai-cv-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/config"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/domain"
	obsctx "github.com/fairyhunter13/ai-cv-evaluator/internal/observability"
)

// StateSource supplies the RL state vector and records dispatch outcomes.
// Satisfied by *internal/policy.StateCollector; declared here as a narrow
// interface so usecase does not depend on the policy package's internals.
type StateSource interface {
	Snapshot(loads []int64, queueDepth int64, softCapacity float64) []float64
	Observe(latency time.Duration, success bool)
}

// Orchestrator implements the Ingress of spec §4.1: it mints a job, picks a
// generator replica, dispatches the job onto the encode/retrieve/generate
// pipeline, and polls the completion store until an answer lands or the
// job times out.
type Orchestrator struct {
	Queue      domain.Queue
	Load       domain.LoadAccount
	Completion domain.CompletionStore
	Policy     domain.Policy
	State      StateSource
	cfg        config.Config
}

// NewOrchestrator wires an Orchestrator from its ports and configuration.
// Policy and State may both be nil, in which case replica selection always
// falls back to the least-loaded heuristic.
func NewOrchestrator(q domain.Queue, load domain.LoadAccount, completion domain.CompletionStore, pol domain.Policy, state StateSource, cfg config.Config) *Orchestrator {
	return &Orchestrator{Queue: q, Load: load, Completion: completion, Policy: pol, State: state, cfg: cfg}
}

// Query runs one end-to-end RAG request per spec §4.1:
//  1. mint a ULID job id
//  2. pick a replica (policy if available, else least-loaded heuristic)
//  3. atomically increment that replica's load counter
//  4. enqueue onto Q_enc; on enqueue failure, decrement the counter and
//     fail with UPSTREAM_UNAVAILABLE
//  5. poll the completion store every PollInterval until found or
//     JobTimeout elapses
//  6. decrement the load counter exactly once, on every exit path
func (o *Orchestrator) Query(ctx domain.Context, text string) (jobID, answer string, latencyMS int64, replica string, err error) {
	tr := otel.Tracer("usecase.orchestrator")
	ctx, span := tr.Start(ctx, "Orchestrator.Query")
	defer span.End()

	lg := obsctx.LoggerFromContext(ctx)
	start := time.Now()

	if text == "" {
		return "", "", 0, "", fmt.Errorf("query text required: %w", domain.ErrBadInput)
	}

	id := ulid.Make().String()

	replicaIdx, selErr := o.selectReplica(ctx)
	if selErr != nil {
		lg.Debug("replica selection fell back to heuristic", "error", selErr)
	}

	newLoad, err := o.Load.Incr(ctx, replicaIdx)
	if err != nil {
		return "", "", 0, "", fmt.Errorf("op=orchestrator.Query: load incr: %w: %w", domain.ErrUpstreamUnavailable, err)
	}
	observability.SetReplicaLoad(fmt.Sprintf("%d", replicaIdx), float64(newLoad))

	success := false
	defer func() {
		if _, derr := o.Load.Decr(ctx, replicaIdx); derr != nil {
			lg.Warn("load decrement failed", "replica", replicaIdx, "error", derr)
		}
		elapsed := time.Since(start)
		if o.State != nil {
			o.State.Observe(elapsed, success)
		}
		outcome := "error"
		if success {
			outcome = "success"
		}
		observability.RecordQueryLatency(outcome, elapsed.Seconds())
		go o.recordExperience(replicaIdx, elapsed, success)
	}()

	job := domain.Job{
		JobID:           id,
		Text:            text,
		Timestamp:       start.UnixMilli(),
		SelectedReplica: replicaIdx,
	}
	if err := o.Queue.EnqueueEncode(ctx, job); err != nil {
		return "", "", 0, "", fmt.Errorf("op=orchestrator.Query: enqueue: %w: %w", domain.ErrUpstreamUnavailable, err)
	}

	rec, err := o.poll(ctx, id)
	latencyMS = time.Since(start).Milliseconds()
	replicaStr := fmt.Sprintf("%d", replicaIdx)
	if err != nil {
		return id, "", latencyMS, replicaStr, err
	}

	if !rec.Success {
		return id, "", latencyMS, replicaStr, fmt.Errorf("op=orchestrator.Query: %w: %s", domain.ErrGenerationFailed, rec.Error)
	}

	success = true
	return id, rec.Response, latencyMS, replicaStr, nil
}

// poll blocks on the completion store for jobID, checking every
// PollInterval until found or ctx/JobTimeout expires.
func (o *Orchestrator) poll(ctx domain.Context, jobID string) (domain.CompletionRecord, error) {
	deadline := time.Now().Add(o.cfg.JobTimeout())
	ticker := time.NewTicker(o.cfg.PollInterval())
	defer ticker.Stop()

	for {
		rec, ok, err := o.Completion.Get(ctx, jobID)
		if err != nil {
			return domain.CompletionRecord{}, fmt.Errorf("op=orchestrator.poll: %w: %w", domain.ErrUpstreamUnavailable, err)
		}
		if ok {
			return rec, nil
		}
		if time.Now().After(deadline) {
			return domain.CompletionRecord{}, fmt.Errorf("op=orchestrator.poll: %w", domain.ErrTimeout)
		}
		select {
		case <-ctx.Done():
			return domain.CompletionRecord{}, fmt.Errorf("op=orchestrator.poll: %w: %w", domain.ErrTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// selectReplica asks the policy for an action; if the policy is nil,
// errors, or returns an out-of-range action, it falls back to the
// least-loaded heuristic. POLICY_UNAVAILABLE is recoverable this way, not
// fatal to the request, per spec §7.
func (o *Orchestrator) selectReplica(ctx domain.Context) (int, error) {
	if o.Policy != nil {
		loads, _ := o.Load.Snapshot(ctx, o.cfg.ReplicaCount)
		state := o.currentState(loads, 0)
		action, err := o.Policy.Select(ctx, state)
		if err == nil && action >= 0 && action < o.cfg.ReplicaCount {
			return action, nil
		}
	}
	return o.leastLoadedReplica(ctx)
}

func (o *Orchestrator) currentState(loads []int64, queueDepth int64) []float64 {
	if o.State == nil {
		return make([]float64, 10)
	}
	return o.State.Snapshot(loads, queueDepth, float64(o.cfg.ReplicaCount)*10)
}

func (o *Orchestrator) leastLoadedReplica(ctx domain.Context) (int, error) {
	loads, err := o.Load.Snapshot(ctx, o.cfg.ReplicaCount)
	if err != nil {
		return rand.Intn(o.cfg.ReplicaCount), fmt.Errorf("%w: %w", domain.ErrPolicyUnavailable, err)
	}
	best := 0
	for i := 1; i < len(loads); i++ {
		if loads[i] < loads[best] {
			best = i
		}
	}
	return best, nil
}

// recordExperience pushes a training signal to the policy, best-effort. It
// runs detached from the request's context (which may already be canceled
// by the time this fires) with its own short-lived timeout; any error is
// logged, never surfaced to the caller.
func (o *Orchestrator) recordExperience(replica int, latency time.Duration, success bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Default().Error("recordExperience panic", "panic", r)
		}
	}()
	if o.Policy == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	loads, err := o.Load.Snapshot(ctx, o.cfg.ReplicaCount)
	if err != nil {
		return
	}
	state := o.currentState(loads, 0)
	if _, err := o.Policy.Record(ctx, state, replica, latency.Milliseconds(), success, loads, state); err != nil {
		slog.Default().Warn("policy record failed", "error", err)
	}
}
