// Package policy implements the RL Policy Service of spec §4.6: a
// fixed-topology DQN (policy + target networks), ε-greedy replica
// selection, reward shaping, experience replay, and checkpointing. It is
// grounded line-for-line on original_source/services/rl_agent/agent.py.
//
// Unlike the Python predecessor (a standalone FastAPI process), this
// package runs in-process: spec §5 states policy parameters are
// "process-local and guarded so selection and training do not interleave
// partial updates," which a single guarded Go value satisfies directly.
// See SPEC_FULL.md §4.6 for the documented resolution of that design note.
package policy

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/fairyhunter13/ai-cv-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/config"
	"github.com/fairyhunter13/ai-cv-evaluator/internal/domain"
)

// StateSize is the fixed dimensionality of the state vector (spec §4.6).
const StateSize = 10

// TrainStats summarizes one Train() call, returned to the background
// trainer for logging.
type TrainStats struct {
	Iterations int     `json:"iterations"`
	MeanLoss   float64 `json:"mean_loss"`
	Epsilon    float64 `json:"epsilon"`
	Steps      int64   `json:"steps"`
}

// Policy is the concrete RL Policy Service. It satisfies domain.Policy for
// ingress use and exposes additional methods (Train, Stats, Save,
// ResetEpsilon) for the background trainer and operational tooling.
type Policy struct {
	mu sync.RWMutex

	cfg        config.Config
	policyNet  *network
	targetNet  *network
	buffer     *replayBuffer
	rng        *rand.Rand
	rngMu      sync.Mutex
	epsilon    float64
	steps      int64
	actionSize int
	checkpoint *checkpointer
}

// New constructs a Policy from cfg, seeding both networks identically so
// target starts as an exact copy of policy (matching agent.py's
// target_net.load_state_dict(policy_net.state_dict()) at construction).
func New(cfg config.Config) *Policy {
	seed := time.Now().UnixNano()
	rng := rand.New(rand.NewSource(seed))
	policyNet := newNetwork(StateSize, cfg.HiddenSize, cfg.ReplicaCount, rng)
	targetNet := policyNet.clone()
	p := &Policy{
		cfg:        cfg,
		policyNet:  policyNet,
		targetNet:  targetNet,
		buffer:     newReplayBuffer(cfg.BufferCapacity),
		rng:        rng,
		epsilon:    cfg.EpsilonStart,
		actionSize: cfg.ReplicaCount,
		checkpoint: newCheckpointer(cfg.CheckpointPath),
	}
	observability.PolicyEpsilon.Set(p.epsilon)
	return p
}

// Select returns a replica index given the current system state, using
// ε-greedy selection: with probability ε sample uniformly over
// [0, actionSize), otherwise take argmax Q(state, ·). rng draws are
// serialized by rngMu since *rand.Rand is not itself safe for concurrent
// use, even when multiple Select calls only hold p.mu's read lock.
func (p *Policy) Select(_ domain.Context, state []float64) (int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	p.rngMu.Lock()
	explore := p.rng.Float64() < p.epsilon
	var action int
	if explore {
		action = p.rng.Intn(p.actionSize)
	}
	p.rngMu.Unlock()
	if explore {
		return action, nil
	}
	q := p.policyNet.qValues(state)
	return argmax(q), nil
}

// Record scores a completed dispatch, computes its reward, and appends the
// resulting Experience to the replay buffer. Reward is exactly -10 iff
// success is false (spec §8 invariant 6); otherwise it rewards low
// latency and penalizes an unbalanced replica fleet.
func (p *Policy) Record(_ domain.Context, state []float64, action int, latencyMS int64, success bool, loads []int64, nextState []float64) (float64, error) {
	reward := CalculateReward(latencyMS, success, loads)
	observability.RecordPolicyReward(reward)

	p.buffer.add(domain.Experience{
		State:     state,
		Action:    action,
		Reward:    reward,
		NextState: nextState,
		Done:      false,
	})
	return reward, nil
}

// CalculateReward implements the reward formula of spec §4.6, ported
// verbatim from original_source/services/rl_agent/agent.py's
// calculate_reward: -10 on failure; otherwise a latency term plus a
// load-balance penalty (population variance of replica loads, present
// only when more than one replica is observed).
func CalculateReward(latencyMS int64, success bool, loads []int64) float64 {
	if !success {
		return -10.0
	}
	latencyTerm := 1.0 - math.Min(float64(latencyMS)/1000.0, 1.0)
	variancePenalty := 0.0
	if len(loads) > 1 {
		variancePenalty = -0.1 * variance(loads)
	}
	return latencyTerm + variancePenalty
}

// variance computes the population variance (ddof=0, matching numpy.var's
// default) of an integer-valued slice.
func variance(xs []int64) float64 {
	n := float64(len(xs))
	if n == 0 {
		return 0
	}
	mean := 0.0
	for _, x := range xs {
		mean += float64(x)
	}
	mean /= n
	sumSq := 0.0
	for _, x := range xs {
		d := float64(x) - mean
		sumSq += d * d
	}
	return sumSq / n
}

// Stats reports the current ε, step count, and buffer size.
func (p *Policy) Stats() domain.PolicyStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return domain.PolicyStats{
		Epsilon:    p.epsilon,
		Steps:      p.steps,
		BufferSize: p.buffer.len(),
	}
}

// ResetEpsilon overwrites the current exploration rate, clamped to
// [epsilonEnd, epsilonStart] from configuration.
func (p *Policy) ResetEpsilon(eps float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if eps < p.cfg.EpsilonEnd {
		eps = p.cfg.EpsilonEnd
	}
	if eps > p.cfg.EpsilonStart {
		eps = p.cfg.EpsilonStart
	}
	p.epsilon = eps
	observability.PolicyEpsilon.Set(p.epsilon)
}

// Train runs `iterations` DQN training steps of `batchSize` each. A step is
// skipped (non-fatal, per spec §4.7) when the buffer holds fewer than
// batchSize experiences. Training takes the write lock for each individual
// step rather than across the whole call, so Select() is never blocked for
// longer than a single step's forward/backward pass.
func (p *Policy) Train(batchSize, iterations int) (TrainStats, error) {
	if batchSize <= 0 {
		batchSize = p.cfg.BatchSize
	}
	var totalLoss float64
	var ran int
	for i := 0; i < iterations; i++ {
		loss, trained, err := p.trainStep(batchSize)
		if err != nil {
			return TrainStats{}, err
		}
		if trained {
			totalLoss += loss
			ran++
		}
	}
	mean := 0.0
	if ran > 0 {
		mean = totalLoss / float64(ran)
	}
	p.mu.RLock()
	eps, steps := p.epsilon, p.steps
	p.mu.RUnlock()
	return TrainStats{Iterations: ran, MeanLoss: mean, Epsilon: eps, Steps: steps}, nil
}

// trainStep performs one batch of experience replay: sample, compute TD
// targets against the target network, backprop through the policy
// network, clip the gradient, take one Adam step, decay ε, and (on the
// configured cadence) sync the target network and persist a checkpoint.
func (p *Policy) trainStep(batchSize int) (loss float64, trained bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.buffer.len() < batchSize {
		return 0, false, nil
	}
	p.rngMu.Lock()
	batch := p.buffer.sample(batchSize, p.rng)
	p.rngMu.Unlock()
	if len(batch) == 0 {
		return 0, false, nil
	}

	grad := newGradients(p.policyNet)
	var total float64
	for _, exp := range batch {
		cache := p.policyNet.forward(exp.State)
		nextQ := p.targetNet.qValues(exp.NextState)
		maxNext := nextQ[argmax(nextQ)]
		target := exp.Reward
		if !exp.Done {
			target += p.cfg.Gamma * maxNext
		}
		total += p.policyNet.backward(cache, exp.Action, target, grad)
	}
	clipNorm(grad, p.cfg.GradClipNorm)
	p.steps++
	p.policyNet.applyGradients(grad, len(batch), p.cfg.LearningRate, p.steps)

	p.epsilon = math.Max(p.cfg.EpsilonEnd, p.epsilon*p.cfg.EpsilonDecay)
	observability.PolicyEpsilon.Set(p.epsilon)

	meanLoss := total / float64(len(batch))
	observability.RecordPolicyStep(p.epsilon, meanLoss)

	if p.steps%p.cfg.TargetSyncSteps == 0 {
		p.targetNet.copyFrom(p.policyNet)
	}
	if p.steps%p.cfg.CheckpointSteps == 0 {
		_ = p.saveLocked()
	}
	return meanLoss, true, nil
}

// Save persists a checkpoint unconditionally (e.g. after a trainer pass or
// at shutdown), independent of the CheckpointSteps
// cadence enforced during training.
func (p *Policy) Save() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.saveLocked()
}

func (p *Policy) saveLocked() error {
	return p.checkpoint.save(checkpointState{
		Policy:  p.policyNet,
		Target:  p.targetNet,
		Epsilon: p.epsilon,
		Steps:   p.steps,
	})
}

// Load restores policy/target parameters, ε, and step count from the
// configured checkpoint file, if present. A missing file is not an error.
func (p *Policy) Load() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok, err := p.checkpoint.load(p.policyNet.stateSize, p.policyNet.hidden, p.policyNet.actionSize)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	p.policyNet.copyFrom(st.Policy)
	p.targetNet.copyFrom(st.Target)
	p.epsilon = st.Epsilon
	p.steps = st.Steps
	observability.PolicyEpsilon.Set(p.epsilon)
	return nil
}
