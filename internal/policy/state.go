package policy

import (
	"sync"
	"time"
)

// StateCollector tracks the sliding-window signals that make up the
// 10-dimensional state vector of spec §4.6, and exposes Snapshot to
// assemble one. The Python predecessor's get_current_state()
// (original_source/services/rl_agent/app.py) queried these out of
// Prometheus from a separate process; running in-process lets the
// orchestrator maintain them directly as cheap counters instead, which is
// recorded as a deliberate simplification rather than a behavior change —
// the resulting vector has the same 10 fields in the same order.
type StateCollector struct {
	mu sync.Mutex

	window     time.Duration
	requests   []time.Time
	latencies  []float64 // seconds, same ring as requests
	failures   int64
	successes int64

	// hourFn is overridable in tests; defaults to time.Now().Hour().
	hourFn func() int
}

// NewStateCollector builds a collector that retains samples for window
// (spec's default observation window is 60s, matching the job timeout).
func NewStateCollector(window time.Duration) *StateCollector {
	return &StateCollector{
		window: window,
		hourFn: func() int { return time.Now().Hour() },
	}
}

// Observe records one completed dispatch's latency and outcome.
func (s *StateCollector) Observe(latency time.Duration, success bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.requests = append(s.requests, now)
	s.latencies = append(s.latencies, latency.Seconds())
	if success {
		s.successes++
	} else {
		s.failures++
	}
	s.evictLocked(now)
}

func (s *StateCollector) evictLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.requests) && s.requests[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return
	}
	s.requests = s.requests[i:]
	s.latencies = s.latencies[i:]
}

// Snapshot assembles the 10-dim state vector: three replica loads
// (normalized against a soft capacity), queue depth (normalized /100),
// average latency (seconds, capped at 1.0), requests-per-second over the
// window (normalized /10), success rate over every dispatch observed since
// the collector was created (not windowed), process memory/CPU
// placeholders (spec §4.6 notes these are informational, not load-bearing
// for the reward), and hour-of-day normalized to [0,1).
func (s *StateCollector) Snapshot(loads []int64, queueDepth int64, softCapacity float64) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.evictLocked(now)

	state := make([]float64, StateSize)
	for i := 0; i < 3 && i < len(loads); i++ {
		if softCapacity > 0 {
			state[i] = float64(loads[i]) / softCapacity
		}
	}
	state[3] = float64(queueDepth) / 100.0

	avgLatency := 0.0
	if len(s.latencies) > 0 {
		sum := 0.0
		for _, l := range s.latencies {
			sum += l
		}
		avgLatency = sum / float64(len(s.latencies))
	}
	if avgLatency > 1.0 {
		avgLatency = 1.0
	}
	state[4] = avgLatency

	windowSeconds := s.window.Seconds()
	if windowSeconds > 0 {
		rps := float64(len(s.requests)) / windowSeconds
		state[5] = rps / 10.0
	}

	total := s.successes + s.failures
	successRate := 1.0
	if total > 0 {
		successRate = float64(s.successes) / float64(total)
	}
	state[6] = successRate

	// Process-level resource signals are not sampled in-process; spec's
	// original placeholders (0.5 memory, 0.4 cpu) are carried forward
	// verbatim rather than wired to a real sampler, since no component in
	// SPEC_FULL.md exercises a metrics-scraping dependency for this.
	state[7] = 0.5
	state[8] = 0.4

	state[9] = float64(s.hourFn()) / 24.0
	return state
}
