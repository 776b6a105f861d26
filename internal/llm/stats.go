package llm

import (
	"sort"
	"sync"
	"time"
)

// Call kinds tracked by Stats.
const (
	KindComplete = "complete"
	KindEmbed    = "embed"
)

type sample struct {
	at         time.Time
	durationMs int64
}

// LatencySnapshot aggregates the latency samples of one call kind.
type LatencySnapshot struct {
	Count int     `json:"count"`
	MinMs int64   `json:"min_ms"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
}

// StatsSnapshot is a point-in-time view of Stats.
type StatsSnapshot struct {
	Latency   map[string]LatencySnapshot `json:"latency"`
	Throttled int64                      `json:"throttled"`
	Failed    int64                      `json:"failed"`
}

// Stats tracks call latencies per kind within a rolling window, plus
// lifetime throttle and failure counters.
type Stats struct {
	mu        sync.Mutex
	samples   map[string][]sample
	maxAge    time.Duration
	throttled int64
	failed    int64
	now       func() time.Time
}

func NewStats(maxAge time.Duration) *Stats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Stats{
		samples: make(map[string][]sample),
		maxAge:  maxAge,
		now:     time.Now,
	}
}

// Record adds one latency sample for kind.
func (s *Stats) Record(kind string, d time.Duration) {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.samples[kind] = append(prune(s.samples[kind], now.Add(-s.maxAge)), sample{at: now, durationMs: ms})
}

// Throttle counts one retried throttling signal.
func (s *Stats) Throttle() {
	s.mu.Lock()
	s.throttled++
	s.mu.Unlock()
}

// Fail counts one call that ended in an error.
func (s *Stats) Fail() {
	s.mu.Lock()
	s.failed++
	s.mu.Unlock()
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.maxAge)
	snap := StatsSnapshot{
		Latency:   make(map[string]LatencySnapshot, len(s.samples)),
		Throttled: s.throttled,
		Failed:    s.failed,
	}
	for kind, samples := range s.samples {
		samples = prune(samples, cutoff)
		s.samples[kind] = samples
		if len(samples) == 0 {
			continue
		}
		snap.Latency[kind] = summarizeLatency(samples)
	}
	return snap
}

func summarizeLatency(samples []sample) LatencySnapshot {
	values := make([]int64, len(samples))
	var sum int64
	for i, sm := range samples {
		values[i] = sm.durationMs
		sum += sm.durationMs
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	return LatencySnapshot{
		Count: len(values),
		MinMs: values[0],
		MaxMs: values[len(values)-1],
		AvgMs: float64(sum) / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
	}
}

// prune drops samples older than cutoff, reusing the backing array.
func prune(samples []sample, cutoff time.Time) []sample {
	kept := samples[:0]
	for _, sm := range samples {
		if !sm.at.Before(cutoff) {
			kept = append(kept, sm)
		}
	}
	return kept
}

func percentile(sorted []int64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sorted[0])
	}
	if pct >= 100 {
		return float64(sorted[len(sorted)-1])
	}
	index := float64(len(sorted)-1) * pct / 100.0
	lower := int(index)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	weight := index - float64(lower)
	lo, hi := float64(sorted[lower]), float64(sorted[lower+1])
	return lo + (hi-lo)*weight
}
