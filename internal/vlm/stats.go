package vlm

import (
	"slices"
	"sync"
	"time"
)

type observation struct {
	at     time.Time
	millis int64
	failed bool
}

// StatsSnapshot aggregates the conversions observed within the window.
type StatsSnapshot struct {
	Count    int     `json:"count"`
	Failures int     `json:"failures"`
	MinMs    int64   `json:"min_ms"`
	MaxMs    int64   `json:"max_ms"`
	AvgMs    float64 `json:"avg_ms"`
	P50Ms    float64 `json:"p50_ms"`
	P95Ms    float64 `json:"p95_ms"`
	P99Ms    float64 `json:"p99_ms"`
}

// Stats tracks recent page conversion latencies within a rolling window.
// Failed conversions are counted but excluded from the latency figures.
type Stats struct {
	mu     sync.Mutex
	obs    []observation
	window time.Duration
	now    func() time.Time
}

func NewStats(window time.Duration) *Stats {
	if window <= 0 {
		window = time.Hour
	}
	return &Stats{
		obs:    make([]observation, 0, 256),
		window: window,
		now:    time.Now,
	}
}

// Record adds a successful conversion; negative durations count as zero.
func (s *Stats) Record(durationMs int64) {
	s.add(durationMs, false)
}

// RecordFailure counts a conversion that returned an error.
func (s *Stats) RecordFailure(durationMs int64) {
	s.add(durationMs, true)
}

// Observe records the call that started at start, as a failure when err is
// non-nil.
func (s *Stats) Observe(start time.Time, err error) {
	s.add(s.now().Sub(start).Milliseconds(), err != nil)
}

func (s *Stats) add(durationMs int64, failed bool) {
	durationMs = max(durationMs, 0)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)
	s.obs = append(s.obs, observation{at: now, millis: durationMs, failed: failed})
}

func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(s.now())

	var snap StatsSnapshot
	latencies := make([]int64, 0, len(s.obs))
	var sum int64
	for _, o := range s.obs {
		if o.failed {
			snap.Failures++
			continue
		}
		latencies = append(latencies, o.millis)
		sum += o.millis
	}
	if len(latencies) == 0 {
		return snap
	}
	slices.Sort(latencies)

	snap.Count = len(latencies)
	snap.MinMs = latencies[0]
	snap.MaxMs = latencies[len(latencies)-1]
	snap.AvgMs = float64(sum) / float64(len(latencies))
	snap.P50Ms = percentile(latencies, 50)
	snap.P95Ms = percentile(latencies, 95)
	snap.P99Ms = percentile(latencies, 99)
	return snap
}

func (s *Stats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	s.obs = slices.DeleteFunc(s.obs, func(o observation) bool {
		return o.at.Before(cutoff)
	})
}

// percentile interpolates linearly between the two closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}
	rank := float64(len(sorted)-1) * pct / 100
	lo := int(rank)
	if lo+1 >= len(sorted) {
		return float64(sorted[lo])
	}
	a, b := float64(sorted[lo]), float64(sorted[lo+1])
	return a + (b-a)*(rank-float64(lo))
}
