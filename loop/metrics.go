package loop

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics is a snapshot of a loop's runtime statistics, see Loop.Metrics.
//
// Example:
//
//	l, _ := New(WithMetrics(true))
//	go l.Run(ctx)
//	// ...
//	stats := l.Metrics()
//	fmt.Printf("ticks: %d, P99 tick: %v\n", stats.Ticks, stats.TickLatency.P99)
type Metrics struct {
	TickLatency LatencyMetrics
	// Ticks is the number of ticks completed.
	Ticks uint64
	// Tasks is the number of scheduled tasks dispatched.
	Tasks uint64
	// Faults is the number of faults from hooks and tasks.
	Faults uint64
	// DroppedTasks is the number of tasks discarded by stopping.
	DroppedTasks uint64
	// Pending is the number of tasks awaiting dispatch.
	Pending int
}

// LatencyMetrics summarises the duration of recent ticks.
type LatencyMetrics struct {
	P50   time.Duration
	P90   time.Duration
	P99   time.Duration
	Max   time.Duration
	Mean  time.Duration
	Count int
}

// sampleSize is the number of recent samples used to compute percentiles.
const sampleSize = 1000

// metrics is the loop's internal, concurrently updated, metrics state.
type metrics struct {
	ticks   atomic.Uint64
	tasks   atomic.Uint64
	faults  atomic.Uint64
	dropped atomic.Uint64
	latency latencySamples
}

// latencySamples is a rolling buffer of durations.
type latencySamples struct {
	samples     [sampleSize]time.Duration
	sum         time.Duration
	sampleIdx   int
	sampleCount int
	mu          sync.Mutex
}

func (l *latencySamples) record(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// replacing the oldest sample, once full
	if l.sampleCount >= sampleSize {
		l.sum -= l.samples[l.sampleIdx]
	}

	l.samples[l.sampleIdx] = d
	l.sum += d
	l.sampleIdx++
	if l.sampleIdx >= sampleSize {
		l.sampleIdx = 0
	}
	if l.sampleCount < sampleSize {
		l.sampleCount++
	}
}

func (l *latencySamples) snapshot() (s LatencyMetrics) {
	l.mu.Lock()
	count := l.sampleCount
	sorted := slices.Clone(l.samples[:count])
	sum := l.sum
	l.mu.Unlock()

	if count == 0 {
		return s
	}
	slices.Sort(sorted)
	s.P50 = sorted[percentileIndex(count, 50)]
	s.P90 = sorted[percentileIndex(count, 90)]
	s.P99 = sorted[percentileIndex(count, 99)]
	s.Max = sorted[count-1]
	s.Mean = sum / time.Duration(count)
	s.Count = count
	return s
}

// percentileIndex computes the index for a given percentile (0-100).
func percentileIndex(n, p int) int {
	index := (p * n) / 100
	if index >= n {
		return n - 1
	}
	return index
}
