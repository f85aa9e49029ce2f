// Package metrics is the Metrics Aggregator (spec.md §4.5): per-task
// ring buffers of recent wait/exec samples, cumulative counters, and
// queue/worker gauges, dumped as one JSON object for the /metrics
// route.
//
// Grounded on the teacher's internal/metrics/metrics.go for the
// "one struct holding every Prometheus instrument, with its own
// recording methods" shape and for wiring promhttp.Handler — corrected
// here to build its own prometheus.Registry instead of registering
// against the global default registry, which would panic the moment a
// second Aggregator is constructed (every table-driven test in this
// package would have tripped that).
package metrics

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultWindowSize = 64

// taskEntry is one Metrics Entry: cumulative counts, ring buffers for
// recent wait/exec samples sharing a cursor (a wait sample and its
// paired exec sample land at the same ring position, per spec.md
// §4.5), and the task's own queue/worker gauges.
type taskEntry struct {
	mu sync.Mutex

	count       uint64
	totalWaitUs float64
	totalExecUs float64

	waitRing []float64
	execRing []float64
	cursor   int
	filled   int

	queueSize     int64
	queueCapacity int64
	workersTotal  int64
	workersBusy   int64
}

func newTaskEntry(windowSize int, workerCount, queueCapacity int) *taskEntry {
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}
	return &taskEntry{
		waitRing:      make([]float64, windowSize),
		execRing:      make([]float64, windowSize),
		workersTotal:  int64(workerCount),
		queueCapacity: int64(queueCapacity),
	}
}

// record writes a wait sample and its paired exec sample to the same
// ring slot and advances the cursor once, per spec.md §4.5 ("wait
// sample and corresponding exec sample share the same ring position").
func (e *taskEntry) record(waitUs, execUs float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.waitRing[e.cursor] = waitUs
	e.execRing[e.cursor] = execUs
	e.totalWaitUs += waitUs
	e.totalExecUs += execUs
	e.advance()
}

// advance is called once per logical wait+exec sample pair.
func (e *taskEntry) advance() {
	e.count++
	window := len(e.waitRing)
	e.cursor = (e.cursor + 1) % window
	if e.filled < window {
		e.filled++
	}
}

type stats struct {
	count                           uint64
	avgWaitMs, stddevWaitMs         float64
	avgExecMs, stddevExecMs         float64
	queueSize, queueCapacity        int64
	workersTotal, workersBusy, idle int64
}

func (e *taskEntry) snapshot() stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	avgWait, stddevWait := meanStddev(e.waitRing, e.filled)
	avgExec, stddevExec := meanStddev(e.execRing, e.filled)

	return stats{
		count:         e.count,
		avgWaitMs:     avgWait / 1000,
		stddevWaitMs:  stddevWait / 1000,
		avgExecMs:     avgExec / 1000,
		stddevExecMs:  stddevExec / 1000,
		queueSize:     atomic.LoadInt64(&e.queueSize),
		queueCapacity: e.queueCapacity,
		workersTotal:  e.workersTotal,
		workersBusy:   atomic.LoadInt64(&e.workersBusy),
		idle:          e.workersTotal - atomic.LoadInt64(&e.workersBusy),
	}
}

func meanStddev(ring []float64, filled int) (mean, stddev float64) {
	if filled == 0 {
		return 0, 0
	}
	var sum float64
	for i := 0; i < filled; i++ {
		sum += ring[i]
	}
	mean = sum / float64(filled)

	var variance float64
	for i := 0; i < filled; i++ {
		d := ring[i] - mean
		variance += d * d
	}
	variance /= float64(filled)
	stddev = math.Sqrt(variance)
	return mean, stddev
}

// Aggregator is the top-level container: one RWMutex guards the
// command table (task-name → entry) itself, matching spec.md §5's
// "per-task-name mutex ... plus one top-level mutex for global
// counters and the command table"; global counters are atomics, the
// idiomatic substitute for a single protected field.
type Aggregator struct {
	mu    sync.RWMutex
	tasks map[string]*taskEntry

	windowSize int

	totalRequests atomic.Int64
	totalErrors   atomic.Int64
	startedAt     time.Time

	prom *promInstruments
}

// New creates an Aggregator with the given default ring window size
// (used by Register when a task doesn't specify its own).
func New(windowSize int) *Aggregator {
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}
	return &Aggregator{
		tasks:      make(map[string]*taskEntry),
		windowSize: windowSize,
		startedAt:  time.Now(),
		prom:       newPromInstruments(),
	}
}

// Registry exposes the private prometheus.Registry backing this
// Aggregator's /metrics/prom counters, for wiring promhttp.HandlerFor.
func (a *Aggregator) Registry() *prometheus.Registry { return a.prom.registry }

// Register allocates a Metrics Entry for taskName if one doesn't
// already exist. Idempotent.
func (a *Aggregator) Register(taskName string, workerCount, queueCapacity, windowSize int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.tasks[taskName]; ok {
		return
	}
	if windowSize <= 0 {
		windowSize = a.windowSize
	}
	a.tasks[taskName] = newTaskEntry(windowSize, workerCount, queueCapacity)
}

func (a *Aggregator) entry(taskName string) *taskEntry {
	a.mu.RLock()
	e, ok := a.tasks[taskName]
	a.mu.RUnlock()
	if ok {
		return e
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok := a.tasks[taskName]; ok {
		return e
	}
	e = newTaskEntry(a.windowSize, 0, 0)
	a.tasks[taskName] = e
	return e
}

// Record appends a wait/exec sample pair (microseconds) for taskName
// to the same ring slot, auto-registering the task if Register was
// never called.
func (a *Aggregator) Record(taskName string, waitUs, execUs float64) {
	a.entry(taskName).record(waitUs, execUs)
	a.prom.recordExec(execUs / 1_000_000)
}

// UpdateQueueSize sets the current queue-depth gauge for taskName.
func (a *Aggregator) UpdateQueueSize(taskName string, n int64) {
	atomic.StoreInt64(&a.entry(taskName).queueSize, n)
}

// UpdateWorkersBusy sets the current busy-worker gauge for taskName.
func (a *Aggregator) UpdateWorkersBusy(taskName string, n int64) {
	atomic.StoreInt64(&a.entry(taskName).workersBusy, n)
}

// IncrementRequests bumps the global request counter.
func (a *Aggregator) IncrementRequests() {
	a.totalRequests.Add(1)
	a.prom.incRequests()
}

// IncrementErrors bumps the global error counter.
func (a *Aggregator) IncrementErrors() {
	a.totalErrors.Add(1)
	a.prom.incErrors()
}

// TotalRequests and TotalErrors expose the global counters for /status.
func (a *Aggregator) TotalRequests() int64 { return a.totalRequests.Load() }
func (a *Aggregator) TotalErrors() int64   { return a.totalErrors.Load() }

// Uptime returns the duration since this Aggregator was created.
func (a *Aggregator) Uptime() time.Duration { return time.Since(a.startedAt) }
