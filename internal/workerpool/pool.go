// Package workerpool runs a fixed set of long-lived goroutines that drain
// a *queue.Queue and hand each task to a Handler, tracking how many are
// busy at any moment.
//
// This generalizes the teacher's worker_pool.go Pool/Worker split: the
// teacher's Pool owned its own buffered taskCh/resultCh pair and fed a
// pull-mode JobSource loop alongside the push-mode Submit path. Neither
// distributed pull-mode nor a result channel has a home here — the
// dispatcher already owns the ReplySink/job bookkeeping — so a worker
// calls Handler.Run directly and reports back to whatever invoked
// dispatch, leaving this package with exactly one job: drain, execute,
// repeat.
package workerpool

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/computejobd/computejobd/internal/queue"
)

// ErrAlreadyStarted is returned by Start if the pool is already running.
var ErrAlreadyStarted = errors.New("workerpool: already started")

// Result is what a Handler produces for one task.
type Result struct {
	Output string
	Err    error
}

// Handler executes one task. Implementations must respect ctx
// cancellation where the work is interruptible; the sleep demo handler
// in internal/dispatch polls ctx/CancelRequested between steps rather
// than assume preemption.
type Handler interface {
	Run(ctx context.Context, task queue.Task) Result
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, task queue.Task) Result

func (f HandlerFunc) Run(ctx context.Context, task queue.Task) Result { return f(ctx, task) }

// Pool owns N worker goroutines draining one queue.Queue.
type Pool struct {
	q       *queue.Queue
	handler Handler

	mu      sync.Mutex
	started bool
	wg      sync.WaitGroup

	busyCount      atomic.Int64
	completedCount atomic.Int64
	size           int64
}

// New creates a Pool bound to q, dispatching every dequeued task to
// handler.
func New(q *queue.Queue, handler Handler) *Pool {
	return &Pool{q: q, handler: handler}
}

// Start launches workerCount goroutines, each looping on q.Dequeue until
// the queue shuts down and drains.
func (p *Pool) Start(workerCount int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true
	p.size = int64(workerCount)

	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.runWorker(i)
	}
	return nil
}

// runWorker is one worker's main loop: dequeue, mark busy, execute,
// mark idle, repeat until the queue reports shutdown-and-empty.
func (p *Pool) runWorker(id int) {
	defer p.wg.Done()
	for {
		task, ok := p.q.Dequeue()
		if !ok {
			return
		}

		p.busyCount.Add(1)
		p.execute(task)
		p.busyCount.Add(-1)
		p.completedCount.Add(1)
	}
}

func (p *Pool) execute(task queue.Task) {
	ctx := context.Background()
	var cancel context.CancelFunc
	if deadline, ok := taskDeadline(task); ok {
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}

	result := p.handler.Run(ctx, task)

	if task.Reply != nil {
		if result.Err != nil {
			task.Reply.WriteError(500, result.Err.Error(), nil)
		} else {
			task.Reply.WriteResult(result.Output)
		}
	}
}

// taskDeadline reports an optional per-task deadline carried in Params
// under "timeout_ms". Absence means no deadline.
func taskDeadline(task queue.Task) (time.Time, bool) {
	raw, ok := task.Params["timeout_ms"]
	if !ok {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return task.EnqueueTime.Add(time.Duration(ms) * time.Millisecond), true
}

// Stop shuts the underlying queue down (if the caller hasn't already)
// and waits for the workers to run every task still in the backlog and
// exit.
func (p *Pool) Stop() {
	p.q.Shutdown()
	p.wg.Wait()
}

// BusyCount returns the number of workers currently executing a task.
func (p *Pool) BusyCount() int64 { return p.busyCount.Load() }

// TotalCount returns N, the pool's configured worker count, matching
// spec.md §4.2 ("total_count returns N").
func (p *Pool) TotalCount() int64 { return p.size }

// CompletedCount returns the number of tasks finished since Start.
func (p *Pool) CompletedCount() int64 { return p.completedCount.Load() }
