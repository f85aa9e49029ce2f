package dispatch

import (
	"context"
	"time"

	"github.com/computejobd/computejobd/internal/queue"
	"github.com/computejobd/computejobd/internal/registry"
	"github.com/computejobd/computejobd/internal/workerpool"
)

// JobHandler adapts the Handler Table and Job Registry to
// workerpool.Handler: each dequeued task names an async job; this
// drives the job's QUEUED → RUNNING → {DONE, ERROR} transitions
// around the registered task function, which is exactly the
// worker-loop contract in spec.md §4.2 ("dequeue → mark itself busy →
// invoke handler → free task → mark itself idle").
type JobHandler struct {
	Table    *HandlerTable
	Registry *registry.Registry
	Metrics  interface {
		Record(taskName string, waitUs, execUs float64)
		IncrementErrors()
	}
}

// Run implements workerpool.Handler. Failures are recorded on the job
// record, per spec.md §7's "for async, recorded on the job as ERROR."
// The returned Result still carries the handler's error, but the pool
// only acts on it for tasks with a Reply sink, which async jobs lack.
func (h *JobHandler) Run(ctx context.Context, task queue.Task) workerpool.Result {
	var waitUs float64
	if !task.EnqueueTime.IsZero() {
		waitUs = float64(time.Since(task.EnqueueTime).Microseconds())
	}

	started, err := h.Registry.MarkRunning(task.JobID)
	if err != nil {
		// Job vanished or was no longer queued (a job canceled while
		// queued lands here as ErrNotRunnable); nothing to report back
		// to since there is no reply target for async tasks, so the
		// task is dropped without running the handler. Nothing is
		// logged here.
		return workerpool.Result{}
	}
	if !started {
		// MarkRunning reports started=false only together with an
		// error, so this guard is defensive; the handler must never
		// run for a job that did not move to Running.
		return workerpool.Result{}
	}

	entry, ok := h.Table.Lookup(task.TaskName)
	if !ok {
		_ = h.Registry.MarkError(task.JobID, "no handler registered for '"+task.TaskName+"'")
		h.Metrics.IncrementErrors()
		return workerpool.Result{}
	}

	ctx = withJobID(ctx, task.JobID)
	start := time.Now()
	result, execErr := entry.Fn(ctx, task.Params)
	execUs := float64(time.Since(start).Microseconds())
	h.Metrics.Record(task.TaskName, waitUs, execUs)

	if h.Registry.IsCancelRequested(task.JobID) {
		_ = h.Registry.MarkCanceled(task.JobID)
		return workerpool.Result{Output: result, Err: execErr}
	}

	if execErr != nil {
		_ = h.Registry.MarkError(task.JobID, execErr.Error())
		h.Metrics.IncrementErrors()
		return workerpool.Result{Err: execErr}
	}

	_ = h.Registry.MarkDone(task.JobID, result)
	return workerpool.Result{Output: result}
}
