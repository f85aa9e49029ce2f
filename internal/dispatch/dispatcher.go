// Package dispatch is the Task Dispatcher (spec.md §4.4): it
// translates a parsed request into either an inline synchronous
// execution or an async-submit job, owns the Handler Table, and
// enforces the backpressure contract at the queue boundary.
//
// Grounded on the teacher's controller.go dispatch-loop shape for the
// overall "classify, validate, route" flow, and on
// original_source/src/router/router.c + job_executor.c for the exact
// route set and per-route validation chain (a required parameter
// missing fails before any work starts; jobs/submit always returns an
// id even if the queue is momentarily full).
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/computejobd/computejobd/internal/metrics"
	"github.com/computejobd/computejobd/internal/queue"
	"github.com/computejobd/computejobd/internal/registry"
)

// Dispatcher wires the Handler Table to the Work Queue, Job Registry,
// and Metrics Aggregator.
type Dispatcher struct {
	Table    *HandlerTable
	Queue    *queue.Queue
	Registry *registry.Registry
	Metrics  *metrics.Aggregator

	// AsyncWaitBudget is the wait_budget passed to queue.Enqueue for
	// jobs/submit. spec.md §5 recommends a short positive budget (e.g.
	// 100ms) as the default so overloaded clients get quick feedback.
	AsyncWaitBudget time.Duration

	startedAt time.Time
}

// New creates a Dispatcher. asyncWaitBudget should normally be a small
// positive duration; see AsyncWaitBudget's doc comment.
func New(table *HandlerTable, q *queue.Queue, reg *registry.Registry, m *metrics.Aggregator, asyncWaitBudget time.Duration) *Dispatcher {
	return &Dispatcher{
		Table:           table,
		Queue:           q,
		Registry:        reg,
		Metrics:         m,
		AsyncWaitBudget: asyncWaitBudget,
		startedAt:       time.Now(),
	}
}

// StartedAt reports when this Dispatcher was constructed, used for
// the /status route's uptime field.
func (d *Dispatcher) StartedAt() time.Time { return d.startedAt }

// ExecuteSync runs a registered task inline on the calling goroutine
// and returns its result body, per spec.md §4.4's "both policies are
// acceptable" clause resolved to always-inline (see SPEC_FULL.md §9):
// an overloaded async queue must never starve a synchronous route.
func (d *Dispatcher) ExecuteSync(ctx context.Context, taskName string, params map[string]string) (string, error) {
	entry, ok := d.Table.Lookup(taskName)
	if !ok {
		d.Metrics.IncrementErrors()
		return "", newError(KindUnknownRoute, "no handler registered for '"+taskName+"'")
	}
	if err := validateParams(entry, params); err != nil {
		d.Metrics.IncrementErrors()
		return "", err
	}

	d.Metrics.IncrementRequests()
	start := time.Now()
	result, err := entry.Fn(ctx, params)
	exec := time.Since(start)
	d.Metrics.Record(taskName, 0, float64(exec.Microseconds()))

	if err != nil {
		d.Metrics.IncrementErrors()
		var typed *Error
		if errors.As(err, &typed) {
			return "", typed
		}
		return "", newError(KindHandlerFailure, err.Error())
	}
	return result, nil
}

// SubmitAsync implements jobs/submit: it always mints a job and
// returns its id, even when the subsequent enqueue fails with Full or
// ShuttingDown — per spec.md §4.4, the job remains QUEUED in the
// registry and the caller can poll or retry submission. enqueueErr is
// non-nil in that case, for the caller to log; it is never returned
// to the HTTP client as a failure.
func (d *Dispatcher) SubmitAsync(taskName string, params map[string]string) (jobID string, enqueueErr error) {
	entry, ok := d.Table.Lookup(taskName)
	if !ok {
		d.Metrics.IncrementErrors()
		return "", newError(KindUnknownRoute, "no handler registered for '"+taskName+"'")
	}
	if err := validateParams(entry, params); err != nil {
		d.Metrics.IncrementErrors()
		return "", err
	}

	d.Metrics.IncrementRequests()
	jobID = d.Registry.Submit(taskName, params)

	task := queue.Task{
		TaskName: taskName,
		Params:   params,
		JobID:    jobID,
	}
	if err := d.Queue.Enqueue(task, d.AsyncWaitBudget); err != nil {
		return jobID, err
	}
	return jobID, nil
}

// JobStatus implements jobs/status.
func (d *Dispatcher) JobStatus(id string) (status string, progress int, etaMs int64, err error) {
	job, lookupErr := d.Registry.Status(id)
	if lookupErr != nil {
		return "", 0, 0, newError(KindNotFound, "job not found")
	}
	return string(job.Status), job.Progress, job.EtaMs, nil
}

// JobResult implements jobs/result: it returns the raw result string
// verbatim when DONE, a handler error when ERROR, and NotFound
// otherwise (job missing, canceled, or not yet terminal).
func (d *Dispatcher) JobResult(id string) (result string, handlerErr string, err error) {
	job, lookupErr := d.Registry.Result(id)
	if lookupErr != nil {
		return "", "", newError(KindNotFound, "job not found")
	}
	switch job.Status {
	case "done":
		return job.Result, "", nil
	case "error":
		return "", job.Err, nil
	default:
		return "", "", newError(KindNotFound, "result not available")
	}
}

// JobCancel implements jobs/cancel.
func (d *Dispatcher) JobCancel(id string) (status string, err error) {
	cancelErr := d.Registry.Cancel(id)
	switch {
	case cancelErr == registry.ErrJobNotFound:
		return "", newError(KindNotFound, "job not found")
	case cancelErr == registry.ErrNotCancelable:
		return "not_cancelable", newError(KindNotCancelable, "job already in a terminal state")
	case cancelErr != nil:
		return "", newError(KindHandlerFailure, cancelErr.Error())
	default:
		return "canceled", nil
	}
}
