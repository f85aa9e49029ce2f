// Package registry tracks the lifecycle of async jobs: submission,
// progress, completion, and advisory cancellation.
//
// The state machine and the single-coarse-lock shape are lifted from
// the teacher's JobManager, but the teacher's pending/inFlight/
// completed/dead secondary indexes existed to support requeue-on-crash
// recovery across a distributed worker fleet — a non-goal here. What's
// left once that's stripped is exactly the registry spec.md §4.3
// describes: one map, one mutex, five states.
package registry

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/computejobd/computejobd/pkg/types"
)

var (
	ErrJobNotFound    = errors.New("registry: job not found")
	ErrNotCancelable  = errors.New("registry: job already in a terminal state")
	ErrNotRunnable    = errors.New("registry: job is not in queued state")
	ErrAlreadyRunning = errors.New("registry: job is not in running state")
)

// Persister is an optional collaborator that durably records a job's
// state after every mutation. The default Registry uses a no-op
// Persister; FilePersister below is the concrete best-effort
// implementation grounded on the C original's persist_job_locked.
type Persister interface {
	Persist(job types.Job)
}

type noopPersister struct{}

func (noopPersister) Persist(types.Job) {}

// Registry is the job state-machine store: one RWMutex over one map,
// matching spec.md §4.3 and §5's "single coarse lock" option.
type Registry struct {
	mu        sync.RWMutex
	jobs      map[string]*types.Job
	persister Persister
}

// New creates an empty Registry. persister may be nil, in which case
// jobs are tracked only in memory.
func New(persister Persister) *Registry {
	if persister == nil {
		persister = noopPersister{}
	}
	return &Registry{
		jobs:      make(map[string]*types.Job),
		persister: persister,
	}
}

// Submit creates a new job in StatusQueued and returns its ID.
func (r *Registry) Submit(taskName string, payload map[string]string) string {
	id := uuid.NewString()
	job := &types.Job{
		ID:        id,
		TaskName:  taskName,
		Payload:   payload,
		Status:    types.StatusQueued,
		EtaMs:     -1,
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	r.jobs[id] = job
	snapshot := job.Snapshot()
	r.mu.Unlock()

	r.persister.Persist(snapshot)
	return id
}

// MarkRunning transitions a job from Queued to Running. A job that was
// canceled while still queued already moved to Canceled in Cancel, so
// it falls out through the ErrNotRunnable branch below like any other
// non-queued job.
func (r *Registry) MarkRunning(id string) (started bool, err error) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return false, ErrJobNotFound
	}
	if job.Status != types.StatusQueued {
		r.mu.Unlock()
		return false, ErrNotRunnable
	}
	job.Status = types.StatusRunning
	job.StartedAt = time.Now()
	snapshot := job.Snapshot()
	r.mu.Unlock()

	r.persister.Persist(snapshot)
	return true, nil
}

// UpdateProgress records the running job's progress percentage and
// estimated remaining time. A no-op if the job is no longer running
// (e.g. it was just canceled out from under the worker).
func (r *Registry) UpdateProgress(id string, progress int, etaMs int64) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok || job.Status != types.StatusRunning {
		r.mu.Unlock()
		return
	}
	job.Progress = progress
	job.EtaMs = etaMs
	snapshot := job.Snapshot()
	r.mu.Unlock()

	r.persister.Persist(snapshot)
}

// MarkDone transitions a Running job to Done with its result payload.
func (r *Registry) MarkDone(id string, result string) error {
	return r.finish(id, func(job *types.Job) {
		job.Status = types.StatusDone
		job.Result = result
		job.Progress = 100
		job.EtaMs = 0
	})
}

// MarkError transitions a Running job to Error with an error message.
func (r *Registry) MarkError(id string, errMsg string) error {
	return r.finish(id, func(job *types.Job) {
		job.Status = types.StatusError
		job.Err = errMsg
	})
}

func (r *Registry) finish(id string, mutate func(job *types.Job)) error {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return ErrJobNotFound
	}
	if job.Status != types.StatusRunning {
		r.mu.Unlock()
		return ErrAlreadyRunning
	}
	mutate(job)
	job.FinishedAt = time.Now()
	snapshot := job.Snapshot()
	r.mu.Unlock()

	r.persister.Persist(snapshot)
	return nil
}

// Cancel requests cancellation, matching the C original's job_cancel:
// a job already in a terminal state cannot be canceled
// (ErrNotCancelable); otherwise it flips CancelRequested and, if still
// queued, moves immediately to Canceled (a queued job has no worker to
// cooperate with, so cancellation is unconditional); a running job
// only has CancelRequested set — the worker must notice and finish the
// transition itself via MarkDone/MarkError/MarkCanceled.
func (r *Registry) Cancel(id string) error {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return ErrJobNotFound
	}
	if job.Status.Terminal() {
		r.mu.Unlock()
		return ErrNotCancelable
	}

	job.CancelRequested = true
	if job.Status == types.StatusQueued {
		job.Status = types.StatusCanceled
		job.FinishedAt = time.Now()
	}
	snapshot := job.Snapshot()
	r.mu.Unlock()

	r.persister.Persist(snapshot)
	return nil
}

// MarkCanceled lets a running handler that observed CancelRequested
// finish the transition to Canceled itself, rather than leaving the
// job stuck in Running forever.
func (r *Registry) MarkCanceled(id string) error {
	return r.finish(id, func(job *types.Job) {
		job.Status = types.StatusCanceled
	})
}

// IsCancelRequested reports whether cancellation has been requested
// for a job, for handlers that poll it cooperatively.
func (r *Registry) IsCancelRequested(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	return ok && job.CancelRequested
}

// Status returns a defensive copy of the job record, or ErrJobNotFound.
func (r *Registry) Status(id string) (types.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return types.Job{}, ErrJobNotFound
	}
	return job.Snapshot(), nil
}

// Result returns a defensive copy of the job record in whatever state
// it is in, or ErrJobNotFound; callers inspect Status to tell a Done
// result from an Error message or a job that has not finished.
func (r *Registry) Result(id string) (types.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return types.Job{}, ErrJobNotFound
	}
	return job.Snapshot(), nil
}

// Count returns the total number of jobs ever submitted.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// marshalForPersist renders a job the way FilePersister writes it:
// plain JSON, one file per job. Kept as a package-level function
// (rather than a method on Job) so FilePersister stays the only thing
// that knows about the on-disk shape.
func marshalForPersist(job types.Job) ([]byte, error) {
	return json.MarshalIndent(job, "", "  ")
}
