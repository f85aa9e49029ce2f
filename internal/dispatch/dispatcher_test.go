package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/computejobd/computejobd/internal/metrics"
	"github.com/computejobd/computejobd/internal/queue"
	"github.com/computejobd/computejobd/internal/registry"
	"github.com/computejobd/computejobd/internal/workerpool"
)

func newTestDispatcher(t *testing.T, queueCap int) (*Dispatcher, *queue.Queue, *registry.Registry, *workerpool.Pool) {
	t.Helper()
	q := queue.New(queueCap)
	reg := registry.New(nil)
	m := metrics.New(16)
	table := BuildDefaultHandlerTable(func(ctx context.Context) bool {
		return reg.IsCancelRequested(JobIDFromContext(ctx))
	})

	d := New(table, q, reg, m, 50*time.Millisecond)

	handler := &JobHandler{Table: table, Registry: reg, Metrics: m}
	pool := workerpool.New(q, handler)
	require.NoError(t, pool.Start(2))

	return d, q, reg, pool
}

func TestExecuteSyncReturnsHandlerResult(t *testing.T) {
	d, _, _, pool := newTestDispatcher(t, 10)
	defer pool.Stop()

	result, err := d.ExecuteSync(context.Background(), "echo", map[string]string{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, `{"echo":"hi"}`, result)
}

func TestExecuteSyncMissingParamFails(t *testing.T) {
	d, _, _, pool := newTestDispatcher(t, 10)
	defer pool.Stop()

	_, err := d.ExecuteSync(context.Background(), "echo", map[string]string{})
	var dispatchErr *Error
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, KindMissingParameter, dispatchErr.Kind)
}

func TestExecuteSyncUnknownRouteFails(t *testing.T) {
	d, _, _, pool := newTestDispatcher(t, 10)
	defer pool.Stop()

	_, err := d.ExecuteSync(context.Background(), "nope", nil)
	var dispatchErr *Error
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, KindUnknownRoute, dispatchErr.Kind)
}

func TestSubmitAsyncHappyPathReachesDone(t *testing.T) {
	d, _, reg, pool := newTestDispatcher(t, 10)
	defer pool.Stop()

	jobID, err := d.SubmitAsync("echo", map[string]string{"text": "ok"})
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	require.Eventually(t, func() bool {
		job, statusErr := reg.Status(jobID)
		return statusErr == nil && job.Status.Terminal()
	}, 2*time.Second, 5*time.Millisecond)

	result, handlerErr, err := d.JobResult(jobID)
	require.NoError(t, err)
	assert.Empty(t, handlerErr)
	assert.Equal(t, `{"echo":"ok"}`, result)
}

func TestSubmitAsyncMissingTaskParamFailsBeforeEnqueue(t *testing.T) {
	d, q, _, pool := newTestDispatcher(t, 10)
	defer pool.Stop()

	_, err := d.SubmitAsync("echo", map[string]string{})
	var dispatchErr *Error
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, KindMissingParameter, dispatchErr.Kind)
	assert.Equal(t, 0, q.Size())
}

func TestBackpressureOnFullQueueStillReturnsJobID(t *testing.T) {
	q := queue.New(1)
	reg := registry.New(nil)
	m := metrics.New(16)
	table := BuildDefaultHandlerTable(nil)
	d := New(table, q, reg, m, 0) // zero wait budget: fail fast

	// Fill the queue directly so SubmitAsync's own enqueue finds it full.
	require.NoError(t, q.Enqueue(queue.Task{TaskName: "sleep"}, 0))

	jobID, err := d.SubmitAsync("echo", map[string]string{"text": "x"})
	require.NotEmpty(t, jobID)
	assert.ErrorIs(t, err, queue.ErrFull)

	job, statusErr := reg.Status(jobID)
	require.NoError(t, statusErr)
	assert.Equal(t, "queued", string(job.Status))
}

func TestJobStatusUnknownIDReturnsNotFound(t *testing.T) {
	d, _, _, pool := newTestDispatcher(t, 10)
	defer pool.Stop()

	_, _, _, err := d.JobStatus("does-not-exist")
	var dispatchErr *Error
	require.ErrorAs(t, err, &dispatchErr)
	assert.Equal(t, KindNotFound, dispatchErr.Kind)
}

func TestJobCancelBeforeStartPreventsHandlerFromRunning(t *testing.T) {
	d, _, reg, pool := newTestDispatcher(t, 10)
	defer pool.Stop()

	// Occupy both workers with a long sleep so the next submission
	// stays QUEUED long enough to cancel before it starts.
	busyID1, err := d.SubmitAsync("sleep", map[string]string{"seconds": "5"})
	require.NoError(t, err)
	busyID2, err := d.SubmitAsync("sleep", map[string]string{"seconds": "5"})
	require.NoError(t, err)

	jobID, err := d.SubmitAsync("echo", map[string]string{"text": "never"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job, statusErr := reg.Status(jobID)
		return statusErr == nil && job.Status == "queued"
	}, time.Second, time.Millisecond)

	status, cancelErr := d.JobCancel(jobID)
	require.NoError(t, cancelErr)
	assert.Equal(t, "canceled", status)

	job, _ := reg.Status(jobID)
	assert.Equal(t, "canceled", string(job.Status))

	_ = reg.Cancel(busyID1)
	_ = reg.Cancel(busyID2)
}

func TestSubmitAsyncRecordsExecTimeOnTheAggregator(t *testing.T) {
	q := queue.New(10)
	reg := registry.New(nil)
	m := metrics.New(16)
	table := BuildDefaultHandlerTable(func(ctx context.Context) bool {
		return reg.IsCancelRequested(JobIDFromContext(ctx))
	})
	d := New(table, q, reg, m, 50*time.Millisecond)
	handler := &JobHandler{Table: table, Registry: reg, Metrics: m}
	pool := workerpool.New(q, handler)
	require.NoError(t, pool.Start(1))
	defer pool.Stop()

	jobID, err := d.SubmitAsync("sleep", map[string]string{"seconds": "1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job, statusErr := reg.Status(jobID)
		return statusErr == nil && job.Status.Terminal()
	}, 3*time.Second, 10*time.Millisecond)

	dump := m.Dump()
	entry, ok := dump.Commands["sleep"]
	require.True(t, ok)
	assert.Equal(t, uint64(1), entry.Count)
	assert.Greater(t, entry.AvgExecMs, 900.0, "a 1s sleep handler must record exec time near 1000ms, not 0")
}

func TestJobCancelOnTerminalJobReturnsNotCancelable(t *testing.T) {
	d, _, reg, pool := newTestDispatcher(t, 10)
	defer pool.Stop()

	jobID, err := d.SubmitAsync("echo", map[string]string{"text": "x"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job, statusErr := reg.Status(jobID)
		return statusErr == nil && job.Status.Terminal()
	}, 2*time.Second, 5*time.Millisecond)

	_, cancelErr := d.JobCancel(jobID)
	var dispatchErr *Error
	require.ErrorAs(t, cancelErr, &dispatchErr)
	assert.Equal(t, KindNotCancelable, dispatchErr.Kind)
}
