package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/computejobd/computejobd/pkg/types"
)

func TestSubmitStartsInQueuedState(t *testing.T) {
	r := New(nil)
	id := r.Submit("echo", map[string]string{"text": "hi"})

	job, err := r.Status(id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusQueued, job.Status)
	assert.Equal(t, "echo", job.TaskName)
}

func TestLifecycleQueuedRunningDone(t *testing.T) {
	r := New(nil)
	id := r.Submit("echo", nil)

	started, err := r.MarkRunning(id)
	require.NoError(t, err)
	assert.True(t, started)

	r.UpdateProgress(id, 50, 100)
	job, _ := r.Status(id)
	assert.Equal(t, 50, job.Progress)

	require.NoError(t, r.MarkDone(id, "result text"))
	job, _ = r.Status(id)
	assert.Equal(t, types.StatusDone, job.Status)
	assert.Equal(t, "result text", job.Result)
	assert.Equal(t, 100, job.Progress)
}

func TestLifecycleQueuedRunningError(t *testing.T) {
	r := New(nil)
	id := r.Submit("echo", nil)
	_, err := r.MarkRunning(id)
	require.NoError(t, err)

	require.NoError(t, r.MarkError(id, "boom"))
	job, _ := r.Status(id)
	assert.Equal(t, types.StatusError, job.Status)
	assert.Equal(t, "boom", job.Err)
}

func TestTerminalStatesAreAbsorbing(t *testing.T) {
	r := New(nil)
	id := r.Submit("echo", nil)
	_, err := r.MarkRunning(id)
	require.NoError(t, err)
	require.NoError(t, r.MarkDone(id, "ok"))

	_, err = r.MarkRunning(id)
	assert.Error(t, err)

	err = r.MarkDone(id, "ok again")
	assert.Error(t, err)

	err = r.Cancel(id)
	assert.ErrorIs(t, err, ErrNotCancelable)
}

func TestCancelQueuedJobIsImmediate(t *testing.T) {
	r := New(nil)
	id := r.Submit("sleep", nil)

	require.NoError(t, r.Cancel(id))
	job, _ := r.Status(id)
	assert.Equal(t, types.StatusCanceled, job.Status)
}

func TestCancelRunningJobIsAdvisoryUntilWorkerActs(t *testing.T) {
	r := New(nil)
	id := r.Submit("sleep", nil)
	_, err := r.MarkRunning(id)
	require.NoError(t, err)

	require.NoError(t, r.Cancel(id))
	job, _ := r.Status(id)
	assert.Equal(t, types.StatusRunning, job.Status)
	assert.True(t, job.CancelRequested)
	assert.True(t, r.IsCancelRequested(id))

	require.NoError(t, r.MarkCanceled(id))
	job, _ = r.Status(id)
	assert.Equal(t, types.StatusCanceled, job.Status)
}

func TestCancelUnknownJobReturnsNotFound(t *testing.T) {
	r := New(nil)
	err := r.Cancel("does-not-exist")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestMarkRunningOnAlreadyCanceledJobFails(t *testing.T) {
	r := New(nil)
	id := r.Submit("sleep", nil)

	require.NoError(t, r.Cancel(id))
	_, err := r.MarkRunning(id)
	assert.ErrorIs(t, err, ErrNotRunnable)
}

func TestFilePersisterWritesOneFilePerJob(t *testing.T) {
	dir := t.TempDir()
	p := NewFilePersister(filepath.Join(dir, "jobs"))
	r := New(p)

	id := r.Submit("echo", map[string]string{"text": "hi"})
	_, err := r.MarkRunning(id)
	require.NoError(t, err)
	require.NoError(t, r.MarkDone(id, "done"))

	data, err := os.ReadFile(filepath.Join(dir, "jobs", id+".json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status": "done"`)
}

func TestCountReflectsTotalSubmissions(t *testing.T) {
	r := New(nil)
	r.Submit("a", nil)
	r.Submit("b", nil)
	assert.Equal(t, 2, r.Count())
}
