package workerpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/computejobd/computejobd/internal/queue"
)

type fakeReply struct {
	result string
	status int
	errMsg string
	done   chan struct{}
}

func newFakeReply() *fakeReply { return &fakeReply{done: make(chan struct{}, 1)} }

func (f *fakeReply) WriteResult(body string) {
	f.result = body
	f.done <- struct{}{}
}

func (f *fakeReply) WriteError(status int, message string, extra map[string]any) {
	f.status = status
	f.errMsg = message
	f.done <- struct{}{}
}

func TestPoolExecutesEachTaskExactlyOnce(t *testing.T) {
	q := queue.New(10)
	var calls int64
	handler := HandlerFunc(func(ctx context.Context, task queue.Task) Result {
		atomic.AddInt64(&calls, 1)
		return Result{Output: "ok"}
	})

	p := New(q, handler)
	require.NoError(t, p.Start(3))

	const n = 20
	replies := make([]*fakeReply, n)
	for i := 0; i < n; i++ {
		replies[i] = newFakeReply()
		require.NoError(t, q.Enqueue(queue.Task{TaskName: "t", Reply: replies[i]}, -1))
	}

	for i := 0; i < n; i++ {
		select {
		case <-replies[i].done:
		case <-time.After(time.Second):
			t.Fatalf("task %d never completed", i)
		}
		assert.Equal(t, "ok", replies[i].result)
	}

	assert.Equal(t, int64(n), atomic.LoadInt64(&calls))
	p.Stop()
	assert.Equal(t, int64(n), p.CompletedCount())
	assert.Equal(t, int64(3), p.TotalCount())
}

func TestPoolBusyCountTracksInFlightWork(t *testing.T) {
	q := queue.New(10)
	release := make(chan struct{})
	handler := HandlerFunc(func(ctx context.Context, task queue.Task) Result {
		<-release
		return Result{Output: "done"}
	})

	p := New(q, handler)
	require.NoError(t, p.Start(2))

	r1, r2 := newFakeReply(), newFakeReply()
	require.NoError(t, q.Enqueue(queue.Task{TaskName: "t", Reply: r1}, -1))
	require.NoError(t, q.Enqueue(queue.Task{TaskName: "t", Reply: r2}, -1))

	require.Eventually(t, func() bool { return p.BusyCount() == 2 }, time.Second, time.Millisecond)

	close(release)
	<-r1.done
	<-r2.done
	p.Stop()
	assert.Equal(t, int64(0), p.BusyCount())
}

func TestPoolHandlerErrorWritesErrorReply(t *testing.T) {
	q := queue.New(4)
	handler := HandlerFunc(func(ctx context.Context, task queue.Task) Result {
		return Result{Err: assert.AnError}
	})

	p := New(q, handler)
	require.NoError(t, p.Start(1))

	reply := newFakeReply()
	require.NoError(t, q.Enqueue(queue.Task{TaskName: "t", Reply: reply}, -1))

	select {
	case <-reply.done:
	case <-time.After(time.Second):
		t.Fatal("task never completed")
	}
	assert.Equal(t, 500, reply.status)
	p.Stop()
}

func TestStartTwiceReturnsError(t *testing.T) {
	q := queue.New(4)
	p := New(q, HandlerFunc(func(ctx context.Context, task queue.Task) Result { return Result{} }))
	require.NoError(t, p.Start(1))
	err := p.Start(1)
	assert.ErrorIs(t, err, ErrAlreadyStarted)
	p.Stop()
}

func TestStopDrainsRemainingTasksBeforeReturning(t *testing.T) {
	q := queue.New(10)
	var completed int64
	handler := HandlerFunc(func(ctx context.Context, task queue.Task) Result {
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt64(&completed, 1)
		return Result{}
	})

	p := New(q, handler)
	require.NoError(t, p.Start(2))

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(queue.Task{TaskName: "t"}, -1))
	}

	p.Stop()
	assert.Equal(t, int64(10), atomic.LoadInt64(&completed))
}
