package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerPool(t *testing.T) {
	tests := []struct {
		name        string
		config      WorkerPoolConfig
		wantWorkers int
		wantQueue   int
	}{
		{"explicit", WorkerPoolConfig{WorkerCount: 5, QueueSize: 8}, 5, 8},
		{"zero workers", WorkerPoolConfig{WorkerCount: 0, QueueSize: 8}, 1, 8},
		{"negative workers", WorkerPoolConfig{WorkerCount: -5}, 1, 64},
		{"defaults", DefaultWorkerPoolConfig(), 4, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewWorkerPool(tt.config, setupTestLogger())
			assert.Equal(t, tt.wantWorkers, pool.WorkerCount())
			assert.Equal(t, tt.wantQueue, cap(pool.queues[0].tasks))
			assert.NotNil(t, pool.errorHandler)
		})
	}
}

func TestWorkerPool_SameKeySameWorker(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{WorkerCount: 8}, setupTestLogger())

	for _, key := range []string{"a", "b", "card-123", ""} {
		first := pool.workerFor(key)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, pool.workerFor(key))
		}
		assert.GreaterOrEqual(t, first, 0)
		assert.Less(t, first, 8)
	}
}

func TestWorkerPool_ProcessTask_Success(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{WorkerCount: 1}, setupTestLogger())
	pool.Start()
	defer pool.Stop()

	completed := make(chan struct{})
	task := newMockTask()
	task.execFn = func(ctx context.Context) error {
		close(completed)
		return nil
	}
	require.NoError(t, pool.Submit(task))

	select {
	case <-completed:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for task to complete")
	}
}

func TestWorkerPool_ProcessTask_Error(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{WorkerCount: 1}, setupTestLogger())

	errorHandled := make(chan error, 1)
	pool.SetErrorHandler(func(task Task, err error) {
		errorHandled <- err
	})
	pool.Start()
	defer pool.Stop()

	expectedErr := errors.New("test error")
	task := newMockTask()
	task.execFn = func(ctx context.Context) error { return expectedErr }
	require.NoError(t, pool.Submit(task))

	select {
	case err := <-errorHandled:
		assert.Equal(t, expectedErr, err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for error handler")
	}
}

func TestWorkerPool_ProcessTask_Panic(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{WorkerCount: 1}, setupTestLogger())

	errorHandled := make(chan error, 1)
	pool.SetErrorHandler(func(task Task, err error) {
		errorHandled <- err
	})
	pool.Start()
	defer pool.Stop()

	task := newMockTask()
	task.execFn = func(ctx context.Context) error { panic("test panic") }
	require.NoError(t, pool.Submit(task))

	select {
	case err := <-errorHandled:
		assert.Contains(t, err.Error(), "panic")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for error handler after panic")
	}
}

func TestWorkerPool_PreservesOrderPerKey(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{WorkerCount: 4, QueueSize: 256}, setupTestLogger())
	pool.Start()

	var (
		mu  sync.Mutex
		got = map[string][]int{}
	)
	keys := []string{"card-a", "card-b", "card-c", "card-d", "card-e"}
	for i := 0; i < 40; i++ {
		for _, key := range keys {
			key, i := key, i
			task := NewFuncTask("test", key, func(ctx context.Context) error {
				// Uneven work so that unordered execution would show.
				time.Sleep(time.Duration(i%3) * time.Millisecond)
				mu.Lock()
				got[key] = append(got[key], i)
				mu.Unlock()
				return nil
			})
			require.NoError(t, pool.Submit(task))
		}
	}

	require.NoError(t, pool.Shutdown(context.Background()))

	for _, key := range keys {
		require.Len(t, got[key], 40, "key %s", key)
		for i, v := range got[key] {
			assert.Equal(t, i, v, fmt.Sprintf("key %s out of order", key))
		}
	}
}

func TestWorkerPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{WorkerCount: 2}, setupTestLogger())
	pool.Start()
	require.NoError(t, pool.Shutdown(context.Background()))

	err := pool.Submit(newMockTask())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestWorkerPool_QueueFull(t *testing.T) {
	// Not started: nothing drains the queue.
	pool := NewWorkerPool(WorkerPoolConfig{WorkerCount: 1, QueueSize: 1}, setupTestLogger())

	require.NoError(t, pool.Submit(newMockTask()))
	assert.ErrorIs(t, pool.Submit(newMockTask()), ErrQueueFull)
	pool.Stop()
}

func TestWorkerPool_StopCancelsRunningTask(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{WorkerCount: 1}, setupTestLogger())
	pool.Start()

	taskStarted := make(chan struct{})
	taskCanceled := make(chan struct{})
	task := newMockTask()
	task.execFn = func(ctx context.Context) error {
		close(taskStarted)
		<-ctx.Done()
		close(taskCanceled)
		return ctx.Err()
	}
	require.NoError(t, pool.Submit(task))

	select {
	case <-taskStarted:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for task to start")
	}

	stopDone := make(chan struct{})
	go func() {
		pool.Stop()
		close(stopDone)
	}()

	select {
	case <-taskCanceled:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for task to be canceled")
	}
	select {
	case <-stopDone:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for worker pool to stop")
	}
}

func TestWorkerPool_ShutdownDeadline(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{WorkerCount: 1}, setupTestLogger())
	pool.Start()

	started := make(chan struct{})
	task := newMockTask()
	task.execFn = func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
	require.NoError(t, pool.Submit(task))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWorkerPool_StopReportsDiscardedTasks(t *testing.T) {
	pool := NewWorkerPool(WorkerPoolConfig{WorkerCount: 1, QueueSize: 8}, setupTestLogger())

	var (
		mu        sync.Mutex
		discarded []error
		ran       int
	)
	pool.SetErrorHandler(func(task Task, err error) {
		mu.Lock()
		defer mu.Unlock()
		if errors.Is(err, ErrTaskDiscarded) {
			discarded = append(discarded, err)
		}
	})
	pool.Start()

	started := make(chan struct{})
	blocker := newMockTask()
	blocker.execFn = func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return nil
	}
	require.NoError(t, pool.Submit(blocker))
	<-started

	for i := 0; i < 3; i++ {
		queued := newMockTask()
		queued.execFn = func(ctx context.Context) error {
			mu.Lock()
			ran++
			mu.Unlock()
			return nil
		}
		require.NoError(t, pool.Submit(queued))
	}

	pool.Stop()
	pool.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, ran)
	assert.Len(t, discarded, 3)
}
