package executor

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-drift/nativehost/pkg/errors"
)

func newExecutor(t *testing.T) *TaskExecutor {
	t.Helper()
	e := New()
	t.Cleanup(e.Stop)
	return e
}

func TestRunTaskRunsOnThread(t *testing.T) {
	e := newExecutor(t)

	got := make(chan Thread, 1)
	e.RunTask(ThreadMain, func(ctx context.Context) {
		th, _ := CurrentThread(ctx)
		got <- th
	})

	select {
	case th := <-got:
		assert.Equal(t, ThreadMain, th)
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}

func TestRunTaskPreservesOrder(t *testing.T) {
	e := newExecutor(t)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 50; i++ {
		i := i
		e.RunTask(ThreadScript, func(context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	require.NoError(t, e.RunSyncTask(context.Background(), ThreadScript, func(context.Context) {}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 50)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestRunSyncTaskBlocksUntilDone(t *testing.T) {
	e := newExecutor(t)

	var ran bool
	err := e.RunSyncTask(context.Background(), ThreadMain, func(context.Context) {
		time.Sleep(10 * time.Millisecond)
		ran = true
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestRunSyncTaskFromScriptToMain(t *testing.T) {
	e := newExecutor(t)

	var result string
	err := e.RunSyncTask(context.Background(), ThreadScript, func(ctx context.Context) {
		_ = e.RunSyncTask(ctx, ThreadMain, func(ctx context.Context) {
			result = "from " + mustThread(ctx).String()
		})
	})
	require.NoError(t, err)
	assert.Equal(t, "from main", result)
}

func TestRunSyncTaskInlineOnSameThread(t *testing.T) {
	e := newExecutor(t)

	var inner Thread
	err := e.RunSyncTask(context.Background(), ThreadMain, func(ctx context.Context) {
		// Would deadlock if it were enqueued behind the running task.
		_ = e.RunSyncTask(ctx, ThreadMain, func(ctx context.Context) {
			inner = mustThread(ctx)
		})
	})
	require.NoError(t, err)
	assert.Equal(t, ThreadMain, inner)
}

func TestRunSyncTaskRefusesReverseBlocking(t *testing.T) {
	e := newExecutor(t)

	var got error
	require.NoError(t, e.RunSyncTask(context.Background(), ThreadMain, func(ctx context.Context) {
		got = e.RunSyncTask(ctx, ThreadScript, func(context.Context) {
			t.Error("script task must not run")
		})
	}))
	assert.ErrorIs(t, got, ErrReverseBlocking)
}

func TestRunSyncTaskReturnsPanic(t *testing.T) {
	rec := errors.InstallRecorder(t.Cleanup)
	e := newExecutor(t)

	err := e.RunSyncTask(context.Background(), ThreadMain, func(context.Context) {
		panic("boom")
	})
	var pe *errors.PanicError
	require.True(t, stderrors.As(err, &pe))
	assert.Equal(t, "boom", pe.Value)
	assert.Len(t, rec.Panics(), 1)

	// The thread survives the panic.
	require.NoError(t, e.RunSyncTask(context.Background(), ThreadMain, func(context.Context) {}))
}

func TestRunTaskPanicIsContained(t *testing.T) {
	rec := errors.InstallRecorder(t.Cleanup)
	e := newExecutor(t)

	e.RunTask(ThreadMain, func(context.Context) { panic("fire and forget") })
	require.NoError(t, e.RunSyncTask(context.Background(), ThreadMain, func(context.Context) {}))

	panics := rec.Panics()
	require.Len(t, panics, 1)
	assert.Equal(t, "executor.main", panics[0].Op)
}

func TestRunSyncTaskContextCanceled(t *testing.T) {
	e := newExecutor(t)

	release := make(chan struct{})
	e.RunTask(ThreadMain, func(context.Context) { <-release })
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := e.RunSyncTask(ctx, ThreadMain, func(context.Context) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStopAbandonsQueuedTasks(t *testing.T) {
	e := New()

	started := make(chan struct{})
	release := make(chan struct{})
	e.RunTask(ThreadMain, func(context.Context) {
		close(started)
		<-release
	})
	<-started

	result := make(chan error, 1)
	go func() {
		result <- e.RunSyncTask(context.Background(), ThreadMain, func(context.Context) {
			t.Error("abandoned task must not run")
		})
	}()

	// Give the waiter time to enqueue behind the blocked task.
	time.Sleep(20 * time.Millisecond)
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()
	e.Stop()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(time.Second):
		t.Fatal("waiter was not released")
	}
	assert.True(t, e.Stopped())
	assert.ErrorIs(t, e.RunSyncTask(context.Background(), ThreadMain, func(context.Context) {}), ErrStopped)

	// Submitting after stop is a silent no-op.
	e.RunTask(ThreadMain, func(context.Context) { t.Error("must not run") })
}

func TestDispatcher(t *testing.T) {
	e := newExecutor(t)

	done := make(chan struct{})
	e.Dispatcher(ThreadMain)(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatched callback did not run")
	}
}

func TestThreadString(t *testing.T) {
	assert.Equal(t, "script", ThreadScript.String())
	assert.Equal(t, "main", ThreadMain.String())
	assert.Equal(t, "thread(7)", Thread(7).String())
}

func mustThread(ctx context.Context) Thread {
	th, ok := CurrentThread(ctx)
	if !ok {
		panic("no thread in context")
	}
	return th
}

func TestCallReturnsResults(t *testing.T) {
	e := newExecutor(t)

	v, err := Call(context.Background(), e, ThreadMain, func(ctx context.Context) (string, error) {
		th, _ := CurrentThread(ctx)
		return th.String(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "main", v)

	boom := stderrors.New("boom")
	_, err = Call(context.Background(), e, ThreadScript, func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestCallCanceledDiscardsLateResult(t *testing.T) {
	e := newExecutor(t)

	release := make(chan struct{})
	e.RunTask(ThreadMain, func(context.Context) { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ran := make(chan struct{})
	v, err := Call(ctx, e, ThreadMain, func(context.Context) (int, error) {
		defer close(ran)
		return 42, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, v)

	// The abandoned task still runs once the thread is free.
	close(release)
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("queued task never ran")
	}
	assert.Zero(t, v)
}
