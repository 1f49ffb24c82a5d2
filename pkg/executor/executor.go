// Package executor runs tasks on the two cooperating threads of a runtime
// instance: the script thread, where script code executes, and the main
// thread, where the native tree and widgets live.
//
// Each thread is a single goroutine draining a FIFO queue, so no two tasks
// on the same thread ever run concurrently. Tasks receive a context that
// records which thread they run on; blocking submissions use it to run
// inline when already on the target thread and to refuse blocking from the
// main thread onto the script thread.
package executor

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/go-drift/nativehost/pkg/errors"
)

// Thread identifies one of the executor's threads.
type Thread int

const (
	// ThreadScript runs script code and settles promises.
	ThreadScript Thread = iota
	// ThreadMain owns the native tree and executes native capability calls.
	ThreadMain
)

func (t Thread) String() string {
	switch t {
	case ThreadScript:
		return "script"
	case ThreadMain:
		return "main"
	default:
		return fmt.Sprintf("thread(%d)", int(t))
	}
}

// Task is a unit of work. The context reports the thread it runs on.
type Task func(ctx context.Context)

var (
	// ErrReverseBlocking is returned when the main thread tries to block on
	// the script thread. That direction can deadlock with synchronous calls.
	ErrReverseBlocking = stderrors.New("executor: main thread must not block on script thread")

	// ErrStopped is returned when submitting to a stopped executor or when a
	// queued task was abandoned by Stop.
	ErrStopped = stderrors.New("executor: stopped")
)

type threadKey struct{}

// WithThread returns a context that reports running on thread t.
func WithThread(ctx context.Context, t Thread) context.Context {
	return context.WithValue(ctx, threadKey{}, t)
}

// CurrentThread returns the executor thread recorded in ctx.
func CurrentThread(ctx context.Context) (Thread, bool) {
	if ctx == nil {
		return 0, false
	}
	t, ok := ctx.Value(threadKey{}).(Thread)
	return t, ok
}

// IsOnThread reports whether ctx belongs to a task running on thread t.
func IsOnThread(ctx context.Context, t Thread) bool {
	cur, ok := CurrentThread(ctx)
	return ok && cur == t
}

// queuedTask is a task plus the hook that releases its waiter if the task
// is dropped without running.
type queuedTask struct {
	run     Task
	abandon func()
}

type taskThread struct {
	id   Thread
	ctx  context.Context
	mu   sync.Mutex
	cond *sync.Cond

	queue  []queuedTask
	closed bool
}

// TaskExecutor owns the script and main threads of one runtime instance.
type TaskExecutor struct {
	threads [2]*taskThread
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	stopOnce sync.Once
}

// New starts a TaskExecutor with both threads running.
func New() *TaskExecutor {
	base, cancel := context.WithCancel(context.Background())
	e := &TaskExecutor{cancel: cancel}
	for _, id := range []Thread{ThreadScript, ThreadMain} {
		t := &taskThread{id: id, ctx: WithThread(base, id)}
		t.cond = sync.NewCond(&t.mu)
		e.threads[id] = t
		e.wg.Add(1)
		go e.loop(t)
	}
	return e
}

func (e *TaskExecutor) thread(t Thread) *taskThread {
	if t != ThreadScript && t != ThreadMain {
		panic(fmt.Sprintf("executor: unknown thread %d", int(t)))
	}
	return e.threads[t]
}

// RunTask enqueues task on thread t and returns immediately. Tasks submitted
// after Stop are dropped. A panic inside the task is recovered and reported.
func (e *TaskExecutor) RunTask(t Thread, task Task) {
	if task == nil {
		return
	}
	th := e.thread(t)
	th.enqueue(queuedTask{run: func(ctx context.Context) {
		defer errors.Recover("executor." + th.id.String())
		task(ctx)
	}})
}

// RunSyncTask runs task on thread t and blocks until it completes.
//
// When ctx already belongs to thread t the task runs inline. Blocking from
// the main thread onto the script thread returns ErrReverseBlocking. A panic
// inside the task is recovered and returned as a *errors.PanicError. If ctx
// is canceled before the task finishes, RunSyncTask returns ctx.Err() and
// the task still runs when its turn comes.
func (e *TaskExecutor) RunSyncTask(ctx context.Context, t Thread, task Task) error {
	if task == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	th := e.thread(t)

	if cur, ok := CurrentThread(ctx); ok {
		if cur == t {
			return runGuarded(ctx, t, task)
		}
		if cur == ThreadMain && t == ThreadScript {
			return ErrReverseBlocking
		}
	}

	done := make(chan error, 1)
	if !th.enqueue(queuedTask{
		run: func(taskCtx context.Context) {
			done <- runGuarded(taskCtx, t, task)
		},
		abandon: func() { done <- ErrStopped },
	}) {
		return ErrStopped
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Syncer is the blocking half of a task runner.
type Syncer interface {
	RunSyncTask(ctx context.Context, t Thread, task Task) error
}

type outcome[T any] struct {
	value T
	err   error
}

// Call runs fn on thread t through s and returns its results. The results
// travel over a channel owned by the task, so when ctx ends first they are
// discarded instead of written into the caller's frame.
func Call[T any](ctx context.Context, s Syncer, t Thread, fn func(ctx context.Context) (T, error)) (T, error) {
	out := make(chan outcome[T], 1)
	if err := s.RunSyncTask(ctx, t, func(ctx context.Context) {
		v, err := fn(ctx)
		out <- outcome[T]{v, err}
	}); err != nil {
		var zero T
		return zero, err
	}
	r := <-out
	return r.value, r.err
}

// Stop drops every queued task, waits for the running ones to finish and
// terminates both threads. Pending RunSyncTask callers receive ErrStopped.
// Stop must not be called from an executor thread.
func (e *TaskExecutor) Stop() {
	e.stopOnce.Do(func() {
		for _, th := range e.threads {
			th.close()
		}
		e.cancel()
		e.wg.Wait()
	})
}

// Stopped reports whether Stop has been called.
func (e *TaskExecutor) Stopped() bool {
	th := e.threads[ThreadMain]
	th.mu.Lock()
	defer th.mu.Unlock()
	return th.closed
}

// Dispatcher adapts thread t to a plain callback scheduler.
func (e *TaskExecutor) Dispatcher(t Thread) func(callback func()) {
	return func(callback func()) {
		if callback == nil {
			return
		}
		e.RunTask(t, func(context.Context) { callback() })
	}
}

func runGuarded(ctx context.Context, t Thread, task Task) (err error) {
	defer errors.RecoverWithCallback("executor."+t.String(), func(r any) {
		err = &errors.PanicError{
			Op:         "executor." + t.String(),
			Value:      r,
			StackTrace: errors.CaptureStack(),
		}
	})
	task(ctx)
	return nil
}

func (t *taskThread) enqueue(q queuedTask) bool {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return false
	}
	t.queue = append(t.queue, q)
	t.mu.Unlock()
	t.cond.Signal()
	return true
}

func (t *taskThread) close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.cond.Broadcast()
}

func (e *TaskExecutor) loop(t *taskThread) {
	defer e.wg.Done()
	for {
		t.mu.Lock()
		for len(t.queue) == 0 && !t.closed {
			t.cond.Wait()
		}
		if t.closed {
			dropped := t.queue
			t.queue = nil
			t.mu.Unlock()
			for _, q := range dropped {
				if q.abandon != nil {
					q.abandon()
				}
			}
			return
		}
		q := t.queue[0]
		t.queue[0] = queuedTask{}
		t.queue = t.queue[1:]
		t.mu.Unlock()

		q.run(t.ctx)
	}
}
