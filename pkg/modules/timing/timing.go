// Package timing provides the Timing capability. Timers are stepped by the
// instance's UI tick on the main thread and fire their script callbacks on
// the script thread.
package timing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/go-drift/nativehost/pkg/bridge"
	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/errors"
	"github.com/go-drift/nativehost/pkg/ticker"
)

// Name is the capability name.
const Name = "Timing"

type timer struct {
	callback *bridge.CallbackHandle
	interval time.Duration
	repeats  bool
	next     time.Duration
	ticker   *ticker.Ticker
}

// Timers schedules script callbacks on a tick source.
type Timers struct {
	source *ticker.Source

	mu     sync.Mutex
	timers map[int64]*timer
	nextID int64
}

// New creates a timer set driven by source.
func New(source *ticker.Source) *Timers {
	return &Timers{source: source, timers: make(map[int64]*timer)}
}

// Create starts timer id. A zero id picks the next free one. The
// callback fires after delay, and every delay afterwards when repeats is
// set. Creating an existing id replaces it.
func (t *Timers) Create(id int64, callback *bridge.CallbackHandle, delay time.Duration, repeats bool) int64 {
	if delay < 0 {
		delay = 0
	}
	t.mu.Lock()
	if id == 0 {
		t.nextID++
		id = t.nextID
	} else if id > t.nextID {
		t.nextID = id
	}
	old := t.timers[id]
	tm := &timer{callback: callback, interval: delay, repeats: repeats, next: delay}
	tm.ticker = t.source.NewTicker(func(elapsed time.Duration) { t.step(id, tm, elapsed) })
	t.timers[id] = tm
	t.mu.Unlock()

	if old != nil {
		t.release(old)
	}
	tm.ticker.Start()
	errors.Logger().Debug("timer created", zap.Int64("id", id), zap.Duration("delay", delay), zap.Bool("repeats", repeats))
	return id
}

// Delete cancels timer id. Unknown ids are ignored.
func (t *Timers) Delete(id int64) {
	t.mu.Lock()
	tm := t.timers[id]
	delete(t.timers, id)
	t.mu.Unlock()
	if tm != nil {
		t.release(tm)
	}
}

// Len returns the number of pending timers.
func (t *Timers) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

func (t *Timers) step(id int64, tm *timer, elapsed time.Duration) {
	if elapsed < tm.next {
		return
	}
	if !tm.repeats {
		t.mu.Lock()
		if t.timers[id] == tm {
			delete(t.timers, id)
		}
		t.mu.Unlock()
		tm.ticker.Stop()
		tm.callback.InvokeOnce()
		return
	}
	step := tm.interval
	if step <= 0 {
		step = ticker.DefaultInterval
	}
	for tm.next <= elapsed {
		tm.next += step
	}
	tm.callback.Invoke()
}

func (t *Timers) release(tm *timer) {
	tm.ticker.Stop()
	tm.callback.Release()
}

// Package returns the package providing Timing over source.
func Package(source *ticker.Source) bridge.Package {
	timers := New(source)
	return bridge.PackageFunc{
		PackageName: "timing",
		Factory: func(name string, invoker *bridge.Invoker, _ bridge.Scheduler) bridge.Module {
			if name != Name {
				return nil
			}
			return bridge.NewModule(name, invoker, timers.methods()...)
		},
	}
}

func (t *Timers) methods() []bridge.Method {
	return []bridge.Method{
		{
			// setTimeout(callback, ms)
			Name:       "setTimeout",
			Convention: bridge.ConventionVoid,
			Func: func(_ context.Context, args bridge.Args) (dynamic.Value, error) {
				cb, err := args.Callback(0)
				if err != nil {
					return nil, err
				}
				ms, err := args.Float(1)
				if err != nil {
					return nil, err
				}
				t.Create(0, cb, millis(ms), false)
				return nil, nil
			},
		},
		{
			// createTimer(callback, id, ms, repeats)
			Name:       "createTimer",
			Convention: bridge.ConventionVoid,
			Func: func(_ context.Context, args bridge.Args) (dynamic.Value, error) {
				cb, err := args.Callback(0)
				if err != nil {
					return nil, err
				}
				id, err := args.Int(1)
				if err != nil {
					return nil, err
				}
				ms, err := args.Float(2)
				if err != nil {
					return nil, err
				}
				t.Create(id, cb, millis(ms), dynamic.Bool(args.Value(3)))
				return nil, nil
			},
		},
		{
			Name:       "deleteTimer",
			Convention: bridge.ConventionVoid,
			Func: func(_ context.Context, args bridge.Args) (dynamic.Value, error) {
				id, err := args.Int(0)
				if err != nil {
					return nil, err
				}
				t.Delete(id)
				return nil, nil
			},
		},
	}
}

func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
