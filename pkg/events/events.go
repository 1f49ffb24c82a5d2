// Package events delivers events raised by native widgets back to the
// script runtime.
//
// Every mounted node owns an EventEmitter keyed by its tag. Emitting
// schedules delivery on the script thread without blocking the caller.
// Events from one emitter arrive in emission order. Once an emitter is
// torn down its events are dropped silently, including those already
// queued.
package events

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/errors"
	"github.com/go-drift/nativehost/pkg/executor"
)

// Scheduler enqueues work on an executor thread.
type Scheduler interface {
	RunTask(t executor.Thread, task executor.Task)
}

// Sink receives events on the script thread.
type Sink func(ctx context.Context, tag int64, name string, payload dynamic.Value)

// Registry maps tags to their emitters.
type Registry struct {
	scheduler Scheduler

	mu       sync.RWMutex
	emitters map[int64]*EventEmitter
	sink     Sink
}

// NewRegistry creates a registry that delivers through scheduler.
func NewRegistry(scheduler Scheduler) *Registry {
	return &Registry{
		scheduler: scheduler,
		emitters:  make(map[int64]*EventEmitter),
	}
}

// SetSink binds the script-side receiver. Events emitted while no sink is
// bound are dropped.
func (r *Registry) SetSink(sink Sink) {
	r.mu.Lock()
	r.sink = sink
	r.mu.Unlock()
}

func (r *Registry) currentSink() Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sink
}

// Create returns the emitter for tag, creating it on first use.
func (r *Registry) Create(tag int64) *EventEmitter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.emitters[tag]; ok {
		return e
	}
	e := &EventEmitter{tag: tag, registry: r}
	r.emitters[tag] = e
	return e
}

// Get returns the live emitter for tag.
func (r *Registry) Get(tag int64) (*EventEmitter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.emitters[tag]
	return e, ok
}

// Remove tears down the emitter for tag. Pending and future events from it
// are dropped.
func (r *Registry) Remove(tag int64) {
	r.mu.Lock()
	e, ok := r.emitters[tag]
	delete(r.emitters, tag)
	r.mu.Unlock()
	if ok {
		e.teardown()
	}
}

// Clear tears down every emitter.
func (r *Registry) Clear() {
	r.mu.Lock()
	emitters := r.emitters
	r.emitters = make(map[int64]*EventEmitter)
	r.mu.Unlock()
	for _, e := range emitters {
		e.teardown()
	}
}

// Len returns the number of live emitters.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.emitters)
}

// Emit sends an event through the emitter registered for tag.
// It reports whether the event was scheduled.
func (r *Registry) Emit(tag int64, name string, payload dynamic.Value) bool {
	e, ok := r.Get(tag)
	if !ok {
		errors.Logger().Debug("event dropped: no emitter",
			zap.Int64("tag", tag), zap.String("event", name))
		return false
	}
	return e.Emit(name, payload)
}

// EventEmitter sends named events for one tag.
type EventEmitter struct {
	tag      int64
	registry *Registry
	dead     atomic.Bool
}

// Tag returns the tag this emitter belongs to.
func (e *EventEmitter) Tag() int64 { return e.tag }

// Alive reports whether the emitter has not been torn down.
func (e *EventEmitter) Alive() bool { return e != nil && !e.dead.Load() }

// Emit schedules delivery of the event on the script thread and returns
// immediately. It reports whether the event was scheduled.
func (e *EventEmitter) Emit(name string, payload dynamic.Value) bool {
	if !e.Alive() {
		return false
	}
	r := e.registry
	r.scheduler.RunTask(executor.ThreadScript, func(ctx context.Context) {
		if !e.Alive() {
			errors.Logger().Debug("event dropped: emitter torn down",
				zap.Int64("tag", e.tag), zap.String("event", name))
			return
		}
		sink := r.currentSink()
		if sink == nil {
			return
		}
		sink(ctx, e.tag, name, payload)
	})
	return true
}

func (e *EventEmitter) teardown() {
	e.dead.Store(true)
}
