package platform

import (
	"sort"
	"sync"

	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/errors"
)

// Channel names used by the lifecycle service.
const (
	LifecycleChannel       = "nativehost/lifecycle"
	LifecycleEventsChannel = "nativehost/lifecycle/events"
)

// LifecycleState represents the current app state.
type LifecycleState string

const (
	// LifecycleStateActive indicates the app is visible and responding to user input.
	LifecycleStateActive LifecycleState = "active"

	// LifecycleStateInactive indicates the app is transitioning, e.g. while a
	// system dialog is shown.
	LifecycleStateInactive LifecycleState = "inactive"

	// LifecycleStateBackground indicates the app is not visible but still running.
	LifecycleStateBackground LifecycleState = "background"
)

// LifecycleHandler is called when lifecycle state changes.
type LifecycleHandler func(state LifecycleState)

// LifecycleService tracks the app state reported by the native side, either
// as events on LifecycleEventsChannel or as didChangeState calls on
// LifecycleChannel.
type LifecycleService struct {
	unsubscribe func()

	mu       sync.RWMutex
	state    LifecycleState
	handlers map[int]LifecycleHandler
	nextID   int
}

// NewLifecycle creates a lifecycle service listening on r's channels.
func NewLifecycle(r *Registry) *LifecycleService {
	l := &LifecycleService{
		state:    LifecycleStateActive,
		handlers: make(map[int]LifecycleHandler),
	}
	stream := NewStream(r.EventChannel(LifecycleEventsChannel), parseLifecycleState)
	l.unsubscribe = stream.Listen(l.updateState)

	r.MethodChannel(LifecycleChannel).SetHandler(func(method string, args dynamic.Value) (dynamic.Value, error) {
		switch method {
		case "didChangeState":
			state, err := parseLifecycleState(args)
			if err != nil {
				return nil, err
			}
			l.updateState(state)
			return nil, nil
		case "getState":
			return string(l.State()), nil
		default:
			return nil, ErrMethodNotFound
		}
	})
	return l
}

func parseLifecycleState(data dynamic.Value) (LifecycleState, error) {
	if obj := dynamic.AsObject(data); obj != nil {
		if v, ok := obj.Get("state"); ok {
			if s, ok := v.(string); ok {
				return LifecycleState(s), nil
			}
		}
	}
	return "", &errors.MarshalError{Context: "lifecycle event", Detail: `expected {"state": string}`, Got: data}
}

// State returns the current lifecycle state.
func (l *LifecycleService) State() LifecycleState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// AddHandler registers a handler to be called on lifecycle changes.
// Returns a function that removes the handler.
func (l *LifecycleService) AddHandler(handler LifecycleHandler) func() {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.handlers[id] = handler
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.handlers, id)
		l.mu.Unlock()
	}
}

// Close stops listening for lifecycle events.
func (l *LifecycleService) Close() {
	if l.unsubscribe != nil {
		l.unsubscribe()
	}
}

// updateState updates the lifecycle state and notifies handlers in
// registration order.
func (l *LifecycleService) updateState(newState LifecycleState) {
	l.mu.Lock()
	if l.state == newState {
		l.mu.Unlock()
		return
	}
	l.state = newState
	ids := make([]int, 0, len(l.handlers))
	for id := range l.handlers {
		ids = append(ids, id)
	}
	handlers := make([]LifecycleHandler, 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		handlers = append(handlers, l.handlers[id])
	}
	l.mu.Unlock()

	for _, h := range handlers {
		h(newState)
	}
}
