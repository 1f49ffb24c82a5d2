package platform

import (
	"fmt"
	"sync"

	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/errors"
)

// NativeBridge defines the interface for calling native platform code.
type NativeBridge interface {
	// InvokeMethod calls a method on the native side.
	InvokeMethod(channel, method string, args []byte) ([]byte, error)

	// StartEventStream tells native to start sending events for a channel.
	StartEventStream(channel string) error

	// StopEventStream tells native to stop sending events for a channel.
	StopEventStream(channel string) error
}

// Registry owns the platform channels of one runtime instance.
type Registry struct {
	mu             sync.RWMutex
	methodChannels map[string]*MethodChannel
	eventChannels  map[string]*EventChannel
	bridge         NativeBridge
	dispatch       func(callback func())
}

// NewRegistry creates an empty registry with no native bridge connected.
func NewRegistry() *Registry {
	return &Registry{
		methodChannels: make(map[string]*MethodChannel),
		eventChannels:  make(map[string]*EventChannel),
	}
}

// MethodChannel returns the method channel called name, creating it on first use.
func (r *Registry) MethodChannel(name string) *MethodChannel {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.methodChannels[name]
	if !ok {
		ch = &MethodChannel{name: name, registry: r}
		r.methodChannels[name] = ch
	}
	return ch
}

// EventChannel returns the event channel called name, creating it on first use.
func (r *Registry) EventChannel(name string) *EventChannel {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.eventChannels[name]
	if !ok {
		ch = &EventChannel{name: name, registry: r}
		r.eventChannels[name] = ch
	}
	return ch
}

func (r *Registry) lookupMethodChannel(name string) *MethodChannel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.methodChannels[name]
}

func (r *Registry) lookupEventChannel(name string) *EventChannel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.eventChannels[name]
}

func (r *Registry) nativeBridge() NativeBridge {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bridge
}

func (r *Registry) connected() bool {
	return r.nativeBridge() != nil
}

// SetNativeBridge connects the native side.
//
// Event streams of channels that acquired subscriptions before the bridge
// was available are started here. Startup errors are dispatched to
// subscribers' error handlers.
func (r *Registry) SetNativeBridge(bridge NativeBridge) {
	r.mu.Lock()
	r.bridge = bridge
	channels := make([]*EventChannel, 0, len(r.eventChannels))
	for _, ch := range r.eventChannels {
		channels = append(channels, ch)
	}
	r.mu.Unlock()
	if bridge == nil {
		return
	}

	for _, ch := range channels {
		ch.mu.Lock()
		shouldStart := len(ch.subscriptions) > 0 && !ch.started
		if shouldStart {
			ch.started = true
		}
		ch.mu.Unlock()

		if shouldStart {
			if err := r.startEventStream(ch.name); err != nil {
				ch.mu.Lock()
				ch.started = false
				ch.mu.Unlock()
				ch.dispatchError(err)
			}
		}
	}
}

// RegisterDispatch sets the function used to schedule callbacks on the UI thread.
func (r *Registry) RegisterDispatch(fn func(callback func())) {
	r.mu.Lock()
	r.dispatch = fn
	r.mu.Unlock()
}

// Dispatch schedules a callback to run on the UI thread.
// Returns false if no dispatch function is registered or the callback is nil.
func (r *Registry) Dispatch(callback func()) bool {
	r.mu.RLock()
	fn := r.dispatch
	r.mu.RUnlock()
	if fn == nil || callback == nil {
		return false
	}
	fn(callback)
	return true
}

// invokeNative calls a method on the native side.
func (r *Registry) invokeNative(channel, method string, args dynamic.Value) (dynamic.Value, error) {
	bridge := r.nativeBridge()
	if bridge == nil {
		return nil, ErrPlatformUnavailable
	}

	argsData, err := DefaultCodec.Encode(args)
	if err != nil {
		return nil, err
	}

	resultData, err := bridge.InvokeMethod(channel, method, argsData)
	if err != nil {
		return nil, err
	}

	return DefaultCodec.Decode(resultData)
}

func (r *Registry) startEventStream(channel string) error {
	bridge := r.nativeBridge()
	if bridge == nil {
		return r.reportStream("platform.startEventStream", channel, ErrPlatformUnavailable)
	}
	if err := bridge.StartEventStream(channel); err != nil {
		return r.reportStream("platform.startEventStream", channel, err)
	}
	return nil
}

func (r *Registry) stopEventStream(channel string) error {
	bridge := r.nativeBridge()
	if bridge == nil {
		return r.reportStream("platform.stopEventStream", channel, ErrPlatformUnavailable)
	}
	if err := bridge.StopEventStream(channel); err != nil {
		return r.reportStream("platform.stopEventStream", channel, err)
	}
	return nil
}

func (r *Registry) reportStream(op, channel string, err error) error {
	errors.Report(&errors.BridgeError{
		Op:     op,
		Kind:   errors.KindPlatform,
		Module: channel,
		Err:    err,
	})
	return err
}

// HandleMethodCall is called by the native side to invoke a Go method.
func (r *Registry) HandleMethodCall(channel, method string, argsData []byte) ([]byte, error) {
	ch := r.lookupMethodChannel(channel)
	if ch == nil {
		return nil, ErrChannelNotFound
	}

	args, err := DefaultCodec.Decode(argsData)
	if err != nil {
		return nil, err
	}

	result, err := ch.handleCall(method, args)
	if err != nil {
		return nil, err
	}

	return DefaultCodec.Encode(result)
}

// HandleEvent is called by the native side to deliver an event.
func (r *Registry) HandleEvent(channel string, eventData []byte) error {
	ch, err := r.eventTarget("platform.HandleEvent", channel)
	if err != nil {
		return err
	}

	data, err := DefaultCodec.Decode(eventData)
	if err != nil {
		ch.dispatchError(err)
		return err
	}

	ch.dispatchEvent(data)
	return nil
}

// HandleEventError is called by the native side when an event stream errors.
func (r *Registry) HandleEventError(channel string, code, message string) error {
	ch, err := r.eventTarget("platform.HandleEventError", channel)
	if err != nil {
		return err
	}
	ch.dispatchError(NewChannelError(code, message))
	return nil
}

// HandleEventDone is called by the native side when an event stream ends.
func (r *Registry) HandleEventDone(channel string) error {
	ch, err := r.eventTarget("platform.HandleEventDone", channel)
	if err != nil {
		return err
	}
	ch.dispatchDone()
	return nil
}

func (r *Registry) eventTarget(op, channel string) (*EventChannel, error) {
	ch := r.lookupEventChannel(channel)
	if ch == nil {
		err := fmt.Errorf("%w: %s", ErrChannelNotRegistered, channel)
		errors.Report(&errors.BridgeError{
			Op:     op,
			Kind:   errors.KindPlatform,
			Module: channel,
			Err:    err,
		})
		return nil, err
	}
	return ch, nil
}
