package platform

import (
	"sync"

	"github.com/go-drift/nativehost/pkg/dynamic"
)

// Loopback is a NativeBridge whose "native side" is implemented in Go.
// Method calls are routed to handlers registered with Handle, and Send
// delivers events back into the registry as the native side would.
type Loopback struct {
	registry *Registry

	mu       sync.Mutex
	handlers map[string]MethodHandler
	streams  map[string]bool
}

// NewLoopback creates a loopback bridge delivering events into r.
func NewLoopback(r *Registry) *Loopback {
	return &Loopback{
		registry: r,
		handlers: make(map[string]MethodHandler),
		streams:  make(map[string]bool),
	}
}

// Handle registers the native implementation of channel.
func (l *Loopback) Handle(channel string, handler MethodHandler) {
	l.mu.Lock()
	l.handlers[channel] = handler
	l.mu.Unlock()
}

// InvokeMethod implements NativeBridge.
func (l *Loopback) InvokeMethod(channel, method string, args []byte) ([]byte, error) {
	l.mu.Lock()
	handler := l.handlers[channel]
	l.mu.Unlock()
	if handler == nil {
		// Fall back to Go handlers registered on the channel itself.
		return l.registry.HandleMethodCall(channel, method, args)
	}

	decoded, err := DefaultCodec.Decode(args)
	if err != nil {
		return nil, err
	}
	result, err := handler(method, decoded)
	if err != nil {
		return nil, err
	}
	return DefaultCodec.Encode(result)
}

// StartEventStream implements NativeBridge.
func (l *Loopback) StartEventStream(channel string) error {
	l.mu.Lock()
	l.streams[channel] = true
	l.mu.Unlock()
	return nil
}

// StopEventStream implements NativeBridge.
func (l *Loopback) StopEventStream(channel string) error {
	l.mu.Lock()
	delete(l.streams, channel)
	l.mu.Unlock()
	return nil
}

// Streaming reports whether the event stream of channel is started.
func (l *Loopback) Streaming(channel string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.streams[channel]
}

// Send delivers an event on channel.
func (l *Loopback) Send(channel string, event dynamic.Value) error {
	data, err := DefaultCodec.Encode(event)
	if err != nil {
		return err
	}
	return l.registry.HandleEvent(channel, data)
}

// SetupTestBridge creates a registry connected to a Loopback bridge with a
// synchronous dispatch function. The cleanup function should be
// testing.T.Cleanup or equivalent; it disconnects the bridge.
//
//	reg, native := platform.SetupTestBridge(t.Cleanup)
func SetupTestBridge(cleanup func(func())) (*Registry, *Loopback) {
	reg := NewRegistry()
	lb := NewLoopback(reg)
	reg.SetNativeBridge(lb)
	reg.RegisterDispatch(func(cb func()) { cb() })
	cleanup(func() { reg.SetNativeBridge(nil) })
	return reg, lb
}
