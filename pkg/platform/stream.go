package platform

import (
	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/errors"
)

// Stream provides a multi-subscriber broadcast pattern for platform events.
// Unlike raw channels, multiple listeners can receive all events independently.
// Use Listen to subscribe and the returned function to unsubscribe.
type Stream[T any] struct {
	eventChannel *EventChannel
	parser       func(data dynamic.Value) (T, error)
}

// NewStream creates a Stream wrapping an EventChannel.
// The parser converts raw event data to the typed value, returning error on parse failure.
func NewStream[T any](channel *EventChannel, parser func(data dynamic.Value) (T, error)) *Stream[T] {
	return &Stream[T]{
		eventChannel: channel,
		parser:       parser,
	}
}

// Listen subscribes to events and returns an unsubscribe function.
// Parse errors are reported via errors.Report.
func (s *Stream[T]) Listen(handler func(T)) (unsubscribe func()) {
	name := s.eventChannel.Name()
	sub := s.eventChannel.Listen(EventHandler{
		OnEvent: func(data dynamic.Value) {
			val, err := s.parser(data)
			if err != nil {
				errors.Report(&errors.BridgeError{
					Op:     "stream.parse",
					Kind:   errors.KindMarshal,
					Module: name,
					Err:    err,
				})
				return
			}
			handler(val)
		},
		OnError: func(err error) {
			errors.Report(&errors.BridgeError{
				Op:     "stream.error",
				Kind:   errors.KindPlatform,
				Module: name,
				Err:    err,
			})
		},
	})
	return sub.Cancel
}
