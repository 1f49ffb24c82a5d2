// Package platform carries capability calls and events over a byte-oriented
// native bridge. Capabilities implemented on the far side of such a bridge
// are exposed to script through ChannelPeer.
package platform

import (
	"github.com/go-drift/nativehost/pkg/dynamic"
)

// DefaultCodec is the codec used by platform channels.
var DefaultCodec dynamic.MessageCodec = dynamic.JSONCodec{}

// ChannelError represents an error returned from native code.
type ChannelError struct {
	Code    string
	Message string
	Details dynamic.Value
}

func (e *ChannelError) Error() string {
	if e.Message != "" {
		return e.Code + ": " + e.Message
	}
	return e.Code
}

// NewChannelError creates a new ChannelError with the given code and message.
func NewChannelError(code, message string) *ChannelError {
	return &ChannelError{Code: code, Message: message}
}

// NewChannelErrorWithDetails creates a new ChannelError with additional details.
func NewChannelErrorWithDetails(code, message string, details dynamic.Value) *ChannelError {
	return &ChannelError{Code: code, Message: message, Details: details}
}

// Object converts the error into the error object a promise rejects with.
func (e *ChannelError) Object() *dynamic.Object {
	obj := dynamic.ObjectOf("message", e.Message, "code", e.Code)
	if e.Details != nil {
		obj.Set("details", e.Details)
	}
	return obj
}
