package runtime

import (
	"context"

	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/executor"
	"github.com/go-drift/nativehost/pkg/mounting"
)

// InputChannel carries native widget interactions (drags, focus, typing)
// into the mounted tree. Args are an object with the target tag. Calls
// block until the main thread has applied the input, so native code must
// not make them from inside a main thread task.
const InputChannel = "nativehost/input"

func (i *Instance) handleInput(method string, args dynamic.Value) (dynamic.Value, error) {
	in, err := mounting.ParseInput(method, args)
	if err != nil {
		return nil, err
	}
	if err := i.alive(); err != nil {
		return nil, err
	}
	return executor.Call(context.Background(), i.exec, executor.ThreadMain, func(context.Context) (dynamic.Value, error) {
		return i.applier.DispatchInput(in)
	})
}
