package script

import (
	"context"

	"github.com/risor-io/risor/object"

	"github.com/go-drift/nativehost/pkg/dynamic"
)

// Function is a Risor function captured from a running script. It
// implements bridge.Function and must be called on the script thread.
type Function struct {
	fn   *object.Function
	call object.CallFunc
}

// Call invokes the function with args.
func (f *Function) Call(ctx context.Context, args ...dynamic.Value) (dynamic.Value, error) {
	objs := make([]object.Object, len(args))
	for i, a := range args {
		objs[i] = toObject(a)
	}
	result, err := f.call(ctx, f.fn, objs)
	if err != nil {
		return nil, err
	}
	return toDynamic(ctx, result)
}
