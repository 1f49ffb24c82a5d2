package bridge

import (
	"fmt"

	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/errors"
)

// Args are the marshaled arguments of a native call. Each element is either
// a dynamic.Value or a *CallbackHandle.
type Args []any

// Len returns the number of arguments.
func (a Args) Len() int { return len(a) }

// Value returns argument i, or nil when out of range or a callback.
func (a Args) Value(i int) dynamic.Value {
	if i < 0 || i >= len(a) {
		return nil
	}
	if _, ok := a[i].(*CallbackHandle); ok {
		return nil
	}
	return a[i]
}

// String returns argument i as a string.
func (a Args) String(i int) (string, error) {
	s, ok := a.Value(i).(string)
	if !ok {
		return "", a.mismatch(i, "string")
	}
	return s, nil
}

// Float returns argument i as a number.
func (a Args) Float(i int) (float64, error) {
	f, ok := dynamic.ToFloat64(a.Value(i))
	if !ok {
		return 0, a.mismatch(i, "number")
	}
	return f, nil
}

// Int returns argument i as an integer. Fractional numbers are rejected.
func (a Args) Int(i int) (int64, error) {
	n, ok := dynamic.ToInt64(a.Value(i))
	if !ok {
		return 0, a.mismatch(i, "integer")
	}
	return n, nil
}

// Object returns argument i as an object.
func (a Args) Object(i int) (*dynamic.Object, error) {
	obj, ok := a.Value(i).(*dynamic.Object)
	if !ok {
		return nil, a.mismatch(i, "object")
	}
	return obj, nil
}

// List returns argument i as a list.
func (a Args) List(i int) ([]dynamic.Value, error) {
	list, ok := a.Value(i).([]dynamic.Value)
	if !ok {
		return nil, a.mismatch(i, "array")
	}
	return list, nil
}

// Strings returns argument i as a list of strings.
func (a Args) Strings(i int) ([]string, error) {
	list, err := a.List(i)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(list))
	for j, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, &errors.MarshalError{
				Context: fmt.Sprintf("argument %d[%d]", i, j),
				Detail:  "expected string",
				Got:     item,
			}
		}
		out[j] = s
	}
	return out, nil
}

// Callback returns argument i as a callback handle.
func (a Args) Callback(i int) (*CallbackHandle, error) {
	if i >= 0 && i < len(a) {
		if h, ok := a[i].(*CallbackHandle); ok {
			return h, nil
		}
	}
	return nil, a.mismatch(i, "function")
}

// Values returns the arguments with callbacks dropped.
func (a Args) Values() []dynamic.Value {
	out := make([]dynamic.Value, 0, len(a))
	for _, v := range a {
		if _, ok := v.(*CallbackHandle); ok {
			continue
		}
		out = append(out, v)
	}
	return out
}

func (a Args) mismatch(i int, want string) error {
	var got any
	if i >= 0 && i < len(a) {
		got = a[i]
	}
	if got == nil {
		return &errors.MarshalError{Context: fmt.Sprintf("argument %d", i), Detail: "expected " + want}
	}
	return &errors.MarshalError{Context: fmt.Sprintf("argument %d", i), Detail: "expected " + want, Got: got}
}

// marshalArgs converts script-side arguments. Functions are wrapped into
// callback handles owned by arena; everything else must be a neutral value.
func marshalArgs(arena *CallbackArena, raw []any) (Args, []*CallbackHandle, error) {
	args := make(Args, len(raw))
	var handles []*CallbackHandle
	for i, v := range raw {
		if fn, ok := v.(Function); ok {
			h := arena.Wrap(fn)
			handles = append(handles, h)
			args[i] = h
			continue
		}
		conv, err := dynamic.From(v)
		if err != nil {
			for _, h := range handles {
				h.Release()
			}
			return nil, nil, &errors.MarshalError{Context: fmt.Sprintf("argument %d", i), Detail: err.Error(), Got: v}
		}
		args[i] = conv
	}
	return args, handles, nil
}
