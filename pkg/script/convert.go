package script

import (
	"context"
	"fmt"
	"sort"

	"github.com/risor-io/risor/object"

	"github.com/go-drift/nativehost/pkg/bridge"
	"github.com/go-drift/nativehost/pkg/dynamic"
)

// toValue converts a Risor object into a bridge argument: a dynamic.Value,
// or a *Function for Risor functions.
func toValue(ctx context.Context, obj object.Object) (any, error) {
	switch o := obj.(type) {
	case nil, *object.NilType:
		return nil, nil
	case *object.String:
		return o.Value(), nil
	case *object.Int:
		return o.Value(), nil
	case *object.Float:
		return o.Value(), nil
	case *object.Bool:
		return o.Value(), nil
	case *object.List:
		items := o.Value()
		out := make([]dynamic.Value, len(items))
		for i, item := range items {
			v, err := toDynamic(ctx, item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	case *object.Map:
		m := o.Value()
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := dynamic.NewObject()
		for _, k := range keys {
			v, err := toDynamic(ctx, m[k])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out.Set(k, v)
		}
		return out, nil
	case *object.Function:
		call, ok := object.GetCallFunc(ctx)
		if !ok {
			return nil, fmt.Errorf("script: function passed outside of a running script")
		}
		return &Function{fn: o, call: call}, nil
	case *object.Error:
		return nil, o.Value()
	}
	return nil, fmt.Errorf("script: unsupported value of type %s", obj.Type())
}

// toDynamic is toValue restricted to neutral values.
func toDynamic(ctx context.Context, obj object.Object) (dynamic.Value, error) {
	v, err := toValue(ctx, obj)
	if err != nil {
		return nil, err
	}
	if _, ok := v.(*Function); ok {
		return nil, fmt.Errorf("script: functions cannot be nested inside values")
	}
	return v, nil
}

// resultObject converts a bridge result into a Risor object.
func (e *Engine) resultObject(v any) object.Object {
	switch x := v.(type) {
	case *bridge.Promise:
		return e.promiseObject(x)
	case bridge.Module:
		return e.capabilityObject(x)
	case *Function:
		return x.fn
	}
	return toObject(v)
}

// toObject converts a neutral value into a Risor object. Object key order
// is not preserved.
func toObject(v dynamic.Value) object.Object {
	switch x := v.(type) {
	case nil:
		return object.Nil
	case bool:
		return object.NewBool(x)
	case int64:
		return object.NewInt(x)
	case float64:
		return object.NewFloat(x)
	case string:
		return object.NewString(x)
	case []dynamic.Value:
		items := make([]object.Object, len(x))
		for i, item := range x {
			items[i] = toObject(item)
		}
		return object.NewList(items)
	case *dynamic.Object:
		m := make(map[string]object.Object, x.Len())
		x.Range(func(k string, item dynamic.Value) bool {
			m[k] = toObject(item)
			return true
		})
		return object.NewMap(m)
	}
	if dynamic.IsUndefined(v) {
		return object.Nil
	}
	if norm, err := dynamic.From(v); err == nil {
		switch norm.(type) {
		case bool, int64, float64, string, []dynamic.Value, *dynamic.Object:
			return toObject(norm)
		}
	}
	return object.Errorf("script: cannot convert %T", v)
}

func toArgs(ctx context.Context, name string, args []object.Object) ([]any, object.Object) {
	out := make([]any, len(args))
	for i, a := range args {
		v, err := toValue(ctx, a)
		if err != nil {
			return nil, object.Errorf("%s: argument %d: %v", name, i, err)
		}
		out[i] = v
	}
	return out, nil
}
