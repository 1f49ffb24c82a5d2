// Package dynamic defines the neutral value model that crosses the bridge
// between the script runtime and native code.
//
// A Value is one of:
//
//   - nil (null)
//   - Undefined
//   - bool
//   - int64 or float64
//   - string
//   - []Value (ordered list)
//   - *Object (ordered map with string keys)
//
// No other Go type is a valid Value. Use From to normalize arbitrary Go values.
package dynamic

import (
	"fmt"
	"math"
	"reflect"
	"sort"
)

// Value is a neutral structured value.
type Value = any

type undefinedType struct{}

func (undefinedType) String() string { return "undefined" }

// Undefined is the value produced when a promise resolves without arguments.
var Undefined Value = undefinedType{}

// IsUndefined reports whether v is Undefined.
func IsUndefined(v Value) bool {
	_, ok := v.(undefinedType)
	return ok
}

// From converts a Go value into a neutral Value. Integers widen to int64,
// floats to float64, maps with string keys become *Object with sorted keys,
// and slices become []Value.
func From(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case undefinedType:
		return x, nil
	case bool, string, int64, float64:
		return x, nil
	case *Object:
		return x, nil
	case []Value:
		out := make([]Value, len(x))
		for i, item := range x {
			conv, err := From(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = conv
		}
		return out, nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := NewObject()
		for _, k := range keys {
			conv, err := From(x[k])
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			obj.Set(k, conv)
		}
		return obj, nil
	case []string:
		out := make([]Value, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out, nil
	case []byte:
		return string(x), nil
	case fmt.Stringer:
		return x.String(), nil
	}

	if f, ok := v.(float32); ok {
		return float64(f), nil
	}
	if n, ok := ToInt64(v); ok {
		return n, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			conv, err := From(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = conv
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		obj := NewObject()
		for _, k := range keys {
			conv, err := From(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface())
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			obj.Set(k, conv)
		}
		return obj, nil
	}
	return nil, fmt.Errorf("dynamic: unsupported value type %T", v)
}

// MustFrom is like From but panics on unsupported values.
// It is intended for literals in tests and package initialization.
func MustFrom(v any) Value {
	out, err := From(v)
	if err != nil {
		panic(err)
	}
	return out
}

// List builds a []Value from the given Go values.
func List(items ...any) []Value {
	out := make([]Value, len(items))
	for i, item := range items {
		out[i] = MustFrom(item)
	}
	return out
}

// Equal reports whether a and b are structurally equal. Numbers compare by
// numeric value, so int64(1) equals float64(1).
func Equal(a, b Value) bool {
	if af, aok := numeric(a); aok {
		bf, bok := numeric(b)
		return bok && af == bf
	}
	switch x := a.(type) {
	case nil:
		return b == nil
	case undefinedType:
		return IsUndefined(b)
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case []Value:
		y, ok := b.([]Value)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case *Object:
		y, ok := b.(*Object)
		return ok && x.Equal(y)
	}
	return false
}

func numeric(v Value) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		if math.IsNaN(n) {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// TypeName returns a short, script-facing name for the kind of v.
func TypeName(v Value) string {
	switch v.(type) {
	case nil:
		return "null"
	case undefinedType:
		return "undefined"
	case bool:
		return "boolean"
	case int64, float64:
		return "number"
	case string:
		return "string"
	case []Value:
		return "array"
	case *Object:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
