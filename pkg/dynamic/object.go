package dynamic

// Object is an ordered map from string keys to Values. Iteration follows
// insertion order; setting an existing key keeps its original position.
type Object struct {
	keys   []string
	values map[string]Value
}

// NewObject creates an empty Object.
func NewObject() *Object {
	return &Object{values: make(map[string]Value)}
}

// ObjectOf builds an Object from alternating key/value pairs.
// It panics if the pair list is malformed or a value is unsupported.
func ObjectOf(pairs ...any) *Object {
	if len(pairs)%2 != 0 {
		panic("dynamic: ObjectOf requires key/value pairs")
	}
	obj := NewObject()
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			panic("dynamic: ObjectOf keys must be strings")
		}
		obj.Set(key, MustFrom(pairs[i+1]))
	}
	return obj
}

// Set stores value under key and returns the receiver for chaining.
func (o *Object) Set(key string, value Value) *Object {
	if o.values == nil {
		o.values = make(map[string]Value)
	}
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
	return o
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	_, ok := o.Get(key)
	return ok
}

// Delete removes key, preserving the order of the remaining keys.
func (o *Object) Delete(key string) {
	if o == nil {
		return
	}
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Keys returns a copy of the keys in order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	return append([]string(nil), o.keys...)
}

// Range calls fn for each entry in order until fn returns false.
func (o *Object) Range(fn func(key string, value Value) bool) {
	if o == nil {
		return
	}
	for _, k := range o.keys {
		if !fn(k, o.values[k]) {
			return
		}
	}
}

// Clone returns a deep copy of the Object.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	out := &Object{
		keys:   make([]string, len(o.keys)),
		values: make(map[string]Value, len(o.values)),
	}
	copy(out.keys, o.keys)
	for k, v := range o.values {
		out.values[k] = Clone(v)
	}
	return out
}

// Merge returns a new Object holding the entries of o overlaid with the
// entries of other. Neither input is modified.
func (o *Object) Merge(other *Object) *Object {
	out := o.Clone()
	if out == nil {
		out = NewObject()
	}
	other.Range(func(k string, v Value) bool {
		out.Set(k, Clone(v))
		return true
	})
	return out
}

// Equal reports whether both objects hold equal entries. Key order is ignored.
func (o *Object) Equal(other *Object) bool {
	if o.Len() != other.Len() {
		return false
	}
	equal := true
	o.Range(func(k string, v Value) bool {
		ov, ok := other.Get(k)
		if !ok || !Equal(v, ov) {
			equal = false
			return false
		}
		return true
	})
	return equal
}

// Map converts the Object into a plain Go map. Nested objects convert too.
func (o *Object) Map() map[string]any {
	if o == nil {
		return nil
	}
	out := make(map[string]any, len(o.keys))
	for k, v := range o.values {
		out[k] = ToNative(v)
	}
	return out
}

// Clone deep-copies a Value.
func Clone(v Value) Value {
	switch x := v.(type) {
	case []Value:
		out := make([]Value, len(x))
		for i, item := range x {
			out[i] = Clone(item)
		}
		return out
	case *Object:
		return x.Clone()
	}
	return v
}

// ToNative converts a Value into plain Go maps and slices.
func ToNative(v Value) any {
	switch x := v.(type) {
	case []Value:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = ToNative(item)
		}
		return out
	case *Object:
		return x.Map()
	case undefinedType:
		return nil
	}
	return v
}
