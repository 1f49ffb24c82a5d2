package mounting

import (
	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/native"
)

// Props is an immutable snapshot of a component's props. Updates replace
// the whole snapshot; a Props value is never modified after creation.
type Props struct {
	values *dynamic.Object
}

// NewProps snapshots values. The object is copied.
func NewProps(values *dynamic.Object) *Props {
	if values == nil {
		return &Props{values: dynamic.NewObject()}
	}
	return &Props{values: values.Clone()}
}

// PropsOf builds Props from alternating key/value pairs.
func PropsOf(pairs ...any) *Props {
	return &Props{values: dynamic.ObjectOf(pairs...)}
}

// Get returns the raw value of a prop.
func (p *Props) Get(key string) (dynamic.Value, bool) {
	if p == nil {
		return nil, false
	}
	return p.values.Get(key)
}

// Has reports whether a prop is set.
func (p *Props) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

// String returns a string prop or def.
func (p *Props) String(key, def string) string {
	if v, ok := p.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Float returns a numeric prop or def.
func (p *Props) Float(key string, def float64) float64 {
	if v, ok := p.Get(key); ok {
		if f, ok := dynamic.ToFloat64(v); ok {
			return f
		}
	}
	return def
}

// Int returns an integral numeric prop, or def.
func (p *Props) Int(key string, def int) int {
	if v, ok := p.Get(key); ok {
		if n, ok := dynamic.ToInt64(v); ok {
			return int(n)
		}
	}
	return def
}

// Bool returns a boolean prop or def.
func (p *Props) Bool(key string, def bool) bool {
	if v, ok := p.Get(key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Keys returns the prop names in order.
func (p *Props) Keys() []string {
	if p == nil {
		return nil
	}
	return p.values.Keys()
}

// Raw returns a copy of the underlying object.
func (p *Props) Raw() *dynamic.Object {
	if p == nil {
		return dynamic.NewObject()
	}
	return p.values.Clone()
}

// Merge returns a new snapshot with raw overlaid on p.
func (p *Props) Merge(raw *dynamic.Object) *Props {
	if p == nil {
		return NewProps(raw)
	}
	return &Props{values: p.values.Merge(raw)}
}

// Equal reports whether both snapshots hold the same props.
func (p *Props) Equal(other *Props) bool {
	return p.Raw().Equal(other.Raw())
}

// Changed returns the names of props that differ between old and p,
// including props present in old but absent in p.
func (p *Props) Changed(old *Props) []string {
	var changed []string
	for _, k := range p.Keys() {
		nv, _ := p.Get(k)
		ov, ok := old.Get(k)
		if !ok || !dynamic.Equal(nv, ov) {
			changed = append(changed, k)
		}
	}
	for _, k := range old.Keys() {
		if !p.Has(k) {
			changed = append(changed, k)
		}
	}
	return changed
}

// State is an immutable snapshot of a component's native-side state.
type State struct {
	value dynamic.Value
}

// NewState snapshots v.
func NewState(v dynamic.Value) *State {
	return &State{value: dynamic.Clone(v)}
}

// Value returns a copy of the state value.
func (s *State) Value() dynamic.Value {
	if s == nil {
		return nil
	}
	return dynamic.Clone(s.value)
}

// Get returns a field of an object-valued state.
func (s *State) Get(key string) (dynamic.Value, bool) {
	if s == nil {
		return nil, false
	}
	return dynamic.AsObject(s.value).Get(key)
}

// LayoutMetrics is the frame computed by the layout engine for a node,
// relative to its parent.
type LayoutMetrics struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Frame converts the metrics to a native frame.
func (m LayoutMetrics) Frame() native.Frame {
	return native.Frame{
		Offset: native.Offset{X: m.X, Y: m.Y},
		Size:   native.Size{Width: m.Width, Height: m.Height},
	}
}

// Object returns the metrics as an event payload.
func (m LayoutMetrics) Object() *dynamic.Object {
	return dynamic.NewObject().
		Set("x", m.X).
		Set("y", m.Y).
		Set("width", m.Width).
		Set("height", m.Height)
}
