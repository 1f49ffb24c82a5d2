package mounting

import (
	stderrors "errors"
	"fmt"

	"github.com/go-drift/nativehost/pkg/dynamic"
)

// Input methods delivered by native widgets.
const (
	InputBeginDrag  = "beginDrag"
	InputDragTo     = "dragTo"
	InputEndDrag    = "endDrag"
	InputFocus      = "focus"
	InputBlur       = "blur"
	InputChangeText = "changeText"
	InputSubmit     = "submit"
)

var (
	// ErrUnknownInput is returned for an input method no component handles.
	ErrUnknownInput = stderrors.New("mounting: unknown input method")
	// ErrInputTarget is returned when the tagged component cannot take the input.
	ErrInputTarget = stderrors.New("mounting: component does not accept input")
)

// Input is a single native widget interaction aimed at a mounted node.
type Input struct {
	Tag    int64
	Method string
	X, Y   float64
	Text   string
}

// ParseInput reads an input from a channel call. args must be an object
// carrying the target tag, plus x/y for drags or text for changeText.
func ParseInput(method string, args dynamic.Value) (Input, error) {
	obj := dynamic.AsObject(args)
	if obj == nil {
		return Input{}, fmt.Errorf("mounting: %s: arguments must be an object", method)
	}
	raw, _ := obj.Get("tag")
	tag, ok := dynamic.ToInt64(raw)
	if !ok || tag <= 0 {
		return Input{}, fmt.Errorf("%w: %v", ErrInvalidTag, raw)
	}
	in := Input{Tag: tag, Method: method}
	if v, ok := obj.Get("x"); ok {
		in.X, _ = dynamic.ToFloat64(v)
	}
	if v, ok := obj.Get("y"); ok {
		in.Y, _ = dynamic.ToFloat64(v)
	}
	if v, ok := obj.Get("text"); ok {
		in.Text = dynamic.String(v)
	}
	return in, nil
}

// DispatchInput applies in to its target under the tree lock. Must run on
// the main thread. The result is the changed flag for changeText and nil
// otherwise.
func (a *MutationApplier) DispatchInput(in Input) (dynamic.Value, error) {
	var (
		result dynamic.Value
		err    error
	)
	found := a.WithInstance(in.Tag, func(inst ComponentInstance) {
		result, err = applyInput(inst, in)
	})
	if !found {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTag, in.Tag)
	}
	return result, err
}

func applyInput(inst ComponentInstance, in Input) (dynamic.Value, error) {
	switch c := inst.(type) {
	case *ScrollViewInstance:
		switch in.Method {
		case InputBeginDrag:
			c.BeginDrag()
		case InputDragTo:
			c.DragTo(in.X, in.Y)
		case InputEndDrag:
			c.EndDrag(in.X, in.Y)
		default:
			return nil, inputError(inst, in)
		}
	case *TextInputInstance:
		switch in.Method {
		case InputFocus:
			c.Focus()
		case InputBlur:
			c.Blur()
		case InputChangeText:
			return c.ChangeText(in.Text), nil
		case InputSubmit:
			c.Submit()
		default:
			return nil, inputError(inst, in)
		}
	default:
		return nil, inputError(inst, in)
	}
	return nil, nil
}

func inputError(inst ComponentInstance, in Input) error {
	switch in.Method {
	case InputBeginDrag, InputDragTo, InputEndDrag, InputFocus, InputBlur, InputChangeText, InputSubmit:
		return fmt.Errorf("%w: %s on %s %d", ErrInputTarget, in.Method, inst.ComponentName(), in.Tag)
	}
	return fmt.Errorf("%w: %q", ErrUnknownInput, in.Method)
}
