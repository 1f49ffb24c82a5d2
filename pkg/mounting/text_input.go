package mounting

import (
	"strconv"
	"unicode/utf8"

	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/native"
)

// TextInputInstance is an editable single or multi line text field.
//
// The native side owns the text while the user types; the script side
// may overwrite it through the value prop or the setTextAndSelection
// command. eventCount orders the two so stale script updates are ignored.
type TextInputInstance struct {
	*baseInstance

	text       string
	focused    bool
	eventCount int64
	mounted    bool
}

func newTextInput(ctx instanceContext) ComponentInstance {
	node := native.NewNode(native.KindTextInput, strconv.FormatInt(ctx.tag, 10))
	return &TextInputInstance{baseInstance: newBaseInstance(ctx, node)}
}

func (t *TextInputInstance) OnPropsChanged(prev, next *Props) {
	t.applyChangedProps(prev, next)
	if v, ok := next.Get("value"); ok {
		if s, ok := v.(string); ok && s != t.text {
			t.setText(s)
		}
	} else if !prev.Has("value") && !t.mounted {
		t.setText(next.String("defaultValue", ""))
	}
	if !t.editable() && t.focused {
		t.Blur()
	}
}

func (t *TextInputInstance) FinalizeUpdates() {
	if !t.mounted {
		t.mounted = true
		if t.props.Bool("autoFocus", false) {
			t.Focus()
		}
	}
	t.baseInstance.FinalizeUpdates()
}

// OnDetached drops focus so the keyboard does not stay attached to an
// input that left the tree.
func (t *TextInputInstance) OnDetached() {
	if t.focused {
		t.Blur()
	}
}

func (t *TextInputInstance) HandleCommand(name string, args []dynamic.Value) error {
	switch name {
	case "focus":
		t.Focus()
		return nil
	case "blur":
		t.Blur()
		return nil
	case "setTextAndSelection":
		// args: mostRecentEventCount, value, start, end
		if len(args) < 2 {
			return nil
		}
		count, _ := dynamic.ToInt64(args[0])
		if count < t.eventCount {
			return nil
		}
		if s, ok := args[1].(string); ok {
			t.setText(s)
		}
		return nil
	}
	return t.baseInstance.HandleCommand(name, args)
}

// Text returns the current text.
func (t *TextInputInstance) Text() string { return t.text }

// Focused reports whether the input has focus.
func (t *TextInputInstance) Focused() bool { return t.focused }

// EventCount returns the number of native text changes so far.
func (t *TextInputInstance) EventCount() int64 { return t.eventCount }

// Focus gives the input focus and emits onFocus.
func (t *TextInputInstance) Focus() {
	if t.focused || !t.editable() {
		return
	}
	t.focused = true
	t.node.SetAttribute("focused", true)
	t.emit("onFocus", t.targetPayload())
}

// Blur removes focus and emits onBlur.
func (t *TextInputInstance) Blur() {
	if !t.focused {
		return
	}
	t.focused = false
	t.node.SetAttribute("focused", nil)
	t.emit("onBlur", t.targetPayload())
}

// ChangeText replaces the text as if the user typed it and emits onChange.
// It reports whether the text changed.
func (t *TextInputInstance) ChangeText(text string) bool {
	if !t.editable() {
		return false
	}
	if limit := t.props.Int("maxLength", 0); limit > 0 && utf8.RuneCountInString(text) > limit {
		runes := []rune(text)
		text = string(runes[:limit])
	}
	if text == t.text {
		return false
	}
	t.setText(text)
	t.eventCount++
	t.emit("onChange", t.targetPayload().
		Set("text", text).
		Set("eventCount", t.eventCount))
	return true
}

// Submit emits onSubmitEditing. Single line inputs blur afterwards unless
// blurOnSubmit is false.
func (t *TextInputInstance) Submit() {
	t.emit("onSubmitEditing", t.targetPayload().Set("text", t.text))
	multiline := t.props.Bool("multiline", false)
	if t.props.Bool("blurOnSubmit", !multiline) {
		t.Blur()
	}
}

func (t *TextInputInstance) editable() bool {
	return t.props.Bool("editable", true)
}

func (t *TextInputInstance) setText(text string) {
	t.text = text
	t.node.SetAttribute("text", text)
}

func (t *TextInputInstance) targetPayload() *dynamic.Object {
	return dynamic.NewObject().Set("target", t.tag)
}
