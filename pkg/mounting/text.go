package mounting

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/native"
)

const (
	// defaultFontSize is used when no font size is specified.
	defaultFontSize = 14
	// faceSize is the pixel size of the bundled measurement face.
	faceSize = 13
)

// TextInstance renders a paragraph of text.
type TextInstance struct {
	*baseInstance

	lines    []string
	measured native.Size
	dirty    bool
}

func newText(ctx instanceContext) ComponentInstance {
	node := native.NewNode(native.KindText, strconv.FormatInt(ctx.tag, 10))
	return &TextInstance{baseInstance: newBaseInstance(ctx, node), dirty: true}
}

// OnPropsChanged re-applies changed attributes and schedules a re-measure
// when the content or font changed.
func (t *TextInstance) OnPropsChanged(prev, next *Props) {
	t.applyChangedProps(prev, next)
	for _, key := range next.Changed(prev) {
		switch key {
		case "text", "fontSize", "numberOfLines":
			t.dirty = true
		}
	}
}

func (t *TextInstance) SetLayout(metrics LayoutMetrics) {
	if metrics.Width != t.layout.Width {
		t.dirty = true
	}
	t.baseInstance.SetLayout(metrics)
}

func (t *TextInstance) FinalizeUpdates() {
	if t.dirty {
		t.dirty = false
		t.measured, t.lines = t.layoutLines(t.layout.Width)
		list := make([]dynamic.Value, len(t.lines))
		for i, l := range t.lines {
			list[i] = l
		}
		t.node.SetAttribute("lines", list)
	}
	t.baseInstance.FinalizeUpdates()
}

// Lines returns the wrapped lines from the last measurement.
func (t *TextInstance) Lines() []string {
	return append([]string(nil), t.lines...)
}

// MeasuredSize returns the size from the last measurement.
func (t *TextInstance) MeasuredSize() native.Size { return t.measured }

// Measure lays out the text within maxWidth (0 means unconstrained) and
// returns the size it needs.
func (t *TextInstance) Measure(maxWidth float64) native.Size {
	size, _ := t.layoutLines(maxWidth)
	return size
}

func (t *TextInstance) layoutLines(maxWidth float64) (native.Size, []string) {
	text := t.props.String("text", "")
	fontSize := t.props.Float("fontSize", defaultFontSize)
	maxLines := t.props.Int("numberOfLines", 0)
	return MeasureText(text, fontSize, maxWidth, maxLines)
}

// MeasureText wraps text greedily on word boundaries within maxWidth and
// returns the resulting size and lines. Explicit newlines always break.
// maxWidth of 0 disables wrapping; maxLines of 0 keeps every line.
func MeasureText(text string, fontSize, maxWidth float64, maxLines int) (native.Size, []string) {
	if fontSize <= 0 {
		fontSize = defaultFontSize
	}
	scale := fontSize / faceSize
	face := basicfont.Face7x13
	lineHeight := float64(face.Metrics().Height.Ceil()) * scale
	width := func(s string) float64 {
		return float64(font.MeasureString(face, s).Ceil()) * scale
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			candidate := line + " " + w
			if maxWidth > 0 && width(candidate) > maxWidth {
				lines = append(lines, line)
				line = w
				continue
			}
			line = candidate
		}
		lines = append(lines, line)
	}
	if text == "" {
		lines = nil
	}
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
	}

	var w float64
	for _, l := range lines {
		w = math.Max(w, width(l))
	}
	if maxWidth > 0 {
		w = math.Min(w, maxWidth)
	}
	return native.Size{Width: w, Height: lineHeight * float64(len(lines))}, lines
}
