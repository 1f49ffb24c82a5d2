package mounting

import (
	"math"
	"strconv"
	"time"

	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/native"
	"github.com/go-drift/nativehost/pkg/ticker"
)

// ScrollViewInstance is a scrollable container.
//
// Its native structure is container -> scroll node -> content container.
// Logical children are mounted into the content container, so the node a
// parent attaches (the container) never changes while children come and go.
type ScrollViewInstance struct {
	*baseInstance

	scrollNode *native.Node
	content    *native.Node

	offset      native.Offset
	contentSize native.Size

	dragging      bool
	lastScrollAt  time.Time
	offsetApplied bool
}

func newScrollView(ctx instanceContext) ComponentInstance {
	id := strconv.FormatInt(ctx.tag, 10)
	container := native.NewNode(native.KindStack, id)
	scrollNode := native.NewNode(native.KindScroll, id+"/scroll")
	content := native.NewNode(native.KindColumn, id+"/content")
	_ = container.AddChild(scrollNode)
	_ = scrollNode.AddChild(content)

	b := newBaseInstance(ctx, container)
	b.childHolder = content
	return &ScrollViewInstance{
		baseInstance: b,
		scrollNode:   scrollNode,
		content:      content,
	}
}

// ScrollNode returns the native scroll node.
func (s *ScrollViewInstance) ScrollNode() *native.Node { return s.scrollNode }

// ContentContainer returns the native node holding the children.
func (s *ScrollViewInstance) ContentContainer() *native.Node { return s.content }

// Offset returns the current scroll offset.
func (s *ScrollViewInstance) Offset() native.Offset { return s.offset }

// ContentSize returns the size of the scrollable content.
func (s *ScrollViewInstance) ContentSize() native.Size { return s.contentSize }

var scrollNodeProps = map[string]bool{
	"horizontal":                     true,
	"scrollEnabled":                  true,
	"bounces":                        true,
	"pagingEnabled":                  true,
	"showsVerticalScrollIndicator":   true,
	"showsHorizontalScrollIndicator": true,
}

func (s *ScrollViewInstance) OnPropsChanged(prev, next *Props) {
	for _, key := range next.Changed(prev) {
		v, _ := next.Get(key)
		if scrollNodeProps[key] {
			s.scrollNode.SetAttribute(key, v)
			continue
		}
		if key == "contentOffset" {
			s.offsetApplied = false
			continue
		}
		s.node.SetAttribute(key, v)
	}
}

func (s *ScrollViewInstance) SetLayout(metrics LayoutMetrics) {
	s.baseInstance.SetLayout(metrics)
	s.scrollNode.SetFrame(native.Frame{Size: native.Size{Width: metrics.Width, Height: metrics.Height}})
}

// FinalizeUpdates recomputes the content size from the children's frames.
// The applier finalizes a parent whenever a child's layout changes.
func (s *ScrollViewInstance) FinalizeUpdates() {
	s.updateContentSize()
	if !s.offsetApplied {
		s.offsetApplied = true
		if obj := dynamic.AsObject(propValue(s.props, "contentOffset")); obj != nil {
			x, _ := obj.Get("x")
			y, _ := obj.Get("y")
			fx, _ := dynamic.ToFloat64(x)
			fy, _ := dynamic.ToFloat64(y)
			s.setOffset(fx, fy)
		}
	}
	s.baseInstance.FinalizeUpdates()
}

func (s *ScrollViewInstance) HandleCommand(name string, args []dynamic.Value) error {
	switch name {
	case "scrollTo":
		var x, y float64
		animated := false
		if len(args) > 0 {
			x, _ = dynamic.ToFloat64(args[0])
		}
		if len(args) > 1 {
			y, _ = dynamic.ToFloat64(args[1])
		}
		if len(args) > 2 {
			animated, _ = args[2].(bool)
		}
		s.ScrollTo(x, y, animated)
		return nil
	case "scrollToEnd":
		animated := false
		if len(args) > 0 {
			animated, _ = args[0].(bool)
		}
		maxX, maxY := s.maxOffset()
		if s.horizontal() {
			s.ScrollTo(maxX, s.offset.Y, animated)
		} else {
			s.ScrollTo(s.offset.X, maxY, animated)
		}
		return nil
	case "flashScrollIndicators":
		return nil
	}
	return s.baseInstance.HandleCommand(name, args)
}

// ScrollTo moves the content programmatically. Animated scrolls report a
// momentum phase around the final scroll event.
func (s *ScrollViewInstance) ScrollTo(x, y float64, animated bool) {
	if animated {
		s.emit("onMomentumScrollBegin", s.scrollPayload())
	}
	s.setOffset(x, y)
	s.emitScroll(true)
	if animated {
		s.emit("onMomentumScrollEnd", s.scrollPayload())
	}
}

// BeginDrag reports the start of a user drag.
func (s *ScrollViewInstance) BeginDrag() {
	if !s.props.Bool("scrollEnabled", true) || s.dragging {
		return
	}
	s.dragging = true
	s.emit("onScrollBeginDrag", s.scrollPayload())
}

// DragTo moves the content during a drag. Scroll events are throttled by
// the scrollEventThrottle prop.
func (s *ScrollViewInstance) DragTo(x, y float64) {
	if !s.dragging {
		return
	}
	s.setOffset(x, y)
	s.emitScroll(false)
}

// EndDrag finishes a drag. When settle differs from the current offset the
// content glides there in a momentum phase.
func (s *ScrollViewInstance) EndDrag(settleX, settleY float64) {
	if !s.dragging {
		return
	}
	s.dragging = false
	s.emit("onScrollEndDrag", s.scrollPayload())
	if settleX == s.offset.X && settleY == s.offset.Y {
		return
	}
	s.emit("onMomentumScrollBegin", s.scrollPayload())
	s.setOffset(settleX, settleY)
	s.emitScroll(true)
	s.emit("onMomentumScrollEnd", s.scrollPayload())
}

func (s *ScrollViewInstance) horizontal() bool {
	return s.props.Bool("horizontal", false)
}

func (s *ScrollViewInstance) maxOffset() (float64, float64) {
	maxX := math.Max(0, s.contentSize.Width-s.layout.Width)
	maxY := math.Max(0, s.contentSize.Height-s.layout.Height)
	return maxX, maxY
}

func (s *ScrollViewInstance) setOffset(x, y float64) {
	maxX, maxY := s.maxOffset()
	s.offset = native.Offset{
		X: math.Min(math.Max(0, x), maxX),
		Y: math.Min(math.Max(0, y), maxY),
	}
	s.content.SetFrame(native.Frame{
		Offset: native.Offset{X: -s.offset.X, Y: -s.offset.Y},
		Size:   s.contentSize,
	})
	s.scrollNode.SetAttribute("contentOffset", dynamic.NewObject().
		Set("x", s.offset.X).
		Set("y", s.offset.Y))
}

func (s *ScrollViewInstance) updateContentSize() {
	var size native.Size
	for _, c := range s.children {
		m := c.LayoutMetrics()
		size.Width = math.Max(size.Width, m.X+m.Width)
		size.Height = math.Max(size.Height, m.Y+m.Height)
	}
	s.contentSize = size
	// Re-clamp the offset against the new bounds.
	s.setOffset(s.offset.X, s.offset.Y)
}

func (s *ScrollViewInstance) emitScroll(force bool) {
	throttle := time.Duration(s.props.Float("scrollEventThrottle", 0)) * time.Millisecond
	now := ticker.Now()
	if !force && throttle > 0 && !s.lastScrollAt.IsZero() && now.Sub(s.lastScrollAt) < throttle {
		return
	}
	s.lastScrollAt = now
	s.emit("onScroll", s.scrollPayload())
}

func (s *ScrollViewInstance) scrollPayload() *dynamic.Object {
	return dynamic.NewObject().
		Set("contentOffset", dynamic.NewObject().Set("x", s.offset.X).Set("y", s.offset.Y)).
		Set("contentSize", dynamic.NewObject().Set("width", s.contentSize.Width).Set("height", s.contentSize.Height)).
		Set("layoutMeasurement", dynamic.NewObject().Set("width", s.layout.Width).Set("height", s.layout.Height)).
		Set("contentInset", dynamic.NewObject().Set("top", 0.0).Set("left", 0.0).Set("bottom", 0.0).Set("right", 0.0)).
		Set("zoomScale", 1.0).
		Set("target", s.tag)
}

func propValue(p *Props, key string) dynamic.Value {
	v, _ := p.Get(key)
	return v
}
