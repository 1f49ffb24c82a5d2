// Package native provides a headless native widget tree.
//
// Nodes stand in for the platform's UI elements: they hold attributes,
// a frame and an ordered list of children, and can be inspected by tests
// and tooling. A node is owned by exactly one parent at a time.
package native

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-drift/nativehost/pkg/dynamic"
)

// Node kinds created by the mounting package.
const (
	KindStack       = "Stack"
	KindScroll      = "Scroll"
	KindColumn      = "Column"
	KindText        = "Text"
	KindTextInput   = "TextInput"
	KindPlaceholder = "Placeholder"
)

var (
	// ErrIndexOutOfRange is returned when inserting past the end of the child list.
	ErrIndexOutOfRange = stderrors.New("native: child index out of range")

	// ErrAlreadyAttached is returned when inserting a node that already has a parent.
	ErrAlreadyAttached = stderrors.New("native: node already attached")

	// ErrNotChild is returned when removing a node that is not a child.
	ErrNotChild = stderrors.New("native: node is not a child")
)

// Offset is a position in logical pixels.
type Offset struct {
	X, Y float64
}

// Size is a width and height in logical pixels.
type Size struct {
	Width, Height float64
}

// Frame is a node's position relative to its parent plus its size.
type Frame struct {
	Offset Offset
	Size   Size
}

// Node is a headless native UI element.
type Node struct {
	kind     string
	id       string
	attrs    map[string]dynamic.Value
	children []*Node
	parent   *Node
	frame    Frame
	disposed bool
}

// NewNode creates a detached node of the given kind. The id is only used
// for diagnostics.
func NewNode(kind, id string) *Node {
	return &Node{
		kind:  kind,
		id:    id,
		attrs: make(map[string]dynamic.Value),
	}
}

// Kind returns the node kind.
func (n *Node) Kind() string { return n.kind }

// ID returns the diagnostic id.
func (n *Node) ID() string { return n.id }

// Parent returns the node's parent, or nil when detached.
func (n *Node) Parent() *Node { return n.parent }

// Children returns a copy of the ordered child list.
func (n *Node) Children() []*Node {
	return append([]*Node(nil), n.children...)
}

// ChildCount returns the number of children.
func (n *Node) ChildCount() int { return len(n.children) }

// InsertChild attaches child at index. Index must be within [0, ChildCount].
func (n *Node) InsertChild(child *Node, index int) error {
	if child == nil {
		return stderrors.New("native: nil child")
	}
	if child.parent != nil {
		return fmt.Errorf("%w: %s under %s", ErrAlreadyAttached, child.id, child.parent.id)
	}
	if index < 0 || index > len(n.children) {
		return fmt.Errorf("%w: %d (have %d)", ErrIndexOutOfRange, index, len(n.children))
	}
	n.children = append(n.children, nil)
	copy(n.children[index+1:], n.children[index:])
	n.children[index] = child
	child.parent = n
	return nil
}

// AddChild appends child.
func (n *Node) AddChild(child *Node) error {
	return n.InsertChild(child, len(n.children))
}

// RemoveChild detaches child.
func (n *Node) RemoveChild(child *Node) error {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return nil
		}
	}
	return ErrNotChild
}

// IndexOf returns the index of child or -1.
func (n *Node) IndexOf(child *Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// SetAttribute sets a native attribute. A nil value clears it.
func (n *Node) SetAttribute(name string, value dynamic.Value) {
	if value == nil {
		delete(n.attrs, name)
		return
	}
	n.attrs[name] = value
}

// Attribute returns a native attribute.
func (n *Node) Attribute(name string) (dynamic.Value, bool) {
	v, ok := n.attrs[name]
	return v, ok
}

// AttributeNames returns the names of all set attributes, sorted.
func (n *Node) AttributeNames() []string {
	names := make([]string, 0, len(n.attrs))
	for k := range n.attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SetFrame positions the node.
func (n *Node) SetFrame(f Frame) { n.frame = f }

// Frame returns the node's frame.
func (n *Node) Frame() Frame { return n.frame }

// Dispose releases the node. It must be detached first.
func (n *Node) Dispose() {
	n.disposed = true
	n.children = nil
}

// Disposed reports whether Dispose was called.
func (n *Node) Disposed() bool { return n.disposed }

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the node's children.
func (n *Node) Walk(fn func(node *Node, depth int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.children {
		c.walk(fn, depth+1)
	}
}

// String renders the subtree rooted at n, one node per line.
func (n *Node) String() string {
	var sb strings.Builder
	n.Walk(func(node *Node, depth int) bool {
		sb.WriteString(strings.Repeat("  ", depth))
		sb.WriteString(node.Describe())
		sb.WriteByte('\n')
		return true
	})
	return sb.String()
}

// Describe returns a one-line summary of the node without its children.
func (n *Node) Describe() string {
	var sb strings.Builder
	sb.WriteString(n.kind)
	if n.id != "" {
		sb.WriteString("#")
		sb.WriteString(n.id)
	}
	for _, name := range n.AttributeNames() {
		fmt.Fprintf(&sb, " %s=%v", name, n.attrs[name])
	}
	return sb.String()
}
