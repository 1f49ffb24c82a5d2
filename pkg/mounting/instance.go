package mounting

import (
	stderrors "errors"
	"fmt"

	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/events"
	"github.com/go-drift/nativehost/pkg/native"
)

var (
	// ErrUnknownCommand is returned by HandleCommand for unsupported commands.
	ErrUnknownCommand = stderrors.New("mounting: unknown command")

	// ErrNotAChild is returned when removing a node from a parent that does not own it.
	ErrNotAChild = stderrors.New("mounting: node is not a child of parent")

	// ErrCycle is returned when inserting a node under itself or under one
	// of its own descendants.
	ErrCycle = stderrors.New("mounting: insert would create a cycle")
)

// ComponentInstance is a mounted node of the component tree. It owns its
// native node and its children; its parent is known only by tag and is
// resolved through the registry.
//
// The set of implementations is closed: every instance embeds *baseInstance
// and is created by ComponentInstanceFactory from its component name.
type ComponentInstance interface {
	Tag() int64
	ComponentName() string

	// LocalRootNode is the native node a parent attaches.
	LocalRootNode() *native.Node

	Props() *Props
	State() *State
	LayoutMetrics() LayoutMetrics
	EventEmitter() *events.EventEmitter

	// ParentTag returns the parent's tag, or 0 when detached.
	ParentTag() int64
	// Parent resolves the parent through the registry.
	Parent() (ComponentInstance, bool)
	Children() []ComponentInstance

	InsertChild(child ComponentInstance, index int) error
	RemoveChild(child ComponentInstance) error

	OnPropsChanged(prev, next *Props)
	OnStateChanged(prev, next *State)
	SetLayout(metrics LayoutMetrics)
	OnDetached()
	FinalizeUpdates()
	HandleCommand(name string, args []dynamic.Value) error
	OnDestroy()

	base() *baseInstance
}

// instanceContext carries what every instance needs at construction.
type instanceContext struct {
	tag           int64
	componentName string
	emitter       *events.EventEmitter
	registry      *ComponentInstanceRegistry
}

type baseInstance struct {
	tag           int64
	componentName string
	node          *native.Node
	// childHolder receives child nodes. It is node itself unless the
	// component keeps its children in a separate container.
	childHolder *native.Node

	props     *Props
	state     *State
	layout    LayoutMetrics
	parentTag int64
	children  []ComponentInstance
	emitter   *events.EventEmitter
	registry  *ComponentInstanceRegistry

	layoutDirty bool
}

func newBaseInstance(ctx instanceContext, node *native.Node) *baseInstance {
	return &baseInstance{
		tag:           ctx.tag,
		componentName: ctx.componentName,
		node:          node,
		childHolder:   node,
		props:         NewProps(nil),
		emitter:       ctx.emitter,
		registry:      ctx.registry,
	}
}

func (b *baseInstance) base() *baseInstance { return b }

func (b *baseInstance) Tag() int64 { return b.tag }

func (b *baseInstance) ComponentName() string { return b.componentName }

func (b *baseInstance) LocalRootNode() *native.Node { return b.node }

func (b *baseInstance) Props() *Props { return b.props }

func (b *baseInstance) State() *State { return b.state }

func (b *baseInstance) LayoutMetrics() LayoutMetrics { return b.layout }

func (b *baseInstance) EventEmitter() *events.EventEmitter { return b.emitter }

func (b *baseInstance) ParentTag() int64 { return b.parentTag }

func (b *baseInstance) Parent() (ComponentInstance, bool) {
	if b.parentTag == 0 || b.registry == nil {
		return nil, false
	}
	return b.registry.Get(b.parentTag)
}

func (b *baseInstance) Children() []ComponentInstance {
	return append([]ComponentInstance(nil), b.children...)
}

// InsertChild records child at index and attaches its native node to the
// child holder at the same position.
func (b *baseInstance) InsertChild(child ComponentInstance, index int) error {
	if index < 0 || index > len(b.children) {
		return fmt.Errorf("index %d out of range (have %d children)", index, len(b.children))
	}
	cb := child.base()
	if cb.parentTag != 0 {
		return fmt.Errorf("tag %d already has parent %d", cb.tag, cb.parentTag)
	}
	if err := b.checkAncestry(cb.tag); err != nil {
		return err
	}
	if err := b.childHolder.InsertChild(child.LocalRootNode(), index); err != nil {
		return err
	}
	b.children = append(b.children, nil)
	copy(b.children[index+1:], b.children[index:])
	b.children[index] = child
	cb.parentTag = b.tag
	return nil
}

// checkAncestry fails when tag is b or one of b's ancestors.
func (b *baseInstance) checkAncestry(tag int64) error {
	if b.tag == tag {
		return fmt.Errorf("%w: %d under itself", ErrCycle, tag)
	}
	cur := b
	// A well-formed tree never has more ancestors than live instances.
	for hops := 0; cur.parentTag != 0 && b.registry != nil; hops++ {
		if cur.parentTag == tag {
			return fmt.Errorf("%w: %d is an ancestor of %d", ErrCycle, tag, b.tag)
		}
		if hops > b.registry.Len() {
			return fmt.Errorf("%w: ancestry of %d does not terminate", ErrCycle, b.tag)
		}
		parent, ok := b.registry.Get(cur.parentTag)
		if !ok {
			return nil
		}
		cur = parent.base()
	}
	return nil
}

// RemoveChild detaches child from both the logical and native child lists.
func (b *baseInstance) RemoveChild(child ComponentInstance) error {
	idx := -1
	for i, c := range b.children {
		if c == child {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotAChild
	}
	if err := b.childHolder.RemoveChild(child.LocalRootNode()); err != nil {
		return err
	}
	b.children = append(b.children[:idx], b.children[idx+1:]...)
	child.base().parentTag = 0
	return nil
}

// OnPropsChanged re-applies only the props whose values changed.
func (b *baseInstance) OnPropsChanged(prev, next *Props) {
	b.applyChangedProps(prev, next)
}

func (b *baseInstance) applyChangedProps(prev, next *Props) {
	for _, key := range next.Changed(prev) {
		v, _ := next.Get(key)
		b.node.SetAttribute(key, v)
	}
}

func (b *baseInstance) OnStateChanged(prev, next *State) {}

func (b *baseInstance) SetLayout(metrics LayoutMetrics) {
	if metrics == b.layout {
		return
	}
	b.layout = metrics
	b.layoutDirty = true
	b.node.SetFrame(metrics.Frame())
}

func (b *baseInstance) OnDetached() {}

// FinalizeUpdates emits onLayout when the frame changed and the component
// asked for layout events.
func (b *baseInstance) FinalizeUpdates() {
	if !b.layoutDirty {
		return
	}
	b.layoutDirty = false
	if b.props.Bool("onLayout", false) {
		b.emit("onLayout", dynamic.NewObject().Set("layout", b.layout.Object()))
	}
}

func (b *baseInstance) HandleCommand(name string, args []dynamic.Value) error {
	return fmt.Errorf("%w: %s on %s", ErrUnknownCommand, name, b.componentName)
}

func (b *baseInstance) OnDestroy() {
	b.node.Dispose()
}

func (b *baseInstance) emit(name string, payload dynamic.Value) {
	if b.emitter != nil {
		b.emitter.Emit(name, payload)
	}
}

// detachAll releases every child without notifying them. Used when the
// instance itself is being deleted.
func (b *baseInstance) detachAll() []ComponentInstance {
	released := b.children
	for _, c := range released {
		_ = b.childHolder.RemoveChild(c.LocalRootNode())
		c.base().parentTag = 0
	}
	b.children = nil
	return released
}
