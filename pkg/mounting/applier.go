// Package mounting keeps a native component tree synchronized with the
// mutation batches produced by the script runtime.
package mounting

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/errors"
	"github.com/go-drift/nativehost/pkg/events"
	"github.com/go-drift/nativehost/pkg/executor"
)

var (
	// ErrUnknownTag is reported for mutations that reference a tag that was
	// never created or was already deleted.
	ErrUnknownTag = stderrors.New("mounting: unknown tag")

	// ErrDuplicateTag is reported when creating a tag that is still live.
	ErrDuplicateTag = stderrors.New("mounting: tag already exists")

	// ErrInvalidTag is reported for creates with a tag of zero or below.
	// Zero marks a detached node's parent.
	ErrInvalidTag = stderrors.New("mounting: tag must be positive")

	// ErrNotMainThread is returned when applying from a thread other than main.
	ErrNotMainThread = stderrors.New("mounting: must run on the main thread")
)

// ApplyReport summarizes one applied batch.
type ApplyReport struct {
	// Applied counts mutations that took effect.
	Applied int
	// Failures holds one diagnostic per mutation that was skipped.
	Failures []*errors.BridgeError
}

// OK reports whether every mutation took effect.
func (r *ApplyReport) OK() bool { return len(r.Failures) == 0 }

// MutationApplier applies mutation batches to the component tree.
// Batches are serialized; an individual mutation that cannot be applied
// is reported and skipped without aborting the batch.
type MutationApplier struct {
	mu       sync.Mutex
	registry *ComponentInstanceRegistry
	factory  *ComponentInstanceFactory
	events   *events.Registry
}

// NewMutationApplier creates an applier over the given registries.
func NewMutationApplier(registry *ComponentInstanceRegistry, factory *ComponentInstanceFactory, eventRegistry *events.Registry) *MutationApplier {
	return &MutationApplier{
		registry: registry,
		factory:  factory,
		events:   eventRegistry,
	}
}

// Registry returns the instance registry.
func (a *MutationApplier) Registry() *ComponentInstanceRegistry { return a.registry }

// batchState tracks per-batch bookkeeping.
type batchState struct {
	report   *ApplyReport
	touched  []ComponentInstance
	seen     map[int64]bool
	detached []ComponentInstance
}

func (s *batchState) touch(inst ComponentInstance) {
	if inst == nil || s.seen[inst.Tag()] {
		return
	}
	s.seen[inst.Tag()] = true
	s.touched = append(s.touched, inst)
}

// Apply runs batch in phases: creates, then inserts and removes in batch
// order, then updates, then deletes. It must run on the main thread when
// ctx records an executor thread.
func (a *MutationApplier) Apply(ctx context.Context, batch Batch) (*ApplyReport, error) {
	if th, ok := executor.CurrentThread(ctx); ok && th != executor.ThreadMain {
		return nil, ErrNotMainThread
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	st := &batchState{
		report: &ApplyReport{},
		seen:   make(map[int64]bool),
	}

	for _, m := range batch {
		if m.Kind == MutationCreate {
			a.applyCreate(st, m)
		}
	}
	for _, m := range batch {
		switch m.Kind {
		case MutationInsert:
			a.applyInsert(st, m)
		case MutationRemove:
			a.applyRemove(st, m)
		}
	}
	// Detach side effects run only now, so a node moved between parents
	// within the batch is never observed detached.
	for _, inst := range st.detached {
		if _, live := a.registry.Get(inst.Tag()); live && inst.ParentTag() == 0 {
			inst.OnDetached()
		}
	}
	for _, m := range batch {
		if m.Kind == MutationUpdate {
			a.applyUpdate(st, m)
		}
	}
	for _, m := range batch {
		if m.Kind == MutationDelete {
			a.applyDelete(st, m)
		}
	}
	for _, inst := range st.touched {
		if _, live := a.registry.Get(inst.Tag()); live {
			inst.FinalizeUpdates()
		}
	}

	if n := len(st.report.Failures); n > 0 {
		errors.Logger().Warn("mutation batch applied with failures",
			zap.Int("applied", st.report.Applied), zap.Int("failed", n))
	}
	return st.report, nil
}

func (a *MutationApplier) fail(st *batchState, m Mutation, tag int64, err error) {
	be := &errors.BridgeError{
		Op:   "mounting." + m.Kind.String(),
		Kind: errors.KindMutation,
		Tag:  tag,
		Err:  fmt.Errorf("%s: %w", m, err),
	}
	errors.Report(be)
	st.report.Failures = append(st.report.Failures, be)
}

func (a *MutationApplier) lookup(st *batchState, m Mutation, tag int64) (ComponentInstance, bool) {
	inst, ok := a.registry.Get(tag)
	if !ok {
		a.fail(st, m, tag, ErrUnknownTag)
	}
	return inst, ok
}

func (a *MutationApplier) applyCreate(st *batchState, m Mutation) {
	if m.Tag <= 0 {
		a.fail(st, m, m.Tag, ErrInvalidTag)
		return
	}
	if _, exists := a.registry.Get(m.Tag); exists {
		a.fail(st, m, m.Tag, ErrDuplicateTag)
		return
	}
	var emitter *events.EventEmitter
	if a.events != nil {
		emitter = a.events.Create(m.Tag)
	}
	inst := a.factory.Create(m.Tag, m.ComponentName, emitter, a.registry)
	b := inst.base()

	prev := b.props
	if m.Props != nil {
		b.props = m.Props
	}
	inst.OnPropsChanged(prev, b.props)
	if m.State != nil {
		b.state = m.State
		inst.OnStateChanged(nil, m.State)
	}
	if m.Layout != nil {
		inst.SetLayout(*m.Layout)
	}

	a.registry.insert(inst)
	st.touch(inst)
	st.report.Applied++
}

func (a *MutationApplier) applyInsert(st *batchState, m Mutation) {
	parent, ok := a.lookup(st, m, m.ParentTag)
	if !ok {
		return
	}
	child, ok := a.lookup(st, m, m.Tag)
	if !ok {
		return
	}
	if err := parent.InsertChild(child, m.Index); err != nil {
		a.fail(st, m, m.Tag, err)
		return
	}
	st.touch(parent)
	st.touch(child)
	st.report.Applied++
}

func (a *MutationApplier) applyRemove(st *batchState, m Mutation) {
	parent, ok := a.lookup(st, m, m.ParentTag)
	if !ok {
		return
	}
	child, ok := a.lookup(st, m, m.Tag)
	if !ok {
		return
	}
	if err := parent.RemoveChild(child); err != nil {
		a.fail(st, m, m.Tag, err)
		return
	}
	st.detached = append(st.detached, child)
	st.touch(parent)
	st.report.Applied++
}

func (a *MutationApplier) applyUpdate(st *batchState, m Mutation) {
	inst, ok := a.lookup(st, m, m.Tag)
	if !ok {
		return
	}
	b := inst.base()
	if m.Props != nil {
		prev := b.props
		b.props = m.Props
		inst.OnPropsChanged(prev, m.Props)
	}
	if m.State != nil {
		prev := b.state
		b.state = m.State
		inst.OnStateChanged(prev, m.State)
	}
	if m.Layout != nil {
		inst.SetLayout(*m.Layout)
		if parent, ok := inst.Parent(); ok {
			st.touch(parent)
		}
	}
	st.touch(inst)
	st.report.Applied++
}

func (a *MutationApplier) applyDelete(st *batchState, m Mutation) {
	inst, ok := a.lookup(st, m, m.Tag)
	if !ok {
		return
	}
	if parent, attached := inst.Parent(); attached {
		// The script side should have removed it first; keep the tree
		// consistent anyway.
		a.fail(st, m, m.Tag, fmt.Errorf("still attached to %d", parent.Tag()))
		_ = parent.RemoveChild(inst)
		st.touch(parent)
	}
	inst.base().detachAll()
	inst.OnDestroy()
	a.registry.remove(m.Tag)
	if a.events != nil {
		a.events.Remove(m.Tag)
	}
	st.report.Applied++
}

// SynchronouslyUpdateView merges rawProps into the props of tag and applies
// them immediately, outside of any batch.
func (a *MutationApplier) SynchronouslyUpdateView(ctx context.Context, tag int64, rawProps *dynamic.Object) error {
	if th, ok := executor.CurrentThread(ctx); ok && th != executor.ThreadMain {
		return ErrNotMainThread
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	inst, ok := a.registry.Get(tag)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTag, tag)
	}
	b := inst.base()
	prev := b.props
	next := prev.Merge(rawProps)
	b.props = next
	inst.OnPropsChanged(prev, next)
	inst.FinalizeUpdates()
	return nil
}

// DispatchCommand sends a view command such as scrollTo to tag.
func (a *MutationApplier) DispatchCommand(ctx context.Context, tag int64, name string, args []dynamic.Value) error {
	if th, ok := executor.CurrentThread(ctx); ok && th != executor.ThreadMain {
		return ErrNotMainThread
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	inst, ok := a.registry.Get(tag)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTag, tag)
	}
	return inst.HandleCommand(name, args)
}

// FindByNativeID returns the tag whose nativeID prop equals id.
func (a *MutationApplier) FindByNativeID(id string) (int64, bool) {
	return a.registry.FindByNativeID(id)
}

// WithInstance runs fn with the instance for tag while holding the tree
// lock, so fn never overlaps a batch. Native widget callbacks use it.
func (a *MutationApplier) WithInstance(tag int64, fn func(ComponentInstance)) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	inst, ok := a.registry.Get(tag)
	if ok {
		fn(inst)
	}
	return ok
}
