package runtime

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

var (
	// ErrInstanceExists is returned when an id is already registered.
	ErrInstanceExists = stderrors.New("runtime: instance already exists")

	// ErrUnknownInstance is returned for an id that is not registered.
	ErrUnknownInstance = stderrors.New("runtime: unknown instance")
)

// InstanceRegistry owns the live runtime instances of a process.
type InstanceRegistry struct {
	prefix string
	next   atomic.Int64

	mu        sync.RWMutex
	instances map[string]*Instance
}

// NewInstanceRegistry creates a registry generating ids as prefix-N.
func NewInstanceRegistry(prefix string) *InstanceRegistry {
	if prefix == "" {
		prefix = "instance"
	}
	return &InstanceRegistry{prefix: prefix, instances: make(map[string]*Instance)}
}

// NextID returns a fresh instance id.
func (r *InstanceRegistry) NextID() string {
	return fmt.Sprintf("%s-%d", r.prefix, r.next.Add(1))
}

// CreateInstance creates and registers an instance under id. An empty id
// gets a generated one.
func (r *InstanceRegistry) CreateInstance(id string, opts Options) (*Instance, error) {
	if id == "" {
		id = r.NextID()
	}
	r.mu.Lock()
	if _, ok := r.instances[id]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrInstanceExists, id)
	}
	// Reserve the id while the instance starts.
	r.instances[id] = nil
	r.mu.Unlock()

	inst, err := NewInstance(id, opts)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		delete(r.instances, id)
		return nil, err
	}
	r.instances[id] = inst
	return inst, nil
}

// GetInstance returns the instance registered under id.
func (r *InstanceRegistry) GetInstance(id string) (*Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst := r.instances[id]
	return inst, inst != nil
}

// DeleteInstance unregisters and destroys the instance under id.
func (r *InstanceRegistry) DeleteInstance(ctx context.Context, id string) error {
	r.mu.Lock()
	inst := r.instances[id]
	if inst == nil {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownInstance, id)
	}
	delete(r.instances, id)
	r.mu.Unlock()
	return inst.Destroy(ctx)
}

// ForEach calls fn for every instance in id order until fn returns false.
func (r *InstanceRegistry) ForEach(fn func(inst *Instance) bool) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.instances))
	for id, inst := range r.instances {
		if inst != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	list := make([]*Instance, len(ids))
	for n, id := range ids {
		list[n] = r.instances[id]
	}
	r.mu.RUnlock()

	for _, inst := range list {
		if !fn(inst) {
			return
		}
	}
}

// Len returns the number of live instances.
func (r *InstanceRegistry) Len() int {
	n := 0
	r.ForEach(func(*Instance) bool { n++; return true })
	return n
}

// DestroyAll destroys every instance.
func (r *InstanceRegistry) DestroyAll(ctx context.Context) error {
	var errs []error
	var ids []string
	r.ForEach(func(inst *Instance) bool {
		ids = append(ids, inst.ID())
		return true
	})
	for _, id := range ids {
		if err := r.DeleteInstance(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
