package mounting

import (
	"sort"
	"sync"
)

// ComponentInstanceRegistry indexes live component instances by tag.
// It owns nothing; instances are owned by their parents.
type ComponentInstanceRegistry struct {
	mu        sync.RWMutex
	instances map[int64]ComponentInstance
}

// NewComponentInstanceRegistry creates an empty registry.
func NewComponentInstanceRegistry() *ComponentInstanceRegistry {
	return &ComponentInstanceRegistry{instances: make(map[int64]ComponentInstance)}
}

func (r *ComponentInstanceRegistry) insert(inst ComponentInstance) {
	r.mu.Lock()
	r.instances[inst.Tag()] = inst
	r.mu.Unlock()
}

func (r *ComponentInstanceRegistry) remove(tag int64) {
	r.mu.Lock()
	delete(r.instances, tag)
	r.mu.Unlock()
}

// Get returns the instance registered under tag.
func (r *ComponentInstanceRegistry) Get(tag int64) (ComponentInstance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[tag]
	return inst, ok
}

// Len returns the number of live instances.
func (r *ComponentInstanceRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// Tags returns the registered tags in ascending order.
func (r *ComponentInstanceRegistry) Tags() []int64 {
	r.mu.RLock()
	tags := make([]int64, 0, len(r.instances))
	for tag := range r.instances {
		tags = append(tags, tag)
	}
	r.mu.RUnlock()
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// FindByNativeID returns the tag of the instance whose nativeID prop is id.
func (r *ComponentInstanceRegistry) FindByNativeID(id string) (int64, bool) {
	if id == "" {
		return 0, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for tag, inst := range r.instances {
		if inst.Props().String("nativeID", "") == id {
			return tag, true
		}
	}
	return 0, false
}
