package bridge

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/errors"
)

type callbackSlot struct {
	fn   Function
	gen  uint64
	live bool
}

// CallbackArena holds script functions passed to native code. Handles refer
// to slots by index and generation, so a handle never keeps a function
// alive past Release or Invalidate.
type CallbackArena struct {
	invoker CallInvoker

	mu          sync.Mutex
	slots       []callbackSlot
	free        []int
	invalidated bool
}

// NewCallbackArena creates an arena whose handles call back through invoker.
func NewCallbackArena(invoker CallInvoker) *CallbackArena {
	return &CallbackArena{invoker: invoker}
}

// Wrap stores fn and returns a handle to it. After Invalidate the returned
// handle is already expired.
func (a *CallbackArena) Wrap(fn Function) *CallbackHandle {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.invalidated {
		return &CallbackHandle{arena: a, index: -1}
	}
	var idx int
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = len(a.slots)
		a.slots = append(a.slots, callbackSlot{})
	}
	slot := &a.slots[idx]
	slot.fn = fn
	slot.live = true
	return &CallbackHandle{arena: a, index: idx, gen: slot.gen}
}

// Invalidate expires every handle and refuses new ones.
func (a *CallbackArena) Invalidate() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.invalidated = true
	for i := range a.slots {
		a.slots[i].fn = nil
		a.slots[i].live = false
		a.slots[i].gen++
	}
	a.free = nil
}

// Len returns the number of live handles.
func (a *CallbackArena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, s := range a.slots {
		if s.live {
			n++
		}
	}
	return n
}

func (a *CallbackArena) resolve(index int, gen uint64) (Function, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if index < 0 || index >= len(a.slots) {
		return nil, false
	}
	s := a.slots[index]
	if !s.live || s.gen != gen {
		return nil, false
	}
	return s.fn, true
}

func (a *CallbackArena) release(index int, gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if index < 0 || index >= len(a.slots) {
		return
	}
	s := &a.slots[index]
	if !s.live || s.gen != gen {
		return
	}
	s.fn = nil
	s.live = false
	s.gen++
	if !a.invalidated {
		a.free = append(a.free, index)
	}
}

// CallbackHandle refers to a script function passed as a call argument.
// It may be invoked any number of times until released.
type CallbackHandle struct {
	arena *CallbackArena
	index int
	gen   uint64
}

// Alive reports whether the handle still refers to a function.
func (h *CallbackHandle) Alive() bool {
	if h == nil || h.arena == nil {
		return false
	}
	_, ok := h.arena.resolve(h.index, h.gen)
	return ok
}

// Invoke calls the function on the script thread with args and returns
// immediately. Invoking an expired handle does nothing.
func (h *CallbackHandle) Invoke(args ...dynamic.Value) {
	h.invoke(false, args)
}

// InvokeOnce is like Invoke but releases the handle afterwards.
func (h *CallbackHandle) InvokeOnce(args ...dynamic.Value) {
	h.invoke(true, args)
}

// Release drops the function. Further invocations are no-ops.
func (h *CallbackHandle) Release() {
	if h == nil || h.arena == nil {
		return
	}
	h.arena.release(h.index, h.gen)
}

func (h *CallbackHandle) invoke(once bool, args []dynamic.Value) {
	if !h.Alive() {
		h.dangling()
		return
	}
	h.arena.invoker.InvokeAsync(func(ctx context.Context) {
		// Re-check on the script thread: the runtime may have been torn
		// down while the task was queued.
		fn, ok := h.arena.resolve(h.index, h.gen)
		if !ok {
			h.dangling()
			return
		}
		if once {
			h.Release()
		}
		if _, err := fn.Call(ctx, args...); err != nil {
			errors.Report(&errors.BridgeError{
				Op:   "bridge.callback",
				Kind: errors.KindExecution,
				Err:  err,
			})
		}
	})
}

func (h *CallbackHandle) dangling() {
	errors.Logger().Debug("callback invoked after release", zap.Int("slot", h.index))
}
