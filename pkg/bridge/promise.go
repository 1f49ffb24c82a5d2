package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-drift/nativehost/pkg/dynamic"
	"github.com/go-drift/nativehost/pkg/errors"
)

// PromiseState is the settlement state of a Promise.
type PromiseState int

const (
	PromisePending PromiseState = iota
	PromiseFulfilled
	PromiseRejected
)

func (s PromiseState) String() string {
	switch s {
	case PromisePending:
		return "pending"
	case PromiseFulfilled:
		return "fulfilled"
	case PromiseRejected:
		return "rejected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Rejection is the error a rejected Promise settles with.
type Rejection struct {
	Message string
}

func (r *Rejection) Error() string {
	if r.Message == "" {
		return "promise rejected"
	}
	return "promise rejected: " + r.Message
}

type promiseReaction struct {
	onFulfilled func(ctx context.Context, v dynamic.Value)
	onRejected  func(ctx context.Context, reason string)
}

// Promise is the script-visible result of a promise convention call.
// It settles exactly once, always on the script thread.
type Promise struct {
	invoker CallInvoker

	mu        sync.Mutex
	state     PromiseState
	value     dynamic.Value
	reason    string
	reactions []promiseReaction
	done      chan struct{}
}

// NewPromise returns a pending promise whose reactions run through invoker.
func NewPromise(invoker CallInvoker) *Promise {
	return &Promise{invoker: invoker, done: make(chan struct{})}
}

// State returns the current settlement state.
func (p *Promise) State() PromiseState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Value returns the fulfillment value, if fulfilled.
func (p *Promise) Value() dynamic.Value {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// Reason returns the rejection message, if rejected.
func (p *Promise) Reason() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reason
}

// Done is closed once the promise settles.
func (p *Promise) Done() <-chan struct{} { return p.done }

// Await blocks until the promise settles or ctx is done. It must not be
// called from the script thread, which is the thread that settles it.
func (p *Promise) Await(ctx context.Context) (dynamic.Value, error) {
	select {
	case <-p.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == PromiseRejected {
		return nil, &Rejection{Message: p.reason}
	}
	return p.value, nil
}

// Then registers reactions. Either callback may be nil. Reactions run on the
// script thread; registering on a settled promise schedules them at once.
func (p *Promise) Then(onFulfilled func(ctx context.Context, v dynamic.Value), onRejected func(ctx context.Context, reason string)) {
	r := promiseReaction{onFulfilled: onFulfilled, onRejected: onRejected}
	p.mu.Lock()
	if p.state == PromisePending {
		p.reactions = append(p.reactions, r)
		p.mu.Unlock()
		return
	}
	state, value, reason := p.state, p.value, p.reason
	p.mu.Unlock()
	p.invoker.InvokeAsync(func(ctx context.Context) {
		runReaction(ctx, r, state, value, reason)
	})
}

// resolve and reject must run on the script thread.
func (p *Promise) resolve(ctx context.Context, v dynamic.Value) {
	p.settle(ctx, PromiseFulfilled, v, "")
}

func (p *Promise) reject(ctx context.Context, reason string) {
	p.settle(ctx, PromiseRejected, nil, reason)
}

func (p *Promise) settle(ctx context.Context, state PromiseState, v dynamic.Value, reason string) {
	p.mu.Lock()
	if p.state != PromisePending {
		p.mu.Unlock()
		return
	}
	p.state = state
	p.value = v
	p.reason = reason
	reactions := p.reactions
	p.reactions = nil
	close(p.done)
	p.mu.Unlock()

	for _, r := range reactions {
		runReaction(ctx, r, state, v, reason)
	}
}

func runReaction(ctx context.Context, r promiseReaction, state PromiseState, v dynamic.Value, reason string) {
	defer errors.Recover("bridge.promise")
	switch state {
	case PromiseFulfilled:
		if r.onFulfilled != nil {
			r.onFulfilled(ctx, v)
		}
	case PromiseRejected:
		if r.onRejected != nil {
			r.onRejected(ctx, reason)
		}
	}
}

// NativePromise is the promise a native method returns. Native code settles
// it on the main thread with any number of values; the bridge validates them
// when carrying the outcome back to script.
type NativePromise struct {
	mu       sync.Mutex
	settled  bool
	rejected bool
	values   []dynamic.Value
	thens    []nativeReaction
}

type nativeReaction struct {
	onResolve func(values []dynamic.Value)
	onReject  func(values []dynamic.Value)
}

// NewNativePromise returns an unsettled native promise.
func NewNativePromise() *NativePromise {
	return &NativePromise{}
}

// Resolved returns a native promise already resolved with values.
func Resolved(values ...dynamic.Value) *NativePromise {
	p := NewNativePromise()
	p.Resolve(values...)
	return p
}

// Rejected returns a native promise already rejected with values.
func Rejected(values ...dynamic.Value) *NativePromise {
	p := NewNativePromise()
	p.Reject(values...)
	return p
}

// RejectedWithError rejects with an error object carrying err's message.
func RejectedWithError(err error) *NativePromise {
	return Rejected(dynamic.ObjectOf("message", err.Error()))
}

// Resolve settles the promise successfully. Later settlements are ignored.
func (p *NativePromise) Resolve(values ...dynamic.Value) {
	p.settle(false, values)
}

// Reject settles the promise with a failure. Later settlements are ignored.
func (p *NativePromise) Reject(values ...dynamic.Value) {
	p.settle(true, values)
}

// Settled reports whether Resolve or Reject has been called.
func (p *NativePromise) Settled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settled
}

// Then registers continuations, called on the settling goroutine (or the
// caller's, if already settled).
func (p *NativePromise) Then(onResolve, onReject func(values []dynamic.Value)) {
	r := nativeReaction{onResolve: onResolve, onReject: onReject}
	p.mu.Lock()
	if !p.settled {
		p.thens = append(p.thens, r)
		p.mu.Unlock()
		return
	}
	rejected, values := p.rejected, p.values
	p.mu.Unlock()
	r.run(rejected, values)
}

func (p *NativePromise) settle(rejected bool, values []dynamic.Value) {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return
	}
	p.settled = true
	p.rejected = rejected
	p.values = values
	thens := p.thens
	p.thens = nil
	p.mu.Unlock()
	for _, r := range thens {
		r.run(rejected, values)
	}
}

func (r nativeReaction) run(rejected bool, values []dynamic.Value) {
	if rejected {
		if r.onReject != nil {
			r.onReject(values)
		}
		return
	}
	if r.onResolve != nil {
		r.onResolve(values)
	}
}

// resolutionValue maps native resolve arguments to the fulfillment value:
// none is undefined, one is passed through, more is an error.
func resolutionValue(values []dynamic.Value) (dynamic.Value, error) {
	switch len(values) {
	case 0:
		return dynamic.Undefined, nil
	case 1:
		v, err := dynamic.From(values[0])
		if err != nil {
			return nil, &errors.MarshalError{Context: "promise resolution", Detail: err.Error(), Got: values[0]}
		}
		return v, nil
	default:
		return nil, &errors.MarshalError{
			Context: "promise resolution",
			Detail:  "expected at most one value",
			Got:     values,
		}
	}
}

// rejectionMessage maps native reject arguments to a rejection message. An
// error object's "message" and a plain string are accepted.
func rejectionMessage(values []dynamic.Value) (string, error) {
	switch len(values) {
	case 0:
		return "", nil
	case 1:
	default:
		return "", &errors.MarshalError{
			Context: "promise rejection",
			Detail:  "expected at most one value",
			Got:     values,
		}
	}
	switch v := values[0].(type) {
	case string:
		return v, nil
	case *dynamic.Object:
		if msg, ok := v.Get("message"); ok {
			if s, ok := msg.(string); ok {
				return s, nil
			}
		}
		return "", &errors.MarshalError{
			Context: "promise rejection",
			Detail:  `error object without a string "message"`,
			Got:     v,
		}
	case map[string]any:
		if s, ok := v["message"].(string); ok {
			return s, nil
		}
		return "", &errors.MarshalError{
			Context: "promise rejection",
			Detail:  `error object without a string "message"`,
			Got:     v,
		}
	default:
		return "", &errors.MarshalError{
			Context: "promise rejection",
			Detail:  "expected an error object or string",
			Got:     v,
		}
	}
}
