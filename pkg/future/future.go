// Package future provides the completion handle returned by engine
// operations that finish later: Scheduler.Tick, Spring.Set and frame tasks.
//
// A Future is resolved at most once, always on the host loop goroutine.
// Callbacks registered with Then run synchronously at resolution, in
// registration order, on that goroutine. Other goroutines may wait on Done.
package future

import "sync"

// Future is a one-shot completion signal.
type Future struct {
	mu        sync.Mutex
	done      chan struct{}
	resolved  bool
	callbacks []func()
}

// New returns an unresolved future.
func New() *Future {
	return &Future{done: make(chan struct{})}
}

// Resolved returns a future that is already resolved.
func Resolved() *Future {
	f := New()
	f.Resolve()
	return f
}

// Resolve marks the future complete and runs pending callbacks.
// Subsequent calls are no-ops.
func (f *Future) Resolve() {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		return
	}
	f.resolved = true
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// Then registers fn to run when the future resolves. If it has already
// resolved, fn runs immediately.
func (f *Future) Then(fn func()) {
	f.mu.Lock()
	if f.resolved {
		f.mu.Unlock()
		fn()
		return
	}
	f.callbacks = append(f.callbacks, fn)
	f.mu.Unlock()
}

// Done returns a channel closed on resolution. A future superseded by a
// later operation may never resolve; waiters should also select on their
// own cancellation.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// IsResolved reports whether Resolve has been called.
func (f *Future) IsResolved() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolved
}
