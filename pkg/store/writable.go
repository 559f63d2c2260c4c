// Package store implements observable value holders.
//
// A Writable holds a value and synchronously notifies subscribers when it
// changes. Subscribe calls the subscriber immediately with the current
// value. Notifications of every store flow through one shared Queue (see
// DefaultQueue), which keeps delivery order FIFO across stores and prevents
// re-entrant notification when a subscriber sets another store.
//
// Derived stores recompute from one or more sources. A per-source pending
// bit suppresses recomputation while any source has been invalidated but
// has not delivered its new value yet, so a derived store fed by two stores
// that both depend on a third emits once per upstream change.
//
// Stores are not safe for concurrent use; they live on the host loop.
package store

// Unsubscriber removes a subscription. Calling it twice is a no-op.
type Unsubscriber func()

// StartStopNotifier runs when a store gets its first subscriber. It receives
// the store's setter and may return a stop function that runs when the last
// subscriber leaves.
type StartStopNotifier[T any] func(set func(T)) (stop func())

// Readable is the read side of a store.
type Readable[T any] interface {
	// Subscribe calls run now with the current value and on every change.
	Subscribe(run func(T)) Unsubscriber

	// SubscribeInvalidate is Subscribe with an invalidate callback that runs
	// before a new value is queued for delivery.
	SubscribeInvalidate(run func(T), invalidate func()) Unsubscriber
}

// Option configures a store.
type Option func(*options)

type options struct {
	queue *Queue
}

// WithQueue makes the store deliver notifications through q instead of the
// process-wide queue.
func WithQueue(q *Queue) Option {
	return func(o *options) {
		if q != nil {
			o.queue = q
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{queue: defaultQueue}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type subscription[T any] struct {
	run        func(T)
	invalidate func()
}

// Writable is a settable store.
type Writable[T any] struct {
	value   T
	subs    []*subscription[T]
	start   StartStopNotifier[T]
	stop    func()
	started bool
	queue   *Queue
	equal   func(a, b T) bool
}

// NewWritable creates a store holding initial.
func NewWritable[T any](initial T, opts ...Option) *Writable[T] {
	return NewWritableStart(initial, nil, opts...)
}

// NewWritableStart creates a store whose start notifier runs when the first
// subscriber arrives.
func NewWritableStart[T any](initial T, start StartStopNotifier[T], opts ...Option) *Writable[T] {
	o := buildOptions(opts)
	return &Writable[T]{
		value: initial,
		start: start,
		queue: o.queue,
	}
}

// WithEqual replaces the change predicate. Set notifies only when equal
// reports false.
func (w *Writable[T]) WithEqual(equal func(a, b T) bool) *Writable[T] {
	w.equal = equal
	return w
}

func (w *Writable[T]) changed(a, b T) bool {
	if w.equal != nil {
		return !w.equal(a, b)
	}
	return NotEqual(a, b)
}

// Set stores v and notifies subscribers if it changed.
func (w *Writable[T]) Set(v T) {
	if !w.changed(w.value, v) {
		return
	}
	w.value = v
	if !w.started {
		return
	}

	runQueue := !w.queue.Draining()
	subs := make([]*subscription[T], len(w.subs))
	copy(subs, w.subs)
	for _, s := range subs {
		s.invalidate()
		sub := s
		w.queue.push(func() { sub.run(v) })
	}
	if runQueue {
		w.queue.drain()
	}
}

// Update sets the result of fn applied to the current value.
func (w *Writable[T]) Update(fn func(T) T) {
	w.Set(fn(w.value))
}

// Get returns the current value. A store with a start notifier and no
// subscribers is started and stopped once so the value is fresh.
func (w *Writable[T]) Get() T {
	if !w.started && w.start != nil {
		return Get[T](w)
	}
	return w.value
}

// Subscribe implements Readable.
func (w *Writable[T]) Subscribe(run func(T)) Unsubscriber {
	return w.SubscribeInvalidate(run, nil)
}

// SubscribeInvalidate implements Readable.
func (w *Writable[T]) SubscribeInvalidate(run func(T), invalidate func()) Unsubscriber {
	if invalidate == nil {
		invalidate = func() {}
	}
	s := &subscription[T]{run: run, invalidate: invalidate}
	w.subs = append(w.subs, s)
	if len(w.subs) == 1 {
		// Values set from inside start are not delivered; run below picks
		// them up.
		var stop func()
		if w.start != nil {
			stop = w.start(w.Set)
		}
		w.stop = stop
		w.started = true
	}
	run(w.value)

	removed := false
	return func() {
		if removed {
			return
		}
		removed = true
		w.remove(s)
	}
}

func (w *Writable[T]) remove(s *subscription[T]) {
	for i, existing := range w.subs {
		if existing == s {
			w.subs = append(w.subs[:i], w.subs[i+1:]...)
			break
		}
	}
	if len(w.subs) == 0 && w.started {
		w.started = false
		if w.stop != nil {
			stop := w.stop
			w.stop = nil
			stop()
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (w *Writable[T]) Subscribers() int {
	return len(w.subs)
}

// Readonly returns a read-only view of w.
func (w *Writable[T]) Readonly() Readable[T] {
	return readonly[T]{w: w}
}

type readonly[T any] struct {
	w *Writable[T]
}

func (r readonly[T]) Subscribe(run func(T)) Unsubscriber {
	return r.w.Subscribe(run)
}

func (r readonly[T]) SubscribeInvalidate(run func(T), invalidate func()) Unsubscriber {
	return r.w.SubscribeInvalidate(run, invalidate)
}

// NewReadable creates a store that can only be set from its start notifier.
func NewReadable[T any](initial T, start StartStopNotifier[T], opts ...Option) Readable[T] {
	return NewWritableStart(initial, start, opts...).Readonly()
}

// Get reads the current value of any readable by subscribing and
// immediately unsubscribing.
func Get[T any](r Readable[T]) T {
	var v T
	unsub := r.Subscribe(func(x T) { v = x })
	unsub()
	return v
}
