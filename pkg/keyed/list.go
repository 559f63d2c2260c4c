package keyed

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/pulse/pkg/bitset"
	"github.com/vango-dev/pulse/pkg/render"
	"github.com/vango-dev/pulse/pkg/transition"
)

// List keeps the blocks of one keyed sequence between reconciles.
type List[K comparable, T any] struct {
	key     func(T) K
	create  func(K, T) Block[K]
	context func(T, int) any

	blocks []Block[K]
	lookup map[K]Block[K]

	transitions *transition.Manager
	checkKeys   bool
	observer    Observer
	tracer      trace.Tracer
	last        Stats
}

// ListOption configures a List.
type ListOption[K comparable, T any] func(*List[K, T])

// WithTransitions makes the list run intros and outros through m.
func WithTransitions[K comparable, T any](m *transition.Manager) ListOption[K, T] {
	return func(l *List[K, T]) {
		l.transitions = m
	}
}

// WithKeyCheck enables duplicate key detection.
func WithKeyCheck[K comparable, T any](check bool) ListOption[K, T] {
	return func(l *List[K, T]) {
		l.checkKeys = check
	}
}

// WithObserver installs a reconcile observer.
func WithObserver[K comparable, T any](o Observer) ListOption[K, T] {
	return func(l *List[K, T]) {
		l.observer = o
	}
}

// WithTracer sets the tracer used for reconcile spans.
func WithTracer[K comparable, T any](tracer trace.Tracer) ListOption[K, T] {
	return func(l *List[K, T]) {
		l.tracer = tracer
	}
}

// WithContext sets how patch contexts are built from items.
func WithContext[K comparable, T any](fn func(item T, i int) any) ListOption[K, T] {
	return func(l *List[K, T]) {
		l.context = fn
	}
}

// NewList creates an empty list.
func NewList[K comparable, T any](key func(T) K, create func(K, T) Block[K], opts ...ListOption[K, T]) *List[K, T] {
	l := &List[K, T]{
		key:    key,
		create: create,
		lookup: make(map[K]Block[K]),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Update reconciles the list against items, mounting into target before
// next. Reused blocks are patched with dirty.
func (l *List[K, T]) Update(target render.Target, next render.Anchor, items []T, dirty bitset.Set) Stats {
	p := Params[K, T]{
		Old:         l.blocks,
		Items:       items,
		Key:         l.key,
		Lookup:      l.lookup,
		Target:      target,
		Next:        next,
		Dirty:       dirty,
		Dynamic:     true,
		Create:      l.create,
		Context:     l.context,
		Transitions: l.transitions,
		CheckKeys:   l.checkKeys,
		Observer:    l.observer,
		Tracer:      l.tracer,
	}
	if l.transitions != nil {
		p.Destroy = OutroAndDestroy[K](l.transitions)
	}
	res := Reconcile(p)
	l.blocks = res.Blocks
	l.last = res.Stats
	return res.Stats
}

// Blocks returns the current blocks in render order.
func (l *List[K, T]) Blocks() []Block[K] {
	return append([]Block[K](nil), l.blocks...)
}

// Keys returns the current keys in render order.
func (l *List[K, T]) Keys() []K {
	keys := make([]K, len(l.blocks))
	for i, b := range l.blocks {
		keys[i] = b.Key()
	}
	return keys
}

// Get returns the block for key, including blocks still running an outro.
func (l *List[K, T]) Get(key K) (Block[K], bool) {
	b, ok := l.lookup[key]
	return b, ok
}

// Len returns the number of blocks in the list.
func (l *List[K, T]) Len() int {
	return len(l.blocks)
}

// LastStats returns the stats of the most recent Update.
func (l *List[K, T]) LastStats() Stats {
	return l.last
}

// Destroy destroys every block, including ones still leaving.
func (l *List[K, T]) Destroy(detach bool) {
	for key, b := range l.lookup {
		b.Destroy(detach)
		delete(l.lookup, key)
	}
	l.blocks = nil
}
