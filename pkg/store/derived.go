package store

import "github.com/vango-dev/pulse/pkg/bitset"

// Source is a type-erased readable used as an input of DeriveAll.
type Source interface {
	subscribeAny(run func(any), invalidate func()) Unsubscriber
}

type source[T any] struct {
	r Readable[T]
}

func (s source[T]) subscribeAny(run func(any), invalidate func()) Unsubscriber {
	return s.r.SubscribeInvalidate(func(v T) { run(v) }, invalidate)
}

// AsSource adapts a typed readable for DeriveAll.
func AsSource[T any](r Readable[T]) Source {
	return source[T]{r: r}
}

// Derive creates a store whose value is fn applied to the value of src.
// fn runs synchronously whenever src changes and its result is set.
func Derive[S, T any](src Readable[S], fn func(S) T, opts ...Option) Readable[T] {
	var zero T
	return derive([]Source{AsSource(src)}, zero, func(values []any, set func(T)) func() {
		set(fn(valueAs[S](values[0])))
		return nil
	}, opts)
}

// DeriveAsync creates a store that fn sets explicitly through set. The
// cleanup fn returns, if any, runs before the next recomputation and when
// the derived store loses its last subscriber.
func DeriveAsync[S, T any](src Readable[S], fn func(value S, set func(T)) func(), initial T, opts ...Option) Readable[T] {
	return derive([]Source{AsSource(src)}, initial, func(values []any, set func(T)) func() {
		return fn(valueAs[S](values[0]), set)
	}, opts)
}

// DeriveAll creates a store computed from several sources. values holds the
// latest value of each source, in order. Recomputation waits until every
// invalidated source has delivered.
func DeriveAll[T any](srcs []Source, fn func(values []any, set func(T)) func(), initial T, opts ...Option) Readable[T] {
	return derive(srcs, initial, fn, opts)
}

func derive[T any](srcs []Source, initial T, fn func([]any, func(T)) func(), opts []Option) Readable[T] {
	return NewReadable(initial, func(set func(T)) func() {
		started := false
		values := make([]any, len(srcs))
		pending := bitset.New(len(srcs))
		var cleanup func()

		sync := func() {
			if pending.Any() {
				return
			}
			if cleanup != nil {
				cleanup()
				cleanup = nil
			}
			cleanup = fn(values, set)
		}

		unsubs := make([]Unsubscriber, len(srcs))
		for i, src := range srcs {
			i := i
			unsubs[i] = src.subscribeAny(func(v any) {
				values[i] = v
				pending.Unmark(i)
				if started {
					sync()
				}
			}, func() {
				pending.Mark(i)
			})
		}

		started = true
		sync()

		return func() {
			for _, unsub := range unsubs {
				unsub()
			}
			if cleanup != nil {
				cleanup()
				cleanup = nil
			}
			started = false
		}
	}, opts...)
}

// valueAs converts a delivered value back to S. A nil interface value maps
// to the zero S.
func valueAs[S any](v any) S {
	if v == nil {
		var zero S
		return zero
	}
	return v.(S)
}
