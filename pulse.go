// Package pulse provides the public API of the pulse update engine.
//
// A Runtime wires one host loop, frame registry, scheduler, transition
// manager and store queue together, with metrics and an optional live
// inspector attached:
//
//	rt, err := pulse.New(config.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close()
//
//	count := pulse.NewWritable(rt, 0)
//	pos, _ := pulse.NewSpring(rt, 0.0)
//
//	rt.Dispatch(func() {
//	    count.Set(1)
//	    pos.Set(100)
//	})
//	rt.Run(ctx)
//
// All engine state belongs to the loop goroutine. Other goroutines reach
// it through Dispatch.
package pulse

import (
	"github.com/vango-dev/pulse/pkg/keyed"
	"github.com/vango-dev/pulse/pkg/spring"
	"github.com/vango-dev/pulse/pkg/store"
)

// Version is the engine version reported by the CLI.
const Version = "0.3.0"

// NewWritable creates a writable store delivering on rt's queue.
func NewWritable[T any](rt *Runtime, initial T, opts ...store.Option) *store.Writable[T] {
	return store.NewWritable(initial, append([]store.Option{store.WithQueue(rt.queue)}, opts...)...)
}

// NewSpring creates a spring animated by rt's frame registry, using the
// configured default spring parameters unless opts override them.
func NewSpring[T any](rt *Runtime, initial T, opts ...spring.Option) (*spring.Spring[T], error) {
	base := []spring.Option{
		spring.WithConfig(rt.cfg.Spring),
		spring.WithStoreOptions(store.WithQueue(rt.queue)),
	}
	return spring.New(rt.frames, initial, append(base, opts...)...)
}

// NewList creates a keyed list reporting to rt's observers. Its blocks
// run transitions through rt's manager, and duplicate keys panic when the
// runtime is in debug mode.
func NewList[K comparable, T any](rt *Runtime, key func(T) K, create func(K, T) keyed.Block[K], opts ...keyed.ListOption[K, T]) *keyed.List[K, T] {
	base := []keyed.ListOption[K, T]{
		keyed.WithTransitions[K, T](rt.transitions),
		keyed.WithKeyCheck[K, T](rt.cfg.Debug),
		keyed.WithObserver[K, T](rt.observers),
		keyed.WithTracer[K, T](rt.tracer),
	}
	return keyed.NewList(key, create, append(base, opts...)...)
}
