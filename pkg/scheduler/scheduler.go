// Package scheduler batches component updates into flushes.
//
// Marking a component dirty records the changed slot in the component's
// bitset, queues the component once and arms a single flush through the
// host microtask queue, so every mutation made in one synchronous turn is
// rendered by one flush. A flush runs in four phases:
//
//  1. Dirty components are updated in FIFO order. Components marked dirty
//     during this phase are appended and updated in the same pass.
//  2. Binding callbacks run last-in first-out.
//  3. Render callbacks run in insertion order, each *Callback at most once
//     per flush. If any phase marked components dirty, the flush loops back
//     to phase 1.
//  4. Flush callbacks run last-in first-out.
//
// A Scheduler belongs to one host loop and is not safe for concurrent use.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	perrors "github.com/vango-dev/pulse/internal/errors"
	"github.com/vango-dev/pulse/pkg/future"
)

// TracerName is the instrumentation name used for flush spans.
const TracerName = "github.com/vango-dev/pulse/pkg/scheduler"

// Microtasks is the host primitive used to defer a flush until the current
// synchronous turn completes.
type Microtasks interface {
	QueueMicrotask(fn func())
}

// FlushStats describes one completed flush.
type FlushStats struct {
	Passes           int
	Components       int
	BindingCallbacks int
	RenderCallbacks  int
	FlushCallbacks   int
	Duration         time.Duration
	Err              error
}

// Observer receives a summary of every flush.
type Observer interface {
	FlushDone(stats FlushStats)
}

// Scheduler owns the dirty-component queue and the callback queues of one
// runtime.
type Scheduler struct {
	micro     Microtasks
	logger    *slog.Logger
	tracer    trace.Tracer
	observers []Observer
	maxPasses int

	dirty    []*Component
	flushIdx int

	bindings []func()
	renders  []*Callback
	flushes  []func()
	seen     map[*Callback]struct{}
	ticks    []*future.Future

	scheduled bool
	flushing  bool
	current   *Component

	flushCount uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracer sets the tracer used for flush spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Scheduler) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithObserver adds a flush observer.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// WithMaxPasses bounds how many times a single component may be updated
// within one flush. Exceeding it aborts the flush with ErrUpdateLoop. Zero
// means unlimited.
func WithMaxPasses(n int) Option {
	return func(s *Scheduler) {
		if n >= 0 {
			s.maxPasses = n
		}
	}
}

// New creates a scheduler that arms flushes through micro.
func New(micro Microtasks, opts ...Option) *Scheduler {
	s := &Scheduler{
		micro:  micro,
		logger: slog.Default(),
		tracer: otel.Tracer(TracerName),
		seen:   make(map[*Callback]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "scheduler")
	return s
}

// Current returns the component being updated, or nil outside a flush.
func (s *Scheduler) Current() *Component {
	return s.current
}

// Flushing reports whether a flush is in progress.
func (s *Scheduler) Flushing() bool {
	return s.flushing
}

// Flushes returns how many flushes have completed.
func (s *Scheduler) Flushes() uint64 {
	return s.flushCount
}

// Pending returns the number of components waiting to be updated.
func (s *Scheduler) Pending() int {
	return len(s.dirty) - s.flushIdx
}

// MarkDirty marks slot of c as changed and arms a flush.
func (s *Scheduler) MarkDirty(c *Component, slot int) {
	if c.destroyed {
		return
	}
	if !c.queued {
		c.queued = true
		c.dirty.Reset()
		s.dirty = append(s.dirty, c)
		s.scheduleUpdate()
	}
	c.dirty.Mark(slot)
}

// QueueMicrotask defers fn through the scheduler's host microtask queue.
// Work deferred this way runs after the flush armed in the same turn.
func (s *Scheduler) QueueMicrotask(fn func()) {
	s.micro.QueueMicrotask(fn)
}

// Tick returns a future that resolves after the next flush completes.
func (s *Scheduler) Tick() *future.Future {
	f := future.New()
	s.ticks = append(s.ticks, f)
	s.scheduleUpdate()
	return f
}

// AddRenderCallback queues cb for phase 3 of the current or next flush.
func (s *Scheduler) AddRenderCallback(cb *Callback) {
	s.renders = append(s.renders, cb)
	if !s.flushing {
		s.scheduleUpdate()
	}
}

// AddRenderFunc queues fn as a render callback with a fresh identity.
func (s *Scheduler) AddRenderFunc(fn func()) {
	s.AddRenderCallback(NewCallback(fn))
}

// AddBindingCallback queues fn for phase 2.
func (s *Scheduler) AddBindingCallback(fn func()) {
	s.bindings = append(s.bindings, fn)
	if !s.flushing {
		s.scheduleUpdate()
	}
}

// AddFlushCallback queues fn for phase 4.
func (s *Scheduler) AddFlushCallback(fn func()) {
	s.flushes = append(s.flushes, fn)
	if !s.flushing {
		s.scheduleUpdate()
	}
}

func (s *Scheduler) scheduleUpdate() {
	if s.scheduled {
		return
	}
	s.scheduled = true
	s.micro.QueueMicrotask(func() {
		if s.scheduled {
			// ErrUpdateLoop is logged and reported to observers by Flush.
			_ = s.Flush()
		}
	})
}

// Flush runs all pending work. It is a no-op when called while a flush is
// already running. A panic raised by a component update or a callback
// empties the dirty, binding and render queues before propagating; flush
// callbacks and tick futures stay queued for the next flush.
func (s *Scheduler) Flush() error {
	if s.flushing {
		return nil
	}
	s.flushing = true
	saved := s.current
	start := time.Now()

	_, span := s.tracer.Start(context.Background(), "scheduler.flush")
	defer span.End()

	var stats FlushStats
	defer func() {
		if r := recover(); r != nil {
			if s.current != nil {
				s.current.queued = false
			}
			s.abandon()
			clear(s.bindings)
			s.bindings = s.bindings[:0]
			clear(s.renders)
			s.renders = s.renders[:0]
			clear(s.seen)
			s.current = saved
			s.flushing = false
			s.scheduled = false
			span.SetStatus(codes.Error, fmt.Sprint(r))
			panic(r)
		}
	}()

	var err error
passes:
	for {
		stats.Passes++

		for s.flushIdx < len(s.dirty) {
			c := s.dirty[s.flushIdx]
			if s.overBudget(c) {
				err = s.updateLoop(c)
				break passes
			}
			s.flushIdx++
			s.current = c
			c.update()
			stats.Components++
		}
		s.current = nil
		s.clearDirty()

		for len(s.bindings) > 0 {
			last := len(s.bindings) - 1
			fn := s.bindings[last]
			s.bindings = s.bindings[:last]
			fn()
			stats.BindingCallbacks++
		}

		for i := 0; i < len(s.renders); i++ {
			cb := s.renders[i]
			if _, ok := s.seen[cb]; ok {
				continue
			}
			s.seen[cb] = struct{}{}
			cb.Run()
			stats.RenderCallbacks++
		}
		s.renders = s.renders[:0]

		if len(s.dirty) == 0 {
			break
		}
	}

	for len(s.flushes) > 0 {
		last := len(s.flushes) - 1
		fn := s.flushes[last]
		s.flushes = s.flushes[:last]
		fn()
		stats.FlushCallbacks++
	}

	s.scheduled = false
	clear(s.seen)
	s.current = saved
	s.flushing = false
	s.flushCount++

	stats.Duration = time.Since(start)
	stats.Err = err
	span.SetAttributes(
		attribute.Int("pulse.flush.passes", stats.Passes),
		attribute.Int("pulse.flush.components", stats.Components),
		attribute.Int("pulse.flush.render_callbacks", stats.RenderCallbacks),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.logger.Debug("flush",
		"passes", stats.Passes,
		"components", stats.Components,
		"render_callbacks", stats.RenderCallbacks,
		"duration", stats.Duration)
	for _, o := range s.observers {
		o.FlushDone(stats)
	}

	ticks := s.ticks
	s.ticks = nil
	for _, f := range ticks {
		f.Resolve()
	}
	return err
}

// overBudget counts one more update of c in the current flush and reports
// whether that exceeds the pass budget.
func (s *Scheduler) overBudget(c *Component) bool {
	if s.maxPasses <= 0 {
		return false
	}
	seq := s.flushCount + 1
	if c.flushSeq != seq {
		c.flushSeq = seq
		c.flushUpdates = 0
	}
	c.flushUpdates++
	return c.flushUpdates > s.maxPasses
}

// updateLoop drops the remaining work of a runaway flush and returns the
// error describing it.
func (s *Scheduler) updateLoop(c *Component) error {
	dropped := s.Pending()
	s.abandon()
	s.current = nil
	s.renders = s.renders[:0]
	s.logger.Error("flush pass budget exceeded",
		"max_passes", s.maxPasses,
		"component", c.name,
		"component_id", c.id,
		"dropped", dropped)
	return perrors.New("E202").
		WithDetailf("component %q updated more than %d times in one flush", c.name, s.maxPasses).
		Wrap(ErrUpdateLoop)
}

// clearDirty empties the processed dirty queue.
func (s *Scheduler) clearDirty() {
	for i := range s.dirty {
		s.dirty[i] = nil
	}
	s.dirty = s.dirty[:0]
	s.flushIdx = 0
}

// abandon drops every queued component, leaving them clean so a later
// MarkDirty queues them again.
func (s *Scheduler) abandon() {
	for _, c := range s.dirty[s.flushIdx:] {
		c.queued = false
		c.dirty.Reset()
	}
	s.clearDirty()
}

// runQueuedCallbacks runs those of cbs that are waiting in the render queue
// and have not run in the current flush, marking them as seen so the queue
// skips them.
func (s *Scheduler) runQueuedCallbacks(cbs []*Callback) {
	if len(cbs) == 0 || len(s.renders) == 0 {
		return
	}
	for _, cb := range cbs {
		if _, ok := s.seen[cb]; ok || !s.renderQueued(cb) {
			continue
		}
		s.seen[cb] = struct{}{}
		cb.Run()
	}
}

func (s *Scheduler) renderQueued(cb *Callback) bool {
	for _, queued := range s.renders {
		if queued == cb {
			return true
		}
	}
	return false
}
