package inspect

import (
	"sync"
	"time"

	"github.com/vango-dev/pulse/pkg/frame"
	"github.com/vango-dev/pulse/pkg/keyed"
	"github.com/vango-dev/pulse/pkg/scheduler"
	"github.com/vango-dev/pulse/pkg/transition"
)

// Stats are running totals kept by a Recorder.
type Stats struct {
	Flushes          uint64       `json:"flushes"`
	FlushErrors      uint64       `json:"flushErrors"`
	ComponentUpdates uint64       `json:"componentUpdates"`
	Frames           uint64       `json:"frames"`
	FrameTasks       int          `json:"frameTasks"`
	Transitions      uint64       `json:"transitions"`
	Reconciles       uint64       `json:"reconciles"`
	LastFlush        *FlushDetail `json:"lastFlush,omitempty"`
}

// Recorder turns engine observer callbacks into Events. It implements the
// observer interfaces of the scheduler, the frame registry, the transition
// manager and the keyed reconciler. Its callbacks run on the host loop;
// every reader may run on any goroutine.
type Recorder struct {
	history *History
	now     func() time.Time

	mu          sync.RWMutex
	stats       Stats
	subscribers []func(Event)
	frameEvents bool
}

var (
	_ scheduler.Observer  = (*Recorder)(nil)
	_ frame.Observer      = (*Recorder)(nil)
	_ transition.Observer = (*Recorder)(nil)
	_ keyed.Observer      = (*Recorder)(nil)
)

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock sets the time source used to stamp events.
func WithClock(c frame.Clock) RecorderOption {
	return func(r *Recorder) {
		if c != nil {
			r.now = c.Now
		}
	}
}

// WithFrameEvents records an event for every frame. Frames are only
// counted otherwise.
func WithFrameEvents(enabled bool) RecorderOption {
	return func(r *Recorder) {
		r.frameEvents = enabled
	}
}

// NewRecorder creates a recorder retaining up to historySize events.
func NewRecorder(historySize int, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		history: NewHistory(historySize),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// History returns the recorder's event history.
func (r *Recorder) History() *History {
	return r.history
}

// Stats returns a copy of the running totals.
func (r *Recorder) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.stats
	if s.LastFlush != nil {
		last := *s.LastFlush
		s.LastFlush = &last
	}
	return s
}

// Subscribe calls fn with every event recorded from now on. fn runs on
// the host loop and must not block.
func (r *Recorder) Subscribe(fn func(Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = append(r.subscribers, fn)
}

// FlushDone implements scheduler.Observer.
func (r *Recorder) FlushDone(s scheduler.FlushStats) {
	detail := flushDetail(s)
	r.mu.Lock()
	r.stats.Flushes++
	if s.Err != nil {
		r.stats.FlushErrors++
	}
	r.stats.ComponentUpdates += uint64(s.Components)
	r.stats.LastFlush = detail
	r.mu.Unlock()

	last := *detail
	r.record(Event{Kind: EventFlush, Flush: &last})
}

// FrameRan implements frame.Observer.
func (r *Recorder) FrameRan(tasks int, took time.Duration) {
	r.mu.Lock()
	r.stats.Frames++
	r.stats.FrameTasks = tasks
	record := r.frameEvents
	r.mu.Unlock()

	if record {
		r.record(Event{Kind: EventFrame, Frame: &FrameDetail{
			Tasks:      tasks,
			DurationMs: float64(took) / float64(time.Millisecond),
		}})
	}
}

// TransitionEvent implements transition.Observer.
func (r *Recorder) TransitionEvent(kind transition.EventKind) {
	r.mu.Lock()
	r.stats.Transitions++
	r.mu.Unlock()

	r.record(Event{Kind: EventTransition, Transition: kind.String()})
}

// Reconciled implements keyed.Observer.
func (r *Recorder) Reconciled(s keyed.Stats) {
	r.mu.Lock()
	r.stats.Reconciles++
	r.mu.Unlock()

	r.record(Event{Kind: EventReconcile, Reconcile: &s})
}

func (r *Recorder) record(ev Event) {
	ev.At = r.now()
	ev = r.history.Add(ev)

	r.mu.RLock()
	subs := r.subscribers
	r.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}
}
