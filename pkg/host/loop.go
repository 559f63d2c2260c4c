// Package host provides the single-goroutine loop that owns a pulse runtime.
//
// The engine is single-threaded and cooperative: every scheduler flush,
// store notification and frame task runs on the loop goroutine. The loop
// supplies the two host primitives the engine needs:
//
//   - QueueMicrotask: deferred work run after the current task finishes,
//     used by the scheduler to batch a synchronous turn into one flush.
//   - RequestFrame: display-refresh callbacks, used by the frame registry.
//
// Dispatch is the only goroutine-safe entry point. Tests skip Run and drive
// the loop by hand with RunMicrotasks and StepFrame.
package host

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	perrors "github.com/vango-dev/pulse/internal/errors"
	"github.com/vango-dev/pulse/pkg/frame"
)

// ErrClosed is returned by Dispatch after the loop has been closed.
var ErrClosed = errors.New("pulse: host loop closed")

// ErrQueueFull is returned by Dispatch when the dispatch queue is full.
var ErrQueueFull = errors.New("pulse: host dispatch queue full")

// DefaultQueueSize is the dispatch channel capacity used when none is set.
const DefaultQueueSize = 256

// Loop is a cooperative event loop with a microtask queue and frame callbacks.
type Loop struct {
	clock    frame.Clock
	interval time.Duration
	logger   *slog.Logger

	dispatchCh chan func()
	done       chan struct{}
	closed     atomic.Bool

	micro  []func()
	frames []func(time.Time)

	tasksRun  atomic.Uint64
	framesRun atomic.Uint64
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock sets the clock used to timestamp frames.
func WithClock(c frame.Clock) Option {
	return func(l *Loop) {
		if c != nil {
			l.clock = c
		}
	}
}

// WithFrameRate sets how many frames per second Run delivers.
func WithFrameRate(fps float64) Option {
	return func(l *Loop) {
		if fps > 0 {
			l.interval = time.Duration(float64(time.Second) / fps)
		}
	}
}

// WithQueueSize sets the dispatch channel capacity.
func WithQueueSize(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.dispatchCh = make(chan func(), n)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a loop. It does nothing until Run is called or it is driven
// by hand.
func New(opts ...Option) *Loop {
	l := &Loop{
		clock:      frame.SystemClock{},
		interval:   time.Second / frame.DefaultFPS,
		logger:     slog.Default(),
		dispatchCh: make(chan func(), DefaultQueueSize),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "host")
	return l
}

// Now returns the loop clock's time.
func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

// QueueMicrotask appends fn to the microtask queue. Must be called on the
// loop goroutine.
func (l *Loop) QueueMicrotask(fn func()) {
	l.micro = append(l.micro, fn)
}

// RequestFrame schedules fn for the next frame. Must be called on the loop
// goroutine.
func (l *Loop) RequestFrame(fn func(now time.Time)) {
	l.frames = append(l.frames, fn)
}

// PendingMicrotasks returns the number of queued microtasks.
func (l *Loop) PendingMicrotasks() int {
	return len(l.micro)
}

// PendingFrames returns the number of frame callbacks waiting for a frame.
func (l *Loop) PendingFrames() int {
	return len(l.frames)
}

// RunMicrotasks drains the microtask queue in FIFO order, including
// microtasks queued while draining. It returns how many ran.
func (l *Loop) RunMicrotasks() int {
	n := 0
	for len(l.micro) > 0 {
		fn := l.micro[0]
		l.micro[0] = nil
		l.micro = l.micro[1:]
		l.execute("microtask", fn)
		n++
	}
	l.micro = nil
	return n
}

// StepFrame delivers one frame at now to every callback requested before
// the call, then drains microtasks. Callbacks requested during the frame
// wait for the next one.
func (l *Loop) StepFrame(now time.Time) int {
	pending := l.frames
	l.frames = nil
	for _, fn := range pending {
		cb := fn
		l.execute("frame", func() { cb(now) })
	}
	l.framesRun.Add(1)
	l.RunMicrotasks()
	return len(pending)
}

// Dispatch queues fn to run on the loop goroutine. Safe for concurrent use.
func (l *Loop) Dispatch(fn func()) error {
	if l.closed.Load() {
		return perrors.New("E301").Wrap(ErrClosed)
	}
	select {
	case l.dispatchCh <- fn:
		return nil
	case <-l.done:
		return perrors.New("E301").Wrap(ErrClosed)
	default:
		l.logger.Warn("dispatch queue full, discarding callback")
		return perrors.New("E302").Wrap(ErrQueueFull)
	}
}

// Run drives the loop in real time until ctx is cancelled or Close is
// called. A frame ticker is only armed while frame callbacks are pending.
func (l *Loop) Run(ctx context.Context) error {
	var ticker *time.Ticker
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	l.logger.Debug("loop started", "frame_interval", l.interval)
	for {
		var tick <-chan time.Time
		if len(l.frames) > 0 {
			if ticker == nil {
				ticker = time.NewTicker(l.interval)
			}
			tick = ticker.C
		} else if ticker != nil {
			ticker.Stop()
			ticker = nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-l.done:
			return nil

		case fn := <-l.dispatchCh:
			l.execute("dispatch", fn)
			l.RunMicrotasks()

		case <-tick:
			l.StepFrame(l.clock.Now())
		}
	}
}

// Close stops Run and rejects further dispatches.
func (l *Loop) Close() {
	if l.closed.Swap(true) {
		return
	}
	close(l.done)
}

// Done is closed when the loop is closed.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Stats reports loop counters.
func (l *Loop) Stats() Stats {
	return Stats{
		TasksRun:  l.tasksRun.Load(),
		FramesRun: l.framesRun.Load(),
	}
}

// Stats holds loop counters.
type Stats struct {
	TasksRun  uint64 `json:"tasksRun"`
	FramesRun uint64 `json:"framesRun"`
}

// execute runs fn with panic recovery so one failing task cannot stop the
// loop.
func (l *Loop) execute(kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("host task panic",
				"kind", kind,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	l.tasksRun.Add(1)
	fn()
}
