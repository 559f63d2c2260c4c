// Package frame implements the shared per-frame task registry.
//
// Spring values and running transitions register frame tasks with one
// Registry. All tasks run from a single frame callback obtained from the
// host Requester; the registry asks for the next frame only while at least
// one task is still active, so an idle engine requests no frames at all.
//
// A Registry belongs to one host loop and is not safe for concurrent use.
package frame

import (
	"log/slog"
	"time"

	"github.com/vango-dev/pulse/pkg/future"
)

// DefaultFPS is the frame cadence assumed when none is configured.
const DefaultFPS = 60

// Requester is implemented by the host to deliver display-refresh callbacks.
// Each call requests exactly one invocation of fn on the host loop.
type Requester interface {
	RequestFrame(fn func(now time.Time))
}

// Observer receives one notification per frame the registry runs.
type Observer interface {
	FrameRan(tasks int, took time.Duration)
}

// TaskFunc is invoked once per frame. Returning false finishes the task.
type TaskFunc func(now time.Time) bool

// Task is a registered frame task.
type Task struct {
	fn       TaskFunc
	done     *future.Future
	registry *Registry
	active   bool
}

// Abort removes the task without resolving its completion.
// Aborting an already finished task is a no-op.
func (t *Task) Abort() {
	if !t.active {
		return
	}
	t.active = false
	t.registry.compact()
}

// Done resolves when the task finishes by returning false.
// It never resolves for an aborted task.
func (t *Task) Done() *future.Future {
	return t.done
}

// Active reports whether the task is still scheduled.
func (t *Task) Active() bool {
	return t.active
}

// Registry runs frame tasks.
type Registry struct {
	requester Requester
	clock     Clock
	fps       float64
	observer  Observer
	logger    *slog.Logger

	tasks     []*Task
	requested bool
	running   bool
	frames    uint64
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithFPS sets the nominal frame cadence used to convert elapsed time into
// frame units.
func WithFPS(fps float64) Option {
	return func(r *Registry) {
		if fps > 0 {
			r.fps = fps
		}
	}
}

// WithObserver installs a per-frame observer.
func WithObserver(o Observer) Option {
	return func(r *Registry) {
		r.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates a registry that requests frames from req.
func NewRegistry(req Requester, opts ...Option) *Registry {
	r := &Registry{
		requester: req,
		clock:     SystemClock{},
		fps:       DefaultFPS,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "frame")
	return r
}

// Now returns the registry's current time.
func (r *Registry) Now() time.Time {
	return r.clock.Now()
}

// FPS returns the nominal frame cadence.
func (r *Registry) FPS() float64 {
	return r.fps
}

// FrameInterval returns the duration of one nominal frame.
func (r *Registry) FrameInterval() time.Duration {
	return time.Duration(float64(time.Second) / r.fps)
}

// Frames returns how many frame callbacks have run.
func (r *Registry) Frames() uint64 {
	return r.frames
}

// Active returns the number of scheduled tasks.
func (r *Registry) Active() int {
	n := 0
	for _, t := range r.tasks {
		if t.active {
			n++
		}
	}
	return n
}

// Loop registers fn to run on every frame until it returns false.
func (r *Registry) Loop(fn TaskFunc) *Task {
	t := &Task{
		fn:       fn,
		done:     future.New(),
		registry: r,
		active:   true,
	}
	r.tasks = append(r.tasks, t)
	r.request()
	return t
}

// Once runs fn on the next frame.
func (r *Registry) Once(fn func(now time.Time)) *Task {
	return r.Loop(func(now time.Time) bool {
		fn(now)
		return false
	})
}

func (r *Registry) request() {
	if r.requested || r.running {
		return
	}
	r.requested = true
	r.requester.RequestFrame(r.run)
}

// run executes every active task once. Tasks registered while the frame is
// running are visited in the same frame. A task that panics is dropped
// without resolving, the remaining tasks keep their frames, and the panic
// propagates to the host.
func (r *Registry) run(now time.Time) {
	r.requested = false
	r.running = true
	r.frames++
	start := time.Now()

	i := 0
	defer func() {
		if p := recover(); p != nil {
			if i < len(r.tasks) {
				r.tasks[i].active = false
			}
			r.running = false
			r.compact()
			if len(r.tasks) > 0 {
				r.request()
			}
			panic(p)
		}
	}()

	for ; i < len(r.tasks); i++ {
		t := r.tasks[i]
		if !t.active {
			continue
		}
		if !t.fn(now) {
			t.active = false
			t.done.Resolve()
		}
	}

	r.running = false
	r.compact()
	if r.observer != nil {
		r.observer.FrameRan(len(r.tasks), time.Since(start))
	}
	if len(r.tasks) > 0 {
		r.request()
	} else {
		r.logger.Debug("frame loop idle", "frames", r.frames)
	}
}

func (r *Registry) compact() {
	if r.running {
		return
	}
	kept := r.tasks[:0]
	for _, t := range r.tasks {
		if t.active {
			kept = append(kept, t)
		}
	}
	for i := len(kept); i < len(r.tasks); i++ {
		r.tasks[i] = nil
	}
	r.tasks = kept
}
