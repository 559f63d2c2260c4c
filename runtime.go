package pulse

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/pulse/internal/config"
	"github.com/vango-dev/pulse/pkg/frame"
	"github.com/vango-dev/pulse/pkg/host"
	"github.com/vango-dev/pulse/pkg/inspect"
	"github.com/vango-dev/pulse/pkg/metrics"
	"github.com/vango-dev/pulse/pkg/scheduler"
	"github.com/vango-dev/pulse/pkg/store"
	"github.com/vango-dev/pulse/pkg/transition"
)

// TracerName is the instrumentation name used by the runtime's tracer.
const TracerName = "github.com/vango-dev/pulse"

// Runtime is one engine instance.
type Runtime struct {
	id     string
	cfg    *config.Config
	logger *slog.Logger
	tracer trace.Tracer

	loop        *host.Loop
	frames      *frame.Registry
	sched       *scheduler.Scheduler
	transitions *transition.Manager
	queue       *store.Queue

	registry  *prometheus.Registry
	metrics   *metrics.Collector
	recorder  *inspect.Recorder
	exporter  *inspect.Exporter
	inspector *inspect.Server
	observers *observers
}

// Option configures a Runtime.
type Option func(*runtimeOptions)

type runtimeOptions struct {
	logger    *slog.Logger
	clock     frame.Clock
	tracer    trace.Tracer
	sink      inspect.Sink
	observers []Observer
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *runtimeOptions) {
		o.logger = logger
	}
}

// WithClock sets the clock used by the loop, the frame registry and the
// recorder.
func WithClock(c frame.Clock) Option {
	return func(o *runtimeOptions) {
		o.clock = c
	}
}

// WithTracer sets the tracer for flush and reconcile spans.
// Default: otel.Tracer(TracerName)
func WithTracer(tracer trace.Tracer) Option {
	return func(o *runtimeOptions) {
		o.tracer = tracer
	}
}

// WithCaptureSink sets where captures are stored, overriding the capture
// section of the configuration.
func WithCaptureSink(sink inspect.Sink) Option {
	return func(o *runtimeOptions) {
		o.sink = sink
	}
}

// WithObserver adds an observer next to the built-in metrics and
// recorder.
func WithObserver(obs Observer) Option {
	return func(o *runtimeOptions) {
		o.observers = append(o.observers, obs)
	}
}

// New creates a runtime from cfg. A nil cfg uses config.New().
func New(cfg *config.Config, opts ...Option) (*Runtime, error) {
	if cfg == nil {
		cfg = config.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	duration, _ := cfg.TransitionDuration()

	o := runtimeOptions{
		logger: slog.Default(),
		clock:  frame.SystemClock{},
		tracer: otel.Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.NewString()
	logger := o.logger.With("runtime_id", id)

	rt := &Runtime{
		id:        id,
		cfg:       cfg,
		logger:    logger,
		tracer:    o.tracer,
		queue:     store.NewQueue(),
		registry:  prometheus.NewRegistry(),
		observers: &observers{},
	}

	rt.metrics = metrics.New(
		metrics.WithRegistry(rt.registry),
		metrics.WithNamespace(cfg.Metrics.Namespace),
		metrics.WithConstLabels(prometheus.Labels{"runtime_id": id}),
	)
	rt.recorder = inspect.NewRecorder(cfg.Inspector.HistorySize,
		inspect.WithClock(o.clock),
		inspect.WithFrameEvents(cfg.Inspector.FrameEvents))
	rt.observers.add(rt.metrics)
	rt.observers.add(rt.recorder)
	for _, obs := range o.observers {
		rt.observers.add(obs)
	}

	rt.loop = host.New(
		host.WithClock(o.clock),
		host.WithFrameRate(cfg.FrameRate),
		host.WithLogger(logger))
	rt.metrics.WatchLoop(rt.loop)

	rt.frames = frame.NewRegistry(rt.loop,
		frame.WithClock(o.clock),
		frame.WithFPS(cfg.FrameRate),
		frame.WithObserver(rt.observers),
		frame.WithLogger(logger))

	rt.sched = scheduler.New(rt.loop,
		scheduler.WithLogger(logger),
		scheduler.WithTracer(o.tracer),
		scheduler.WithObserver(rt.observers),
		scheduler.WithMaxPasses(cfg.MaxFlushPasses))

	rt.transitions = transition.NewManager(rt.frames, rt.sched,
		transition.WithDefaultDuration(duration),
		transition.WithLogger(logger),
		transition.WithObserver(rt.observers))

	sink := o.sink
	if sink == nil {
		sink = captureSink(cfg.Capture)
	}
	rt.exporter = inspect.NewExporter(rt.recorder, sink, id)

	if cfg.Inspector.Enabled {
		rt.inspector = inspect.NewServer(rt.recorder,
			inspect.WithGatherer(rt.registry),
			inspect.WithExporter(rt.exporter),
			inspect.WithLogger(logger),
			inspect.WithServerTracer(o.tracer))
	}

	logger.Debug("runtime created",
		"frame_rate", cfg.FrameRate,
		"max_flush_passes", cfg.MaxFlushPasses,
		"inspector", cfg.Inspector.Enabled)
	return rt, nil
}

func captureSink(c config.CaptureConfig) inspect.Sink {
	switch {
	case c.S3Bucket != "":
		return &inspect.S3Sink{
			Client: inspect.NewS3Client(c.S3Region, c.S3Endpoint),
			Bucket: c.S3Bucket,
			Prefix: c.S3Prefix,
		}
	case c.Dir != "":
		return inspect.FileSink{Dir: c.Dir}
	default:
		return nil
	}
}

// ID returns the runtime's unique ID.
func (rt *Runtime) ID() string { return rt.id }

// Config returns the configuration the runtime was created with.
func (rt *Runtime) Config() *config.Config { return rt.cfg }

// Logger returns the runtime logger.
func (rt *Runtime) Logger() *slog.Logger { return rt.logger }

// Loop returns the host loop.
func (rt *Runtime) Loop() *host.Loop { return rt.loop }

// Frames returns the frame registry.
func (rt *Runtime) Frames() *frame.Registry { return rt.frames }

// Scheduler returns the update scheduler.
func (rt *Runtime) Scheduler() *scheduler.Scheduler { return rt.sched }

// Transitions returns the transition manager.
func (rt *Runtime) Transitions() *transition.Manager { return rt.transitions }

// Queue returns the store delivery queue.
func (rt *Runtime) Queue() *store.Queue { return rt.queue }

// Registry returns the Prometheus registry holding the runtime's metrics.
func (rt *Runtime) Registry() *prometheus.Registry { return rt.registry }

// Recorder returns the event recorder.
func (rt *Runtime) Recorder() *inspect.Recorder { return rt.recorder }

// Exporter returns the capture exporter.
func (rt *Runtime) Exporter() *inspect.Exporter { return rt.exporter }

// Inspector returns the inspector server, or nil when disabled.
func (rt *Runtime) Inspector() *inspect.Server { return rt.inspector }

// Dispatch runs fn on the loop goroutine. Safe for concurrent use.
func (rt *Runtime) Dispatch(fn func()) error {
	return rt.loop.Dispatch(fn)
}

// Run drives the loop, and the inspector when enabled, until ctx is
// cancelled or Close is called.
func (rt *Runtime) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inspectorErr := make(chan error, 1)
	if rt.inspector != nil {
		go func() {
			inspectorErr <- rt.inspector.ListenAndServe(ctx, rt.cfg.Inspector.Addr)
		}()
	} else {
		close(inspectorErr)
	}

	rt.logger.Info("runtime started")
	err := rt.loop.Run(ctx)
	cancel()
	if ierr := <-inspectorErr; ierr != nil {
		rt.logger.Error("inspector stopped", "error", ierr)
		if err == nil || errors.Is(err, context.Canceled) {
			err = ierr
		}
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	rt.logger.Info("runtime stopped")
	return err
}

// Step delivers pending microtasks and one frame at the clock's current
// time. It is meant for driving the runtime by hand without Run.
func (rt *Runtime) Step() {
	rt.loop.RunMicrotasks()
	rt.loop.StepFrame(rt.loop.Now())
}

// Settle steps the runtime until no frames or microtasks are pending, or
// until limit steps ran. advance is called before each step and may move
// a manual clock forward.
func (rt *Runtime) Settle(limit int, advance func() time.Time) int {
	n := 0
	for n < limit && (rt.loop.PendingFrames() > 0 || rt.loop.PendingMicrotasks() > 0) {
		rt.loop.RunMicrotasks()
		now := rt.loop.Now()
		if advance != nil {
			now = advance()
		}
		rt.loop.StepFrame(now)
		n++
	}
	return n
}

// Close stops Run and rejects further dispatches.
func (rt *Runtime) Close() {
	rt.loop.Close()
	if rt.inspector != nil {
		rt.inspector.Hub().Close()
	}
}
