// Package metrics exports engine activity as Prometheus metrics.
//
// A Collector implements the observer interfaces of the scheduler, the
// frame registry, the transition manager and the keyed reconciler, so one
// value can be installed on all of them:
//
//	c := metrics.New(metrics.WithRegistry(reg))
//	sched := scheduler.New(loop, scheduler.WithObserver(c))
//	frames := frame.NewRegistry(loop, frame.WithObserver(c))
//
// Metrics collected (namespace "pulse" by default):
//   - pulse_flushes_total: Counter of completed flushes
//   - pulse_flush_errors_total: Counter of flushes that stopped on an update loop
//   - pulse_flush_duration_seconds: Histogram of flush duration
//   - pulse_component_updates_total: Counter of component updates
//   - pulse_callbacks_total: Counter of callbacks run, by phase
//   - pulse_frames_total: Counter of frames run by the frame registry
//   - pulse_frame_tasks: Gauge of frame tasks still scheduled
//   - pulse_frame_duration_seconds: Histogram of time spent in frame tasks
//   - pulse_transition_events_total: Counter of lifecycle events, by kind
//   - pulse_keyed_reconciles_total: Counter of keyed list reconciles
//   - pulse_keyed_ops_total: Counter of keyed block operations, by op
//   - pulse_loop_tasks_total, pulse_loop_frames_total: host loop counters
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/pulse/pkg/frame"
	"github.com/vango-dev/pulse/pkg/host"
	"github.com/vango-dev/pulse/pkg/keyed"
	"github.com/vango-dev/pulse/pkg/scheduler"
	"github.com/vango-dev/pulse/pkg/transition"
)

// Config configures a Collector.
type Config struct {
	// Namespace is the metrics namespace (default: "pulse").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for flush and frame durations.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures a Collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// DefaultBuckets cover 50µs to about 100ms, the range a flush or a frame
// is expected to take.
var DefaultBuckets = prometheus.ExponentialBuckets(0.00005, 2, 12)

func defaultConfig() Config {
	return Config{
		Namespace: "pulse",
		Buckets:   DefaultBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collector records engine metrics.
type Collector struct {
	config  Config
	factory promauto.Factory

	flushes          prometheus.Counter
	flushErrors      prometheus.Counter
	flushDuration    prometheus.Histogram
	componentUpdates prometheus.Counter
	callbacks        *prometheus.CounterVec

	frames        prometheus.Counter
	frameTasks    prometheus.Gauge
	frameDuration prometheus.Histogram

	transitionEvents *prometheus.CounterVec

	reconciles prometheus.Counter
	keyedOps   *prometheus.CounterVec
}

var (
	_ scheduler.Observer  = (*Collector)(nil)
	_ frame.Observer      = (*Collector)(nil)
	_ transition.Observer = (*Collector)(nil)
	_ keyed.Observer      = (*Collector)(nil)
)

// New creates a collector and registers its metrics.
func New(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		})
	}
	histogram := func(name, help string) prometheus.Histogram {
		return factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}, labels)
	}

	return &Collector{
		config:  config,
		factory: factory,

		flushes:          counter("flushes_total", "Total number of scheduler flushes"),
		flushErrors:      counter("flush_errors_total", "Total number of flushes stopped by the pass budget"),
		flushDuration:    histogram("flush_duration_seconds", "Scheduler flush duration in seconds"),
		componentUpdates: counter("component_updates_total", "Total number of component updates"),
		callbacks:        counterVec("callbacks_total", "Total number of scheduler callbacks run", "phase"),

		frames: counter("frames_total", "Total number of frames run by the frame registry"),
		frameTasks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "frame_tasks",
			Help:        "Number of frame tasks still scheduled after the last frame",
			ConstLabels: config.ConstLabels,
		}),
		frameDuration: histogram("frame_duration_seconds", "Time spent running frame tasks in seconds"),

		transitionEvents: counterVec("transition_events_total", "Total number of transition lifecycle events", "kind"),

		reconciles: counter("keyed_reconciles_total", "Total number of keyed list reconciles"),
		keyedOps:   counterVec("keyed_ops_total", "Total number of keyed block operations", "op"),
	}
}

// FlushDone implements scheduler.Observer.
func (c *Collector) FlushDone(stats scheduler.FlushStats) {
	c.flushes.Inc()
	if stats.Err != nil {
		c.flushErrors.Inc()
	}
	c.flushDuration.Observe(stats.Duration.Seconds())
	c.componentUpdates.Add(float64(stats.Components))
	c.callbacks.WithLabelValues("binding").Add(float64(stats.BindingCallbacks))
	c.callbacks.WithLabelValues("render").Add(float64(stats.RenderCallbacks))
	c.callbacks.WithLabelValues("flush").Add(float64(stats.FlushCallbacks))
}

// FrameRan implements frame.Observer.
func (c *Collector) FrameRan(tasks int, took time.Duration) {
	c.frames.Inc()
	c.frameTasks.Set(float64(tasks))
	c.frameDuration.Observe(took.Seconds())
}

// TransitionEvent implements transition.Observer.
func (c *Collector) TransitionEvent(kind transition.EventKind) {
	c.transitionEvents.WithLabelValues(kind.String()).Inc()
}

// Reconciled implements keyed.Observer.
func (c *Collector) Reconciled(stats keyed.Stats) {
	c.reconciles.Inc()
	c.keyedOps.WithLabelValues("created").Add(float64(stats.Created))
	c.keyedOps.WithLabelValues("moved").Add(float64(stats.Moved))
	c.keyedOps.WithLabelValues("destroyed").Add(float64(stats.Destroyed))
	c.keyedOps.WithLabelValues("patched").Add(float64(stats.Patched))
}

// WatchLoop exports the counters of l. Call it once per collector.
func (c *Collector) WatchLoop(l *host.Loop) {
	c.factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        "loop_tasks_total",
		Help:        "Total number of tasks run by the host loop",
		ConstLabels: c.config.ConstLabels,
	}, func() float64 {
		return float64(l.Stats().TasksRun)
	})
	c.factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace:   c.config.Namespace,
		Subsystem:   c.config.Subsystem,
		Name:        "loop_frames_total",
		Help:        "Total number of frames delivered by the host loop",
		ConstLabels: c.config.ConstLabels,
	}, func() float64 {
		return float64(l.Stats().FramesRun)
	})
}
