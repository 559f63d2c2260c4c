package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/vango-dev/pulse/pkg/host"
	"github.com/vango-dev/pulse/pkg/keyed"
	"github.com/vango-dev/pulse/pkg/scheduler"
	"github.com/vango-dev/pulse/pkg/transition"
)

func histogramCount(t *testing.T, h prometheus.Histogram) uint64 {
	t.Helper()
	var m dto.Metric
	if err := h.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func TestCollectorFlush(t *testing.T) {
	c := New(WithRegistry(prometheus.NewRegistry()))

	c.FlushDone(scheduler.FlushStats{
		Passes:          1,
		Components:      3,
		RenderCallbacks: 2,
		FlushCallbacks:  1,
		Duration:        time.Millisecond,
	})
	c.FlushDone(scheduler.FlushStats{Components: 1, Err: errors.New("loop")})

	if got := testutil.ToFloat64(c.flushes); got != 2 {
		t.Errorf("expected 2 flushes, got %v", got)
	}
	if got := testutil.ToFloat64(c.flushErrors); got != 1 {
		t.Errorf("expected 1 flush error, got %v", got)
	}
	if got := testutil.ToFloat64(c.componentUpdates); got != 4 {
		t.Errorf("expected 4 component updates, got %v", got)
	}
	if got := testutil.ToFloat64(c.callbacks.WithLabelValues("render")); got != 2 {
		t.Errorf("expected 2 render callbacks, got %v", got)
	}
	if got := histogramCount(t, c.flushDuration); got != 2 {
		t.Errorf("expected 2 flush duration samples, got %d", got)
	}
}

func TestCollectorFramesAndTransitions(t *testing.T) {
	c := New(WithRegistry(prometheus.NewRegistry()))

	c.FrameRan(3, time.Millisecond)
	c.FrameRan(1, time.Millisecond)
	c.TransitionEvent(transition.IntroStart)
	c.TransitionEvent(transition.IntroStart)
	c.TransitionEvent(transition.OutroEnd)

	if got := testutil.ToFloat64(c.frames); got != 2 {
		t.Errorf("expected 2 frames, got %v", got)
	}
	if got := testutil.ToFloat64(c.frameTasks); got != 1 {
		t.Errorf("expected 1 frame task, got %v", got)
	}
	if got := testutil.ToFloat64(c.transitionEvents.WithLabelValues("introstart")); got != 2 {
		t.Errorf("expected 2 introstart events, got %v", got)
	}
	if got := testutil.ToFloat64(c.transitionEvents.WithLabelValues("outroend")); got != 1 {
		t.Errorf("expected 1 outroend event, got %v", got)
	}
}

func TestCollectorReconciled(t *testing.T) {
	c := New(WithRegistry(prometheus.NewRegistry()))
	c.Reconciled(keyed.Stats{Items: 3, Created: 1, Moved: 2, Patched: 2})

	if got := testutil.ToFloat64(c.reconciles); got != 1 {
		t.Errorf("expected 1 reconcile, got %v", got)
	}
	if got := testutil.ToFloat64(c.keyedOps.WithLabelValues("moved")); got != 2 {
		t.Errorf("expected 2 moves, got %v", got)
	}
}

func TestCollectorNamespaceAndLoop(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(WithRegistry(reg), WithNamespace("ui"), WithConstLabels(prometheus.Labels{"runtime": "r1"}))
	loop := host.New()
	c.WatchLoop(loop)
	loop.QueueMicrotask(func() {})
	loop.RunMicrotasks()

	expected := `
# HELP ui_loop_tasks_total Total number of tasks run by the host loop
# TYPE ui_loop_tasks_total counter
ui_loop_tasks_total{runtime="r1"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "ui_loop_tasks_total"); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
}
