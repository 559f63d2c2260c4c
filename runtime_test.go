package pulse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vango-dev/pulse/internal/config"
	perrors "github.com/vango-dev/pulse/internal/errors"
	"github.com/vango-dev/pulse/pkg/bitset"
	"github.com/vango-dev/pulse/pkg/enginetest"
	"github.com/vango-dev/pulse/pkg/frame"
	"github.com/vango-dev/pulse/pkg/keyed"
	"github.com/vango-dev/pulse/pkg/scheduler"
	"github.com/vango-dev/pulse/pkg/spring"
)

func newTestRuntime(t *testing.T, mutate func(*config.Config)) (*Runtime, *frame.ManualClock) {
	t.Helper()
	cfg := config.New()
	if mutate != nil {
		mutate(cfg)
	}
	clock := frame.NewManualClock(time.Unix(1_700_000_000, 0))
	rt, err := New(cfg, WithClock(clock))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(rt.Close)
	return rt, clock
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.New()
	cfg.FrameRate = 0
	_, err := New(cfg)
	var ee *perrors.EngineError
	if !errors.As(err, &ee) || ee.Code != "E122" {
		t.Errorf("expected E122, got %v", err)
	}
}

func TestRuntimeStoreDrivesComponent(t *testing.T) {
	rt, _ := newTestRuntime(t, nil)
	h := enginetest.NewHost()
	root := h.NewContainer("root")
	unit := h.NewUnit("counter")

	count := NewWritable(rt, 0)
	comp := rt.Scheduler().NewComponent(scheduler.ComponentOptions{Name: "counter", Unit: unit})
	unsub := count.Subscribe(func(int) { comp.MarkDirty(0) })
	defer unsub()

	if err := comp.Mount(root, nil); err != nil {
		t.Fatalf("Mount() error: %v", err)
	}
	rt.Loop().RunMicrotasks()
	patchesBefore := len(unit.Patches())

	count.Set(1)
	count.Set(2)
	rt.Loop().RunMicrotasks()

	if got := len(unit.Patches()) - patchesBefore; got != 1 {
		t.Errorf("expected 1 batched patch, got %d", got)
	}
	if rt.Recorder().Stats().Flushes == 0 {
		t.Error("expected recorder to see flushes")
	}
}

func TestRuntimeSpringUsesConfig(t *testing.T) {
	rt, clock := newTestRuntime(t, func(c *config.Config) {
		c.Spring = spring.Config{Stiffness: 1, Damping: 1, Precision: 0.01}
	})

	s, err := NewSpring(rt, 0.0)
	if err != nil {
		t.Fatalf("NewSpring() error: %v", err)
	}
	done := s.Set(10)
	rt.Settle(100, func() time.Time { return clock.Advance(time.Second / 60) })

	if !done.IsResolved() {
		t.Error("expected spring to settle")
	}
	if s.Get() != 10 {
		t.Errorf("expected 10, got %v", s.Get())
	}
}

func TestRuntimeListReportsMetrics(t *testing.T) {
	rt, _ := newTestRuntime(t, nil)
	h := enginetest.NewHost()
	c := h.NewContainer("list")
	list := NewList(rt,
		func(s string) string { return s },
		func(key, _ string) keyed.Block[string] { return enginetest.NewBlock(h, key) })

	list.Update(c, nil, []string{"a", "b", "c"}, bitset.All())
	list.Update(c, nil, []string{"c", "a", "b"}, bitset.All())
	enginetest.ExpectOrder(t, c, "c", "a", "b")

	if got := rt.Recorder().Stats().Reconciles; got != 2 {
		t.Errorf("expected 2 reconciles recorded, got %d", got)
	}
	n, err := testutil.GatherAndCount(rt.Registry(), "pulse_keyed_reconciles_total")
	if err != nil || n != 1 {
		t.Errorf("expected reconcile metric, got %d (%v)", n, err)
	}
}

func TestRuntimeDebugChecksKeys(t *testing.T) {
	rt, _ := newTestRuntime(t, func(c *config.Config) { c.Debug = true })
	h := enginetest.NewHost()
	list := NewList(rt,
		func(s string) string { return s },
		func(key, _ string) keyed.Block[string] { return enginetest.NewBlock(h, key) })

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected duplicate key panic")
		}
	}()
	list.Update(h.NewContainer("list"), nil, []string{"a", "a"}, bitset.All())
}

func TestRuntimeRunStopsOnCancel(t *testing.T) {
	rt, _ := newTestRuntime(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- rt.Run(ctx) }()

	ran := make(chan struct{})
	if err := rt.Dispatch(func() { close(ran) }); err != nil {
		t.Fatalf("Dispatch() error: %v", err)
	}
	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("dispatched callback did not run")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("expected clean stop, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestRuntimeCaptureSinkFromConfig(t *testing.T) {
	dir := t.TempDir()
	rt, _ := newTestRuntime(t, func(c *config.Config) { c.Capture.Dir = dir })

	loc, err := rt.Exporter().Export(context.Background())
	if err != nil {
		t.Fatalf("Export() error: %v", err)
	}
	if loc == "" {
		t.Error("expected a capture location")
	}
}
