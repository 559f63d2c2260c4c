package main

import (
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/pulse"
	"github.com/vango-dev/pulse/internal/config"
	"github.com/vango-dev/pulse/pkg/frame"
)

func newTestWorkload(t *testing.T, seed int64, size int) (*pulse.Runtime, *workload, func() time.Time) {
	t.Helper()
	clock := frame.NewManualClock(time.Unix(0, 0))
	rt, err := pulse.New(config.New(), pulse.WithClock(clock))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w, err := newWorkload(rt, seed, size)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.mount(); err != nil {
		t.Fatalf("mount failed: %v", err)
	}
	interval := rt.Frames().FrameInterval()
	return rt, w, func() time.Time { return clock.Advance(interval) }
}

func TestWorkloadInitialRender(t *testing.T) {
	rt, w, advance := newTestWorkload(t, 1, 4)
	defer rt.Close()
	defer w.close()

	rt.Settle(settleLimit, advance)
	if got := w.order(); got != "a b c d" {
		t.Errorf("expected order %q, got %q", "a b c d", got)
	}
}

func TestWorkloadStepsConverge(t *testing.T) {
	rt, w, advance := newTestWorkload(t, 7, 6)
	defer rt.Close()
	defer w.close()

	rt.Settle(settleLimit, advance)
	for i := 0; i < 20; i++ {
		w.step()
		if n := rt.Settle(settleLimit, advance); n >= settleLimit {
			t.Fatalf("step %d did not settle", i)
		}
		want := strings.Join(w.items.Get(), " ")
		if got := w.order(); got != want {
			t.Fatalf("step %d: expected order %q, got %q", i, want, got)
		}
		if w.cursor.Get() != w.cursor.Target() {
			t.Errorf("step %d: expected cursor at %v, got %v", i, w.cursor.Target(), w.cursor.Get())
		}
	}

	stats := rt.Recorder().Stats()
	if stats.Reconciles == 0 {
		t.Error("expected reconciles to be recorded")
	}
	if stats.Flushes == 0 {
		t.Error("expected flushes to be recorded")
	}
}

func TestItemName(t *testing.T) {
	tests := map[int]string{0: "a", 25: "z", 26: "a1", 53: "b2"}
	for in, want := range tests {
		if got := itemName(in); got != want {
			t.Errorf("itemName(%d): expected %q, got %q", in, want, got)
		}
	}
}

func TestDedupe(t *testing.T) {
	got := strings.Join(dedupe([]string{"a", "b", "a", "c", "b"}), " ")
	if got != "a b c" {
		t.Errorf("expected %q, got %q", "a b c", got)
	}
}
