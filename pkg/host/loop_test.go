package host

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/vango-dev/pulse/pkg/frame"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMicrotasksRunFIFOIncludingNested(t *testing.T) {
	l := New(WithLogger(quietLogger()))
	var order []string
	l.QueueMicrotask(func() {
		order = append(order, "a")
		l.QueueMicrotask(func() { order = append(order, "c") })
	})
	l.QueueMicrotask(func() { order = append(order, "b") })

	if n := l.RunMicrotasks(); n != 3 {
		t.Errorf("expected 3 microtasks, got %d", n)
	}
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("expected [a b c], got %v", order)
	}
}

func TestStepFrameDefersFramesRequestedDuringFrame(t *testing.T) {
	l := New(WithLogger(quietLogger()))
	var frames []time.Time
	var request func()
	request = func() {
		l.RequestFrame(func(now time.Time) {
			frames = append(frames, now)
			if len(frames) < 3 {
				request()
			}
		})
	}
	request()

	base := time.Unix(0, 0)
	l.StepFrame(base)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame after first step, got %d", len(frames))
	}
	l.StepFrame(base.Add(16 * time.Millisecond))
	l.StepFrame(base.Add(32 * time.Millisecond))
	l.StepFrame(base.Add(48 * time.Millisecond))
	if len(frames) != 3 {
		t.Errorf("expected 3 frames, got %d", len(frames))
	}
	if l.PendingFrames() != 0 {
		t.Errorf("expected no pending frames, got %d", l.PendingFrames())
	}
}

func TestStepFrameDrainsMicrotasks(t *testing.T) {
	l := New(WithLogger(quietLogger()))
	ran := false
	l.RequestFrame(func(time.Time) {
		l.QueueMicrotask(func() { ran = true })
	})
	l.StepFrame(time.Unix(0, 0))
	if !ran {
		t.Error("expected microtask queued in a frame to run before StepFrame returns")
	}
}

func TestPanicInTaskIsRecovered(t *testing.T) {
	l := New(WithLogger(quietLogger()))
	after := false
	l.QueueMicrotask(func() { panic("boom") })
	l.QueueMicrotask(func() { after = true })
	l.RunMicrotasks()
	if !after {
		t.Error("expected loop to continue after a panicking microtask")
	}
}

func TestRunExecutesDispatchAndFrames(t *testing.T) {
	l := New(WithLogger(quietLogger()), WithFrameRate(1000))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got := make(chan time.Time, 1)
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	if err := l.Dispatch(func() {
		l.RequestFrame(func(now time.Time) { got <- now })
	}); err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	select {
	case <-got:
	case <-ctx.Done():
		t.Fatal("frame callback never ran")
	}

	l.Close()
	if err := <-errCh; err != nil {
		t.Errorf("expected clean shutdown, got %v", err)
	}
	if err := l.Dispatch(func() {}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}

func TestDispatchQueueFull(t *testing.T) {
	l := New(WithLogger(quietLogger()), WithQueueSize(1))
	if err := l.Dispatch(func() {}); err != nil {
		t.Fatalf("first dispatch should fit: %v", err)
	}
	if err := l.Dispatch(func() {}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

func TestNowUsesClock(t *testing.T) {
	c := frame.NewManualClock(time.Unix(42, 0))
	l := New(WithClock(c))
	if !l.Now().Equal(time.Unix(42, 0)) {
		t.Errorf("unexpected now %v", l.Now())
	}
}
