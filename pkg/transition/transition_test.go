package transition

import (
	"errors"
	"reflect"
	"testing"
	"time"

	perrors "github.com/vango-dev/pulse/internal/errors"
	"github.com/vango-dev/pulse/pkg/bitset"
	"github.com/vango-dev/pulse/pkg/render"
)

func TestIntroLifecycle(t *testing.T) {
	h := newHarness()
	node := &testNode{}
	rec := &tickRecorder{}
	in := h.manager.NewIntro(node, fade(rec, 100*time.Millisecond), nil)

	if in.State() != Idle {
		t.Errorf("expected idle, got %s", in.State())
	}
	if err := in.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.State() != Running {
		t.Errorf("expected running, got %s", in.State())
	}
	if rec.last() != 0 {
		t.Errorf("expected initial tick at 0, got %v", rec.last())
	}
	if len(node.events) != 0 {
		t.Errorf("expected start event to wait for the flush, got %v", node.events)
	}

	h.loop.RunMicrotasks()
	if !reflect.DeepEqual(node.events, []EventKind{IntroStart}) {
		t.Errorf("expected [introstart], got %v", node.events)
	}

	h.settle()
	if !reflect.DeepEqual(node.events, []EventKind{IntroStart, IntroEnd}) {
		t.Errorf("expected [introstart introend], got %v", node.events)
	}
	if rec.last() != 1 {
		t.Errorf("expected final tick at 1, got %v", rec.last())
	}
	if in.State() != Done {
		t.Errorf("expected done, got %s", in.State())
	}
	for i := 1; i < len(rec.ts); i++ {
		if rec.ts[i] < rec.ts[i-1] {
			t.Errorf("expected monotonic progress, got %v", rec.ts)
			break
		}
	}
}

func TestIntroStartIsIdempotentUntilInvalidated(t *testing.T) {
	h := newHarness()
	node := &testNode{}
	rec := &tickRecorder{}
	in := h.manager.NewIntro(node, fade(rec, 50*time.Millisecond), nil)

	_ = in.Start()
	_ = in.Start()
	if len(rec.ts) != 1 {
		t.Errorf("expected a single initial tick, got %v", rec.ts)
	}

	in.Invalidate()
	_ = in.Start()
	if len(rec.ts) != 2 {
		t.Errorf("expected restart after invalidate, got %v", rec.ts)
	}
	if h.registry.Active() != 1 {
		t.Errorf("expected restart to replace the frame task, got %d active", h.registry.Active())
	}
}

func TestIntroEnd(t *testing.T) {
	h := newHarness()
	node := &testNode{}
	rec := &tickRecorder{}
	in := h.manager.NewIntro(node, fade(rec, 100*time.Millisecond), nil)

	_ = in.Start()
	h.frame(20 * time.Millisecond)
	before := len(rec.ts)
	in.End()
	in.End()
	h.settle()

	if len(rec.ts) != before+1 {
		t.Errorf("expected End to apply exactly one final tick, got %v", rec.ts[before:])
	}
	if rec.last() != 1 {
		t.Errorf("expected final tick at 1, got %v", rec.last())
	}
	if in.State() != Done {
		t.Errorf("expected state done, got %s", in.State())
	}

	for _, ev := range node.events {
		if ev == IntroEnd {
			t.Error("expected no introend after End")
		}
	}
	if h.registry.Active() != 0 {
		t.Errorf("expected frame task to finish, got %d active", h.registry.Active())
	}
}

func TestLazyIntro(t *testing.T) {
	h := newHarness()
	node := &testNode{}
	rec := &tickRecorder{}
	var lazy LazyFactory = func(Node, any, Options) func(Options) (Config, error) {
		return func(opts Options) (Config, error) {
			if opts.Direction != In {
				t.Errorf("expected direction in, got %s", opts.Direction)
			}
			return Config{Duration: 50 * time.Millisecond, Tick: rec.tick}, nil
		}
	}

	in := h.manager.NewIntro(node, lazy, nil)
	if err := in.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.State() != Armed {
		t.Errorf("expected armed, got %s", in.State())
	}
	if len(rec.ts) != 0 {
		t.Errorf("expected no tick before the microtask, got %v", rec.ts)
	}

	h.loop.RunMicrotasks()
	if in.State() != Running {
		t.Errorf("expected running, got %s", in.State())
	}
	h.settle()
	if rec.last() != 1 {
		t.Errorf("expected final tick at 1, got %v", rec.last())
	}
}

func TestLazyConfigErrorsPropagate(t *testing.T) {
	h := newHarness()
	boom := errors.New("measure failed")
	var lazy LazyFactory = func(Node, any, Options) func(Options) (Config, error) {
		return func(Options) (Config, error) { return Config{}, boom }
	}

	in := h.manager.NewIntro(&testNode{}, lazy, nil)
	err := in.Start()
	if !errors.Is(err, boom) || !errors.Is(err, ErrConfig) {
		t.Fatalf("expected wrapped config error, got %v", err)
	}
	var ee *perrors.EngineError
	if !errors.As(err, &ee) || ee.Code != "E103" {
		t.Errorf("expected E103, got %v", err)
	}

	g := h.manager.GroupOutros()
	if _, err := h.manager.NewOutro(&testNode{}, lazy, nil); !errors.Is(err, boom) {
		t.Errorf("expected outro error, got %v", err)
	}
	if g.Pending() != 0 {
		t.Errorf("expected failed outro not to join the group, got %d", g.Pending())
	}
	h.manager.CheckOutros()

	bt := h.manager.NewBidirectional(&testNode{}, lazy, nil, true)
	if err := bt.Run(true); !errors.Is(err, boom) {
		t.Errorf("expected bidirectional error, got %v", err)
	}
}

func TestOutroGroupBarrier(t *testing.T) {
	h := newHarness()
	slowRec, fastRec := &tickRecorder{}, &tickRecorder{}
	slow, fast := &testNode{}, &testNode{}

	g := h.manager.GroupOutros()
	fired := 0
	g.OnDone(func() { fired++ })
	if _, err := h.manager.NewOutro(slow, fade(slowRec, 300*time.Millisecond), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := h.manager.NewOutro(fast, fade(fastRec, 50*time.Millisecond), nil); err != nil {
		t.Fatal(err)
	}
	h.manager.CheckOutros()

	if g.Pending() != 2 {
		t.Errorf("expected 2 pending outros, got %d", g.Pending())
	}
	if h.manager.Current() != nil {
		t.Error("expected group to be closed")
	}

	for i := 0; i < 6; i++ {
		h.frame(time.Second / 60)
	}
	if fastRec.last() != 0 {
		t.Errorf("expected fast outro to finish at 0, got %v", fastRec.last())
	}
	if fired != 0 {
		t.Errorf("expected callbacks to wait for the slow outro, got %d", fired)
	}

	h.settle()
	if fired != 1 {
		t.Errorf("expected callbacks to run once, got %d", fired)
	}
	if !reflect.DeepEqual(slow.events, []EventKind{OutroStart, OutroEnd}) {
		t.Errorf("expected [outrostart outroend], got %v", slow.events)
	}
	if !slow.inert {
		t.Error("expected leaving node to be inert")
	}
}

func TestCheckOutrosWithoutOutrosRunsCallbacks(t *testing.T) {
	h := newHarness()
	outer := h.manager.GroupOutros()
	inner := h.manager.GroupOutros()

	ran := false
	inner.OnDone(func() { ran = true })
	h.manager.CheckOutros()

	if !ran {
		t.Error("expected callbacks of an empty group to run at check")
	}
	if h.manager.Current() != outer {
		t.Error("expected the outer group to become current again")
	}
	h.manager.CheckOutros()
	if h.manager.Current() != nil {
		t.Error("expected no open group")
	}
}

func TestOutroEndKeepsGroupOpen(t *testing.T) {
	h := newHarness()
	node := &testNode{}
	rec := &tickRecorder{}

	g := h.manager.GroupOutros()
	fired := false
	g.OnDone(func() { fired = true })
	o, _ := h.manager.NewOutro(node, fade(rec, 100*time.Millisecond), nil)
	h.manager.CheckOutros()

	h.frame(time.Second / 60)
	o.End(true)
	h.settle()

	if fired {
		t.Error("expected an ended outro never to release its group")
	}
	if node.inert {
		t.Error("expected reset to restore inert")
	}
	if rec.last() != 1 {
		t.Errorf("expected reset tick at 1, got %v", rec.last())
	}
}

func TestBidirectionalRunsInAndOut(t *testing.T) {
	h := newHarness()
	node := &testNode{}
	rec := &tickRecorder{}
	bt := h.manager.NewBidirectional(node, fade(rec, 100*time.Millisecond), nil, true)

	if err := bt.Run(true); err != nil {
		t.Fatal(err)
	}
	h.settle()
	if bt.Progress() != 1 {
		t.Errorf("expected progress 1, got %v", bt.Progress())
	}

	g := h.manager.GroupOutros()
	fired := false
	g.OnDone(func() { fired = true })
	_ = bt.Run(false)
	h.manager.CheckOutros()
	h.settle()

	if bt.Progress() != 0 {
		t.Errorf("expected progress 0, got %v", bt.Progress())
	}
	if !fired {
		t.Error("expected out run to release its group")
	}
	want := []EventKind{IntroStart, IntroEnd, OutroStart, OutroEnd}
	if !reflect.DeepEqual(node.events, want) {
		t.Errorf("expected %v, got %v", want, node.events)
	}
}

func TestBidirectionalReversal(t *testing.T) {
	h := newHarness()
	node := &testNode{}
	rec := &tickRecorder{}
	bt := h.manager.NewBidirectional(node, fade(rec, 200*time.Millisecond), nil, true)

	_ = bt.Run(true)
	for i := 0; i < 6; i++ {
		h.frame(time.Second / 60)
	}
	mid := bt.Progress()
	if mid <= 0 || mid >= 1 {
		t.Fatalf("expected partial progress, got %v", mid)
	}

	g := h.manager.GroupOutros()
	fired := false
	g.OnDone(func() { fired = true })
	_ = bt.Run(false)
	h.manager.CheckOutros()

	frames := h.settle()
	if bt.Progress() != 0 {
		t.Errorf("expected progress 0, got %v", bt.Progress())
	}
	if !fired {
		t.Error("expected the out program to release its group")
	}
	for _, ev := range node.events {
		if ev == IntroEnd {
			t.Error("expected the interrupted intro never to end")
		}
	}
	if frames > 15 {
		t.Errorf("expected reversal to take only the remaining distance, took %d frames", frames)
	}
	if bt.Active() {
		t.Error("expected no running program")
	}
}

func TestTransitionOutDestroysAfterGroup(t *testing.T) {
	h := newHarness()
	unit := newFadeUnit(h.manager, 100*time.Millisecond)

	h.manager.GroupOutros()
	done := false
	h.manager.TransitionOut(unit, true, true, func() { done = true })
	h.manager.TransitionOut(unit, true, true, func() { t.Error("expected second outro to be ignored") })
	h.manager.CheckOutros()

	if !h.manager.Outroing(unit) {
		t.Error("expected unit to be outroing")
	}
	h.settle()

	if !done || unit.destroyed != 1 {
		t.Errorf("expected unit destroyed once and callback run, got %d/%v", unit.destroyed, done)
	}
	if h.manager.Outroing(unit) {
		t.Error("expected unit to leave the outroing set")
	}
}

func TestTransitionInCancelsOutro(t *testing.T) {
	h := newHarness()
	unit := newFadeUnit(h.manager, 100*time.Millisecond)

	h.manager.GroupOutros()
	h.manager.TransitionOut(unit, true, true, func() {})
	h.manager.CheckOutros()
	h.frame(time.Second / 60)

	h.manager.TransitionIn(unit, true)
	if h.manager.Outroing(unit) {
		t.Error("expected TransitionIn to clear outroing")
	}
	h.settle()

	if unit.destroyed != 0 {
		t.Errorf("expected re-entered unit to survive, got %d destroys", unit.destroyed)
	}
}

func TestTransitionOutWithoutGroup(t *testing.T) {
	h := newHarness()
	unit := newFadeUnit(h.manager, 50*time.Millisecond)

	done := false
	h.manager.TransitionOut(unit, true, true, func() { done = true })
	if h.manager.Current() != nil {
		t.Error("expected implicit group to be closed")
	}
	h.settle()
	if !done {
		t.Error("expected callback to run")
	}
}

func TestNullTransitionEndsNextFrame(t *testing.T) {
	h := newHarness()
	node := &testNode{}
	in := h.manager.NewIntro(node, nil, nil)

	_ = in.Start()
	if n := h.settle(); n != 1 {
		t.Errorf("expected 1 frame, got %d", n)
	}
	if !reflect.DeepEqual(node.events, []EventKind{IntroStart, IntroEnd}) {
		t.Errorf("expected [introstart introend], got %v", node.events)
	}
}

type fadeUnit struct {
	m         *Manager
	node      *testNode
	rec       *tickRecorder
	duration  time.Duration
	intro     *Intro
	outro     *Outro
	destroyed int
}

func newFadeUnit(m *Manager, d time.Duration) *fadeUnit {
	return &fadeUnit{m: m, node: &testNode{}, rec: &tickRecorder{}, duration: d}
}

func (u *fadeUnit) Create()                            {}
func (u *fadeUnit) Mount(render.Target, render.Anchor) {}
func (u *fadeUnit) Patch(any, bitset.Set)              {}
func (u *fadeUnit) First() render.Anchor               { return nil }
func (u *fadeUnit) Destroy(bool)                       { u.destroyed++ }

func (u *fadeUnit) Enter(bool) {
	if u.outro != nil {
		u.outro.End(true)
		u.outro = nil
	}
	if u.intro == nil {
		u.intro = u.m.NewIntro(u.node, fade(u.rec, u.duration), nil)
	}
	_ = u.intro.Start()
}

func (u *fadeUnit) Exit(bool) {
	if u.intro != nil {
		u.intro.Invalidate()
	}
	u.outro, _ = u.m.NewOutro(u.node, fade(u.rec, u.duration), nil)
}
