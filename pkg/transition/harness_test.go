package transition

import (
	"time"

	"github.com/vango-dev/pulse/pkg/frame"
	"github.com/vango-dev/pulse/pkg/host"
	"github.com/vango-dev/pulse/pkg/scheduler"
)

type harness struct {
	clock    *frame.ManualClock
	loop     *host.Loop
	registry *frame.Registry
	sched    *scheduler.Scheduler
	manager  *Manager
}

func newHarness(opts ...frame.Option) *harness {
	clock := frame.NewManualClock(time.Unix(1_700_000_000, 0))
	loop := host.New(host.WithClock(clock))
	registry := frame.NewRegistry(loop, append([]frame.Option{frame.WithClock(clock)}, opts...)...)
	sched := scheduler.New(loop)
	return &harness{
		clock:    clock,
		loop:     loop,
		registry: registry,
		sched:    sched,
		manager:  NewManager(registry, sched),
	}
}

// frame ends the current turn, advances the clock by d and delivers one
// frame.
func (h *harness) frame(d time.Duration) {
	h.loop.RunMicrotasks()
	h.loop.StepFrame(h.clock.Advance(d))
}

// settle delivers 60fps frames until the registry goes idle.
func (h *harness) settle() int {
	n := 0
	for h.loop.PendingFrames() > 0 && n < 10_000 {
		h.frame(time.Second / 60)
		n++
	}
	return n
}

type testNode struct {
	events []EventKind
	inert  bool
}

func (n *testNode) Dispatch(ev Event) {
	n.events = append(n.events, ev.Kind)
}

func (n *testNode) Inert() bool {
	return n.inert
}

func (n *testNode) SetInert(inert bool) {
	n.inert = inert
}

type testSheet struct {
	rules  []string
	clears int
}

func (s *testSheet) InsertRule(rule string) {
	s.rules = append(s.rules, rule)
}

func (s *testSheet) Clear() {
	s.rules = nil
	s.clears++
}

type styledNode struct {
	testNode
	animation string
	sheet     *testSheet
}

func (n *styledNode) Animation() string {
	return n.animation
}

func (n *styledNode) SetAnimation(value string) {
	n.animation = value
}

func (n *styledNode) Sheet() Sheet {
	return n.sheet
}

type tickRecorder struct {
	ts []float64
}

func (r *tickRecorder) tick(t, _ float64) {
	r.ts = append(r.ts, t)
}

func (r *tickRecorder) last() float64 {
	if len(r.ts) == 0 {
		return -1
	}
	return r.ts[len(r.ts)-1]
}

func fade(rec *tickRecorder, d time.Duration) Factory {
	return func(Node, any, Options) Config {
		return Config{Duration: d, Tick: rec.tick}
	}
}
