package transition

import (
	"math"
	"time"

	"github.com/vango-dev/pulse/pkg/frame"
)

// program is one direction of a bidirectional run.
type program struct {
	start time.Time
	b     float64
	group *Group

	// Set once the program starts running.
	a        float64
	d        float64
	duration time.Duration
	end      time.Time
}

// Bidirectional animates a node that can reverse mid-flight. Progress t
// moves between 0 (out) and 1 (in); a reversal runs only the remaining
// distance, so its duration is scaled by |target - t|.
type Bidirectional struct {
	m      *Manager
	node   Node
	config *Config
	lazy   func(Options) (Config, error)

	t         float64
	running   *program
	pending   *program
	animation string
	inert     bool
	inertSet  bool
	task      *frame.Task
}

// NewBidirectional creates a bidirectional transition. intro says whether
// the node starts out (t = 0) and will first run in.
func (m *Manager) NewBidirectional(node Node, src Source, params any, intro bool) *Bidirectional {
	cfg, lazy := m.configure(node, src, params, Options{Direction: Both})
	bt := &Bidirectional{
		m:      m,
		node:   node,
		config: cfg,
		lazy:   lazy,
		t:      1,
	}
	if intro {
		bt.t = 0
	}
	return bt
}

// Progress returns the current position between 0 and 1.
func (bt *Bidirectional) Progress() float64 {
	return bt.t
}

// Active reports whether a program is running or pending.
func (bt *Bidirectional) Active() bool {
	return bt.running != nil || bt.pending != nil
}

// Run starts moving in (b true) or out (b false). An out run holds the
// current outro group until it completes. If a program is already
// running, the new one waits and takes over once its start time passes.
// A lazy configuration is evaluated on the first Run; its error is
// returned and nothing starts.
func (bt *Bidirectional) Run(b bool) error {
	if bt.lazy != nil {
		dir := Out
		if b {
			dir = In
		}
		cfg, err := bt.m.resolveLazy(bt.lazy, dir)
		if err != nil {
			return err
		}
		bt.config = cfg
		bt.lazy = nil
		bt.m.sched.QueueMicrotask(func() { bt.run(b) })
		return nil
	}
	bt.run(b)
	return nil
}

// End drops both programs and removes the generated animation.
func (bt *Bidirectional) End() {
	bt.clearAnimation()
	bt.running = nil
	bt.pending = nil
}

func (bt *Bidirectional) clearAnimation() {
	if bt.animation != "" {
		bt.m.styles.DeleteRule(bt.node, bt.animation)
		bt.animation = ""
	}
}

func (bt *Bidirectional) init(p *program, duration time.Duration) *program {
	d := p.b - bt.t
	p.a = bt.t
	p.d = d
	p.duration = time.Duration(float64(duration) * math.Abs(d))
	p.end = p.start.Add(p.duration)
	return p
}

func (bt *Bidirectional) run(b bool) {
	tm := bt.m.timing(bt.config)
	target := 0.0
	if b {
		target = 1
	}
	p := &program{start: bt.m.frames.Now().Add(tm.delay), b: target}
	if !b {
		p.group = bt.m.currentGroup()
		p.group.retain()
	}

	if in, ok := bt.node.(Inerter); ok {
		if b {
			if bt.inertSet {
				in.SetInert(bt.inert)
			}
		} else {
			bt.inert = in.Inert()
			bt.inertSet = true
			in.SetInert(true)
		}
	}

	if bt.running != nil || bt.pending != nil {
		bt.pending = p
		return
	}

	if tm.css != nil {
		bt.clearAnimation()
		bt.animation = bt.m.styles.CreateRule(bt.node, bt.t, target, tm.duration, tm.delay, tm.easing, tm.css, 0)
	}
	if b {
		tm.tick(0, 1)
	}
	bt.running = bt.init(p, tm.duration)
	bt.m.dispatchOnRender(bt.node, eventKind(b, false))

	if bt.task != nil {
		bt.task.Abort()
	}
	bt.task = bt.m.frames.Loop(func(now time.Time) bool {
		if bt.pending != nil && now.After(bt.pending.start) {
			bt.running = bt.init(bt.pending, tm.duration)
			bt.pending = nil
			bt.m.dispatch(bt.node, eventKind(bt.running.b == 1, false))
			if tm.css != nil {
				bt.clearAnimation()
				bt.animation = bt.m.styles.CreateRule(bt.node, bt.t, bt.running.b, bt.running.duration, 0, tm.easing, tm.css, 0)
			}
		}

		if r := bt.running; r != nil {
			switch {
			case !now.Before(r.end):
				bt.t = r.b
				tm.tick(bt.t, 1-bt.t)
				bt.m.dispatch(bt.node, eventKind(r.b == 1, true))
				if bt.pending == nil {
					if r.b == 1 {
						bt.clearAnimation()
					} else {
						r.group.release()
					}
				}
				bt.running = nil
			case !now.Before(r.start):
				var eased float64
				if r.duration > 0 {
					eased = tm.easing(float64(now.Sub(r.start)) / float64(r.duration))
				} else {
					eased = 1
				}
				bt.t = r.a + r.d*eased
				tm.tick(bt.t, 1-bt.t)
			}
		}
		return bt.running != nil || bt.pending != nil
	})
}
