package transition

import (
	"time"

	"github.com/vango-dev/pulse/pkg/frame"
)

// Intro animates a node entering. Start arms it once; Invalidate allows a
// later Start to run it again.
type Intro struct {
	m      *Manager
	node   Node
	config *Config
	lazy   func(Options) (Config, error)

	state     State
	started   bool
	running   bool
	animation string
	task      *frame.Task
	tick      func(t, u float64)
	uid       int
}

// NewIntro creates an intro for node. A nil src makes a zero-length
// transition that only dispatches events.
func (m *Manager) NewIntro(node Node, src Source, params any) *Intro {
	cfg, lazy := m.configure(node, src, params, Options{Direction: In})
	return &Intro{
		m:      m,
		node:   node,
		config: cfg,
		lazy:   lazy,
	}
}

// State returns the intro's lifecycle state.
func (in *Intro) State() State {
	return in.state
}

// Start arms the intro. Calling it again before Invalidate is a no-op. A
// lazy configuration is evaluated now, and any error it returns is
// returned here; the animation itself then begins in a microtask.
func (in *Intro) Start() error {
	if in.started {
		return nil
	}
	in.started = true
	in.m.styles.DeleteRule(in.node, "")

	if in.lazy != nil {
		cfg, err := in.m.resolveLazy(in.lazy, In)
		if err != nil {
			in.started = false
			return err
		}
		in.config = cfg
		in.lazy = nil
		in.state = Armed
		in.m.sched.QueueMicrotask(in.run)
		return nil
	}

	in.run()
	return nil
}

// Invalidate lets the next Start run the intro again.
func (in *Intro) Invalidate() {
	in.started = false
}

// End completes a running intro at once: the final frame is applied, its
// style rule removed and its frame task stopped. The end event is not
// dispatched. It is idempotent.
func (in *Intro) End() {
	if !in.running {
		return
	}
	if in.tick != nil {
		in.tick(1, 0)
	}
	in.cleanup()
	in.running = false
	in.state = Done
}

func (in *Intro) cleanup() {
	if in.animation != "" {
		in.m.styles.DeleteRule(in.node, in.animation)
		in.animation = ""
	}
}

func (in *Intro) run() {
	tm := in.m.timing(in.config)
	if tm.css != nil {
		in.animation = in.m.styles.CreateRule(in.node, 0, 1, tm.duration, tm.delay, tm.easing, tm.css, in.uid)
		in.uid++
	}
	tm.tick(0, 1)

	start := in.m.frames.Now().Add(tm.delay)
	end := start.Add(tm.duration)

	if in.task != nil {
		in.task.Abort()
	}
	in.tick = tm.tick
	in.running = true
	in.state = Running
	in.m.dispatchOnRender(in.node, IntroStart)

	in.task = in.m.frames.Loop(func(now time.Time) bool {
		if !in.running {
			return false
		}
		if !now.Before(end) {
			tm.tick(1, 0)
			in.m.dispatch(in.node, IntroEnd)
			in.cleanup()
			in.running = false
			in.state = Done
			return false
		}
		if !now.Before(start) {
			t := tm.easing(tm.progress(now, start))
			tm.tick(t, 1-t)
		}
		return true
	})
}
