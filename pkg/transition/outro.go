package transition

import (
	"time"
)

// Outro animates a node leaving. It holds a reference on the outro group
// that was current when it was created and releases it when the animation
// completes. An outro stopped with End never releases its group, so the
// group's callbacks (usually destroying the block) do not run.
type Outro struct {
	m      *Manager
	node   Node
	config *Config
	group  *Group

	running   bool
	animation string
	inert     bool
}

// NewOutro creates and starts an outro for node in the current group. A
// lazy configuration is evaluated immediately and its error returned; in
// that case nothing is registered. The animation of a lazy outro begins in
// a microtask.
func (m *Manager) NewOutro(node Node, src Source, params any) (*Outro, error) {
	cfg, lazy := m.configure(node, src, params, Options{Direction: Out})
	if lazy != nil {
		resolved, err := m.resolveLazy(lazy, Out)
		if err != nil {
			return nil, err
		}
		cfg = resolved
	}

	o := &Outro{
		m:       m,
		node:    node,
		config:  cfg,
		group:   m.currentGroup(),
		running: true,
	}
	o.group.retain()

	if lazy != nil {
		m.sched.QueueMicrotask(o.run)
	} else {
		o.run()
	}
	return o, nil
}

// Running reports whether the outro is still animating.
func (o *Outro) Running() bool {
	return o.running
}

// End stops the outro. With reset the node is returned to its entered
// state.
func (o *Outro) End(reset bool) {
	if reset {
		if in, ok := o.node.(Inerter); ok {
			in.SetInert(o.inert)
		}
		if o.config != nil && o.config.Tick != nil {
			o.config.Tick(1, 0)
		}
	}
	if !o.running {
		return
	}
	if o.animation != "" {
		o.m.styles.DeleteRule(o.node, o.animation)
		o.animation = ""
	}
	o.running = false
}

func (o *Outro) run() {
	if !o.running {
		return
	}
	tm := o.m.timing(o.config)
	if tm.css != nil {
		o.animation = o.m.styles.CreateRule(o.node, 1, 0, tm.duration, tm.delay, tm.easing, tm.css, 0)
	}

	start := o.m.frames.Now().Add(tm.delay)
	end := start.Add(tm.duration)

	o.m.dispatchOnRender(o.node, OutroStart)
	if in, ok := o.node.(Inerter); ok {
		o.inert = in.Inert()
		in.SetInert(true)
	}

	o.m.frames.Loop(func(now time.Time) bool {
		if !o.running {
			return false
		}
		if !now.Before(end) {
			tm.tick(0, 1)
			o.m.dispatch(o.node, OutroEnd)
			o.running = false
			o.group.release()
			return false
		}
		if !now.Before(start) {
			t := tm.easing(tm.progress(now, start))
			tm.tick(1-t, t)
		}
		return true
	})
}
