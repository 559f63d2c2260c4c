package transition

import (
	"errors"
	"log/slog"
	"time"

	perrors "github.com/vango-dev/pulse/internal/errors"
	"github.com/vango-dev/pulse/pkg/frame"
	"github.com/vango-dev/pulse/pkg/render"
	"github.com/vango-dev/pulse/pkg/scheduler"
)

// DefaultDuration is used when neither the Config nor the Manager set a
// duration.
const DefaultDuration = 300 * time.Millisecond

// Observer is notified of every lifecycle event the manager dispatches.
type Observer interface {
	TransitionEvent(kind EventKind)
}

// Group is an outro barrier. Every outro created while the group is
// current increments its pending count; the group's callbacks run once
// when the count returns to zero.
type Group struct {
	pending   int
	callbacks []func()
	parent    *Group
	fired     bool
}

// Pending returns the number of outros still running in the group.
func (g *Group) Pending() int {
	return g.pending
}

// Fired reports whether the group's callbacks have run.
func (g *Group) Fired() bool {
	return g.fired
}

// OnDone adds fn to the callbacks run when the group completes.
func (g *Group) OnDone(fn func()) {
	g.callbacks = append(g.callbacks, fn)
}

func (g *Group) retain() {
	g.pending++
}

func (g *Group) release() {
	g.pending--
	if g.pending == 0 {
		g.fire()
	}
}

func (g *Group) fire() {
	if g.fired {
		return
	}
	g.fired = true
	callbacks := g.callbacks
	g.callbacks = nil
	for _, fn := range callbacks {
		fn()
	}
}

// Manager owns the outro groups and style rules of one runtime.
type Manager struct {
	frames   *frame.Registry
	sched    *scheduler.Scheduler
	styles   *StyleManager
	logger   *slog.Logger
	observer Observer

	defaultDuration time.Duration

	outros   *Group
	outroing map[render.Unit]struct{}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithDefaultDuration sets the duration used by configs that leave it zero.
func WithDefaultDuration(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.defaultDuration = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithObserver installs an event observer.
func WithObserver(o Observer) ManagerOption {
	return func(m *Manager) {
		m.observer = o
	}
}

// NewManager creates a manager animating on frames and queueing start
// events on sched.
func NewManager(frames *frame.Registry, sched *scheduler.Scheduler, opts ...ManagerOption) *Manager {
	m := &Manager{
		frames:          frames,
		sched:           sched,
		styles:          NewStyleManager(frames),
		logger:          slog.Default(),
		defaultDuration: DefaultDuration,
		outroing:        make(map[render.Unit]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "transition")
	return m
}

// Styles returns the manager's style manager.
func (m *Manager) Styles() *StyleManager {
	return m.styles
}

// Current returns the open outro group, or nil.
func (m *Manager) Current() *Group {
	return m.outros
}

// GroupOutros opens a new outro group nested in the current one.
func (m *Manager) GroupOutros() *Group {
	m.outros = &Group{parent: m.outros}
	return m.outros
}

// CheckOutros closes the current group. If none of its outros are pending
// its callbacks run now; otherwise the last outro to finish runs them.
func (m *Manager) CheckOutros() {
	g := m.outros
	if g == nil {
		return
	}
	if g.pending == 0 {
		g.fire()
	}
	m.outros = g.parent
}

// Outroing reports whether unit is leaving.
func (m *Manager) Outroing(unit render.Unit) bool {
	_, ok := m.outroing[unit]
	return ok
}

// TransitionIn cancels a pending outro of unit and starts its intro.
// Units are used as map keys and must be comparable.
func (m *Manager) TransitionIn(unit render.Unit, local bool) {
	if unit == nil {
		return
	}
	delete(m.outroing, unit)
	unit.Enter(local)
}

// TransitionOut starts the outro of unit within the current group. When
// the group completes, unit is destroyed if detach is set and done is
// called. A unit already leaving is ignored. Without an open group the
// call gets a group of its own.
func (m *Manager) TransitionOut(unit render.Unit, local, detach bool, done func()) {
	if unit == nil {
		if done != nil {
			done()
		}
		return
	}
	if _, ok := m.outroing[unit]; ok {
		return
	}

	implicit := m.outros == nil
	if implicit {
		m.GroupOutros()
	}

	m.outroing[unit] = struct{}{}
	m.outros.OnDone(func() {
		delete(m.outroing, unit)
		if done != nil {
			if detach {
				unit.Destroy(true)
			}
			done()
		}
	})
	unit.Exit(local)

	if implicit {
		m.CheckOutros()
	}
}

// currentGroup returns the open group, or a detached one when none is
// open.
func (m *Manager) currentGroup() *Group {
	if m.outros == nil {
		return &Group{}
	}
	return m.outros
}

// timing applies defaults to cfg.
func (m *Manager) timing(cfg *Config) timing {
	if cfg == nil {
		return timing{easing: Linear, tick: func(float64, float64) {}}
	}
	tm := timing{
		delay:    cfg.Delay,
		duration: cfg.Duration,
		easing:   cfg.Easing,
		css:      cfg.CSS,
		tick:     cfg.Tick,
	}
	if tm.duration == 0 {
		tm.duration = m.defaultDuration
	}
	if tm.easing == nil {
		tm.easing = Linear
	}
	if tm.tick == nil {
		tm.tick = func(float64, float64) {}
	}
	return tm
}

// configure runs src. A nil src yields a nil config, the zero-length
// null transition.
func (m *Manager) configure(node Node, src Source, params any, opts Options) (*Config, func(Options) (Config, error)) {
	if src == nil {
		return nil, nil
	}
	cfg, lazy := src.configure(node, params, opts)
	if lazy != nil {
		return nil, lazy
	}
	return &cfg, nil
}

// resolveLazy evaluates a lazy configuration.
func (m *Manager) resolveLazy(lazy func(Options) (Config, error), dir Direction) (*Config, error) {
	cfg, err := lazy(Options{Direction: dir})
	if err != nil {
		m.logger.Debug("lazy transition config failed", "direction", dir.String(), "error", err)
		return nil, perrors.New("E103").
			WithDetailf("direction %s", dir).
			Wrap(errors.Join(ErrConfig, err))
	}
	return &cfg, nil
}

// dispatch delivers a lifecycle event to node and the observer.
func (m *Manager) dispatch(node Node, kind EventKind) {
	node.Dispatch(Event{Kind: kind})
	if m.observer != nil {
		m.observer.TransitionEvent(kind)
	}
}

// dispatchOnRender queues a lifecycle event as a render callback.
func (m *Manager) dispatchOnRender(node Node, kind EventKind) {
	m.sched.AddRenderFunc(func() {
		m.dispatch(node, kind)
	})
}
