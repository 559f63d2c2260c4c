package scheduler

import (
	"maps"
	"sync/atomic"

	perrors "github.com/vango-dev/pulse/internal/errors"
	"github.com/vango-dev/pulse/pkg/bitset"
	"github.com/vango-dev/pulse/pkg/render"
)

var componentID atomic.Uint64

// ComponentOptions configures a new component.
type ComponentOptions struct {
	// Name is used in logs and by the inspector.
	Name string

	// Parent is the enclosing component. The new component starts with a
	// copy of the parent's context.
	Parent *Component

	// Unit is the component's render unit. It is patched with the dirty
	// bitset on every update.
	Unit render.Unit

	// Update runs first on every update and at first mount, before the
	// before-update hooks.
	// It is where derived component state is recomputed.
	Update func()

	// Ctx is passed to Unit.Patch.
	Ctx any

	// Context, when non-nil, replaces the context inherited from Parent.
	Context map[any]any
}

// Component is a unit of rendering with its own dirty bitset and
// lifecycle hooks.
//
// Hook lists are append-only and run in registration order. A component is
// destroyed at most once; destroying it runs the on-destroy hooks and drops
// its render unit.
type Component struct {
	id       uint64
	name     string
	sched    *Scheduler
	parent   *Component
	unit     render.Unit
	updateFn func()
	ctx      any

	// dirty holds the slots changed since the last update.
	dirty bitset.Set

	// queued is true while the component sits in the scheduler's dirty
	// queue.
	queued bool

	beforeUpdate []func()
	afterUpdate  []*Callback
	onMount      []func() func()
	onDestroy    []func()

	context map[any]any

	// flushSeq and flushUpdates count updates within one flush for the
	// pass budget.
	flushSeq     uint64
	flushUpdates int

	created   bool
	mounted   bool
	destroyed bool
}

// NewComponent creates a component scheduled by s.
func (s *Scheduler) NewComponent(opts ComponentOptions) *Component {
	c := &Component{
		id:       componentID.Add(1),
		name:     opts.Name,
		sched:    s,
		parent:   opts.Parent,
		unit:     opts.Unit,
		updateFn: opts.Update,
		ctx:      opts.Ctx,
	}
	switch {
	case opts.Context != nil:
		c.context = maps.Clone(opts.Context)
	case opts.Parent != nil:
		c.context = maps.Clone(opts.Parent.context)
	default:
		c.context = make(map[any]any)
	}
	if c.name == "" {
		c.name = "component"
	}
	return c
}

// ID returns the component's unique identifier.
func (c *Component) ID() uint64 {
	return c.id
}

// Name returns the component's name.
func (c *Component) Name() string {
	return c.name
}

// Parent returns the enclosing component, or nil for a root.
func (c *Component) Parent() *Component {
	return c.parent
}

// Unit returns the render unit, or nil after Destroy.
func (c *Component) Unit() render.Unit {
	return c.unit
}

// Ctx returns the value passed to Unit.Patch.
func (c *Component) Ctx() any {
	return c.ctx
}

// Mounted reports whether Mount has run.
func (c *Component) Mounted() bool {
	return c.mounted
}

// Destroyed reports whether Destroy has run.
func (c *Component) Destroyed() bool {
	return c.destroyed
}

// Dirty returns a copy of the slots changed since the last update.
func (c *Component) Dirty() bitset.Set {
	if !c.queued {
		return bitset.Set{}
	}
	return c.dirty.Clone()
}

// MarkDirty marks slot as changed and arms a flush. It is a no-op after
// Destroy.
func (c *Component) MarkDirty(slot int) {
	c.sched.MarkDirty(c, slot)
}

// BeforeUpdate registers fn to run before every update and once before the
// first render.
func (c *Component) BeforeUpdate(fn func()) {
	c.beforeUpdate = append(c.beforeUpdate, fn)
}

// AfterUpdate registers fn to run as a render callback after every update
// and after mounting.
func (c *Component) AfterUpdate(fn func()) {
	c.afterUpdate = append(c.afterUpdate, NewCallback(fn))
}

// OnMount registers fn to run after the component is first rendered. A
// non-nil function returned by fn runs on destroy.
func (c *Component) OnMount(fn func() func()) {
	c.onMount = append(c.onMount, fn)
}

// OnDestroy registers fn to run when the component is destroyed.
func (c *Component) OnDestroy(fn func()) {
	if c.destroyed {
		fn()
		return
	}
	c.onDestroy = append(c.onDestroy, fn)
}

// SetContext stores val under key in this component's context. Children
// created afterwards see it; the parent never does.
func (c *Component) SetContext(key, val any) {
	c.context[key] = val
}

// Context returns the value stored under key, or nil.
func (c *Component) Context(key any) any {
	return c.context[key]
}

// HasContext reports whether key is present in the context.
func (c *Component) HasContext(key any) bool {
	_, ok := c.context[key]
	return ok
}

// AllContexts returns a copy of the whole context map.
func (c *Component) AllContexts() map[any]any {
	return maps.Clone(c.context)
}

// ContextValue returns the context value under key as a T.
func ContextValue[T any](c *Component, key any) (T, bool) {
	v, ok := c.context[key].(T)
	return v, ok
}

// Mount creates the render unit if needed, mounts it at anchor inside
// target and flushes. On-mount and after-update hooks run as render
// callbacks of that flush, or of the enclosing flush when Mount is called
// during one.
func (c *Component) Mount(target render.Target, anchor render.Anchor) error {
	if c.destroyed {
		return perrors.New("E203").
			WithDetailf("component %q (%d)", c.name, c.id).
			Wrap(ErrDestroyed)
	}

	if !c.created {
		if c.updateFn != nil {
			c.updateFn()
		}
		for _, fn := range c.beforeUpdate {
			fn()
		}
		if c.unit != nil {
			c.unit.Create()
		}
		c.created = true
	}
	if c.unit != nil {
		c.unit.Mount(target, anchor)
	}
	c.mounted = true

	c.sched.AddRenderFunc(c.runMountHooks)
	for _, cb := range c.afterUpdate {
		c.sched.AddRenderCallback(cb)
	}
	return c.sched.Flush()
}

func (c *Component) runMountHooks() {
	hooks := c.onMount
	c.onMount = nil
	for _, fn := range hooks {
		cleanup := fn()
		if cleanup == nil {
			continue
		}
		if c.destroyed {
			cleanup()
			continue
		}
		c.onDestroy = append(c.onDestroy, cleanup)
	}
}

// Destroy runs pending after-update hooks, the on-destroy hooks and
// destroys the render unit, detaching it from the target when detach is
// true. Calling Destroy again is a no-op.
func (c *Component) Destroy(detach bool) {
	if c.destroyed {
		return
	}
	c.destroyed = true

	c.sched.runQueuedCallbacks(c.afterUpdate)
	hooks := c.onDestroy
	c.onDestroy = nil
	for _, fn := range hooks {
		fn()
	}
	if c.unit != nil {
		c.unit.Destroy(detach)
	}
	c.unit = nil
	c.ctx = nil
	c.queued = false
	c.dirty.Reset()
}

// update runs one component update: the update function, the
// before-update hooks, then a patch with the dirty slots collected so far.
func (c *Component) update() {
	if c.destroyed {
		return
	}
	if c.updateFn != nil {
		c.updateFn()
	}
	for _, fn := range c.beforeUpdate {
		fn()
	}

	dirty := c.dirty.Clone()
	c.dirty.Reset()
	c.queued = false

	if c.unit != nil {
		c.unit.Patch(c.ctx, dirty)
	}
	for _, cb := range c.afterUpdate {
		c.sched.AddRenderCallback(cb)
	}
}
