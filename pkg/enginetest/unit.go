package enginetest

import (
	"fmt"

	"github.com/vango-dev/pulse/pkg/bitset"
	"github.com/vango-dev/pulse/pkg/render"
	"github.com/vango-dev/pulse/pkg/transition"
)

// Unit is a render.Unit owning a single Node.
type Unit struct {
	host  *Host
	node  *Node
	label string

	manager *transition.Manager
	introFn transition.Source
	outroFn transition.Source
	intro   *transition.Intro
	outro   *transition.Outro

	created   bool
	destroyed bool
	ctx       any
	patches   []bitset.Set
}

// UnitOption configures a Unit.
type UnitOption func(*Unit)

// WithIntro makes the unit run src when it enters.
func WithIntro(m *transition.Manager, src transition.Source) UnitOption {
	return func(u *Unit) {
		u.manager = m
		u.introFn = src
	}
}

// WithOutro makes the unit run src when it exits.
func WithOutro(m *transition.Manager, src transition.Source) UnitOption {
	return func(u *Unit) {
		u.manager = m
		u.outroFn = src
	}
}

// NewUnit creates a unit labelled label.
func (h *Host) NewUnit(label string, opts ...UnitOption) *Unit {
	u := &Unit{host: h, label: label}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Label returns the unit's label.
func (u *Unit) Label() string {
	return u.label
}

// Node returns the unit's node, or nil before Create.
func (u *Unit) Node() *Node {
	return u.node
}

// Ctx returns the context of the last patch.
func (u *Unit) Ctx() any {
	return u.ctx
}

// Patches returns the dirty sets of every patch so far.
func (u *Unit) Patches() []bitset.Set {
	return append([]bitset.Set(nil), u.patches...)
}

// Destroyed reports whether Destroy has run.
func (u *Unit) Destroyed() bool {
	return u.destroyed
}

// Create implements render.Unit.
func (u *Unit) Create() {
	u.node = NewNode(u.label)
	u.created = true
	u.host.record(OpCreate, u.label)
}

// Mount implements render.Unit. target must be a *Container and anchor a
// *Node or nil.
func (u *Unit) Mount(target render.Target, anchor render.Anchor) {
	if !u.created {
		panic(fmt.Sprintf("enginetest: unit %q mounted before create", u.label))
	}
	c, ok := target.(*Container)
	if !ok {
		panic(fmt.Sprintf("enginetest: unexpected target %T", target))
	}
	var before *Node
	if anchor != nil {
		before, ok = anchor.(*Node)
		if !ok {
			panic(fmt.Sprintf("enginetest: unexpected anchor %T", anchor))
		}
	}
	if c.Insert(u.node, before) {
		u.host.record(OpMove, u.label)
		return
	}
	u.host.record(OpMount, u.label)
}

// Patch implements render.Unit.
func (u *Unit) Patch(ctx any, dirty bitset.Set) {
	u.ctx = ctx
	u.patches = append(u.patches, dirty.Clone())
	u.host.record(OpPatch, u.label)
}

// Enter implements render.Unit.
func (u *Unit) Enter(local bool) {
	u.host.record(OpEnter, u.label)
	if u.outro != nil {
		u.outro.End(true)
		u.outro = nil
	}
	if u.manager == nil || u.introFn == nil || u.node == nil {
		return
	}
	if u.intro == nil {
		u.intro = u.manager.NewIntro(u.node, u.introFn, nil)
	}
	if err := u.intro.Start(); err != nil {
		panic(err)
	}
}

// Exit implements render.Unit.
func (u *Unit) Exit(local bool) {
	u.host.record(OpExit, u.label)
	if u.intro != nil {
		u.intro.Invalidate()
	}
	if u.manager == nil || u.outroFn == nil || u.node == nil {
		return
	}
	outro, err := u.manager.NewOutro(u.node, u.outroFn, nil)
	if err != nil {
		panic(err)
	}
	u.outro = outro
}

// Destroy implements render.Unit.
func (u *Unit) Destroy(detach bool) {
	if u.destroyed {
		panic(fmt.Sprintf("enginetest: unit %q destroyed twice", u.label))
	}
	u.destroyed = true
	if u.intro != nil {
		u.intro.End()
	}
	if u.outro != nil {
		u.outro.End(false)
	}
	if detach && u.node != nil && u.node.parent != nil {
		u.node.parent.Remove(u.node)
	}
	u.host.record(OpDestroy, u.label)
}

// First implements render.Unit.
func (u *Unit) First() render.Anchor {
	if u.node == nil {
		return nil
	}
	return u.node
}

// Block is a keyed Unit.
type Block[K comparable] struct {
	*Unit
	key K
}

// NewBlock creates a block keyed by key and labelled with its formatted
// key.
func NewBlock[K comparable](h *Host, key K, opts ...UnitOption) *Block[K] {
	return &Block[K]{
		Unit: h.NewUnit(fmt.Sprint(key), opts...),
		key:  key,
	}
}

// Key returns the block's key.
func (b *Block[K]) Key() K {
	return b.key
}
