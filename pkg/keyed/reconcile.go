// Package keyed reconciles a keyed list of render units against a new
// sequence of items.
//
// Reconcile reuses the existing block for every key that survives, patches
// it in place when the list is dynamic, creates blocks for new keys and
// destroys blocks whose keys disappeared. Blocks that changed position are
// moved with a greedy heuristic: walking both lists from the end, the block
// whose index moved further is moved first and the other is deferred. Ties
// defer the old block. The result is not a minimal edit script, but a
// single swap costs at most one move and a rotation costs one.
package keyed

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	perrors "github.com/vango-dev/pulse/internal/errors"
	"github.com/vango-dev/pulse/pkg/bitset"
	"github.com/vango-dev/pulse/pkg/render"
	"github.com/vango-dev/pulse/pkg/transition"
)

// TracerName is the instrumentation name used for reconcile spans.
const TracerName = "github.com/vango-dev/pulse/pkg/keyed"

// ErrDuplicateKey is wrapped by the panic raised when key checking finds
// the same key twice in one list.
var ErrDuplicateKey = errors.New("pulse: duplicate key in keyed list")

// Block is a render unit with a stable key.
type Block[K comparable] interface {
	render.Unit
	Key() K
}

// Destroyer removes a block that is no longer in the list. It must
// eventually delete the block's key from lookup.
type Destroyer[K comparable] func(b Block[K], lookup map[K]Block[K])

// DestroyBlock destroys b immediately.
func DestroyBlock[K comparable](b Block[K], lookup map[K]Block[K]) {
	b.Destroy(true)
	delete(lookup, b.Key())
}

// OutroAndDestroy returns a Destroyer that runs b's outro through m and
// destroys it once the surrounding outro group completes.
func OutroAndDestroy[K comparable](m *transition.Manager) Destroyer[K] {
	return func(b Block[K], lookup map[K]Block[K]) {
		key := b.Key()
		m.TransitionOut(b, true, true, func() {
			if lookup[key] == b {
				delete(lookup, key)
			}
		})
	}
}

// Stats counts the work done by one reconcile.
type Stats struct {
	Items     int `json:"items"`
	Created   int `json:"created"`
	Moved     int `json:"moved"`
	Destroyed int `json:"destroyed"`
	Patched   int `json:"patched"`
}

// Observer is told about every reconcile.
type Observer interface {
	Reconciled(stats Stats)
}

// Params describes one reconcile.
type Params[K comparable, T any] struct {
	// Old is the current block sequence in render order.
	Old []Block[K]
	// Items is the new item sequence in the desired order.
	Items []T
	// Key returns the key of an item.
	Key func(item T) K
	// Lookup maps the keys of mounted blocks to their blocks. It is
	// updated in place. A nil Lookup is built from Old.
	Lookup map[K]Block[K]

	// Target and Next are where blocks are mounted: each inserted block
	// goes before Next inside Target.
	Target render.Target
	Next   render.Anchor

	// Dirty is passed to Patch of reused blocks when Dynamic is set.
	Dirty   bitset.Set
	Dynamic bool

	// Create makes the block for a new key. Reconcile calls its Create.
	Create func(key K, item T) Block[K]
	// Context builds the patch context for item at index i. The item
	// itself is used when nil.
	Context func(item T, i int) any
	// Destroy removes blocks that left the list. DestroyBlock when nil.
	Destroy Destroyer[K]

	// Transitions, when set, runs intros through TransitionIn and wraps
	// the reconcile in an outro group.
	Transitions *transition.Manager

	// CheckKeys panics with E201 when Items contains a key twice.
	CheckKeys bool

	Tracer   trace.Tracer
	Observer Observer
}

// Result is the outcome of a reconcile.
type Result[K comparable] struct {
	Blocks []Block[K]
	Lookup map[K]Block[K]
	Stats  Stats
}

// Reconcile brings the children of p.Target in line with p.Items.
func Reconcile[K comparable, T any](p Params[K, T]) Result[K] {
	tracer := p.Tracer
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	_, span := tracer.Start(context.Background(), "keyed.reconcile")
	defer span.End()

	if p.CheckKeys {
		checkKeys(p.Items, p.Key)
	}

	lookup := p.Lookup
	if lookup == nil {
		lookup = make(map[K]Block[K], len(p.Old))
		for _, b := range p.Old {
			lookup[b.Key()] = b
		}
	}
	destroy := p.Destroy
	if destroy == nil {
		destroy = DestroyBlock[K]
	}
	ctxFn := p.Context
	if ctxFn == nil {
		ctxFn = func(item T, _ int) any { return item }
	}

	if p.Transitions != nil {
		p.Transitions.GroupOutros()
	}

	r := &reconciler[K]{
		lookup: lookup,
		target: p.Target,
		next:   p.Next,
		trans:  p.Transitions,
	}
	r.stats.Items = len(p.Items)

	o := len(p.Old)
	n := len(p.Items)

	oldIndex := make(map[K]int, o)
	for i := o - 1; i >= 0; i-- {
		oldIndex[p.Old[i].Key()] = i
	}

	blocks := make([]Block[K], n)
	newLookup := make(map[K]Block[K], n)
	deltas := make(map[K]int, n)
	created := make(map[K]bool)
	var updates []func()

	for i := n - 1; i >= 0; i-- {
		item := p.Items[i]
		key := p.Key(item)
		b, ok := lookup[key]
		if !ok {
			b = p.Create(key, item)
			b.Create()
			created[key] = true
			r.stats.Created++
		} else if p.Dynamic {
			block, ctx := b, ctxFn(item, i)
			updates = append(updates, func() {
				block.Patch(ctx, p.Dirty)
			})
		}
		blocks[i] = b
		newLookup[key] = b
		if j, ok := oldIndex[key]; ok {
			deltas[key] = abs(i - j)
		}
	}
	r.created = created

	willMove := make(map[K]bool)
	didMove := make(map[K]bool)

	for o > 0 && n > 0 {
		newBlock := blocks[n-1]
		oldBlock := p.Old[o-1]
		newKey := newBlock.Key()
		oldKey := oldBlock.Key()

		switch {
		case sameBlock(newBlock, oldBlock):
			r.next = newBlock.First()
			o--
			n--
		case !has(newLookup, oldKey):
			destroy(oldBlock, lookup)
			r.stats.Destroyed++
			o--
		case !has(lookup, newKey) || willMove[newKey]:
			r.insert(newBlock)
			n--
		case didMove[oldKey]:
			o--
		case deltas[newKey] > deltas[oldKey]:
			didMove[newKey] = true
			r.insert(newBlock)
			n--
		default:
			willMove[oldKey] = true
			o--
		}
	}

	for o > 0 {
		o--
		oldBlock := p.Old[o]
		if !has(newLookup, oldBlock.Key()) {
			destroy(oldBlock, lookup)
			r.stats.Destroyed++
		}
	}

	for n > 0 {
		r.insert(blocks[n-1])
		n--
	}

	for _, fn := range updates {
		fn()
	}
	r.stats.Patched = len(updates)

	if p.Transitions != nil {
		p.Transitions.CheckOutros()
	}

	span.SetAttributes(
		attribute.Int("pulse.keyed.items", r.stats.Items),
		attribute.Int("pulse.keyed.created", r.stats.Created),
		attribute.Int("pulse.keyed.moved", r.stats.Moved),
		attribute.Int("pulse.keyed.destroyed", r.stats.Destroyed),
	)
	if p.Observer != nil {
		p.Observer.Reconciled(r.stats)
	}

	return Result[K]{Blocks: blocks, Lookup: lookup, Stats: r.stats}
}

type reconciler[K comparable] struct {
	lookup  map[K]Block[K]
	created map[K]bool
	target  render.Target
	next    render.Anchor
	trans   *transition.Manager
	stats   Stats
}

// insert mounts b before the current anchor and makes it the new anchor.
func (r *reconciler[K]) insert(b Block[K]) {
	if r.trans != nil {
		r.trans.TransitionIn(b, true)
	} else {
		b.Enter(true)
	}
	b.Mount(r.target, r.next)
	key := b.Key()
	if !r.created[key] {
		r.stats.Moved++
	}
	r.lookup[key] = b
	r.next = b.First()
}

func checkKeys[K comparable, T any](items []T, keyFn func(T) K) {
	seen := make(map[K]struct{}, len(items))
	for i, item := range items {
		key := keyFn(item)
		if _, dup := seen[key]; dup {
			panic(perrors.New("E201").
				WithDetailf("key %v repeated at index %d", key, i).
				Wrap(ErrDuplicateKey))
		}
		seen[key] = struct{}{}
	}
}

func sameBlock[K comparable](a, b Block[K]) bool {
	return any(a) == any(b)
}

func has[K comparable](m map[K]Block[K], key K) bool {
	_, ok := m[key]
	return ok
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
