package main

import (
	"math/rand"
	"strings"
	"time"

	"github.com/vango-dev/pulse"
	"github.com/vango-dev/pulse/pkg/bitset"
	"github.com/vango-dev/pulse/pkg/enginetest"
	"github.com/vango-dev/pulse/pkg/keyed"
	"github.com/vango-dev/pulse/pkg/render"
	"github.com/vango-dev/pulse/pkg/scheduler"
	"github.com/vango-dev/pulse/pkg/spring"
	"github.com/vango-dev/pulse/pkg/store"
	"github.com/vango-dev/pulse/pkg/transition"
)

const (
	slotItems = iota
	slotCursor
)

// workload is a small app rendered into an in-memory host: a component
// owning a keyed list of items that fade in and out, plus a spring
// following the position of the first item.
type workload struct {
	rt   *pulse.Runtime
	host *enginetest.Host
	root *enginetest.Container
	comp *scheduler.Component
	list *keyed.List[string, string]

	items  *store.Writable[[]string]
	cursor *spring.Spring[float64]
	unsubs []store.Unsubscriber

	current []string
	rng     *rand.Rand
}

func fade(node transition.Node, params any, opts transition.Options) transition.Config {
	return transition.Config{
		Duration: 120 * time.Millisecond,
		Easing:   transition.CubicOut,
		CSS: func(t, u float64) string {
			return "opacity: " + trimFloat(t)
		},
	}
}

func newWorkload(rt *pulse.Runtime, seed int64, size int) (*workload, error) {
	w := &workload{
		rt:   rt,
		host: enginetest.NewHost(),
		rng:  rand.New(rand.NewSource(seed)),
	}
	w.root = w.host.NewContainer("root")

	fadeSrc := transition.Factory(fade)
	w.list = pulse.NewList(rt,
		func(s string) string { return s },
		func(key, _ string) keyed.Block[string] {
			return enginetest.NewBlock(w.host, key,
				enginetest.WithIntro(rt.Transitions(), fadeSrc),
				enginetest.WithOutro(rt.Transitions(), fadeSrc))
		})

	initial := make([]string, size)
	for i := range initial {
		initial[i] = itemName(i)
	}
	w.items = pulse.NewWritable(rt, initial)

	cursor, err := pulse.NewSpring(rt, 0.0)
	if err != nil {
		return nil, err
	}
	w.cursor = cursor

	w.comp = rt.Scheduler().NewComponent(scheduler.ComponentOptions{
		Name: "list",
		Unit: &listUnit{w: w},
	})
	w.unsubs = append(w.unsubs,
		w.items.Subscribe(func(items []string) {
			w.current = items
			w.comp.MarkDirty(slotItems)
		}),
		w.cursor.Subscribe(func(float64) {
			w.comp.MarkDirty(slotCursor)
		}),
	)
	return w, nil
}

func (w *workload) mount() error {
	return w.comp.Mount(w.root, nil)
}

// step applies one random edit to the item list and moves the cursor.
func (w *workload) step() {
	w.items.Update(func(items []string) []string {
		next := append([]string(nil), items...)
		switch op := w.rng.Intn(4); {
		case op == 0 && len(next) > 1:
			i := w.rng.Intn(len(next))
			next = append(next[:i], next[i+1:]...)
		case op == 1:
			next = append(next, itemName(w.rng.Intn(100)))
			next = dedupe(next)
		default:
			w.rng.Shuffle(len(next), func(i, j int) { next[i], next[j] = next[j], next[i] })
		}
		return next
	})
	w.cursor.Set(float64(w.rng.Intn(100)))
}

func (w *workload) order() string {
	return strings.Join(w.root.Labels(), " ")
}

func (w *workload) close() {
	for _, unsub := range w.unsubs {
		unsub()
	}
	w.comp.Destroy(true)
}

// listUnit renders the workload's list into its mount target.
type listUnit struct {
	w      *workload
	target render.Target
}

func (u *listUnit) Create() {}

func (u *listUnit) Mount(target render.Target, anchor render.Anchor) {
	u.target = target
}

func (u *listUnit) Patch(_ any, dirty bitset.Set) {
	if dirty.IsDirty(slotItems) {
		u.w.list.Update(u.target, nil, u.w.current, dirty)
	}
}

func (u *listUnit) Enter(bool) {}

func (u *listUnit) Exit(bool) {}

func (u *listUnit) Destroy(detach bool) {
	u.w.list.Destroy(detach)
}

func (u *listUnit) First() render.Anchor {
	blocks := u.w.list.Blocks()
	if len(blocks) == 0 {
		return nil
	}
	return blocks[0].First()
}

func itemName(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	if i < len(letters) {
		return string(letters[i])
	}
	return string(letters[i%len(letters)]) + itoa(i/len(letters))
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}
