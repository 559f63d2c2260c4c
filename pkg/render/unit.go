// Package render defines the contract the engine requires from a host
// rendering layer.
//
// The engine never touches concrete UI nodes. It drives render units through
// their lifecycle and hands back opaque Target and Anchor values that only
// the host understands.
package render

import "github.com/vango-dev/pulse/pkg/bitset"

// Target is an opaque parent a unit mounts into.
type Target any

// Anchor is an opaque node reference; a unit mounted at an anchor is placed
// immediately before it. A nil anchor appends to the end of the target.
type Anchor any

// Unit is one mounted piece of UI.
type Unit interface {
	// Create builds the unit's nodes without attaching them.
	Create()

	// Mount attaches the unit into target before anchor. Mounting an
	// already mounted unit moves it.
	Mount(target Target, anchor Anchor)

	// Patch applies new state. dirty lists the slots that changed since the
	// previous patch.
	Patch(ctx any, dirty bitset.Set)

	// Enter starts intro transitions. local is true when the unit itself is
	// entering rather than an ancestor.
	Enter(local bool)

	// Exit starts outro transitions.
	Exit(local bool)

	// Destroy tears the unit down, detaching its nodes when detach is true.
	Destroy(detach bool)

	// First returns the first placed node, used as an insertion anchor by
	// the keyed reconciler. It may be nil for units that render nothing.
	First() Anchor
}

// NoTransitions can be embedded by units that have no intro or outro.
type NoTransitions struct{}

// Enter is a no-op.
func (NoTransitions) Enter(bool) {}

// Exit is a no-op.
func (NoTransitions) Exit(bool) {}
