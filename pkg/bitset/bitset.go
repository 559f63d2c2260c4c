// Package bitset provides the dirty-slot set used by components and derived
// stores.
//
// A Set records which reactive slots changed since the last flush. Slots are
// indexed from zero and stored in 64-bit words. The backing slice grows on
// demand when a slot beyond the current capacity is marked; it never shrinks
// except through Reset. A Set can also be flagged "all dirty", a sentinel
// that reports every slot as dirty without allocating words for them.
//
// The zero value is an empty, clean set ready to use.
package bitset

import (
	"math/bits"
	"strconv"
	"strings"
)

const wordBits = 64

// Set is a growable bitset with an all-dirty sentinel.
type Set struct {
	words []uint64
	all   bool
}

// New returns a clean set with room for slots [0, capacity) preallocated.
func New(capacity int) Set {
	if capacity <= 0 {
		return Set{}
	}
	return Set{words: make([]uint64, (capacity+wordBits-1)/wordBits)}
}

// All returns a set flagged as fully dirty.
func All() Set {
	return Set{all: true}
}

// Mark sets the bit for slot, growing the backing words if needed.
// Marking a slot on a fully dirty set is a no-op.
func (s *Set) Mark(slot int) {
	if slot < 0 {
		panic("bitset: negative slot " + strconv.Itoa(slot))
	}
	if s.all {
		return
	}
	w := slot / wordBits
	if w >= len(s.words) {
		grown := make([]uint64, w+1)
		copy(grown, s.words)
		s.words = grown
	}
	s.words[w] |= 1 << (uint(slot) % wordBits)
}

// Unmark clears the bit for slot. It has no effect on a fully dirty set.
func (s *Set) Unmark(slot int) {
	if s.all || slot < 0 {
		return
	}
	w := slot / wordBits
	if w < len(s.words) {
		s.words[w] &^= 1 << (uint(slot) % wordBits)
	}
}

// MarkAll flags the set as fully dirty.
func (s *Set) MarkAll() {
	s.all = true
	s.words = nil
}

// IsDirty reports whether slot is dirty.
func (s Set) IsDirty(slot int) bool {
	if s.all {
		return true
	}
	if slot < 0 {
		return false
	}
	w := slot / wordBits
	if w >= len(s.words) {
		return false
	}
	return s.words[w]&(1<<(uint(slot)%wordBits)) != 0
}

// AllDirty reports whether the set carries the fully dirty sentinel.
func (s Set) AllDirty() bool {
	return s.all
}

// Any reports whether at least one slot is dirty.
func (s Set) Any() bool {
	if s.all {
		return true
	}
	for _, w := range s.words {
		if w != 0 {
			return true
		}
	}
	return false
}

// Count returns the number of dirty slots. A fully dirty set returns -1.
func (s Set) Count() int {
	if s.all {
		return -1
	}
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Intersects reports whether any slot dirty in mask is dirty in s.
func (s Set) Intersects(mask Set) bool {
	if s.all {
		return mask.Any()
	}
	if mask.all {
		return s.Any()
	}
	n := min(len(s.words), len(mask.words))
	for i := 0; i < n; i++ {
		if s.words[i]&mask.words[i] != 0 {
			return true
		}
	}
	return false
}

// Slots returns the dirty slot indexes in ascending order.
// It returns nil for a fully dirty set.
func (s Set) Slots() []int {
	if s.all {
		return nil
	}
	var out []int
	for i, w := range s.words {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			out = append(out, i*wordBits+tz)
			w &= w - 1
		}
	}
	return out
}

// Clone returns an independent copy of s.
func (s Set) Clone() Set {
	c := Set{all: s.all}
	if len(s.words) > 0 {
		c.words = make([]uint64, len(s.words))
		copy(c.words, s.words)
	}
	return c
}

// Reset clears every slot and the fully dirty flag, keeping capacity.
func (s *Set) Reset() {
	s.all = false
	for i := range s.words {
		s.words[i] = 0
	}
}

// String renders the set for logs, e.g. "{0,3,70}" or "{*}".
func (s Set) String() string {
	if s.all {
		return "{*}"
	}
	slots := s.Slots()
	parts := make([]string, len(slots))
	for i, slot := range slots {
		parts[i] = strconv.Itoa(slot)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
