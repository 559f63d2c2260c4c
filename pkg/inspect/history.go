package inspect

import (
	"sync"
)

// DefaultHistorySize is used when a History is created with a
// non-positive capacity.
const DefaultHistorySize = 512

// History is a thread-safe ring buffer of recent events. When full, the
// oldest event is overwritten. Events are numbered from 1 in the order
// they are added.
type History struct {
	mu       sync.RWMutex
	entries  []Event
	head     int // next write position
	count    int
	capacity int
	seq      uint64
}

// NewHistory creates a history holding up to capacity events.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &History{
		entries:  make([]Event, capacity),
		capacity: capacity,
	}
}

// Add numbers ev, stores it and returns the stored copy.
func (h *History) Add(ev Event) Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	ev.Seq = h.seq
	h.entries[h.head] = ev
	h.head = (h.head + 1) % h.capacity
	if h.count < h.capacity {
		h.count++
	}
	return ev
}

// Since returns the retained events numbered after seq, oldest first.
func (h *History) Since(seq uint64) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []Event
	for i := 0; i < h.count; i++ {
		idx := (h.head - h.count + i + h.capacity) % h.capacity
		if ev := h.entries[idx]; ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}

// Snapshot returns every retained event, oldest first.
func (h *History) Snapshot() []Event {
	return h.Since(0)
}

// MinSeq returns the number of the oldest retained event, or 0 when empty.
func (h *History) MinSeq() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.count == 0 {
		return 0
	}
	return h.entries[(h.head-h.count+h.capacity)%h.capacity].Seq
}

// MaxSeq returns the number of the newest event.
func (h *History) MaxSeq() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

// Count returns the number of retained events.
func (h *History) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Clear drops every event. Numbering continues where it left off.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.entries {
		h.entries[i] = Event{}
	}
	h.head = 0
	h.count = 0
}
