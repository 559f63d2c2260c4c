package inspect

import (
	"time"

	"github.com/vango-dev/pulse/pkg/keyed"
	"github.com/vango-dev/pulse/pkg/scheduler"
)

// EventKind names what an Event describes.
type EventKind string

const (
	EventFlush      EventKind = "flush"
	EventFrame      EventKind = "frame"
	EventTransition EventKind = "transition"
	EventReconcile  EventKind = "reconcile"
)

// Event is one recorded engine occurrence. Exactly one of the detail
// fields is set, matching Kind.
type Event struct {
	Seq  uint64    `json:"seq"`
	At   time.Time `json:"at"`
	Kind EventKind `json:"kind"`

	Flush      *FlushDetail `json:"flush,omitempty"`
	Frame      *FrameDetail `json:"frame,omitempty"`
	Transition string       `json:"transition,omitempty"`
	Reconcile  *keyed.Stats `json:"reconcile,omitempty"`
}

// FlushDetail summarizes a scheduler flush.
type FlushDetail struct {
	Passes           int     `json:"passes"`
	Components       int     `json:"components"`
	BindingCallbacks int     `json:"bindingCallbacks"`
	RenderCallbacks  int     `json:"renderCallbacks"`
	FlushCallbacks   int     `json:"flushCallbacks"`
	DurationMs       float64 `json:"durationMs"`
	Error            string  `json:"error,omitempty"`
}

func flushDetail(s scheduler.FlushStats) *FlushDetail {
	d := &FlushDetail{
		Passes:           s.Passes,
		Components:       s.Components,
		BindingCallbacks: s.BindingCallbacks,
		RenderCallbacks:  s.RenderCallbacks,
		FlushCallbacks:   s.FlushCallbacks,
		DurationMs:       float64(s.Duration) / float64(time.Millisecond),
	}
	if s.Err != nil {
		d.Error = s.Err.Error()
	}
	return d
}

// FrameDetail summarizes one frame of the frame registry.
type FrameDetail struct {
	Tasks      int     `json:"tasks"`
	DurationMs float64 `json:"durationMs"`
}
