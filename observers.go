package pulse

import (
	"time"

	"github.com/vango-dev/pulse/pkg/frame"
	"github.com/vango-dev/pulse/pkg/keyed"
	"github.com/vango-dev/pulse/pkg/scheduler"
	"github.com/vango-dev/pulse/pkg/transition"
)

// Observer receives every engine notification. Both metrics.Collector and
// inspect.Recorder implement it.
type Observer interface {
	scheduler.Observer
	frame.Observer
	transition.Observer
	keyed.Observer
}

// observers fans notifications out to several observers.
type observers []Observer

func (o *observers) add(obs Observer) {
	if obs != nil {
		*o = append(*o, obs)
	}
}

func (o *observers) FlushDone(s scheduler.FlushStats) {
	for _, obs := range *o {
		obs.FlushDone(s)
	}
}

func (o *observers) FrameRan(tasks int, took time.Duration) {
	for _, obs := range *o {
		obs.FrameRan(tasks, took)
	}
}

func (o *observers) TransitionEvent(kind transition.EventKind) {
	for _, obs := range *o {
		obs.TransitionEvent(kind)
	}
}

func (o *observers) Reconciled(s keyed.Stats) {
	for _, obs := range *o {
		obs.Reconciled(s)
	}
}
