// Package transition runs intro and outro animations of render units.
//
// Three state machines are provided, one per direction: Intro, Outro and
// Bidirectional. Each samples its Config once per frame through a shared
// frame.Registry, calls Config.Tick with eased progress and dispatches
// lifecycle events to its Node. The start event is queued as a render
// callback, so it is never observed before the flush in which the
// transition was armed.
//
// Outros register with the Manager's current outro Group. The group's
// callbacks, typically "destroy the block", run exactly once when every
// outro in it has finished, regardless of the order they finish in.
//
// A Manager belongs to one host loop and is not safe for concurrent use.
package transition

import (
	"errors"
	"time"
)

// ErrConfig is wrapped by errors returned when a lazy configuration fails.
var ErrConfig = errors.New("pulse: transition configuration failed")

// Direction says which way a transition runs.
type Direction int

const (
	// In animates a unit entering.
	In Direction = iota + 1

	// Out animates a unit leaving.
	Out

	// Both is used by bidirectional transitions at creation time.
	Both
)

// String returns "in", "out" or "both".
func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case Out:
		return "out"
	case Both:
		return "both"
	default:
		return "unknown"
	}
}

// Options is passed to factories.
type Options struct {
	Direction Direction
}

// Config describes one transition run.
type Config struct {
	// Delay before the transition starts.
	Delay time.Duration

	// Duration of the transition. Zero uses the manager's default.
	Duration time.Duration

	// Easing applied to linear progress. Nil means Linear.
	Easing Easing

	// CSS renders the style at eased progress t (u = 1-t). It is turned
	// into keyframes for nodes implementing Styled.
	CSS func(t, u float64) string

	// Tick is called every frame with eased progress t (u = 1-t).
	Tick func(t, u float64)
}

// Source produces the configuration of a transition. Factory and
// LazyFactory implement it.
type Source interface {
	configure(node Node, params any, opts Options) (Config, func(Options) (Config, error))
}

// Factory builds a configuration immediately.
type Factory func(node Node, params any, opts Options) Config

func (f Factory) configure(node Node, params any, opts Options) (Config, func(Options) (Config, error)) {
	return f(node, params, opts), nil
}

// LazyFactory returns a function that builds the configuration when the
// transition actually starts. Errors it returns are reported by the call
// that starts the transition.
type LazyFactory func(node Node, params any, opts Options) func(Options) (Config, error)

func (f LazyFactory) configure(node Node, params any, opts Options) (Config, func(Options) (Config, error)) {
	return Config{}, f(node, params, opts)
}

// EventKind identifies a lifecycle event.
type EventKind int

const (
	IntroStart EventKind = iota + 1
	IntroEnd
	OutroStart
	OutroEnd
)

// String returns the event name, e.g. "introstart".
func (k EventKind) String() string {
	switch k {
	case IntroStart:
		return "introstart"
	case IntroEnd:
		return "introend"
	case OutroStart:
		return "outrostart"
	case OutroEnd:
		return "outroend"
	default:
		return "unknown"
	}
}

func eventKind(intro, end bool) EventKind {
	switch {
	case intro && end:
		return IntroEnd
	case intro:
		return IntroStart
	case end:
		return OutroEnd
	default:
		return OutroStart
	}
}

// Event is dispatched to a Node as its transitions progress.
type Event struct {
	Kind EventKind
}

// Node is the host element a transition animates.
type Node interface {
	Dispatch(ev Event)
}

// Inerter is implemented by nodes that can be made non-interactive while
// they leave.
type Inerter interface {
	Inert() bool
	SetInert(inert bool)
}

// State is the lifecycle state of an Intro.
type State int

const (
	Idle State = iota
	Armed
	Running
	Done
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Running:
		return "running"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// timing is a Config with defaults applied.
type timing struct {
	delay    time.Duration
	duration time.Duration
	easing   Easing
	css      func(t, u float64) string
	tick     func(t, u float64)
}

// progress returns linear progress of now within [start, start+duration].
func (tm timing) progress(now, start time.Time) float64 {
	if tm.duration <= 0 {
		return 1
	}
	return float64(now.Sub(start)) / float64(tm.duration)
}
