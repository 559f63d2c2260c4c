package scheduler

import "errors"

// ErrUpdateLoop is wrapped by the error Flush returns when the pass budget
// is exceeded.
var ErrUpdateLoop = errors.New("pulse: update loop exceeded flush pass budget")

// ErrDestroyed is wrapped by errors returned when a destroyed component is
// mounted again.
var ErrDestroyed = errors.New("pulse: component destroyed")
