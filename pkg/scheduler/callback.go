package scheduler

import "sync/atomic"

var callbackID atomic.Uint64

// Callback is a render callback with identity. The same *Callback added
// several times during one flush runs once.
type Callback struct {
	id uint64
	fn func()
}

// NewCallback wraps fn in a Callback with a fresh identity.
func NewCallback(fn func()) *Callback {
	return &Callback{
		id: callbackID.Add(1),
		fn: fn,
	}
}

// ID returns the callback's identity.
func (c *Callback) ID() uint64 {
	return c.id
}

// Run invokes the callback.
func (c *Callback) Run() {
	if c.fn != nil {
		c.fn()
	}
}
