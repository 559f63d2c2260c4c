package store

// Queue is the FIFO through which stores deliver notifications.
//
// All stores sharing a Queue deliver through it. When a Set happens while
// the queue is already draining, its deliveries are appended behind the
// current ones instead of running recursively, so a subscriber that sets
// another store never re-enters notification.
//
// A Queue belongs to one host loop and is not safe for concurrent use.
type Queue struct {
	pending []func()
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

var defaultQueue = NewQueue()

// DefaultQueue returns the process-wide queue used by stores created
// without WithQueue.
func DefaultQueue() *Queue {
	return defaultQueue
}

// Draining reports whether deliveries are queued or in progress.
func (q *Queue) Draining() bool {
	return len(q.pending) > 0
}

// push appends a delivery.
func (q *Queue) push(fn func()) {
	q.pending = append(q.pending, fn)
}

// drain runs every delivery, including those appended while draining.
func (q *Queue) drain() {
	defer func() {
		q.pending = q.pending[:0]
	}()
	for i := 0; i < len(q.pending); i++ {
		q.pending[i]()
		q.pending[i] = nil
	}
}
