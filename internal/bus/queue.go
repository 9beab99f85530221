package bus

import "sync"

// reasonQueueFull is the literal rejection reason adapters observe.
const reasonQueueFull = "Queue full"

// Queue is a bounded in-memory FIFO of AdapterMessages. Enqueue is
// non-blocking and thread-safe; a single consumer drains it via Pop,
// sleeping on Wake between messages. Contents drop on restart by design.
type Queue struct {
	mu      sync.Mutex
	items   []AdapterMessage
	maxSize int
	wake    chan struct{}
}

// NewQueue creates a queue bounded at maxSize messages.
func NewQueue(maxSize int) *Queue {
	return &Queue{
		maxSize: maxSize,
		wake:    make(chan struct{}, 1),
	}
}

// Enqueue appends a message and wakes the consumer. At capacity it
// rejects without blocking.
func (q *Queue) Enqueue(msg AdapterMessage) EnqueueResult {
	q.mu.Lock()
	if len(q.items) >= q.maxSize {
		q.mu.Unlock()
		return EnqueueResult{Accepted: false, Reason: reasonQueueFull}
	}
	q.items = append(q.items, msg)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return EnqueueResult{Accepted: true}
}

// Pop removes and returns the head of the queue.
func (q *Queue) Pop() (AdapterMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return AdapterMessage{}, false
	}
	msg := q.items[0]
	q.items = q.items[1:]
	return msg, true
}

// Size returns the current number of queued messages.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Wake returns the channel the consumer loop blocks on while the
// queue is empty. Enqueue and Stop both signal it.
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}

// Signal wakes the consumer without enqueueing (used by Stop).
func (q *Queue) Signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
