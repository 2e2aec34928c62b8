package ranging

import "sync/atomic"

const (
	// RawQueueSize is the depth of the capture to processor channel.
	RawQueueSize = 2
	// ProcessedQueueSize is the depth of the processor to consumer channel.
	ProcessedQueueSize = 5
)

// queue is a bounded channel with two loss policies: offer drops the new
// item when full, publish evicts the oldest. Either way the loss is counted.
// Safe for one producer and any number of consumers.
type queue[T any] struct {
	ch      chan T
	dropped atomic.Uint32
}

func newQueue[T any](capacity int) *queue[T] {
	return &queue[T]{ch: make(chan T, capacity)}
}

// offer enqueues v without blocking. It reports false and counts a drop
// when the queue is full.
func (q *queue[T]) offer(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// publish enqueues v without blocking, evicting the oldest entry while the
// queue is full. It reports whether anything was evicted.
func (q *queue[T]) publish(v T) (evicted bool) {
	for {
		select {
		case q.ch <- v:
			return evicted
		default:
		}

		select {
		case <-q.ch:
			q.dropped.Add(1)
			evicted = true
		default:
			// A consumer got there first; retry the send.
		}
	}
}

// tryReceive dequeues without blocking.
func (q *queue[T]) tryReceive() (T, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// drain discards everything queued and returns how many items it removed.
func (q *queue[T]) drain() int {
	n := 0
	for {
		if _, ok := q.tryReceive(); !ok {
			return n
		}
		n++
	}
}

func (q *queue[T]) len() int {
	return len(q.ch)
}

func (q *queue[T]) drops() uint32 {
	return q.dropped.Load()
}
