package events

import (
	"sync"
	"sync/atomic"
)

// DefaultBuffer is the queue capacity when none is configured.
const DefaultBuffer = 256

// Queue is a bounded event channel. When full, the oldest event is dropped
// so publishers never block.
type Queue struct {
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex // serializes the drop-and-retry in Publish
	dropped   atomic.Int64
}

// NewQueue creates a queue holding up to size events.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultBuffer
	}
	return &Queue{
		events: make(chan Event, size),
		done:   make(chan struct{}),
	}
}

// Publish enqueues evt. Events published after Close are discarded.
func (q *Queue) Publish(evt Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	select {
	case <-q.done:
		return
	default:
	}

	select {
	case q.events <- evt:
	default:
		// Buffer full, drop oldest and retry
		select {
		case <-q.events:
			q.dropped.Add(1)
		default:
		}
		select {
		case q.events <- evt:
		default:
			q.dropped.Add(1)
		}
	}
}

// Events returns the receive side of the queue.
func (q *Queue) Events() <-chan Event {
	return q.events
}

// Dropped returns how many events were discarded because the queue was full.
func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}

// Close stops accepting events and closes the channel. Buffered events
// stay readable. Safe to call multiple times.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		close(q.done)
		close(q.events)
	})
}
