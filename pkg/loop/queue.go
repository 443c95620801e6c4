package loop

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type node struct {
	data Task
	next *node
}

// Queue implements a FIFO task queue for the event loop
type Queue struct {
	head  *node
	tail  *node
	count int
	lock  sync.Mutex

	// waitCh is buffered so a push that happens between an empty Pop
	// and the receive in PopWait is not lost
	waitCh chan struct{}

	total  prometheus.Counter
	queued prometheus.Gauge
}

// NewQueue creates a new queue. loopName and name are used as
// metric labels
func NewQueue(loopName, name string) *Queue {
	labels := prometheus.Labels{"loop": loopName, "queue": name}

	return &Queue{
		waitCh: make(chan struct{}, 1),
		total:  totalTasks.With(labels),
		queued: queuedTasks.With(labels),
	}
}

// Len returns the number of tasks queued
func (q *Queue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return q.count
}

// Push appends a task to the queue
func (q *Queue) Push(item Task) {
	q.lock.Lock()
	defer q.lock.Unlock()

	n := &node{data: item}
	if q.tail == nil {
		q.tail = n
		q.head = n
	} else {
		q.tail.next = n
		q.tail = n
	}
	q.count++

	q.total.Inc()
	q.queued.Inc()

	select {
	case q.waitCh <- struct{}{}:
	default:
	}
}

// Pop returns the next task from the queue or nil if the queue is empty
func (q *Queue) Pop() Task {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.head == nil {
		return nil
	}

	n := q.head
	q.head = n.next

	if q.head == nil {
		q.tail = nil
	}
	q.count--
	q.queued.Dec()

	return n.data
}

// PopWait returns the next task from the queue and blocks until either
// the context is cancelled or a task becomes available
func (q *Queue) PopWait(ctx context.Context) Task {
	for {
		if next := q.Pop(); next != nil {
			return next
		}

		select {
		case <-q.waitCh:
		case <-ctx.Done():
			return nil
		}
	}
}
