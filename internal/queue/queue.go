// Package queue implements a min-heap priority queue over
// (priority, sequence) pairs with FIFO tiebreak. The scheduler owns
// blocking semantics; this package is a plain, non-blocking heap.
package queue

import "container/heap"

// Item is anything schedulable by priority with a FIFO tiebreak sequence.
type Item interface {
	QueuePriority() int
	QueueSeq() uint64
	SetQueueSeq(uint64)
}

type innerHeap []Item

func (h innerHeap) Len() int { return len(h) }
func (h innerHeap) Less(i, j int) bool {
	if h[i].QueuePriority() != h[j].QueuePriority() {
		return h[i].QueuePriority() < h[j].QueuePriority()
	}
	return h[i].QueueSeq() < h[j].QueueSeq()
}
func (h innerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *innerHeap) Push(x any)   { *h = append(*h, x.(Item)) }
func (h *innerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Queue is a plain (not internally synchronized) priority queue; callers
// needing concurrent access guard it with their own mutex/condvar, as the
// scheduler does. Zero value is not usable; use New.
type Queue struct {
	h       innerHeap
	nextSeq uint64
}

// New creates an empty Queue.
func New() *Queue {
	q := &Queue{h: innerHeap{}}
	heap.Init(&q.h)
	return q
}

// Push inserts item, assigning it the next FIFO sequence number.
func (q *Queue) Push(item Item) {
	item.SetQueueSeq(q.nextSeq)
	q.nextSeq++
	heap.Push(&q.h, item)
}

// Pop removes and returns the lowest-priority (earliest) item, or nil if
// the queue is empty.
func (q *Queue) Pop() Item {
	if q.h.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.h).(Item)
}

// Len reports the number of pending items.
func (q *Queue) Len() int {
	return q.h.Len()
}
