// Package view implements the query result container described in
// spec.md §3/§4.3 (component C4): an ordered collection of reference
// queues plus the set-algebra used to combine views across combinator
// nodes (component C5's recursion target).
package view

import "github.com/contdb/queryview/internal/ref"

type node struct {
	val  *ref.Reference
	next *node
}

// RefQueue is a singly-linked FIFO of references. Append and Concat are
// O(1) via a retained tail pointer, matching spec.md §4.3's requirement
// that view construction not be quadratic in the number of matches.
type RefQueue struct {
	head, tail *node
	length     int
}

// NewRefQueue returns an empty queue.
func NewRefQueue() *RefQueue {
	return &RefQueue{}
}

// Append adds r to the tail of the queue.
func (q *RefQueue) Append(r *ref.Reference) {
	n := &node{val: r}
	if q.tail == nil {
		q.head, q.tail = n, n
	} else {
		q.tail.next = n
		q.tail = n
	}
	q.length++
}

// Len reports the number of references currently queued.
func (q *RefQueue) Len() int {
	if q == nil {
		return 0
	}
	return q.length
}

// Items returns the queue's references in FIFO order. The returned slice
// is a fresh copy; it does not alias the queue's internal nodes.
func (q *RefQueue) Items() []*ref.Reference {
	if q == nil {
		return nil
	}
	out := make([]*ref.Reference, 0, q.length)
	for n := q.head; n != nil; n = n.next {
		out = append(out, n.val)
	}
	return out
}

// Concat splices other onto the tail of q in O(1) and empties other. Concat
// is how OR-combination assembles a view without re-walking either side's
// references (spec.md §4.2).
func (q *RefQueue) Concat(other *RefQueue) {
	if other == nil || other.length == 0 {
		return
	}
	if q.tail == nil {
		q.head, q.tail, q.length = other.head, other.tail, other.length
	} else {
		q.tail.next = other.head
		q.tail = other.tail
		q.length += other.length
	}
	other.head, other.tail, other.length = nil, nil, 0
}

// Free releases the queue's nodes. Queues hold no external resources
// beyond Go-managed memory, so Free only resets bookkeeping; it exists to
// mirror the explicit free() the original storage layer required and to
// give callers a single place to release a queue deterministically.
func (q *RefQueue) Free() {
	if q == nil {
		return
	}
	q.head, q.tail, q.length = nil, nil, 0
}
