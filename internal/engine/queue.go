package engine

import "slices"

// admissionQueue is the FIFO of execution ids waiting for a slot. It is
// guarded by the engine mutex. The zero value is an empty queue.
//
// Membership is a set lookup; only position and remove of a present id
// scan the order slice.
type admissionQueue struct {
	ids    []string
	queued map[string]struct{}
}

// enqueue appends id. An id already queued keeps its place and enqueue
// reports false.
func (q *admissionQueue) enqueue(id string) bool {
	if q.contains(id) {
		return false
	}
	if q.queued == nil {
		q.queued = make(map[string]struct{})
	}
	q.queued[id] = struct{}{}
	q.ids = append(q.ids, id)
	return true
}

func (q *admissionQueue) contains(id string) bool {
	_, ok := q.queued[id]
	return ok
}

// pop removes and returns the head of the queue.
func (q *admissionQueue) pop() (string, bool) {
	if len(q.ids) == 0 {
		return "", false
	}
	id := q.ids[0]
	q.ids[0] = ""
	q.ids = q.ids[1:]
	delete(q.queued, id)
	return id, true
}

// remove deletes id wherever it sits. It reports whether id was queued.
func (q *admissionQueue) remove(id string) bool {
	if !q.contains(id) {
		return false
	}
	delete(q.queued, id)
	if i := slices.Index(q.ids, id); i >= 0 {
		q.ids = slices.Delete(q.ids, i, i+1)
	}
	return true
}

// position returns the 1-based position of id, or 0 if it is not queued.
func (q *admissionQueue) position(id string) int {
	if !q.contains(id) {
		return 0
	}
	return slices.Index(q.ids, id) + 1
}

func (q *admissionQueue) len() int {
	return len(q.ids)
}

// snapshot returns the queued ids in order.
func (q *admissionQueue) snapshot() []string {
	return slices.Clone(q.ids)
}
