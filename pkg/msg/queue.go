package msg

import "container/list"

// Queue is a FIFO of records. A record sits in at most one queue at a time;
// pushing a record that is already queued is a programming error and panics.
//
// Queues are not safe for concurrent use. A session mutates its queues from
// the event loop goroutine only.
type Queue struct {
	name  string
	items list.List
	elems map[*Record]*list.Element
}

// NewQueue returns an empty queue. The name only appears in panics and logs.
func NewQueue(name string) *Queue {
	return &Queue{
		name:  name,
		elems: make(map[*Record]*list.Element),
	}
}

// Name returns the queue's label.
func (q *Queue) Name() string {
	return q.name
}

// Len returns the number of queued records.
func (q *Queue) Len() int {
	return q.items.Len()
}

// Push appends rec at the tail.
func (q *Queue) Push(rec *Record) {
	if rec.queue != nil {
		panic("msg: record " + rec.Kind.String() + " pushed to " + q.name + " while still queued in " + rec.queue.name)
	}
	rec.queue = q
	q.elems[rec] = q.items.PushBack(rec)
}

// Pop removes and returns the head, or nil when the queue is empty.
func (q *Queue) Pop() *Record {
	front := q.items.Front()
	if front == nil {
		return nil
	}
	rec := front.Value.(*Record)
	q.unlink(rec, front)
	return rec
}

// Peek returns the head without removing it.
func (q *Queue) Peek() *Record {
	front := q.items.Front()
	if front == nil {
		return nil
	}
	return front.Value.(*Record)
}

// FindByID returns the first record with the given id, or nil.
func (q *Queue) FindByID(id int) *Record {
	for e := q.items.Front(); e != nil; e = e.Next() {
		if rec := e.Value.(*Record); rec.ID == id {
			return rec
		}
	}
	return nil
}

// Remove detaches rec from any position. It is a no-op when rec is not in q.
func (q *Queue) Remove(rec *Record) {
	if rec == nil || rec.queue != q {
		return
	}
	if e, ok := q.elems[rec]; ok {
		q.unlink(rec, e)
	}
}

// Drain pops every record and hands it to destroy, head first. destroy may be
// nil when the caller has nothing to release.
func (q *Queue) Drain(destroy func(*Record)) int {
	n := 0
	for rec := q.Pop(); rec != nil; rec = q.Pop() {
		if destroy != nil {
			destroy(rec)
		}
		n++
	}
	return n
}

func (q *Queue) unlink(rec *Record, e *list.Element) {
	q.items.Remove(e)
	delete(q.elems, rec)
	rec.queue = nil
}
