// Package sched queues deferred callbacks by simulation tick. It is drained
// on the simulation goroutine, so callbacks may touch simulation state.
package sched

import "github.com/zyedidia/generic/heap"

type task struct {
	due uint64
	seq uint64
	fn  func()
}

type Queue struct {
	now  uint64
	seq  uint64
	heap *heap.Heap[task]
}

func New() *Queue {
	return &Queue{heap: heap.New(func(a, b task) bool {
		if a.due != b.due {
			return a.due < b.due
		}
		return a.seq < b.seq
	})}
}

// Now is the tick of the last Advance.
func (q *Queue) Now() uint64 { return q.now }

// After runs fn once, on the first Advance at or past now+ticks.
func (q *Queue) After(ticks uint64, fn func()) {
	q.seq++
	q.heap.Push(task{due: q.now + ticks, seq: q.seq, fn: fn})
}

// Advance runs every task due at or before tick, in due order, and returns
// how many ran. Tasks scheduled by a running task with zero delay run in the
// same Advance.
func (q *Queue) Advance(tick uint64) int {
	if tick > q.now {
		q.now = tick
	}
	n := 0
	for {
		t, ok := q.heap.Peek()
		if !ok || t.due > q.now {
			return n
		}
		q.heap.Pop()
		t.fn()
		n++
	}
}

func (q *Queue) Len() int { return q.heap.Size() }
