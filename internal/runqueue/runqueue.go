// Package runqueue implements a per-CPU run queue: a spinlock-guarded
// circular list of threads in insertion order (§4.1, §9 "Intrusive
// ring").
//
// On real hardware, acquiring a run queue's lock also disables
// interrupts for the duration of the critical section; a hosted Go
// process cannot mask hardware interrupts, so Lock/Unlock here are a
// plain mutex and every caller is expected to keep the critical section
// short, matching the discipline §5 describes rather than the
// mechanism.
package runqueue

import (
	"sync"

	"github.com/lemon-kernel/nucleus/internal/thread"
)

// Queue is a single CPU's run queue.
type Queue struct {
	mu     sync.Mutex
	head   *thread.Thread
	length int
}

// New returns an empty queue.
func New() *Queue { return &Queue{} }

// Lock acquires the queue's spinlock.
func (q *Queue) Lock() { q.mu.Lock() }

// Unlock releases the queue's spinlock.
func (q *Queue) Unlock() { q.mu.Unlock() }

// TryLock attempts to acquire the spinlock without blocking, mirroring
// the non-blocking acquire Schedule uses (§4.6 step 2: "on failure,
// return").
func (q *Queue) TryLock() bool { return q.mu.TryLock() }

// PushBack appends t to the ring. The caller must hold the lock.
func (q *Queue) PushBack(t *thread.Thread) {
	if q.head == nil {
		t.Next = t
		t.Prev = t
		q.head = t
	} else {
		tail := q.head.Prev
		tail.Next = t
		t.Prev = tail
		t.Next = q.head
		q.head.Prev = t
	}
	q.length++
}

// Remove unlinks t from the ring if present. The caller must hold the
// lock. It is a no-op if t is not linked into any ring.
func (q *Queue) Remove(t *thread.Thread) {
	if t.Next == nil {
		return
	}
	if t.Next == t {
		q.head = nil
	} else {
		t.Prev.Next = t.Next
		t.Next.Prev = t.Prev
		if q.head == t {
			q.head = t.Next
		}
	}
	t.Next = nil
	t.Prev = nil
	q.length--
}

// Head returns the front of the ring, or nil if empty. The caller must
// hold the lock.
func (q *Queue) Head() *thread.Thread { return q.head }

// Len returns the queue's length, the caller must hold the lock.
func (q *Queue) Len() int { return q.length }

// LenLocked acquires the lock, reads the length, and releases it —
// convenient for the shortest-queue placement heuristic (§4.1) that
// only needs a point-in-time comparison.
func (q *Queue) LenLocked() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.length
}

// Contains reports whether t is currently linked into this ring. The
// caller must hold the lock.
func (q *Queue) Contains(t *thread.Thread) bool {
	if q.head == nil {
		return false
	}
	cur := q.head
	for {
		if cur == t {
			return true
		}
		cur = cur.Next
		if cur == q.head {
			return false
		}
	}
}

// Each calls fn for every thread currently in the ring, front to back,
// stopping early if fn returns false. fn must not mutate the ring: the
// walk stops when it comes back to the first thread it visited, so
// removing that thread leaves the loop without its end marker. Use
// RemoveWhere to remove threads while walking.
func (q *Queue) Each(fn func(t *thread.Thread) bool) {
	if q.head == nil {
		return
	}
	start := q.head
	cur := start
	for {
		next := cur.Next
		if !fn(cur) {
			return
		}
		if next == start {
			return
		}
		cur = next
	}
}

// RemoveWhere removes every thread for which match returns true, except
// keep, and returns how many were removed. The caller must hold the
// lock. This backs §4.8 step 5 ("remove every thread of p except the
// current").
func (q *Queue) RemoveWhere(keep *thread.Thread, match func(t *thread.Thread) bool) int {
	if q.head == nil {
		return 0
	}
	var toRemove []*thread.Thread
	start := q.head
	cur := start
	for {
		next := cur.Next
		if cur != keep && match(cur) {
			toRemove = append(toRemove, cur)
		}
		if next == start {
			break
		}
		cur = next
	}
	for _, t := range toRemove {
		q.Remove(t)
	}
	return len(toRemove)
}
