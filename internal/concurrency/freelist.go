// File: internal/concurrency/freelist.go
// Package concurrency provides the lock-free free-list used to rent and
// return connection slots without blocking.
// Author: Sam Y.
// License: Apache-2.0
//
// FreeList is a LIFO stack of *slot.Slot threaded through Slot.Next via
// compare-and-swap on the head pointer. Push/Pop are O(1) and wait-free
// against contention within a bounded number of CAS retries, in the style
// of the teacher's sequence-numbered MPMC queue but shaped as a pointer
// stack rather than a ring, since the free-list has no ordering
// requirement beyond LIFO reuse.
//
// ABA discipline: a slot may be pushed back only by the single thread that
// evicted it, and only after its descriptor has been removed from the
// readiness multiplexor and closed (see connreactor's evict path). FreeList
// itself does not enforce this — it is a usage discipline, not a runtime
// check — but it is the reason a plain CAS stack is safe here without
// hazard pointers or tagged pointers.
package concurrency

import (
	"sync/atomic"

	"github.com/samy-dev/reactorkit/slot"
)

// FreeList is a lock-free LIFO stack of connection slots.
type FreeList struct {
	head atomic.Pointer[slot.Slot]
}

// NewFreeList returns an empty free-list.
func NewFreeList() *FreeList {
	return &FreeList{}
}

// Push returns s to the top of the stack. Push cannot fail.
func (f *FreeList) Push(s *slot.Slot) {
	for {
		head := f.head.Load()
		s.Next = head
		if f.head.CompareAndSwap(head, s) {
			return
		}
	}
}

// Pop removes and returns the top of the stack, or (nil, false) if empty.
func (f *FreeList) Pop() (*slot.Slot, bool) {
	for {
		head := f.head.Load()
		if head == nil {
			return nil, false
		}
		if f.head.CompareAndSwap(head, head.Next) {
			head.Next = nil
			return head, true
		}
	}
}

// Seed links slots into the stack in address order so that the first Pop
// returns slots[len(slots)-1] — the highest-indexed slot — matching the
// arena construction order of spec.md's data model. Seed must only be
// called before any concurrent Push/Pop begins.
func (f *FreeList) Seed(slots []slot.Slot) {
	var prev *slot.Slot
	for i := range slots {
		slots[i].Next = prev
		prev = &slots[i]
	}
	f.head.Store(prev)
}
