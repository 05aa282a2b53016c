package concurrency

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/samy-dev/reactorkit/slot"
)

func TestFreeListSeedPopOrder(t *testing.T) {
	slots := make([]slot.Slot, 4)
	fl := NewFreeList()
	fl.Seed(slots)

	for i := 3; i >= 0; i-- {
		got, ok := fl.Pop()
		if !ok {
			t.Fatalf("pop %d: expected a slot, got empty", i)
		}
		if got != &slots[i] {
			t.Fatalf("pop order: want slots[%d], got a different slot", i)
		}
	}
	if _, ok := fl.Pop(); ok {
		t.Fatal("expected free-list to be exhausted")
	}
}

func TestFreeListPushPopRoundTrip(t *testing.T) {
	slots := make([]slot.Slot, 8)
	fl := NewFreeList()
	fl.Seed(slots)

	rented := make([]*slot.Slot, 0, 8)
	for {
		s, ok := fl.Pop()
		if !ok {
			break
		}
		rented = append(rented, s)
	}
	if len(rented) != 8 {
		t.Fatalf("want 8 slots rented, got %d", len(rented))
	}
	for _, s := range rented {
		fl.Push(s)
	}
	count := 0
	for {
		if _, ok := fl.Pop(); !ok {
			break
		}
		count++
	}
	if count != 8 {
		t.Fatalf("want 8 slots back after push, got %d", count)
	}
}

// TestFreeListConcurrentPushPop mirrors the teacher's MPMC stress style:
// many goroutines hammer Push/Pop concurrently and the free-list must never
// lose or duplicate a slot.
func TestFreeListConcurrentPushPop(t *testing.T) {
	const capacity = 256
	const workers = 32
	const itersPerWorker = 2000

	slots := make([]slot.Slot, capacity)
	fl := NewFreeList()
	fl.Seed(slots)

	var outstanding atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < itersPerWorker; i++ {
				s, ok := fl.Pop()
				if !ok {
					runtime.Gosched()
					continue
				}
				outstanding.Add(1)
				fl.Push(s)
				outstanding.Add(-1)
			}
		}()
	}
	wg.Wait()

	if outstanding.Load() != 0 {
		t.Fatalf("outstanding rentals leaked: %d", outstanding.Load())
	}
	count := 0
	for {
		if _, ok := fl.Pop(); !ok {
			break
		}
		count++
	}
	if count != capacity {
		t.Fatalf("want %d slots recovered, got %d", capacity, count)
	}
}
