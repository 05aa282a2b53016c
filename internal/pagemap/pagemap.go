// File: internal/pagemap/pagemap.go
// Package pagemap allocates the page-aligned, fixed-capacity slot arenas
// backing a connection reactor's free-list.
// Author: Sam Y.
// License: Apache-2.0
//
// Two backends are interchangeable per arena: an OS-page-mapped anonymous
// region (used once the requested capacity clears mmapThreshold slots) and
// a plain heap allocation (used below it). Only the page-mapped backend
// rounds the requested capacity up so that actualCap*sizeof(Slot) is a
// whole multiple of the OS page size — that constraint exists because the
// mapping itself is page-granular, not because every caller wants more
// slots than it asked for. The heap backend has no such constraint and
// allocates exactly hint slots, so small capacity hints (including C=1)
// are honored exactly.
package pagemap

import (
	"errors"
	"unsafe"

	"github.com/samy-dev/reactorkit/slot"
)

// ErrInvalidCapacity is returned when the capacity hint is not positive.
var ErrInvalidCapacity = errors.New("pagemap: capacity hint must be positive")

// ErrAllocationFailed wraps a backend allocation failure (mmap or heap).
var ErrAllocationFailed = errors.New("pagemap: allocation failed")

// Backend identifies which allocator produced an Arena.
type Backend int

const (
	// BackendHeap is a plain make([]slot.Slot, n) allocation.
	BackendHeap Backend = iota
	// BackendPageMap is an OS anonymous memory mapping.
	BackendPageMap
)

// mmapThreshold is the requested slot count (the unrounded hint) at or
// above which the page-mapped backend is preferred over the heap. Below it, a heap allocation is
// simpler and the mapping overhead isn't worth it.
const mmapThreshold = 64

// Arena owns a contiguous, fixed-capacity array of connection slots for the
// full lifetime of a reactor. Slot addresses inside an Arena are stable
// until Release is called.
type Arena struct {
	Slots   []slot.Slot
	Backend Backend

	raw []byte // only set for BackendPageMap; passed to munmap on Release
}

// Allocate returns a zero-initialized Arena of at least hint slots. Below
// mmapThreshold, the heap backend is used and actualCap is exactly hint —
// a heap allocation has no page-granularity constraint to round against.
// At or above mmapThreshold, the page-mapped backend is used and actualCap
// is rounded up so that actualCap*sizeof(slot.Slot) is a whole multiple of
// the OS page size, per the page-backed slot buffer contract.
func Allocate(hint int) (*Arena, error) {
	if hint <= 0 {
		return nil, ErrInvalidCapacity
	}

	if hint < mmapThreshold {
		return allocateHeap(hint)
	}

	unitSize := int(unsafe.Sizeof(slot.Slot{}))
	pageSize := getPageSize()
	actualCap := roundCapacityToPageMultiple(hint, unitSize, pageSize)

	if a, err := allocatePageMapped(actualCap, unitSize); err == nil {
		return a, nil
	}
	// Fall through to heap on mmap failure; a large capacity request
	// failing to map is not necessarily fatal if the heap can serve it.
	return allocateHeap(actualCap)
}

// Release returns the Arena's backing memory to its allocator. It must be
// called at most once, after every slot has been evicted.
func (a *Arena) Release() error {
	if a == nil || a.Backend != BackendPageMap || a.raw == nil {
		return nil
	}
	err := munmap(a.raw)
	a.raw = nil
	a.Slots = nil
	return err
}

func allocateHeap(actualCap int) (*Arena, error) {
	return &Arena{
		Slots:   make([]slot.Slot, actualCap),
		Backend: BackendHeap,
	}, nil
}

func allocatePageMapped(actualCap, unitSize int) (*Arena, error) {
	size := actualCap * unitSize
	raw, err := mmapAnonymous(size)
	if err != nil {
		return nil, err
	}
	slots := unsafe.Slice((*slot.Slot)(unsafe.Pointer(&raw[0])), actualCap)
	return &Arena{
		Slots:   slots,
		Backend: BackendPageMap,
		raw:     raw,
	}, nil
}

// roundCapacityToPageMultiple returns the smallest cap >= hint such that
// cap*unitSize is a multiple of pageSize.
func roundCapacityToPageMultiple(hint, unitSize, pageSize int) int {
	d := gcd(unitSize, pageSize)
	step := pageSize / d
	if hint%step == 0 {
		return hint
	}
	return ((hint / step) + 1) * step
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
