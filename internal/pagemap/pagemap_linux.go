//go:build linux

// File: internal/pagemap/pagemap_linux.go
// Author: Sam Y.
// License: Apache-2.0

package pagemap

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func getPageSize() int {
	return unix.Getpagesize()
}

// mmapAnonymous maps a single MAP_PRIVATE|MAP_ANONYMOUS region of size
// bytes, readable and writable. This resolves the page-map backend's open
// question in favor of the simplest correct mapping: one region, no
// memfd, no double mapping.
func mmapAnonymous(size int) ([]byte, error) {
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap: %v", ErrAllocationFailed, err)
	}
	return b, nil
}

func munmap(b []byte) error {
	return unix.Munmap(b)
}
