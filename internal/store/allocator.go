package store

import (
	"errors"
	"fmt"
)

// Allocator is the storage-growth contract for the append-only ledgers.
// Every append reserves its space up front: if GrowBy fails the append is
// aborted before any state mutation, so a failed allocation never leaves a
// half-written record behind.
type Allocator interface {
	// GrowBy reserves bytes additional bytes. Returns ErrAllocationFailed
	// when the reservation cannot be satisfied and ErrSizeOverflow when the
	// running size would overflow.
	GrowBy(bytes int) error
}

var (
	ErrAllocationFailed = errors.New("storage allocation failed")
	ErrSizeOverflow     = errors.New("storage size overflow")
)

// MemAllocator tracks reserved capacity for in-memory ledgers. A limit of 0
// means unbounded. The append path is serialized by the settlement engine,
// so MemAllocator does no locking of its own.
type MemAllocator struct {
	size  int
	limit int
}

func NewMemAllocator(limit int) *MemAllocator {
	return &MemAllocator{limit: limit}
}

func (a *MemAllocator) GrowBy(bytes int) error {
	if bytes <= 0 {
		return fmt.Errorf("%w: non-positive growth %d", ErrAllocationFailed, bytes)
	}

	newSize := a.size + bytes
	if newSize < a.size {
		return ErrSizeOverflow
	}

	if a.limit > 0 && newSize > a.limit {
		return fmt.Errorf("%w: need %d bytes, limit %d", ErrAllocationFailed, newSize, a.limit)
	}

	a.size = newSize
	return nil
}

// Size returns the total bytes reserved so far.
func (a *MemAllocator) Size() int {
	return a.size
}
