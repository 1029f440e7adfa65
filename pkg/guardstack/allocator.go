package guardstack

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/awnumar/memguard"
	"golang.org/x/sys/unix"
)

// Allocator supplies the raw regions a [Stack] stores its elements in.
//
// Allocate must return a slice of exactly n bytes, or an error. Release is
// called exactly once for every slice Allocate returned, with the same slice
// header. A Stack never reallocates in place: it allocates the new region,
// copies, and releases the old one, so a failed Allocate leaves the existing
// region untouched.
type Allocator interface {
	Allocate(n int) ([]byte, error)
	Release(buf []byte) error
}

// HeapAllocator allocates regions on the Go heap.
type HeapAllocator struct{}

// Allocate returns a zeroed n-byte slice.
func (HeapAllocator) Allocate(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("allocate %d bytes: %w", n, ErrInvalidInput)
	}

	return make([]byte, n), nil
}

// Release is a no-op; the garbage collector reclaims the region.
func (HeapAllocator) Release([]byte) error {
	return nil
}

// MmapAllocator allocates each region as its own anonymous private mapping.
//
// Regions live outside the Go heap, so nothing but the owning Stack (or a
// stray write) ever touches them.
type MmapAllocator struct{}

// Allocate maps n bytes of anonymous memory.
func (MmapAllocator) Allocate(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("allocate %d bytes: %w", n, ErrInvalidInput)
	}

	buf, err := unix.Mmap(-1, 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap %d bytes: %w", n, err)
	}

	return buf, nil
}

// Release unmaps buf.
func (MmapAllocator) Release(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}

	err := unix.Munmap(buf)
	if err != nil {
		return fmt.Errorf("munmap: %w", err)
	}

	return nil
}

// GuardedAllocator allocates regions as memguard locked buffers: mlock'd,
// surrounded by inaccessible guard pages, with memguard's own canary.
//
// memguard treats a failed allocation as fatal and panics after wiping every
// locked buffer in the process. Keep regions small (RLIMIT_MEMLOCK applies).
//
// A GuardedAllocator may be shared by several stacks.
type GuardedAllocator struct {
	mu      sync.Mutex
	buffers map[*byte]*memguard.LockedBuffer
}

// NewGuardedAllocator returns an empty GuardedAllocator.
func NewGuardedAllocator() *GuardedAllocator {
	return &GuardedAllocator{buffers: make(map[*byte]*memguard.LockedBuffer)}
}

// Allocate returns the n-byte body of a new locked buffer.
func (a *GuardedAllocator) Allocate(n int) ([]byte, error) {
	if n <= 0 {
		return nil, fmt.Errorf("allocate %d bytes: %w", n, ErrInvalidInput)
	}

	locked := memguard.NewBuffer(n)

	buf := locked.Bytes()
	if len(buf) != n {
		locked.Destroy()

		return nil, fmt.Errorf("memguard returned %d bytes, want %d: %w", len(buf), n, ErrAllocation)
	}

	a.mu.Lock()
	a.buffers[unsafe.SliceData(buf)] = locked
	a.mu.Unlock()

	return buf, nil
}

// Release wipes and frees the locked buffer behind buf.
func (a *GuardedAllocator) Release(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}

	key := unsafe.SliceData(buf)

	a.mu.Lock()
	locked, ok := a.buffers[key]
	delete(a.buffers, key)
	a.mu.Unlock()

	if !ok {
		return fmt.Errorf("release of unknown region %p: %w", key, ErrInvalidInput)
	}

	locked.Destroy()

	return nil
}

// live returns the number of regions not yet released.
func (a *GuardedAllocator) live() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.buffers)
}
