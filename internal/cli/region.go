package cli

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/calvinalkan/guardstack/pkg/guardstack"
)

var errNoRegion = errors.New("stack has no live region")

// trackingAllocator wraps the configured allocator and remembers the region
// the stack currently owns, so poke can write to it behind the stack's back.
type trackingAllocator struct {
	guardstack.Allocator

	current []byte
}

func (a *trackingAllocator) Allocate(n int) ([]byte, error) {
	buf, err := a.Allocator.Allocate(n)
	if err != nil {
		return nil, err //nolint:wrapcheck // passthrough, the stack wraps it
	}

	a.current = buf

	return buf, nil
}

func (a *trackingAllocator) Release(buf []byte) error {
	if len(a.current) > 0 && len(buf) > 0 && unsafe.SliceData(a.current) == unsafe.SliceData(buf) {
		a.current = nil
	}

	return a.Allocator.Release(buf) //nolint:wrapcheck // passthrough
}

// poke overwrites one byte of the live region and returns the old value.
func (a *trackingAllocator) poke(offset int, value byte) (byte, error) {
	if a.current == nil {
		return 0, errNoRegion
	}

	if offset < 0 || offset >= len(a.current) {
		return 0, fmt.Errorf("offset %d outside region of %d bytes", offset, len(a.current))
	}

	old := a.current[offset]
	a.current[offset] = value

	return old, nil
}

// size returns the byte length of the live region.
func (a *trackingAllocator) size() int {
	return len(a.current)
}
