package guardstack

import "fmt"

// Resize policy: double at load factor 1.0, shrink to 2/3 at load factor
// <= 0.5. A shrunk region is at most 3/4 full.
const (
	growFactor  = 2
	shrinkNum   = 2
	shrinkDenom = 3
)

// maxInt is the largest value of int on this platform.
const maxInt = int(^uint(0) >> 1)

// recommendedCapacity returns the capacity the region should have for the
// current logical size.
func (s *Stack) recommendedCapacity() int {
	if s.capacity < s.minCapacity {
		return s.minCapacity
	}

	half := s.capacity / 2
	if s.size <= half && half >= s.minCapacity {
		return max(shrunk(s.capacity), s.minCapacity, s.floorCap)
	}

	if s.size >= s.capacity {
		if s.capacity > s.capLimit/growFactor {
			return s.capLimit
		}

		return s.capacity * growFactor
	}

	return s.capacity
}

// shrunk returns floor(capacity * 2/3) without overflowing.
func shrunk(capacity int) int {
	return capacity/shrinkDenom*shrinkNum + capacity%shrinkDenom*shrinkNum/shrinkDenom
}

// adjust resizes the region to the recommended capacity if it differs from
// the current one. Reports false if a needed resize failed.
func (s *Stack) adjust() bool {
	target := s.recommendedCapacity()
	if target == s.capacity {
		return true
	}

	return s.resize(target)
}

// resize moves the elements into a fresh region of newCap slots.
//
// If growing by more than one slot fails, a single retry asks for just one
// extra slot. If that fails too, the current region is left exactly as it
// was, the status becomes StatusAllocationError, and resize reports false.
func (s *Stack) resize(newCap int) bool {
	raw, err := s.allocate(newCap)
	if err != nil && newCap > s.capacity+1 {
		s.log.Debug().
			Err(err).
			Int("requested", newCap).
			Int("fallback", s.capacity+1).
			Msg("resize failed, retrying with one extra slot")

		newCap = s.capacity + 1
		raw, err = s.allocate(newCap)
	}

	if err != nil {
		s.status = StatusAllocationError
		s.log.Debug().Err(err).Int("requested", newCap).Int("capacity", s.capacity).Msg("resize failed")

		return false
	}

	old := s.raw
	oldCap := s.capacity

	live := s.slotOffset(s.size)
	start := s.pad()
	copy(raw[start:live], old[start:live])

	s.raw = raw
	s.capacity = newCap
	s.sealRegion(s.size)
	s.reseal()

	releaseErr := s.alloc.Release(old)
	if releaseErr != nil {
		s.log.Warn().Err(releaseErr).Msg("release of previous region failed")
	}

	s.log.Debug().Int("from", oldCap).Int("to", newCap).Int("size", s.size).Msg("resized")

	if s.observer != nil {
		s.observer.Resized(oldCap, newCap)
	}

	return true
}

// allocate obtains a region for capacity slots plus guard padding and checks
// the allocator kept its contract.
func (s *Stack) allocate(capacity int) ([]byte, error) {
	raw, err := s.allocateRegion(capacity)
	if err != nil && s.observer != nil {
		s.observer.AllocationFailed(capacity)
	}

	return raw, err
}

func (s *Stack) allocateRegion(capacity int) ([]byte, error) {
	n, ok := regionSize(capacity, s.elemSize, s.pad())
	if !ok {
		return nil, fmt.Errorf("%d slots of %d bytes overflow: %w", capacity, s.elemSize, ErrAllocation)
	}

	raw, err := s.alloc.Allocate(n)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllocation, err)
	}

	if len(raw) != n {
		_ = s.alloc.Release(raw)

		return nil, fmt.Errorf("allocator returned %d bytes, want %d: %w", len(raw), n, ErrAllocation)
	}

	return raw, nil
}

// regionSize returns capacity*elemSize + 2*pad, or false on overflow or if
// capacity is outside the supported range.
func regionSize(capacity, elemSize, pad int) (int, bool) {
	if capacity <= 0 || capacity > maxCapacity || elemSize <= 0 {
		return 0, false
	}

	if capacity > (maxInt-2*pad)/elemSize {
		return 0, false
	}

	return capacity*elemSize + 2*pad, true
}
