package guardstack

// Test-only hooks. They let tests play the part of a stray writer that
// bypasses the public API.

// GuardValue is the guard sentinel.
const GuardValue = guardValue

// RawRegion returns the whole backing region, guard padding included.
func RawRegion(s *Stack) []byte { return s.raw }

// DataOffset returns the offset of slot 0 within the raw region.
func DataOffset(s *Stack) int { return s.pad() }

// PoisonByte returns the fill byte for absolute offset off.
func PoisonByte(off int) byte { return poisonByte(off) }

// RecommendedCapacity exposes the lifecycle policy.
func RecommendedCapacity(s *Stack) int { return s.recommendedCapacity() }

// SetShape overwrites the tracked counters without resealing.
func SetShape(s *Stack, size, capacity int) {
	s.size = size
	s.capacity = capacity
}

// SetCapacityLimit lowers the slot limit growth saturates at.
func SetCapacityLimit(s *Stack, n int) { s.capLimit = n }

// SetStatus overwrites the status field.
func SetStatus(s *Stack, status Status) { s.status = status }

// SetControlGuards overwrites the control block guards.
func SetControlGuards(s *Stack, front, back uint64) {
	s.frontGuard = front
	s.backGuard = back
}

// SetMetadataHash overwrites the stored metadata checksum.
func SetMetadataHash(s *Stack, v uint64) { s.seals.metaHash = v }

// Reseal recomputes checksums, as a mutation through the API would.
func Reseal(s *Stack) { s.reseal() }

// Shape returns the tracked counters without verifying.
func Shape(s *Stack) (size, capacity, minCapacity int) {
	return s.size, s.capacity, s.minCapacity
}

// LiveRegions returns the number of regions a GuardedAllocator still holds.
func LiveRegions(a *GuardedAllocator) int { return a.live() }

// SumBytes exposes a checksum algorithm.
func SumBytes(c Checksum, data []byte) uint64 { return c.sumBytes(data) }

// SumWords exposes a checksum algorithm.
func SumWords(c Checksum, words ...uint64) uint64 { return c.sumWords(words...) }
