package guardstack

import (
	"fmt"
	"strings"
)

// verify runs every active check in a fixed order and records the first
// violation in s.status. A clean pass leaves s.status unchanged.
func (s *Stack) verify() Status {
	s.log.Trace().Msg("verification started")

	found, detail := s.check()
	if found == StatusOK {
		s.log.Trace().Stringer("status", s.status).Msg("verification passed")
		s.notifyVerified()

		return s.status
	}

	s.status = found
	s.report(found, detail)
	s.notifyVerified()

	if s.policy == PolicyPanic {
		panic(&CorruptionError{Status: found})
	}

	return found
}

func (s *Stack) notifyVerified() {
	if s.observer != nil {
		s.observer.Verified(s.status)
	}
}

// check returns the first violated invariant and a short description, or
// StatusOK. Order: structure, metadata hash, data hash, metadata guards,
// data guards, fill pattern. Later checks rely on the structure being sane,
// so the order must not change.
func (s *Stack) check() (Status, string) {
	if detail := s.checkStructure(); detail != "" {
		return StatusCorrupt, detail
	}

	if s.layers.Has(ProtectMetadataHash) {
		computed := s.metadataChecksum()
		if computed != s.seals.metaHash {
			return StatusMetadataHashError, fmt.Sprintf("stored %016X, computed %016X", s.seals.metaHash, computed)
		}
	}

	if s.layers.Has(ProtectDataHash) {
		computed := s.dataChecksum()
		if computed != s.seals.dataHash {
			return StatusDataHashError, fmt.Sprintf("stored %016X, computed %016X", s.seals.dataHash, computed)
		}
	}

	if s.layers.Has(ProtectMetadataGuard) {
		if s.frontGuard != guardValue || s.backGuard != guardValue {
			return StatusMetadataGuardError, fmt.Sprintf("front %016X, back %016X", s.frontGuard, s.backGuard)
		}
	}

	if s.layers.Has(ProtectDataGuard) {
		front := readGuard(s.raw, 0)
		back := readGuard(s.raw, s.slotOffset(s.capacity))

		if front != guardValue || back != guardValue {
			return StatusDataGuardError, fmt.Sprintf("front %016X, back %016X", front, back)
		}
	}

	if s.layers.Has(ProtectPoison) {
		start := s.slotOffset(s.size)

		idx := firstPoisonMismatch(s.raw[start:s.slotOffset(s.capacity)], start)
		if idx >= 0 {
			off := start + idx
			slot := (off - s.pad()) / s.elemSize

			return StatusPoisonError, fmt.Sprintf(
				"offset %d (slot %d, byte %d): %02X, want %02X",
				off, slot, (off-s.pad())%s.elemSize, s.raw[off], poisonByte(off),
			)
		}
	}

	return StatusOK, ""
}

// checkStructure validates the fields every other check indexes with.
// Returns a description of the first violation, or "".
func (s *Stack) checkStructure() string {
	switch {
	case s.raw == nil && s.size > 0:
		return fmt.Sprintf("no region but size %d", s.size)
	case s.size < 0 || s.size > s.capacity:
		return fmt.Sprintf("size %d outside [0, capacity %d]", s.size, s.capacity)
	case s.capacity < s.floorCap:
		return fmt.Sprintf("capacity %d below floor %d", s.capacity, s.floorCap)
	case s.elemSize <= 0:
		return fmt.Sprintf("element size %d", s.elemSize)
	case !s.status.Valid():
		return fmt.Sprintf("undefined status %d", uint8(s.status))
	}

	want, ok := regionSize(s.capacity, s.elemSize, s.pad())
	if !ok || len(s.raw) != want {
		return fmt.Sprintf("region is %d bytes, capacity %d of %d bytes needs %d", len(s.raw), s.capacity, s.elemSize, want)
	}

	return ""
}

// report hands the full diagnostic record to the log sink.
func (s *Stack) report(found Status, detail string) {
	event := s.log.Error()
	if !event.Enabled() {
		return
	}

	snap := s.Snapshot()

	var dump strings.Builder

	_ = snap.WriteText(&dump)

	event.
		Stringer("status", found).
		Str("status_message", found.Message()).
		Str("detail", detail).
		Int("elem_size", snap.ElemSize).
		Int("size", snap.Size).
		Int("capacity", snap.Capacity).
		Int("min_capacity", snap.MinCapacity).
		Str("region", snap.Region)

	if snap.MetadataHash != nil {
		event.Stringer("metadata_hash_stored", snap.MetadataHash.Stored).
			Stringer("metadata_hash_computed", snap.MetadataHash.Computed)
	}

	if snap.DataHash != nil {
		event.Stringer("data_hash_stored", snap.DataHash.Stored).
			Stringer("data_hash_computed", snap.DataHash.Computed)
	}

	if snap.MetadataGuards != nil {
		event.Stringer("metadata_guard_front", snap.MetadataGuards.Front).
			Stringer("metadata_guard_back", snap.MetadataGuards.Back)
	}

	if snap.DataGuards != nil {
		event.Stringer("data_guard_front", snap.DataGuards.Front).
			Stringer("data_guard_back", snap.DataGuards.Back)
	}

	event.Str("dump", dump.String()).Msg("verification failed")
}
