package guardstack

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Word is a 64-bit guard or checksum value. It prints as 16 hex digits.
type Word uint64

func (w Word) String() string {
	return fmt.Sprintf("%016X", uint64(w))
}

// MarshalYAML renders the word as a hex string.
func (w Word) MarshalYAML() (any, error) {
	return "0x" + w.String(), nil
}

// HashPair is a stored checksum next to a freshly computed one.
type HashPair struct {
	Stored   Word `yaml:"stored"`
	Computed Word `yaml:"computed"`
}

// Match reports whether the stored value is still valid.
func (p HashPair) Match() bool {
	return p.Stored == p.Computed
}

// GuardPair is the two guard words around a protected area.
type GuardPair struct {
	Front Word `yaml:"front"`
	Back  Word `yaml:"back"`
}

// Intact reports whether both guards hold the sentinel.
func (p GuardPair) Intact() bool {
	return p.Front == Word(guardValue) && p.Back == Word(guardValue)
}

// SlotDump is one element slot.
type SlotDump struct {
	Index int `yaml:"index"`

	// Live is true for slots below the logical size.
	Live bool `yaml:"live"`

	// Hex is the slot content, most significant byte first on little-endian
	// hosts.
	Hex string `yaml:"hex"`

	// Poisoned is true if the slot holds the fill pattern.
	Poisoned bool `yaml:"poisoned,omitempty"`
}

// Snapshot is a point-in-time copy of everything a Stack tracks. Optional
// sections are nil when their layer is disabled or the region is unreadable.
type Snapshot struct {
	Status        Status `yaml:"-"`
	StatusName    string `yaml:"status"`
	StatusMessage string `yaml:"message"`

	Stack      string `yaml:"stack"`
	Closed     bool   `yaml:"closed,omitempty"`
	Protection string `yaml:"protection"`
	Checksum   string `yaml:"checksum"`

	ElemSize    int    `yaml:"elem_size"`
	MinCapacity int    `yaml:"min_capacity"`
	Size        int    `yaml:"size"`
	Capacity    int    `yaml:"capacity"`
	Region      string `yaml:"region"`
	RegionBytes int    `yaml:"region_bytes"`

	MetadataHash   *HashPair  `yaml:"metadata_hash,omitempty"`
	MetadataGuards *GuardPair `yaml:"metadata_guards,omitempty"`
	DataHash       *HashPair  `yaml:"data_hash,omitempty"`
	DataGuards     *GuardPair `yaml:"data_guards,omitempty"`

	// Slots is nil if the region does not match the tracked capacity.
	Slots []SlotDump `yaml:"slots,omitempty"`
}

// Snapshot captures the current state without verifying it. Safe on corrupt
// and closed stacks.
func (s *Stack) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{StatusName: StatusOK.String(), StatusMessage: StatusOK.Message(), Closed: true}
	}

	snap := Snapshot{
		Status:        s.status,
		StatusName:    s.status.String(),
		StatusMessage: s.status.Message(),
		Stack:         fmt.Sprintf("%p", s),
		Closed:        s.closed,
		Protection:    s.layers.String(),
		Checksum:      s.checksum.String(),
		ElemSize:      s.elemSize,
		MinCapacity:   s.minCapacity,
		Size:          s.size,
		Capacity:      s.capacity,
		Region:        fmt.Sprintf("%#x", s.regionAddr()),
		RegionBytes:   len(s.raw),
	}

	if s.layers.Has(ProtectMetadataHash) {
		snap.MetadataHash = &HashPair{Stored: Word(s.seals.metaHash), Computed: Word(s.metadataChecksum())}
	}

	if s.layers.Has(ProtectMetadataGuard) {
		snap.MetadataGuards = &GuardPair{Front: Word(s.frontGuard), Back: Word(s.backGuard)}
	}

	readable := s.elemSize > 0 && s.capacity > 0
	if readable {
		want, ok := regionSize(s.capacity, s.elemSize, s.pad())
		readable = ok && len(s.raw) == want
	}

	if !readable {
		return snap
	}

	if s.layers.Has(ProtectDataHash) {
		snap.DataHash = &HashPair{Stored: Word(s.seals.dataHash), Computed: Word(s.dataChecksum())}
	}

	if s.layers.Has(ProtectDataGuard) {
		snap.DataGuards = &GuardPair{
			Front: Word(readGuard(s.raw, 0)),
			Back:  Word(readGuard(s.raw, s.slotOffset(s.capacity))),
		}
	}

	snap.Slots = make([]SlotDump, s.capacity)
	for i := range snap.Slots {
		slot := s.slot(i)
		snap.Slots[i] = SlotDump{
			Index:    i,
			Live:     i < s.size,
			Hex:      slotHex(slot),
			Poisoned: s.layers.Has(ProtectPoison) && isPoisoned(slot, s.slotOffset(i)),
		}
	}

	return snap
}

// slotHex renders b most significant byte first, assuming little-endian
// element encoding.
func slotHex(b []byte) string {
	var sb strings.Builder

	sb.Grow(2 + 2*len(b))
	sb.WriteString("0x")

	for i := len(b) - 1; i >= 0; i-- {
		fmt.Fprintf(&sb, "%02X", b[i])
	}

	return sb.String()
}

// WriteText renders the snapshot in the human-readable dump format.
// Live slots are shown as [i], unused slots as (i).
func (snap Snapshot) WriteText(w io.Writer) error {
	var sb strings.Builder

	line := func(format string, args ...any) {
		fmt.Fprintf(&sb, format, args...)
		sb.WriteByte('\n')
	}

	line("Dump for Stack at %s", snap.Stack)
	line("Stack status is: %d: %s: %s", uint8(snap.Status), snap.StatusName, snap.StatusMessage)

	if snap.Closed {
		line("Stack is closed")
	}

	line("Stack protection is: %s (checksum %s)", snap.Protection, snap.Checksum)

	if snap.MetadataHash != nil {
		line("Stack stored metadata hash is: %s", snap.MetadataHash.Stored)
		line("Stack actual metadata hash is: %s", snap.MetadataHash.Computed)
	}

	if snap.MetadataGuards != nil {
		line("Stack default guard value is:  %s", Word(guardValue))
		line("Stack front guard is:          %s", snap.MetadataGuards.Front)
		line("Stack back guard is:           %s", snap.MetadataGuards.Back)
	}

	line("Stack element size is     %d", snap.ElemSize)
	line("Stack minimum capacity is %d", snap.MinCapacity)
	line("Stack size is             %d", snap.Size)
	line("Stack capacity is         %d", snap.Capacity)
	line("Stack data is at: %s (%d bytes)", snap.Region, snap.RegionBytes)

	if snap.Slots == nil {
		line("Stack data is unreadable")

		_, err := io.WriteString(w, sb.String())

		return err
	}

	if snap.DataHash != nil {
		line("Stack stored data hash is:          %s", snap.DataHash.Stored)
		line("Stack actual data hash is:          %s", snap.DataHash.Computed)
	}

	if snap.DataGuards != nil {
		line("Stack default data guard value is: %s", Word(guardValue))
		line("Stack data front guard is:         %s", snap.DataGuards.Front)
		line("Stack data back guard is:          %s", snap.DataGuards.Back)
	}

	line("Stack data is:")

	for _, slot := range snap.Slots {
		if slot.Live {
			fmt.Fprintf(&sb, "[%d]: %s", slot.Index, slot.Hex)
		} else {
			fmt.Fprintf(&sb, "(%d): %s", slot.Index, slot.Hex)
		}

		if slot.Poisoned {
			sb.WriteString(" (poison)")
		}

		sb.WriteByte('\n')
	}

	_, err := io.WriteString(w, sb.String())

	return err
}

// YAML renders the snapshot as a YAML document.
func (snap Snapshot) YAML() ([]byte, error) {
	out, err := yaml.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	return out, nil
}
