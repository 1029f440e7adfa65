package guardstack

import (
	"fmt"
	"io"
	"unsafe"

	"github.com/rs/zerolog"
)

// Stack is an untyped, integrity-protected LIFO of fixed-size elements.
//
// Create one with [New]; the zero value is not usable. See the package
// documentation for the verification contract.
type Stack struct {
	// Immutable after New.
	layers   Protection
	checksum Checksum
	floorCap int
	alloc    Allocator
	capLimit int
	policy   Policy
	observer Observer
	log      zerolog.Logger

	closed bool

	// Everything between the two guard words is tracked state. The metadata
	// guard layer checks frontGuard and backGuard; the metadata hash covers
	// raw's address, elemSize, size and capacity.
	frontGuard  uint64
	raw         []byte
	elemSize    int
	size        int
	capacity    int
	minCapacity int
	status      Status
	seals       seals
	backGuard   uint64
}

// seals holds the stored values of the hash layers. Fields belonging to a
// disabled layer stay zero and are never compared.
type seals struct {
	metaHash uint64
	dataHash uint64
}

// New allocates a Stack with capacity [Options.Floor] (default
// [DefaultFloor]).
//
// Returns [ErrInvalidInput] for bad options and an error wrapping
// [ErrAllocation] if the first region cannot be allocated.
func New(opts Options) (*Stack, error) {
	err := opts.validate()
	if err != nil {
		return nil, err
	}

	alloc := opts.Allocator
	if alloc == nil {
		alloc = HeapAllocator{}
	}

	s := &Stack{
		layers:   opts.Protection(),
		checksum: opts.Checksum,
		floorCap: opts.floor(),
		alloc:    alloc,
		capLimit: maxCapacity,
		policy:   opts.OnCorruption,
		observer: opts.Observer,
		elemSize: opts.ElemSize,
		status:   StatusOK,
	}

	if opts.Logger != nil {
		s.log = opts.Logger.With().Str("stack", fmt.Sprintf("%p", s)).Logger()
	} else {
		s.log = zerolog.Nop()
	}

	if s.layers.Has(ProtectMetadataGuard) {
		s.frontGuard = guardValue
		s.backGuard = guardValue
	}

	raw, err := s.allocate(s.floorCap)
	if err != nil {
		return nil, fmt.Errorf("allocate initial region: %w", err)
	}

	s.raw = raw
	s.capacity = s.floorCap
	s.minCapacity = s.floorCap

	s.sealRegion(0)
	s.reseal()

	s.log.Debug().
		Int("elem_size", s.elemSize).
		Int("capacity", s.capacity).
		Stringer("protection", s.layers).
		Stringer("checksum", s.checksum).
		Msg("stack created")

	return s, nil
}

// Push copies elem onto the top of the stack, growing the region if it is
// full.
//
// elem must be exactly ElemSize bytes. If the region cannot be brought to
// the recommended capacity first (grow or pending shrink), elem is not
// stored, the stack is unchanged, [Stack.Status] reports
// [StatusAllocationError], and the error wraps [ErrAllocation].
func (s *Stack) Push(elem []byte) error {
	err := s.enter()
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}

	if len(elem) != s.elemSize {
		return fmt.Errorf("push: element is %d bytes, want %d: %w", len(elem), s.elemSize, ErrInvalidInput)
	}

	s.status = StatusOK

	if !s.adjust() || s.size >= s.capacity {
		s.status = StatusAllocationError

		return fmt.Errorf("push: resize from %d slots: %w", s.capacity, ErrAllocation)
	}

	copy(s.slot(s.size), elem)
	s.size++
	s.reseal()

	return nil
}

// Pop removes the top element and copies it into out, which must be exactly
// ElemSize bytes. It returns out.
//
// On an empty stack it returns an error wrapping [ErrEmpty] and sets
// [StatusOperationError]. If the region cannot be shrunk afterwards the
// element is still returned and [Stack.Status] reports
// [StatusAllocationError].
func (s *Stack) Pop(out []byte) ([]byte, error) {
	err := s.top("pop", out)
	if err != nil {
		return nil, err
	}

	s.size--
	if s.layers.Has(ProtectPoison) {
		writePoison(s.slot(s.size), s.slotOffset(s.size))
	}

	s.reseal()
	s.adjust()

	return out, nil
}

// Peek copies the top element into out without removing it. Same contract
// as [Stack.Pop].
func (s *Stack) Peek(out []byte) ([]byte, error) {
	err := s.top("peek", out)
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (s *Stack) top(op string, out []byte) error {
	err := s.enter()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if len(out) != s.elemSize {
		return fmt.Errorf("%s: buffer is %d bytes, want %d: %w", op, len(out), s.elemSize, ErrInvalidInput)
	}

	if s.size == 0 {
		s.status = StatusOperationError

		return fmt.Errorf("%s: %w", op, ErrEmpty)
	}

	s.status = StatusOK
	copy(out, s.slot(s.size-1))

	return nil
}

// Len returns the number of elements, or 0 if the stack is corrupt or
// closed.
func (s *Stack) Len() int {
	if s.enter() != nil {
		return 0
	}

	return s.size
}

// Cap returns the number of allocated slots, or 0 if the stack is corrupt or
// closed.
func (s *Stack) Cap() int {
	if s.enter() != nil {
		return 0
	}

	return s.capacity
}

// IsEmpty reports whether the stack holds no elements. A corrupt or closed
// stack reports true.
func (s *Stack) IsEmpty() bool {
	if s.enter() != nil {
		return true
	}

	return s.size == 0
}

// ElemSize returns the element size fixed at creation.
func (s *Stack) ElemSize() int {
	if s == nil {
		return 0
	}

	return s.elemSize
}

// Protection returns the active layers.
func (s *Stack) Protection() Protection {
	if s == nil {
		return ProtectNone
	}

	return s.layers
}

// Reserve raises the capacity floor to at least n slots (never below the
// creation floor), resizing immediately if needed. It returns the resulting
// floor.
//
// If the region cannot reach the new floor, the previous floor is kept, the
// returned value is 0, and the error wraps [ErrAllocation].
func (s *Stack) Reserve(n int) (int, error) {
	err := s.enter()
	if err != nil {
		return 0, fmt.Errorf("reserve: %w", err)
	}

	if n < 0 || n > maxCapacity {
		return 0, fmt.Errorf("reserve: %d slots out of range: %w", n, ErrInvalidInput)
	}

	prev := s.minCapacity
	s.minCapacity = max(n, s.floorCap)
	s.status = StatusOK

	if !s.adjust() || s.capacity < s.minCapacity {
		s.minCapacity = prev
		s.status = StatusAllocationError

		return 0, fmt.Errorf("reserve: %d slots: %w", n, ErrAllocation)
	}

	return s.minCapacity, nil
}

// Status verifies the stack and returns its status.
func (s *Stack) Status() Status {
	if s == nil {
		return StatusOK
	}

	if !s.closed {
		s.verify()
	}

	return s.status
}

// Err returns the sentinel error for the current status, or nil.
func (s *Stack) Err() error {
	return s.Status().Err()
}

// Dump writes a human-readable snapshot to w. It does not verify first and
// works on corrupt stacks.
func (s *Stack) Dump(w io.Writer) error {
	return s.Snapshot().WriteText(w)
}

// Close releases the data region. Closing a nil or already closed Stack is a
// no-op. All other methods return [ErrClosed] afterwards.
func (s *Stack) Close() error {
	if s == nil || s.closed {
		return nil
	}

	raw := s.raw
	s.raw = nil
	s.closed = true

	if raw == nil {
		return nil
	}

	err := s.alloc.Release(raw)
	if err != nil {
		return fmt.Errorf("close: release region: %w", err)
	}

	s.log.Debug().Msg("stack closed")

	return nil
}

// enter is the common prologue of every public operation: verify, then
// refuse to continue on a non-recoverable status.
func (s *Stack) enter() error {
	if s == nil || s.closed {
		return ErrClosed
	}

	status := s.verify()
	if !status.Recoverable() {
		return status.Err()
	}

	return nil
}

// pad returns the bytes reserved before (and after) the element range.
func (s *Stack) pad() int {
	if s.layers.Has(ProtectDataGuard) {
		return guardSize
	}

	return 0
}

// slotOffset returns the absolute offset of slot i within raw.
func (s *Stack) slotOffset(i int) int {
	return s.pad() + i*s.elemSize
}

// slot returns the bytes of slot i. Only valid after structural checks.
func (s *Stack) slot(i int) []byte {
	off := s.slotOffset(i)

	return s.raw[off : off+s.elemSize]
}

// data returns the element range of raw, live and unused slots alike.
func (s *Stack) data() []byte {
	off := s.pad()

	return s.raw[off : off+s.capacity*s.elemSize]
}

// regionAddr returns the base address of raw, tracked by the metadata hash.
func (s *Stack) regionAddr() uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(s.raw)))
}

// sealRegion rewrites the data guards and poisons slots [from, capacity).
func (s *Stack) sealRegion(from int) {
	if s.layers.Has(ProtectDataGuard) {
		writeGuard(s.raw, 0)
		writeGuard(s.raw, s.slotOffset(s.capacity))
	}

	if s.layers.Has(ProtectPoison) && from < s.capacity {
		start := s.slotOffset(from)
		writePoison(s.raw[start:s.slotOffset(s.capacity)], start)
	}
}

// reseal recomputes the stored checksums after a legitimate mutation.
func (s *Stack) reseal() {
	if s.layers.Has(ProtectMetadataHash) {
		s.seals.metaHash = s.metadataChecksum()
	}

	if s.layers.Has(ProtectDataHash) {
		s.seals.dataHash = s.dataChecksum()
	}
}

func (s *Stack) metadataChecksum() uint64 {
	return s.checksum.sumWords(
		uint64(s.regionAddr()),
		uint64(s.elemSize),
		uint64(s.size),
		uint64(s.capacity),
	)
}

func (s *Stack) dataChecksum() uint64 {
	return s.checksum.sumBytes(s.data())
}
