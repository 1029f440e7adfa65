package guardstack

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by guardstack operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, guardstack.ErrCorrupt) {
//	    stk.Dump(os.Stderr)
//	    stk.Close()
//	}
var (
	// ErrCorrupt indicates the instance's invariants have been violated.
	//
	// Every layer-specific corruption error below wraps ErrCorrupt. It is also
	// returned directly for structural violations that no single layer owns.
	//
	// Recovery: none. Close the instance.
	ErrCorrupt = errors.New("guardstack: corrupt")

	// ErrMetadataGuard indicates a guard word around the control block was
	// overwritten.
	ErrMetadataGuard = fmt.Errorf("%w: metadata guard overwritten", ErrCorrupt)

	// ErrDataGuard indicates a guard word around the data region was
	// overwritten.
	ErrDataGuard = fmt.Errorf("%w: data guard overwritten", ErrCorrupt)

	// ErrMetadataHash indicates the stored metadata checksum no longer matches
	// the tracked fields.
	ErrMetadataHash = fmt.Errorf("%w: metadata checksum mismatch", ErrCorrupt)

	// ErrDataHash indicates the stored data checksum no longer matches the
	// data region.
	ErrDataHash = fmt.Errorf("%w: data checksum mismatch", ErrCorrupt)

	// ErrPoisonOverwrite indicates an unused slot no longer holds the fill
	// pattern.
	ErrPoisonOverwrite = fmt.Errorf("%w: unused slot overwritten", ErrCorrupt)

	// ErrAllocation indicates the backing region could not be resized.
	//
	// The instance keeps its previous buffer and stays usable.
	//
	// Recovery: retry once memory is available.
	ErrAllocation = errors.New("guardstack: allocation failed")

	// ErrEmpty indicates Pop or Peek on an empty stack.
	//
	// Recovery: push first.
	ErrEmpty = errors.New("guardstack: empty")

	// ErrInvalidInput indicates invalid arguments were provided.
	//
	// Common causes: non-positive element size, element buffer of the wrong
	// length, unknown enum values in [Options].
	//
	// This is a programming error.
	ErrInvalidInput = errors.New("guardstack: invalid input")

	// ErrClosed indicates the [Stack] has already been closed.
	//
	// This is a programming error.
	ErrClosed = errors.New("guardstack: closed")
)

// CorruptionError is the panic value used when [PolicyPanic] is active.
type CorruptionError struct {
	Status Status
}

func (e *CorruptionError) Error() string {
	return "guardstack: " + e.Status.Message()
}

func (e *CorruptionError) Unwrap() error {
	return e.Status.Err()
}
