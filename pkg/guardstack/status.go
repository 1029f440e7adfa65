package guardstack

import "fmt"

// Status is the outcome of the most recent operation on a [Stack].
type Status uint8

// Status values.
//
// The order is part of the contract: [Status.Valid] accepts exactly the range
// StatusOK..StatusCorrupt.
const (
	StatusOK Status = iota
	StatusAllocationError
	StatusOperationError
	StatusMetadataGuardError
	StatusDataGuardError
	StatusMetadataHashError
	StatusDataHashError
	StatusPoisonError
	StatusCorrupt
)

var statusNames = [...]string{
	StatusOK:                 "ok",
	StatusAllocationError:    "allocation_error",
	StatusOperationError:     "operation_error",
	StatusMetadataGuardError: "metadata_guard_error",
	StatusDataGuardError:     "data_guard_error",
	StatusMetadataHashError:  "metadata_hash_error",
	StatusDataHashError:      "data_hash_error",
	StatusPoisonError:        "poison_overwrite_error",
	StatusCorrupt:            "corruption_error",
}

var statusMessages = [...]string{
	StatusOK:                 "No error",
	StatusAllocationError:    "Internal memory allocation error",
	StatusOperationError:     "Invalid stack operation was requested by user",
	StatusMetadataGuardError: "One of the stack's metadata guards has been overwritten. Metadata is probably corrupted",
	StatusDataGuardError:     "One of the stack's data guards has been overwritten. Data is possibly corrupted",
	StatusMetadataHashError:  "Stack metadata checksum differs from the one stored. Metadata is probably corrupted",
	StatusDataHashError:      "Stack data checksum differs from the one stored. Data is possibly corrupted",
	StatusPoisonError:        "Stack unused data memory has been overwritten. Data is possibly corrupted",
	StatusCorrupt:            "Stack memory has been corrupted",
}

var statusErrors = [...]error{
	StatusOK:                 nil,
	StatusAllocationError:    ErrAllocation,
	StatusOperationError:     ErrEmpty,
	StatusMetadataGuardError: ErrMetadataGuard,
	StatusDataGuardError:     ErrDataGuard,
	StatusMetadataHashError:  ErrMetadataHash,
	StatusDataHashError:      ErrDataHash,
	StatusPoisonError:        ErrPoisonOverwrite,
	StatusCorrupt:            ErrCorrupt,
}

// Valid reports whether s is a defined member of the taxonomy.
func (s Status) Valid() bool {
	return s <= StatusCorrupt
}

// Recoverable reports whether an instance in this state may still be used.
func (s Status) Recoverable() bool {
	return s == StatusOK || s == StatusAllocationError || s == StatusOperationError
}

// String returns the short snake_case name, used in logs and metric labels.
func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("status(%d)", uint8(s))
	}

	return statusNames[s]
}

// Message returns the human-readable description.
func (s Status) Message() string {
	if !s.Valid() {
		return "Unknown error"
	}

	return statusMessages[s]
}

// Err returns the sentinel error for s, or nil for StatusOK.
// Undefined values map to [ErrCorrupt].
func (s Status) Err() error {
	if !s.Valid() {
		return ErrCorrupt
	}

	return statusErrors[s]
}

// ErrorMessage returns the human-readable description of s.
func ErrorMessage(s Status) string {
	return s.Message()
}
