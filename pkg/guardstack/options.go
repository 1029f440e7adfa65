package guardstack

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultFloor is the smallest capacity a Stack is ever sized to when
// [Options.Floor] is zero.
const DefaultFloor = 10

// maxElemSize bounds a single element. Larger elements are almost certainly a
// mistake and make capacity arithmetic harder to keep overflow-free.
const maxElemSize = 1 << 20 // 1 MiB

// maxCapacity bounds the slot count for the same reason. It fits in a 32-bit
// int so capacity arithmetic stays portable.
const maxCapacity = 1<<31 - 1

// Policy decides what happens once corruption has been detected and recorded.
type Policy uint8

const (
	// PolicyReport records the corruption status and returns an error.
	PolicyReport Policy = iota

	// PolicyPanic records the status, emits the diagnostic record, then
	// panics with a *CorruptionError.
	PolicyPanic
)

func (p Policy) String() string {
	switch p {
	case PolicyReport:
		return "report"
	case PolicyPanic:
		return "panic"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// ParsePolicy maps "report" or "panic" to a Policy. The empty string selects
// PolicyReport.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "report":
		return PolicyReport, nil
	case "panic", "abort":
		return PolicyPanic, nil
	default:
		return PolicyReport, fmt.Errorf("unknown corruption policy %q: %w", s, ErrInvalidInput)
	}
}

// Observer receives lifecycle and verification events. Implementations must
// be cheap; they run inline on every operation.
type Observer interface {
	// Verified is called after every verification pass with the resulting
	// status.
	Verified(status Status)

	// Resized is called after the data region moved to a new capacity.
	Resized(from, to int)

	// AllocationFailed is called for every allocation attempt that failed,
	// including the single-slot retry.
	AllocationFailed(requested int)
}

// Options configure a new [Stack].
type Options struct {
	// ElemSize is the fixed size in bytes of every element.
	//
	// Required (>= 1) for [New]. Ignored by [NewOf], which derives it from T.
	ElemSize int

	// Disable lists the protection layers to switch off.
	//
	// The zero value keeps every layer enabled.
	Disable Protection

	// Floor is the smallest capacity the region is ever sized to. It is also
	// the initial capacity.
	//
	// Zero selects [DefaultFloor].
	Floor int

	// Checksum selects the algorithm for the two hash layers.
	Checksum Checksum

	// Allocator supplies raw regions. Nil selects [HeapAllocator].
	Allocator Allocator

	// Logger receives diagnostic records. Nil disables logging.
	//
	// Verification passes are logged at trace level, resizes at debug level,
	// detected corruption at error level with a full dump attached.
	Logger *zerolog.Logger

	// OnCorruption selects what happens after corruption is detected.
	OnCorruption Policy

	// Observer, if set, receives lifecycle events (see gsprom).
	Observer Observer
}

// Protection returns the layers that will be active for these options.
func (o Options) Protection() Protection {
	return (ProtectAll &^ o.Disable).normalize()
}

func (o Options) floor() int {
	if o.Floor == 0 {
		return DefaultFloor
	}

	return o.Floor
}

func (o Options) validate() error {
	if o.ElemSize <= 0 {
		return fmt.Errorf("element size %d must be >= 1: %w", o.ElemSize, ErrInvalidInput)
	}

	if o.ElemSize > maxElemSize {
		return fmt.Errorf("element size %d exceeds max %d: %w", o.ElemSize, maxElemSize, ErrInvalidInput)
	}

	if o.Floor < 0 {
		return fmt.Errorf("floor %d must not be negative: %w", o.Floor, ErrInvalidInput)
	}

	if o.floor() > maxCapacity {
		return fmt.Errorf("floor %d exceeds max capacity %d: %w", o.Floor, maxCapacity, ErrInvalidInput)
	}

	if o.Disable&^ProtectAll != 0 {
		return fmt.Errorf("unknown protection bits %#x: %w", uint8(o.Disable&^ProtectAll), ErrInvalidInput)
	}

	if !o.Checksum.valid() {
		return fmt.Errorf("unknown checksum %d: %w", uint8(o.Checksum), ErrInvalidInput)
	}

	if o.OnCorruption != PolicyReport && o.OnCorruption != PolicyPanic {
		return fmt.Errorf("unknown corruption policy %d: %w", uint8(o.OnCorruption), ErrInvalidInput)
	}

	return nil
}
