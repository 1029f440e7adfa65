// Package guardstack provides a self-verifying, growable LIFO container for
// fixed-size elements.
//
// A [Stack] keeps its elements in a raw byte region obtained from an
// [Allocator] and protects both its own control block and that region with a
// configurable set of independent layers:
//
//   - guard words flanking the mutable control fields
//   - guard words flanking the data region
//   - a checksum over the tracked metadata
//   - a checksum over the full data region
//   - a deterministic, offset-dependent fill pattern over unused slots
//
// Every public call verifies all active layers first. A mismatch is classified
// into a specific [Status] and the instance is poisoned: every later call
// re-verifies, sees the same condition and fails without touching the buffer.
//
// # Basic Usage
//
//	stk, err := guardstack.New(guardstack.Options{ElemSize: 4})
//	if err != nil {
//	    // ErrInvalidInput or ErrAllocation
//	}
//	defer stk.Close()
//
//	err = stk.Push([]byte{1, 0, 0, 0})
//	out, err := stk.Pop(make([]byte, 4))
//
// The generic wrapper avoids the byte plumbing:
//
//	ints, err := guardstack.NewOf[int32](guardstack.Options{})
//	_ = ints.Push(42)
//	v, err := ints.Pop()
//
// # Error Handling
//
// Errors fall into two categories:
//
// Recoverable ([ErrAllocation], [ErrEmpty]): the instance stays usable and a
// later call may succeed.
//
// Corruption (anything matching [ErrCorrupt]): the instance is permanently
// unusable. Inspect it with [Stack.Dump], then [Stack.Close] it.
//
// # Concurrency
//
// A Stack is NOT safe for concurrent use. Callers must serialize all
// operations on an instance. Distinct instances share nothing except an
// optional [Options.Logger], which must tolerate concurrent writes if the
// instances are used from different goroutines.
//
// # Memory Safety
//
// The guard and fill-pattern layers exist to catch writes that bypass the
// public API (a stray pointer, an unsafe slice escape, a hostile [Allocator]).
// They operate on raw bytes on purpose and do not rely on Go's own bounds
// checking.
package guardstack
