package testutil

import (
	"errors"
	"testing"

	"github.com/calvinalkan/guardstack/pkg/guardstack"
)

var errRefused = errors.New("allocation refused by harness")

// refusingAllocator fails a programmable number of upcoming requests.
type refusingAllocator struct {
	guardstack.HeapAllocator

	refuse   int
	requests int
}

func (a *refusingAllocator) Allocate(n int) ([]byte, error) {
	a.requests++

	if a.refuse > 0 {
		a.refuse--

		return nil, errRefused
	}

	return a.HeapAllocator.Allocate(n) //nolint:wrapcheck // passthrough
}

// Harness wires together a real stack and the reference model.
//
// It exists to share setup and provide a single place to hang helper
// methods for behavior tests.
type Harness struct {
	TB    testing.TB
	Stack *guardstack.Stack
	Model *Model

	alloc *refusingAllocator
}

// NewHarness creates a stack from opts and a matching model. opts.Allocator
// is replaced by one the harness can make fail on demand.
func NewHarness(tb testing.TB, opts guardstack.Options) *Harness {
	tb.Helper()

	alloc := &refusingAllocator{}
	opts.Allocator = alloc

	stk, err := guardstack.New(opts)
	if err != nil {
		tb.Fatalf("testutil.NewHarness: %v", err)
	}

	tb.Cleanup(func() { _ = stk.Close() })

	return &Harness{
		TB:    tb,
		Stack: stk,
		Model: NewModel(opts.ElemSize, opts.Floor),
		alloc: alloc,
	}
}

// ElemSize returns the element size of the stack under test.
func (h *Harness) ElemSize() int {
	return h.Stack.ElemSize()
}

// FailAllocations makes the next n allocation requests fail on both sides.
func (h *Harness) FailAllocations(n int) {
	h.alloc.refuse += n
	h.Model.FailAllocations(n)
}

// Requests returns how many allocations the real stack asked for.
func (h *Harness) Requests() int {
	return h.alloc.requests
}

// Apply runs the operation against the real stack first, then the model.
func (h *Harness) Apply(op Op) (Result, Result) {
	realRes := op.ApplyReal(h)
	modelRes := op.ApplyModel(h)

	return modelRes, realRes
}
