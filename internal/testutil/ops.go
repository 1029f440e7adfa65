// Package testutil provides ops and results for model-vs-stack behavior
// tests.
package testutil

import (
	"fmt"
)

// Result is a generic operation result used by behavior tests.
//
// Err is the error returned by the operation (if any). Value is the element
// returned by Pop or Peek, or nil. N is the count returned by Reserve.
type Result struct {
	Err   error
	Value []byte
	N     int
}

// OK reports whether the operation succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

func resultOf(value []byte, n int, err error) Result {
	return Result{Err: err, Value: value, N: n}
}

// Op is a behavior test operation executed against model and real stack.
//
// ApplyReal runs the operation on the real stack. ApplyModel updates the
// model using the same inputs.
type Op interface {
	ApplyModel(h *Harness) Result
	ApplyReal(h *Harness) Result
	String() string
}

// OpPush pushes Value.
type OpPush struct {
	Value []byte
}

func (o OpPush) ApplyReal(h *Harness) Result {
	return resultOf(nil, 0, h.Stack.Push(o.Value))
}

func (o OpPush) ApplyModel(h *Harness) Result {
	return resultOf(nil, 0, h.Model.Push(o.Value))
}

func (o OpPush) String() string {
	return fmt.Sprintf("push %x", o.Value)
}

// OpPushWrongSize pushes an element of Len bytes, which never matches the
// element size.
type OpPushWrongSize struct {
	Len int
}

func (o OpPushWrongSize) ApplyReal(h *Harness) Result {
	return resultOf(nil, 0, h.Stack.Push(make([]byte, o.Len)))
}

func (o OpPushWrongSize) ApplyModel(h *Harness) Result {
	return resultOf(nil, 0, h.Model.Push(make([]byte, o.Len)))
}

func (o OpPushWrongSize) String() string {
	return fmt.Sprintf("push <%d bytes>", o.Len)
}

// OpPop pops the top element.
type OpPop struct{}

func (OpPop) ApplyReal(h *Harness) Result {
	v, err := h.Stack.Pop(make([]byte, h.ElemSize()))

	return resultOf(v, 0, err)
}

func (OpPop) ApplyModel(h *Harness) Result {
	v, err := h.Model.Pop()

	return resultOf(v, 0, err)
}

func (OpPop) String() string {
	return "pop"
}

// OpPeek reads the top element.
type OpPeek struct{}

func (OpPeek) ApplyReal(h *Harness) Result {
	v, err := h.Stack.Peek(make([]byte, h.ElemSize()))

	return resultOf(v, 0, err)
}

func (OpPeek) ApplyModel(h *Harness) Result {
	v, err := h.Model.Peek()

	return resultOf(v, 0, err)
}

func (OpPeek) String() string {
	return "peek"
}

// OpReserve raises the capacity floor to N.
type OpReserve struct {
	N int
}

func (o OpReserve) ApplyReal(h *Harness) Result {
	n, err := h.Stack.Reserve(o.N)

	return resultOf(nil, n, err)
}

func (o OpReserve) ApplyModel(h *Harness) Result {
	n, err := h.Model.Reserve(o.N)

	return resultOf(nil, n, err)
}

func (o OpReserve) String() string {
	return fmt.Sprintf("reserve %d", o.N)
}

// OpFailAllocations makes the next N allocation requests fail.
//
// It is applied once, from ApplyReal, and arms both sides.
type OpFailAllocations struct {
	N int
}

func (o OpFailAllocations) ApplyReal(h *Harness) Result {
	h.FailAllocations(o.N)

	return Result{}
}

func (OpFailAllocations) ApplyModel(*Harness) Result {
	return Result{}
}

func (o OpFailAllocations) String() string {
	return fmt.Sprintf("fail-allocations %d", o.N)
}

// FormatOps renders an op history for failure messages.
func FormatOps(history []string) string {
	out := "ops:\n"
	for i, op := range history {
		out += fmt.Sprintf("  %3d: %s\n", i+1, op)
	}

	return out
}
