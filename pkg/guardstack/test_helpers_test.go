package guardstack_test

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/calvinalkan/guardstack/pkg/guardstack"
)

// failingAllocator wraps HeapAllocator and refuses selected sizes.
type failingAllocator struct {
	guardstack.HeapAllocator

	// refuse decides whether an n-byte request fails.
	refuse func(n int) bool

	requests []int
	released int
}

func (a *failingAllocator) Allocate(n int) ([]byte, error) {
	a.requests = append(a.requests, n)

	if a.refuse != nil && a.refuse(n) {
		return nil, fmt.Errorf("simulated out of memory for %d bytes", n)
	}

	return a.HeapAllocator.Allocate(n)
}

func (a *failingAllocator) Release(buf []byte) error {
	a.released++

	return a.HeapAllocator.Release(buf)
}

// recordingObserver captures observer callbacks.
type recordingObserver struct {
	verified []guardstack.Status
	resizes  [][2]int
	failures []int
}

func (o *recordingObserver) Verified(status guardstack.Status) {
	o.verified = append(o.verified, status)
}

func (o *recordingObserver) Resized(from, to int) {
	o.resizes = append(o.resizes, [2]int{from, to})
}

func (o *recordingObserver) AllocationFailed(requested int) {
	o.failures = append(o.failures, requested)
}

func u32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

func newStack(t *testing.T, opts guardstack.Options) *guardstack.Stack {
	t.Helper()

	stk, err := guardstack.New(opts)
	if err != nil {
		t.Fatalf("New(%+v) failed: %v", opts, err)
	}

	t.Cleanup(func() { _ = stk.Close() })

	return stk
}

func mustPush(t *testing.T, stk *guardstack.Stack, elem []byte) {
	t.Helper()

	err := stk.Push(elem)
	if err != nil {
		t.Fatalf("Push(%x) failed: %v", elem, err)
	}
}

func mustPop(t *testing.T, stk *guardstack.Stack) []byte {
	t.Helper()

	out, err := stk.Pop(make([]byte, stk.ElemSize()))
	if err != nil {
		t.Fatalf("Pop failed: %v", err)
	}

	return out
}
