package guardstack_test

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/calvinalkan/guardstack/pkg/guardstack"
)

// skipWithoutMemlock skips tests that need a few locked pages.
func skipWithoutMemlock(t *testing.T) {
	t.Helper()

	var rlim unix.Rlimit

	err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlim)
	if err != nil || rlim.Cur < 1<<20 {
		t.Skipf("RLIMIT_MEMLOCK too low for locked buffers (cur=%d, err=%v)", rlim.Cur, err)
	}
}

func Test_Allocators_Return_Exact_Zeroed_Regions(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		alloc func(t *testing.T) guardstack.Allocator
	}{
		{name: "Heap", alloc: func(*testing.T) guardstack.Allocator { return guardstack.HeapAllocator{} }},
		{name: "Mmap", alloc: func(*testing.T) guardstack.Allocator { return guardstack.MmapAllocator{} }},
		{name: "Guarded", alloc: func(t *testing.T) guardstack.Allocator {
			skipWithoutMemlock(t)

			return guardstack.NewGuardedAllocator()
		}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			alloc := testCase.alloc(t)

			for _, n := range []int{1, 56, 4096, 10000} {
				buf, err := alloc.Allocate(n)
				if err != nil {
					t.Fatalf("Allocate(%d) failed: %v", n, err)
				}

				if len(buf) != n {
					t.Fatalf("Allocate(%d) returned %d bytes", n, len(buf))
				}

				for i, b := range buf {
					if b != 0 {
						t.Fatalf("Allocate(%d): byte %d = %#x, want 0", n, i, b)
					}
				}

				buf[n-1] = 0xFF

				if err := alloc.Release(buf); err != nil {
					t.Fatalf("Release(%d bytes) failed: %v", n, err)
				}
			}

			_, err := alloc.Allocate(0)
			if !errors.Is(err, guardstack.ErrInvalidInput) {
				t.Fatalf("Allocate(0) error: got=%v want=%v", err, guardstack.ErrInvalidInput)
			}
		})
	}
}

func Test_Stack_Works_When_Backed_By_Each_Allocator(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		alloc func(t *testing.T) guardstack.Allocator
	}{
		{name: "Mmap", alloc: func(*testing.T) guardstack.Allocator { return guardstack.MmapAllocator{} }},
		{name: "Guarded", alloc: func(t *testing.T) guardstack.Allocator {
			skipWithoutMemlock(t)

			return guardstack.NewGuardedAllocator()
		}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			stk := newStack(t, guardstack.Options{ElemSize: 8, Allocator: testCase.alloc(t)})

			for i := range 200 {
				mustPush(t, stk, append(u32(uint32(i)), 0, 0, 0, 0))
			}

			for i := 199; i >= 0; i-- {
				got := mustPop(t, stk)
				if want := append(u32(uint32(i)), 0, 0, 0, 0); string(got) != string(want) {
					t.Fatalf("pop got=%x want=%x", got, want)
				}
			}

			if got := stk.Status(); got != guardstack.StatusOK {
				t.Fatalf("Status()=%v", got)
			}
		})
	}
}

func Test_GuardedAllocator_Releases_Every_Region_When_Stack_Closed(t *testing.T) {
	t.Parallel()
	skipWithoutMemlock(t)

	alloc := guardstack.NewGuardedAllocator()

	stk, err := guardstack.New(guardstack.Options{ElemSize: 16, Allocator: alloc})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for range 50 {
		mustPush(t, stk, make([]byte, 16))
	}

	if got := guardstack.LiveRegions(alloc); got != 1 {
		t.Fatalf("live regions while open=%d, want=1", got)
	}

	if err := stk.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := guardstack.LiveRegions(alloc); got != 0 {
		t.Fatalf("live regions after Close=%d, want=0", got)
	}

	err = alloc.Release(make([]byte, 16))
	if !errors.Is(err, guardstack.ErrInvalidInput) {
		t.Fatalf("Release(foreign) error: got=%v want=%v", err, guardstack.ErrInvalidInput)
	}
}
