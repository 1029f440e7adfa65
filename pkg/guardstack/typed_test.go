package guardstack_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/guardstack/pkg/guardstack"
)

type point struct {
	X, Y int64
	Tag  [3]uint16
}

func Test_Of_Pops_Values_In_Reverse_Order(t *testing.T) {
	t.Parallel()

	stk, err := guardstack.NewOf[int32](guardstack.Options{})
	if err != nil {
		t.Fatalf("NewOf failed: %v", err)
	}

	t.Cleanup(func() { _ = stk.Close() })

	if got := stk.Untyped().ElemSize(); got != 4 {
		t.Fatalf("ElemSize()=%d, want=4", got)
	}

	for i := range int32(30) {
		if err := stk.Push(-i * 1000); err != nil {
			t.Fatalf("Push(%d) failed: %v", -i*1000, err)
		}
	}

	top, err := stk.Peek()
	if err != nil || top != -29000 {
		t.Fatalf("Peek()=(%d, %v), want=(-29000, nil)", top, err)
	}

	var got []int32

	for !stk.IsEmpty() {
		v, err := stk.Pop()
		if err != nil {
			t.Fatalf("Pop failed: %v", err)
		}

		got = append(got, v)
	}

	want := make([]int32, 0, 30)
	for i := int32(29); i >= 0; i-- {
		want = append(want, -i*1000)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("popped values mismatch (-want +got):\n%s", diff)
	}

	v, err := stk.Pop()
	if !errors.Is(err, guardstack.ErrEmpty) || v != 0 {
		t.Fatalf("Pop on empty=(%d, %v), want=(0, %v)", v, err, guardstack.ErrEmpty)
	}

	if got := stk.Status(); got != guardstack.StatusOperationError {
		t.Fatalf("Status()=%v, want=%v", got, guardstack.StatusOperationError)
	}
}

func Test_Of_Stores_Structs_By_Value(t *testing.T) {
	t.Parallel()

	stk, err := guardstack.NewOf[point](guardstack.Options{Checksum: guardstack.ChecksumBLAKE3})
	if err != nil {
		t.Fatalf("NewOf failed: %v", err)
	}

	t.Cleanup(func() { _ = stk.Close() })

	in := []point{
		{X: 1, Y: -1, Tag: [3]uint16{1, 2, 3}},
		{X: 1 << 40, Y: 7},
		{Tag: [3]uint16{0xFFFF}},
	}

	for _, p := range in {
		if err := stk.Push(p); err != nil {
			t.Fatalf("Push(%+v) failed: %v", p, err)
		}
	}

	if _, err := stk.Reserve(100); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	if got := stk.Cap(); got != 100 {
		t.Fatalf("Cap()=%d, want=100", got)
	}

	for i := len(in) - 1; i >= 0; i-- {
		got, err := stk.Pop()
		if err != nil {
			t.Fatalf("Pop failed: %v", err)
		}

		if diff := cmp.Diff(in[i], got); diff != "" {
			t.Fatalf("pop %d mismatch (-want +got):\n%s", i, diff)
		}
	}

	if got := stk.Len(); got != 0 {
		t.Fatalf("Len()=%d, want=0", got)
	}
}

func Test_NewOf_Rejects_Types_That_Cannot_Be_Stored_As_Bytes(t *testing.T) {
	t.Parallel()

	check := func(name string, err error) {
		t.Helper()

		if !errors.Is(err, guardstack.ErrInvalidInput) {
			t.Fatalf("NewOf[%s] error: got=%v want=%v", name, err, guardstack.ErrInvalidInput)
		}
	}

	_, err := guardstack.NewOf[*int](guardstack.Options{})
	check("*int", err)

	_, err = guardstack.NewOf[string](guardstack.Options{})
	check("string", err)

	_, err = guardstack.NewOf[struct{ B []byte }](guardstack.Options{})
	check("struct{B []byte}", err)

	_, err = guardstack.NewOf[[2]map[int]int](guardstack.Options{})
	check("[2]map[int]int", err)

	_, err = guardstack.NewOf[struct{}](guardstack.Options{})
	check("struct{}", err)
}

func Test_Of_Close_Is_Safe_On_Nil(t *testing.T) {
	t.Parallel()

	var stk *guardstack.Of[uint64]
	if err := stk.Close(); err != nil {
		t.Fatalf("Close on nil: %v", err)
	}
}
