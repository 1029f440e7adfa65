package testutil_test

import (
	"errors"
	"testing"

	"github.com/calvinalkan/guardstack/internal/testutil"
	"github.com/calvinalkan/guardstack/pkg/guardstack"
)

func Test_Model_Follows_Resize_Policy_When_Filled_And_Drained(t *testing.T) {
	t.Parallel()

	m := testutil.NewModel(1, 0)

	var caps []int

	for i := range 41 {
		err := m.Push([]byte{byte(i)})
		if err != nil {
			t.Fatalf("push %d: %v", i, err)
		}

		if len(caps) == 0 || caps[len(caps)-1] != m.Cap() {
			caps = append(caps, m.Cap())
		}
	}

	for range 41 {
		_, err := m.Pop()
		if err != nil {
			t.Fatalf("pop: %v", err)
		}

		if caps[len(caps)-1] != m.Cap() {
			caps = append(caps, m.Cap())
		}
	}

	want := []int{10, 20, 40, 80, 53, 35, 23, 15}
	if len(caps) != len(want) {
		t.Fatalf("caps=%v, want=%v", caps, want)
	}

	for i := range want {
		if caps[i] != want[i] {
			t.Fatalf("caps=%v, want=%v", caps, want)
		}
	}
}

func Test_Model_Retries_Single_Slot_When_Doubling_Refused(t *testing.T) {
	t.Parallel()

	m := testutil.NewModel(1, 4)
	for i := range 4 {
		_ = m.Push([]byte{byte(i)})
	}

	m.FailAllocations(1)

	err := m.Push([]byte{9})
	if err != nil {
		t.Fatalf("push: %v", err)
	}

	if got, want := m.Cap(), 5; got != want {
		t.Fatalf("cap=%d, want=%d", got, want)
	}

	m.FailAllocations(2)

	err = m.Push([]byte{10})
	if !errors.Is(err, guardstack.ErrAllocation) {
		t.Fatalf("err=%v, want ErrAllocation", err)
	}

	if got, want := m.Status(), guardstack.StatusAllocationError; got != want {
		t.Fatalf("status=%s, want=%s", got, want)
	}

	if got, want := m.Len(), 5; got != want {
		t.Fatalf("len=%d, want=%d", got, want)
	}
}

func Test_Model_Restores_Floor_When_Reserve_Refused(t *testing.T) {
	t.Parallel()

	m := testutil.NewModel(2, 0)
	m.FailAllocations(1)

	n, err := m.Reserve(30)
	if !errors.Is(err, guardstack.ErrAllocation) || n != 0 {
		t.Fatalf("reserve=(%d, %v), want (0, ErrAllocation)", n, err)
	}

	if got, want := m.MinCapacity(), guardstack.DefaultFloor; got != want {
		t.Fatalf("min=%d, want=%d", got, want)
	}

	// Growing by more than one slot retried with one extra slot.
	if got, want := m.Cap(), guardstack.DefaultFloor+1; got != want {
		t.Fatalf("cap=%d, want=%d", got, want)
	}
}

func Test_ClassifyError_Picks_Most_Specific_Sentinel_When_Wrapped(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want error
	}{
		{err: nil, want: nil},
		{err: errors.New("other"), want: nil},
		{err: guardstack.ErrEmpty, want: guardstack.ErrEmpty},
		{err: guardstack.ErrDataHash, want: guardstack.ErrDataHash},
		{err: guardstack.ErrCorrupt, want: guardstack.ErrCorrupt},
	}

	for _, tt := range tests {
		if got := testutil.ClassifyError(tt.err); got != tt.want { //nolint:errorlint // identity of sentinel
			t.Errorf("ClassifyError(%v)=%v, want=%v", tt.err, got, tt.want)
		}
	}

	if !testutil.SameErrorClass(nil, nil) {
		t.Error("SameErrorClass(nil, nil)=false")
	}

	if testutil.SameErrorClass(errors.New("a"), errors.New("a")) {
		t.Error("unclassified errors must not match")
	}
}
