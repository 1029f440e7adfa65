package testutil

import (
	"bytes"
	"fmt"

	"github.com/calvinalkan/guardstack/pkg/guardstack"
)

// Model is a slice-backed reference stack.
//
// It replays the resize policy and the allocation-retry rules of
// [guardstack.Stack] on plain integers so that capacity, floor and status
// can be predicted exactly, including under injected allocation failures.
// It never touches memory and has no integrity layers.
type Model struct {
	elemSize int
	elems    [][]byte

	capacity    int
	minCapacity int
	floor       int

	status guardstack.Status

	// failNext is the number of upcoming allocation requests to refuse.
	failNext int
}

// NewModel returns a model of a freshly created stack.
func NewModel(elemSize, floor int) *Model {
	if floor == 0 {
		floor = guardstack.DefaultFloor
	}

	return &Model{
		elemSize:    elemSize,
		capacity:    floor,
		minCapacity: floor,
		floor:       floor,
	}
}

// Len returns the number of elements.
func (m *Model) Len() int { return len(m.elems) }

// Cap returns the predicted capacity.
func (m *Model) Cap() int { return m.capacity }

// MinCapacity returns the predicted reserved floor.
func (m *Model) MinCapacity() int { return m.minCapacity }

// Status returns the predicted status.
func (m *Model) Status() guardstack.Status { return m.status }

// FailAllocations arms the model to refuse the next n allocation requests.
func (m *Model) FailAllocations(n int) { m.failNext += n }

// Push appends v.
func (m *Model) Push(v []byte) error {
	if len(v) != m.elemSize {
		return fmt.Errorf("model push: %w", guardstack.ErrInvalidInput)
	}

	m.status = guardstack.StatusOK

	if !m.adjust() || len(m.elems) >= m.capacity {
		m.status = guardstack.StatusAllocationError

		return fmt.Errorf("model push: %w", guardstack.ErrAllocation)
	}

	m.elems = append(m.elems, bytes.Clone(v))

	return nil
}

// Pop removes and returns the top element.
func (m *Model) Pop() ([]byte, error) {
	v, err := m.Peek()
	if err != nil {
		return nil, err
	}

	m.elems = m.elems[:len(m.elems)-1]
	m.adjust()

	return v, nil
}

// Peek returns the top element.
func (m *Model) Peek() ([]byte, error) {
	if len(m.elems) == 0 {
		m.status = guardstack.StatusOperationError

		return nil, fmt.Errorf("model peek: %w", guardstack.ErrEmpty)
	}

	m.status = guardstack.StatusOK

	return bytes.Clone(m.elems[len(m.elems)-1]), nil
}

// Reserve raises the floor to n slots.
func (m *Model) Reserve(n int) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("model reserve: %w", guardstack.ErrInvalidInput)
	}

	prev := m.minCapacity
	m.minCapacity = max(n, m.floor)
	m.status = guardstack.StatusOK

	if !m.adjust() || m.capacity < m.minCapacity {
		m.minCapacity = prev
		m.status = guardstack.StatusAllocationError

		return 0, fmt.Errorf("model reserve: %w", guardstack.ErrAllocation)
	}

	return m.minCapacity, nil
}

// Elems returns a copy of the elements, bottom first.
func (m *Model) Elems() [][]byte {
	out := make([][]byte, len(m.elems))
	for i, e := range m.elems {
		out[i] = bytes.Clone(e)
	}

	return out
}

func (m *Model) recommended() int {
	if m.capacity < m.minCapacity {
		return m.minCapacity
	}

	half := m.capacity / 2
	if len(m.elems) <= half && half >= m.minCapacity {
		return max(m.capacity*2/3, m.minCapacity, m.floor)
	}

	if len(m.elems) >= m.capacity {
		return m.capacity * 2
	}

	return m.capacity
}

func (m *Model) adjust() bool {
	target := m.recommended()
	if target == m.capacity {
		return true
	}

	ok := m.allocate()
	if !ok && target > m.capacity+1 {
		target = m.capacity + 1
		ok = m.allocate()
	}

	if !ok {
		m.status = guardstack.StatusAllocationError

		return false
	}

	m.capacity = target

	return true
}

func (m *Model) allocate() bool {
	if m.failNext > 0 {
		m.failNext--

		return false
	}

	return true
}
