package guardstack

import (
	"fmt"
	"io"
	"reflect"
	"unsafe"
)

// Of is a typed view over a [Stack] whose elements are values of T.
//
// Values are stored as their raw in-memory bytes, so T must be a fixed-size
// type without pointers (integers, floats, arrays and structs of those).
type Of[T any] struct {
	stk *Stack
}

// NewOf creates a Stack sized for T. [Options.ElemSize] is ignored.
//
// Returns [ErrInvalidInput] if T has zero size or contains pointers.
func NewOf[T any](opts Options) (*Of[T], error) {
	typ := reflect.TypeFor[T]()
	if hasPointers(typ) {
		return nil, fmt.Errorf("element type %s contains pointers: %w", typ, ErrInvalidInput)
	}

	opts.ElemSize = int(typ.Size())

	stk, err := New(opts)
	if err != nil {
		return nil, err
	}

	return &Of[T]{stk: stk}, nil
}

// hasPointers reports whether values of typ hold references the garbage
// collector must see.
func hasPointers(typ reflect.Type) bool {
	switch typ.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return typ.Len() > 0 && hasPointers(typ.Elem())
	case reflect.Struct:
		for i := range typ.NumField() {
			if hasPointers(typ.Field(i).Type) {
				return true
			}
		}

		return false
	default:
		return true
	}
}

func bytesOf[T any](v *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(v)), unsafe.Sizeof(*v))
}

// Push pushes v.
func (o *Of[T]) Push(v T) error {
	return o.stk.Push(bytesOf(&v))
}

// Pop removes and returns the top value. On error the zero value is
// returned.
func (o *Of[T]) Pop() (T, error) {
	var v T

	_, err := o.stk.Pop(bytesOf(&v))
	if err != nil {
		var zero T

		return zero, err
	}

	return v, nil
}

// Peek returns the top value without removing it.
func (o *Of[T]) Peek() (T, error) {
	var v T

	_, err := o.stk.Peek(bytesOf(&v))
	if err != nil {
		var zero T

		return zero, err
	}

	return v, nil
}

// Len is [Stack.Len].
func (o *Of[T]) Len() int { return o.stk.Len() }

// Cap is [Stack.Cap].
func (o *Of[T]) Cap() int { return o.stk.Cap() }

// IsEmpty is [Stack.IsEmpty].
func (o *Of[T]) IsEmpty() bool { return o.stk.IsEmpty() }

// Reserve is [Stack.Reserve].
func (o *Of[T]) Reserve(n int) (int, error) { return o.stk.Reserve(n) }

// Status is [Stack.Status].
func (o *Of[T]) Status() Status { return o.stk.Status() }

// Dump is [Stack.Dump].
func (o *Of[T]) Dump(w io.Writer) error { return o.stk.Dump(w) }

// Close is [Stack.Close]. Closing a nil *Of is a no-op.
func (o *Of[T]) Close() error {
	if o == nil {
		return nil
	}

	return o.stk.Close()
}

// Untyped returns the underlying byte engine.
func (o *Of[T]) Untyped() *Stack { return o.stk }
