package sharedptr

import "reflect"

// StaticCast returns a new owner of src's value presented as T. The
// conversion is assumed to be valid; a mismatch is a caller error and
// panics with ErrBadConversion before any count changes.
func StaticCast[T, U any](src Ptr[U]) Ptr[T] {
	if src.b == nil {
		return Ptr[T]{}
	}
	t := mustConvert[T](src.v)
	src.b.acquire()
	return Ptr[T]{v: t, b: src.b}
}

// StaticMove is the moving form of StaticCast: src's ownership is
// transferred and src is left empty.
func StaticMove[T, U any](src *Ptr[U]) Ptr[T] {
	if src.b == nil {
		return Ptr[T]{}
	}
	t := mustConvert[T](src.v)
	b := src.b
	*src = Ptr[U]{}
	return Ptr[T]{v: t, b: b}
}

// DynamicCast returns a new owner of src's value presented as T when the
// value's dynamic type allows it. Otherwise it returns an empty Ptr and
// no count changes.
func DynamicCast[T, U any](src Ptr[U]) Ptr[T] {
	if src.b == nil {
		return Ptr[T]{}
	}
	t, ok := any(src.v).(T)
	if !ok {
		return Ptr[T]{}
	}
	src.b.acquire()
	return Ptr[T]{v: t, b: src.b}
}

// -------------------- Comparison --------------------

// Equal reports whether a and b present the same address. Two empty
// pointers are equal; an empty pointer equals no non-empty one.
func Equal[T, U any](a Ptr[T], b Ptr[U]) bool {
	if a.b == nil || b.b == nil {
		return a.b == nil && b.b == nil
	}
	return sameAddress(any(a.v), any(b.v), a.b == b.b)
}

// NotEqual is the negation of Equal.
func NotEqual[T, U any](a Ptr[T], b Ptr[U]) bool {
	return !Equal(a, b)
}

// EqualNil reports whether p is empty.
func EqualNil[T any](p Ptr[T]) bool {
	return p.b == nil
}

// NotEqualNil reports whether p holds a value.
func NotEqualNil[T any](p Ptr[T]) bool {
	return p.b != nil
}

// sameAddress compares pointer-shaped values by address and other
// comparable values with ==. Values with no address that cannot be compared
// are equal only when they share a control block.
func sameAddress(x, y any, sameBlock bool) bool {
	rx, ry := reflect.ValueOf(x), reflect.ValueOf(y)
	if hasAddress(rx) && hasAddress(ry) {
		return rx.Pointer() == ry.Pointer()
	}
	if rx.Type() == ry.Type() && rx.Comparable() && ry.Comparable() {
		return x == y
	}
	return sameBlock
}

func hasAddress(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan:
		return true
	}
	return false
}
