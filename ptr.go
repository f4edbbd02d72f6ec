package sharedptr

import (
	"fmt"
	"reflect"

	"github.com/cockroachdb/errors"
)

// Ptr shares ownership of an adopted value. T is normally a pointer or an
// interface type. The zero value is an empty Ptr.
//
// A single Ptr variable must not be mutated concurrently. Distinct Ptr
// values sharing a control block may be cloned and released from any
// goroutine.
type Ptr[T any] struct {
	v T
	b *block
}

// -------------------- Construction --------------------

// New adopts v as the sole owner of a fresh control block. The deleter
// calls v.Close when v has one. A nil v yields an empty Ptr.
func New[T any](v T) Ptr[T] {
	return Adopt[T, T](v, nil)
}

// NewWithDeleter adopts v and runs d when the last owner lets go.
func NewWithDeleter[T any](v T, d Deleter[T]) Ptr[T] {
	return Adopt[T](v, d)
}

// Adopt adopts u as a Ptr[T]. u's dynamic value must be assignable to T.
// The deleter sees u with its own type U, so a value adopted as a concrete
// type is destroyed as that type even when owners only hold an interface.
// A nil d selects the default deleter.
func Adopt[T, U any](u U, d Deleter[U]) Ptr[T] {
	if isNil(any(u)) {
		return Ptr[T]{}
	}
	t := mustConvert[T](u)
	return adopted(t, u, d)
}

func adopted[T, U any](t T, u U, d Deleter[U]) Ptr[T] {
	if d == nil {
		d = defaultDeleter[U]
	}
	return Ptr[T]{v: t, b: newBlock(u, d)}
}

// Clone returns a new owner of p's value. Cloning an empty Ptr returns an
// empty Ptr.
func (p Ptr[T]) Clone() Ptr[T] {
	if p.b == nil {
		return Ptr[T]{}
	}
	p.b.acquire()
	return Ptr[T]{v: p.v, b: p.b}
}

// Move transfers p's ownership to the returned Ptr and leaves p empty. The
// reference count is not touched.
func (p *Ptr[T]) Move() Ptr[T] {
	q := *p
	*p = Ptr[T]{}
	return q
}

// -------------------- Assignment --------------------

// Assign makes p co-own src's value. The new owner is taken before the old
// one is dropped, so assigning a Ptr to itself or to another owner of the
// same block never destroys the value. The returned error is the old
// value's deleter error, if this assignment destroyed it.
func (p *Ptr[T]) Assign(src Ptr[T]) error {
	return AssignFrom(p, src)
}

// AssignMove moves src's ownership into p, releasing whatever p held.
// Moving a Ptr into itself is a no-op.
func (p *Ptr[T]) AssignMove(src *Ptr[T]) error {
	return MoveFrom(p, src)
}

// AssignFrom is the converting form of Assign.
func AssignFrom[T, U any](dst *Ptr[T], src Ptr[U]) error {
	if dst.b == src.b {
		if src.b != nil {
			dst.v = mustConvert[T](src.v)
		}
		return nil
	}
	next := StaticCast[T](src)
	return dst.replace(next)
}

// MoveFrom is the converting form of AssignMove.
func MoveFrom[T, U any](dst *Ptr[T], src *Ptr[U]) error {
	if any(dst) == any(src) {
		return nil
	}
	next := StaticMove[T](src)
	return dst.replace(next)
}

// Swap exchanges the contents of p and q without touching either count.
func (p *Ptr[T]) Swap(q *Ptr[T]) {
	*p, *q = *q, *p
}

func (p *Ptr[T]) replace(next Ptr[T]) error {
	old := p.b
	*p = next
	if old == nil {
		return nil
	}
	return old.release()
}

// -------------------- Release --------------------

// Release drops p's ownership and leaves p empty. If p was the last owner
// the deleter runs before Release returns, and its error is returned.
// Releasing an empty Ptr is a no-op.
func (p *Ptr[T]) Release() error {
	return p.replace(Ptr[T]{})
}

// Reset is Release under the name used by the reset modifiers.
func (p *Ptr[T]) Reset() error {
	return p.Release()
}

// ResetTo releases p's current value and adopts v with the default deleter.
func (p *Ptr[T]) ResetTo(v T) error {
	return ResetAdopt[T, T](p, v, nil)
}

// ResetAdopt releases dst's current value, destroying it if dst was the
// last owner, and then adopts u as the sole owner of a new control block.
// The conversion is checked before anything is released.
func ResetAdopt[T, U any](dst *Ptr[T], u U, d Deleter[U]) error {
	if isNil(any(u)) {
		return dst.Release()
	}
	t := mustConvert[T](u)
	err := dst.Release()
	*dst = adopted(t, u, d)
	return err
}

// -------------------- Observers --------------------

// Get returns the held value, or the zero T when p is empty.
func (p Ptr[T]) Get() T {
	return p.v
}

// Deref returns the held value and panics with ErrEmpty when p is empty.
func (p Ptr[T]) Deref() T {
	if p.b == nil {
		panic(ErrEmpty)
	}
	return p.v
}

// Valid reports whether p holds a value.
func (p Ptr[T]) Valid() bool {
	return p.b != nil
}

// IsNil reports whether p is empty.
func (p Ptr[T]) IsNil() bool {
	return p.b == nil
}

// UseCount returns the number of owners of p's value, or 0 when p is
// empty. The result is a snapshot and may be stale by the time it is used.
func (p Ptr[T]) UseCount() int64 {
	if p.b == nil {
		return 0
	}
	return p.b.refs.Load()
}

// Unique reports whether p is the only owner of its value.
func (p Ptr[T]) Unique() bool {
	return p.UseCount() == 1
}

func (p Ptr[T]) String() string {
	if p.b == nil {
		return "sharedptr.Ptr{nil}"
	}
	return fmt.Sprintf("sharedptr.Ptr{block=%d refs=%d %v}", p.b.id, p.b.refs.Load(), p.b.typ)
}

func mustConvert[T, U any](u U) T {
	t, ok := any(u).(T)
	if !ok {
		panic(errors.Wrapf(ErrBadConversion, "%T to %s", u, reflect.TypeFor[T]()))
	}
	return t
}
