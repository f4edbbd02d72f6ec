package sharedptr

import "github.com/cockroachdb/errors"

var (
	// ErrEmpty is the panic value of Deref on an empty Ptr.
	ErrEmpty = errors.New("sharedptr: dereference of empty pointer")

	// ErrOverRelease is raised when more owners are released than were
	// acquired, usually by releasing a plain copy as well as its source.
	ErrOverRelease = errors.New("sharedptr: reference count dropped below zero")

	// ErrReleased is raised when a copy is cloned after the last owner
	// destroyed its value.
	ErrReleased = errors.New("sharedptr: clone of an already destroyed value")

	// ErrBadConversion is raised when a held value cannot be asserted to
	// the requested type.
	ErrBadConversion = errors.New("sharedptr: incompatible conversion")
)
