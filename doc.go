// Package sharedptr provides Ptr, a reference-counted pointer that lets many
// holders, on any number of goroutines, share ownership of one adopted value.
//
// Every value adopted by New, NewWithDeleter or Adopt gets its own control
// block holding an atomic reference count and the deleter captured at
// adoption. Clone and the cast helpers add an owner; Release, Reset and
// reassignment drop one. The goroutine whose release brings the count to
// zero runs the deleter, exactly once.
//
// Go has no copy constructors: a plain assignment q := p copies the struct
// but does not create an owner. Such a copy is a borrowed view. Use Clone to
// take ownership, and release only what was obtained from New, Clone, Move
// or a cast.
//
//	conn := sharedptr.New(openConn())
//	defer conn.Release()
//
//	worker := conn.Clone()
//	go func() {
//		defer worker.Release()
//		use(worker.Get())
//	}()
//
// The pointee itself is not synchronized; Ptr only guarantees it is not
// destroyed while an owner remains.
package sharedptr
