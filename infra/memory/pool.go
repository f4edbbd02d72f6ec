package memory

import (
	"sync"
	"sync/atomic"

	"sharedptr"
)

// Pool is a typed object pool.
// Objects may be taken and returned by hand with Get/Put, or handed out as
// shared pointers with Acquire.
type Pool[T any] struct {
	p     *sync.Pool
	reset func(*T)

	outstanding atomic.Int64
}

// NewPool creates a pool. reset, when non-nil, clears an object before it is
// put back.
func NewPool[T any](ctor func() *T, reset func(*T)) *Pool[T] {
	return &Pool[T]{
		p: &sync.Pool{
			New: func() any { return ctor() },
		},
		reset: reset,
	}
}

func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	if p.reset != nil {
		p.reset(v)
	}
	p.p.Put(v)
}

// Acquire takes an object from the pool and returns it as the sole owner
// of a shared pointer. The object is reset and returned to the pool when
// the last owner releases it.
func (p *Pool[T]) Acquire() sharedptr.Ptr[*T] {
	sp := sharedptr.NewWithDeleter(p.Get(), p.recycle)
	if sp.Valid() {
		p.outstanding.Add(1)
	}
	return sp
}

// Outstanding returns the number of acquired objects not yet returned.
func (p *Pool[T]) Outstanding() int64 {
	return p.outstanding.Load()
}

func (p *Pool[T]) recycle(v *T) error {
	p.outstanding.Add(-1)
	p.Put(v)
	return nil
}
