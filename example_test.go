package sharedptr_test

import (
	"fmt"
	"sync"

	"sharedptr"
)

type conn struct {
	addr string
}

func (c *conn) Close() error {
	fmt.Println("closing", c.addr)
	return nil
}

func Example() {
	p := sharedptr.New(&conn{addr: "db:5432"})

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		c := p.Clone()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer c.Release()
			_ = c.Get().addr
		}()
	}
	wg.Wait()

	fmt.Println("owners:", p.UseCount())
	_ = p.Release()
	// Output:
	// owners: 1
	// closing db:5432
}

func ExampleDynamicCast() {
	var s fmt.Stringer = stringer("hi")
	p := sharedptr.New(s)
	defer p.Release()

	if q := sharedptr.DynamicCast[stringer](p); q.Valid() {
		fmt.Println("stringer:", q.Get(), "owners:", p.UseCount())
		_ = q.Release()
	}
	if q := sharedptr.DynamicCast[*conn](p); q.IsNil() {
		fmt.Println("not a conn, owners:", p.UseCount())
	}
	// Output:
	// stringer: hi owners: 2
	// not a conn, owners: 1
}

type stringer string

func (s stringer) String() string { return string(s) }
