package sharedptr

import (
	"sync"
	"testing"
)

func BenchmarkNewRelease(b *testing.B) {
	r := &resource{id: 1}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		p := New(r)
		_ = p.Release()
	}
}

func BenchmarkCloneRelease(b *testing.B) {
	root := New(&resource{id: 1})
	defer root.Release()

	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c := root.Clone()
			_ = c.Release()
		}
	})
}

// Baseline: a mutex guarded counter, the shape of a lock-per-block design.
func BenchmarkMutexCounter(b *testing.B) {
	var (
		mu sync.Mutex
		n  int64
	)
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			mu.Lock()
			n++
			mu.Unlock()
			mu.Lock()
			n--
			mu.Unlock()
		}
	})
}
