package main

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"sharedptr"
	"sharedptr/infra/memory"
)

// Report summarizes a stress run.
type Report struct {
	Destroyed   int32
	EarlyDelete bool
	Clones      int64
	Elapsed     time.Duration
}

// OK reports whether the object was destroyed exactly once and only after
// every worker let go of it.
func (r Report) OK() bool {
	return r.Destroyed == 1 && !r.EarlyDelete
}

type payload struct {
	seq  uint64
	data [64]byte
}

type reader interface {
	Seq() uint64
}

func (p *payload) Seq() uint64 { return p.seq }

// stress shares one pooled object between cfg.Goroutines workers. Each
// worker clones and releases it cfg.Iterations times, half of them through
// a dynamic cast, then drops its own copy. The root copy is dropped first,
// so the last worker to finish destroys the object.
func stress(ctx context.Context, cfg Config, log *zap.Logger) Report {
	var (
		holders   atomic.Int64
		destroyed atomic.Int32
		early     atomic.Bool
		clones    atomic.Int64
	)

	pool := memory.NewPool(func() *payload { return &payload{} }, nil)
	obj := pool.Get()
	obj.seq = 1
	root := sharedptr.Adopt[reader](obj, func(p *payload) error {
		if holders.Load() != 0 {
			early.Store(true)
		}
		destroyed.Add(1)
		pool.Put(p)
		return nil
	})

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < cfg.Goroutines; i++ {
		mine := root.Clone()
		holders.Add(1)
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			defer func() {
				holders.Add(-1)
				_ = mine.Release()
			}()
			for j := 0; j < cfg.Iterations; j++ {
				if ctx.Err() != nil {
					return
				}
				var c sharedptr.Ptr[reader]
				if j%2 == 0 {
					c = mine.Clone()
				} else {
					concrete := sharedptr.DynamicCast[*payload](mine)
					c = sharedptr.StaticMove[reader](&concrete)
				}
				clones.Add(1)
				if c.Deref().Seq() != 1 {
					log.Error("unexpected payload", zap.Int("worker", worker))
				}
				_ = c.Release()
			}
		}(i)
	}
	_ = root.Release()
	wg.Wait()

	r := Report{
		Destroyed:   destroyed.Load(),
		EarlyDelete: early.Load(),
		Clones:      clones.Load(),
		Elapsed:     time.Since(start),
	}
	log.Info("stress finished",
		zap.Int("goroutines", cfg.Goroutines),
		zap.Int("iterations", cfg.Iterations),
		zap.Int64("clones", r.Clones),
		zap.Int32("destroyed", r.Destroyed),
		zap.Bool("early_delete", r.EarlyDelete),
		zap.Duration("elapsed", r.Elapsed),
		zap.Int64("leaks", sharedptr.Leaks()),
	)
	return r
}
