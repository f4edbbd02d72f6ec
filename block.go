package sharedptr

import (
	"reflect"
	"runtime"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sharedptr/infra/sequence"
)

var blockIDs = sequence.New(0)

// Deleter releases the resources of an adopted value. It runs once, on the
// goroutine that drops the last reference.
type Deleter[T any] func(T) error

// block is the control block shared by all co-owners of one adopted value.
type block struct {
	refs atomic.Int64

	id      uint64
	typ     reflect.Type
	destroy func() error

	tracked bool
	cleanup runtime.Cleanup
}

type leakRecord struct {
	id  uint64
	typ reflect.Type
}

// newBlock adopts u with refs = 1. The deleter closes over u with its full
// dynamic type, so it runs correctly even when every owner only sees an
// interface or a converted value.
func newBlock[U any](u U, d Deleter[U]) *block {
	b := &block{
		id:      blockIDs.Next(),
		typ:     reflect.TypeOf(any(u)),
		destroy: func() error { return d(u) },
	}
	b.refs.Store(1)

	cfg := config.Load()
	if cfg.TrackLeaks {
		b.tracked = true
		b.cleanup = runtime.AddCleanup(b, reportLeak, leakRecord{id: b.id, typ: b.typ})
	}
	if ce := cfg.Logger.Check(zapcore.DebugLevel, "sharedptr: adopt"); ce != nil {
		ce.Write(zap.Uint64("block", b.id), zap.Stringer("type", b.typ))
	}
	return b
}

// acquire adds an owner. A block whose count already reached zero stays
// dead; reaching it means a borrowed view outlived the last owner.
func (b *block) acquire() {
	for {
		n := b.refs.Load()
		if n <= 0 {
			panic(errors.Wrapf(ErrReleased, "block %d (%s)", b.id, b.typ))
		}
		if b.refs.CompareAndSwap(n, n+1) {
			return
		}
	}
}

// release drops an owner. The decrement and the zero test are one atomic
// step; only the caller that observes zero runs the deleter.
func (b *block) release() error {
	n := b.refs.Add(-1)
	if n > 0 {
		return nil
	}
	if n < 0 {
		panic(errors.Wrapf(ErrOverRelease, "block %d (%s)", b.id, b.typ))
	}

	if b.tracked {
		b.cleanup.Stop()
	}
	destroy := b.destroy
	b.destroy = nil

	log := logger()
	if err := destroy(); err != nil {
		log.Warn("sharedptr: deleter failed",
			zap.Uint64("block", b.id), zap.Stringer("type", b.typ), zap.Error(err))
		return errors.Wrapf(err, "sharedptr: destroy block %d (%s)", b.id, b.typ)
	}
	if ce := log.Check(zapcore.DebugLevel, "sharedptr: destroy"); ce != nil {
		ce.Write(zap.Uint64("block", b.id), zap.Stringer("type", b.typ))
	}
	return nil
}

func reportLeak(l leakRecord) {
	leaks.Add(1)
	logger().Error("sharedptr: block collected with live owners",
		zap.Uint64("block", l.id), zap.Stringer("type", l.typ))
}

// defaultDeleter closes values that know how to close themselves and leaves
// everything else to the garbage collector.
func defaultDeleter[U any](u U) error {
	switch c := any(u).(type) {
	case interface{ Close() error }:
		return c.Close()
	case interface{ Close() }:
		c.Close()
	}
	return nil
}

// isNil reports whether v is a nil interface or holds a nil
// pointer, map, chan, func or slice.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.Map, reflect.Chan,
		reflect.Func, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
