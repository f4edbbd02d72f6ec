// Package handles keeps one shared instance of an expensive resource per
// key. Callers acquire their own owning pointer and release it when done;
// the resource closes once the cache has evicted it and every caller has
// released.
package handles

import (
	"context"
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"sharedptr"
)

// ErrClosed is returned by Acquire after Close.
var ErrClosed = errors.New("handles: cache closed")

// OpenFunc creates the resource for key. It runs at most once at a time per
// key.
type OpenFunc[K comparable, T any] func(ctx context.Context, key K) (sharedptr.Ptr[T], error)

// Cache maps keys to shared resources. The cache itself owns one reference
// to every entry.
type Cache[K comparable, T any] struct {
	open OpenFunc[K, T]
	log  *zap.Logger

	mu      sync.Mutex
	entries map[K]sharedptr.Ptr[T]
	closed  bool

	group singleflight.Group
}

func NewCache[K comparable, T any](open OpenFunc[K, T], log *zap.Logger) *Cache[K, T] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache[K, T]{
		open:    open,
		log:     log,
		entries: make(map[K]sharedptr.Ptr[T]),
	}
}

// Acquire returns a new owner of the resource for key, opening it if it is
// not cached. Concurrent first acquisitions of one key share a single open.
func (c *Cache[K, T]) Acquire(ctx context.Context, key K) (sharedptr.Ptr[T], error) {
	if p, ok, err := c.lookup(key); ok || err != nil {
		return p, err
	}

	_, err, _ := c.group.Do(flightKey(key), func() (any, error) {
		return nil, c.fill(ctx, key)
	})
	if err != nil {
		return sharedptr.Ptr[T]{}, errors.Wrapf(err, "handles: acquire %v", key)
	}

	p, ok, err := c.lookup(key)
	if err != nil {
		return p, err
	}
	if !ok {
		// Evicted between open and lookup; try again.
		return c.Acquire(ctx, key)
	}
	return p, nil
}

// fill opens key and stores the cache's reference, unless an earlier flight
// already did.
func (c *Cache[K, T]) fill(ctx context.Context, key K) error {
	if ok, err := c.cached(key); ok || err != nil {
		return err
	}
	// Keep Do from outliving a caller that gives up.
	p, err := c.open(context.WithoutCancel(ctx), key)
	if err != nil {
		return err
	}
	if p.IsNil() {
		return errors.Newf("handles: open %v returned an empty pointer", key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.CombineErrors(ErrClosed, p.Release())
	}
	c.entries[key] = p
	c.log.Debug("handle opened", zap.Any("key", key))
	return nil
}

// flightKey names key for singleflight. The dynamic type is part of the
// name, so keys of an interface K such as 1 and "1" never share a flight.
// Distinct keys of one type must format distinctly under %#v.
func flightKey[K comparable](key K) string {
	return fmt.Sprintf("%T/%#v", key, key)
}

func (c *Cache[K, T]) cached(key K) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrClosed
	}
	_, ok := c.entries[key]
	return ok, nil
}

func (c *Cache[K, T]) lookup(key K) (sharedptr.Ptr[T], bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return sharedptr.Ptr[T]{}, false, ErrClosed
	}
	p, ok := c.entries[key]
	if !ok {
		return sharedptr.Ptr[T]{}, false, nil
	}
	return p.Clone(), true, nil
}

// Evict drops the cache's reference for key. Callers that still hold the
// resource keep it alive; the next Acquire opens a fresh one.
func (c *Cache[K, T]) Evict(key K) error {
	c.mu.Lock()
	p, ok := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()

	if !ok {
		return nil
	}
	c.log.Debug("handle evicted", zap.Any("key", key), zap.Int64("owners", p.UseCount()-1))
	return p.Release()
}

// Len returns the number of cached keys.
func (c *Cache[K, T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close evicts every entry and makes later Acquire calls fail.
func (c *Cache[K, T]) Close() error {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[K]sharedptr.Ptr[T])
	c.closed = true
	c.mu.Unlock()

	var errs error
	for key, p := range entries {
		if err := p.Release(); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "handles: release %v", key))
		}
	}
	return errs
}
