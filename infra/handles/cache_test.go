package handles

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"sharedptr"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type conn struct {
	key    string
	closed atomic.Int32
}

func (c *conn) Close() error {
	c.closed.Add(1)
	return nil
}

type opener struct {
	opens atomic.Int32
	mu    sync.Mutex
	conns []*conn
}

func (o *opener) open(_ context.Context, key string) (sharedptr.Ptr[*conn], error) {
	o.opens.Add(1)
	c := &conn{key: key}
	o.mu.Lock()
	o.conns = append(o.conns, c)
	o.mu.Unlock()
	return sharedptr.New(c), nil
}

func TestCache_AcquireSharesOneResource(t *testing.T) {
	o := &opener{}
	c := NewCache[string, *conn](o.open, nil)

	a, err := c.Acquire(context.Background(), "db")
	require.NoError(t, err)
	b, err := c.Acquire(context.Background(), "db")
	require.NoError(t, err)

	require.True(t, sharedptr.Equal(a, b))
	require.Equal(t, int64(3), a.UseCount(), "cache plus two callers")
	require.Equal(t, int32(1), o.opens.Load())

	require.NoError(t, a.Release())
	require.NoError(t, b.Release())
	require.Zero(t, o.conns[0].closed.Load(), "cache still owns it")

	require.NoError(t, c.Close())
	require.Equal(t, int32(1), o.conns[0].closed.Load())
}

func TestCache_ConcurrentFirstAcquireOpensOnce(t *testing.T) {
	const workers = 32
	o := &opener{}
	c := NewCache[string, *conn](o.open, nil)

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			p, err := c.Acquire(context.Background(), "shared")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			_ = p.Release()
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, int32(1), o.opens.Load())
	require.Equal(t, 1, c.Len())
	require.NoError(t, c.Close())
}

func TestCache_EvictKeepsHoldersAlive(t *testing.T) {
	o := &opener{}
	c := NewCache[string, *conn](o.open, nil)
	defer c.Close()

	held, err := c.Acquire(context.Background(), "k")
	require.NoError(t, err)

	require.NoError(t, c.Evict("k"))
	require.Zero(t, c.Len())
	require.Zero(t, held.Get().closed.Load())
	require.Equal(t, int64(1), held.UseCount())

	fresh, err := c.Acquire(context.Background(), "k")
	require.NoError(t, err)
	require.False(t, sharedptr.Equal(held, fresh))
	require.Equal(t, int32(2), o.opens.Load())

	first := held.Get()
	require.NoError(t, held.Release())
	require.Equal(t, int32(1), first.closed.Load())
	require.NoError(t, fresh.Release())

	require.NoError(t, c.Evict("missing"))
}

func TestCache_OpenErrorIsNotCached(t *testing.T) {
	boom := errors.New("refused")
	calls := 0
	c := NewCache[string, *conn](func(context.Context, string) (sharedptr.Ptr[*conn], error) {
		calls++
		return sharedptr.Ptr[*conn]{}, boom
	}, nil)
	defer c.Close()

	_, err := c.Acquire(context.Background(), "x")
	require.True(t, errors.Is(err, boom))
	_, err = c.Acquire(context.Background(), "x")
	require.True(t, errors.Is(err, boom))
	require.Equal(t, 2, calls)
	require.Zero(t, c.Len())
}

func TestCache_EmptyOpenIsAnError(t *testing.T) {
	c := NewCache[string, *conn](func(context.Context, string) (sharedptr.Ptr[*conn], error) {
		return sharedptr.Ptr[*conn]{}, nil
	}, nil)
	defer c.Close()

	_, err := c.Acquire(context.Background(), "x")
	require.Error(t, err)
}

func TestCache_AcquireAfterClose(t *testing.T) {
	o := &opener{}
	c := NewCache[string, *conn](o.open, nil)
	require.NoError(t, c.Close())

	_, err := c.Acquire(context.Background(), "k")
	require.True(t, errors.Is(err, ErrClosed))
	require.Zero(t, o.opens.Load())
}

func TestCache_LateFlightDoesNotAddOwner(t *testing.T) {
	o := &opener{}
	c := NewCache[string, *conn](o.open, nil)

	a, err := c.Acquire(context.Background(), "db")
	require.NoError(t, err)

	// A caller that missed the first lookup runs its flight after the
	// entry was stored.
	require.NoError(t, c.fill(context.Background(), "db"))
	require.Equal(t, int64(2), a.UseCount(), "cache plus one caller")
	require.Equal(t, int32(1), o.opens.Load())

	require.NoError(t, a.Release())
	require.NoError(t, c.Close())
	require.Equal(t, int32(1), o.conns[0].closed.Load())
}

func TestCache_KeysOfDifferentTypesDoNotShareFlight(t *testing.T) {
	require.NotEqual(t, flightKey[any](1), flightKey[any]("1"))
	require.Equal(t, flightKey[any](1), flightKey[any](1))

	o := &opener{}
	c := NewCache[any, *conn](func(ctx context.Context, key any) (sharedptr.Ptr[*conn], error) {
		return o.open(ctx, fmt.Sprint(key))
	}, nil)

	n, err := c.Acquire(context.Background(), 1)
	require.NoError(t, err)
	s, err := c.Acquire(context.Background(), "1")
	require.NoError(t, err)

	require.False(t, sharedptr.Equal(n, s))
	require.Equal(t, 2, c.Len())
	require.Equal(t, int32(2), o.opens.Load())

	require.NoError(t, n.Release())
	require.NoError(t, s.Release())
	require.NoError(t, c.Close())
	for _, cn := range o.conns {
		require.Equal(t, int32(1), cn.closed.Load())
	}
}
