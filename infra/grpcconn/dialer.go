// Package grpcconn shares gRPC client connections between callers. One
// ClientConn is kept per target; it is closed after it has been evicted and
// its last holder released it.
package grpcconn

import (
	"context"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"sharedptr"
	"sharedptr/infra/handles"
)

// Config defines configuration for a Dialer.
type Config struct {
	// Options are passed to grpc.NewClient for every target. When empty,
	// insecure transport credentials are used.
	Options []grpc.DialOption
	Logger  *zap.Logger
}

type Dialer struct {
	conns *handles.Cache[string, *grpc.ClientConn]
	opts  []grpc.DialOption
	log   *zap.Logger
}

func NewDialer(cfg Config) *Dialer {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if len(cfg.Options) == 0 {
		cfg.Options = []grpc.DialOption{
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		}
	}
	d := &Dialer{opts: cfg.Options, log: cfg.Logger}
	d.conns = handles.NewCache[string, *grpc.ClientConn](d.dial, cfg.Logger)
	return d
}

func (d *Dialer) dial(_ context.Context, target string) (sharedptr.Ptr[*grpc.ClientConn], error) {
	cc, err := grpc.NewClient(target, d.opts...)
	if err != nil {
		return sharedptr.Ptr[*grpc.ClientConn]{}, errors.Wrapf(err, "grpcconn: new client %s", target)
	}
	d.log.Info("grpc client created", zap.String("target", target))
	return sharedptr.NewWithDeleter(cc, func(cc *grpc.ClientConn) error {
		d.log.Info("grpc client closing", zap.String("target", target))
		return cc.Close()
	}), nil
}

// Conn returns an owning pointer to the connection for target. The caller
// must Release it.
func (d *Dialer) Conn(ctx context.Context, target string) (sharedptr.Ptr[*grpc.ClientConn], error) {
	return d.conns.Acquire(ctx, target)
}

// Forget stops handing out the current connection for target.
func (d *Dialer) Forget(target string) error {
	return d.conns.Evict(target)
}

// Close drops every cached connection. Connections still held by callers
// close when those callers release them.
func (d *Dialer) Close() error {
	return d.conns.Close()
}
