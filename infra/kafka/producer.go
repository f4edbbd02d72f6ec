package kafka

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"sharedptr"
)

// Publisher sends keyed messages to one topic. Both producers in this
// package implement it, so owners can share either as a
// sharedptr.Ptr[Publisher].
type Publisher interface {
	Send(ctx context.Context, key, value []byte) error
	Close() error
}

// Config defines configuration for a producer.
type Config struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	Logger       *zap.Logger
}

func (c *Config) defaults() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka: no brokers")
	}
	if c.Topic == "" {
		return errors.New("kafka: no topic")
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = 10 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return nil
}

// Producer publishes through a kafka-go Writer.
type Producer struct {
	writer *kafka.Writer
	log    *zap.Logger
}

// NewProducer returns a producer shared behind a pointer. The writer is
// closed, flushing pending batches, when the last owner releases it.
func NewProducer(cfg Config) (sharedptr.Ptr[Publisher], error) {
	if err := cfg.defaults(); err != nil {
		return sharedptr.Ptr[Publisher]{}, err
	}
	p := &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: cfg.BatchTimeout,
		},
		log: cfg.Logger.With(zap.String("topic", cfg.Topic)),
	}
	return sharedptr.Adopt[Publisher](p, nil), nil
}

func (p *Producer) Send(
	ctx context.Context,
	key []byte,
	value []byte,
) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
	return errors.Wrap(err, "kafka: write")
}

func (p *Producer) Close() error {
	p.log.Debug("kafka writer closing")
	return errors.Wrap(p.writer.Close(), "kafka: close writer")
}

// Stats returns the writer's counters since the last call.
func (p *Producer) Stats() kafka.WriterStats {
	return p.writer.Stats()
}
