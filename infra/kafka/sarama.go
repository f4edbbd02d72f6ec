package kafka

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"sharedptr"
)

// SyncProducer publishes through a sarama.SyncProducer.
type SyncProducer struct {
	producer sarama.SyncProducer
	topic    string
	log      *zap.Logger
}

// SaramaConfig returns the producer settings used by NewSyncProducer.
func SaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	return cfg
}

// NewSyncProducer connects to the brokers and returns the producer behind
// a shared pointer.
func NewSyncProducer(cfg Config) (sharedptr.Ptr[Publisher], error) {
	if err := cfg.defaults(); err != nil {
		return sharedptr.Ptr[Publisher]{}, err
	}
	producer, err := sarama.NewSyncProducer(cfg.Brokers, SaramaConfig())
	if err != nil {
		return sharedptr.Ptr[Publisher]{}, errors.Wrap(err, "kafka: sarama producer")
	}
	return WrapSyncProducer(producer, cfg), nil
}

// WrapSyncProducer adopts an existing sarama producer.
func WrapSyncProducer(producer sarama.SyncProducer, cfg Config) sharedptr.Ptr[Publisher] {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	p := &SyncProducer{
		producer: producer,
		topic:    cfg.Topic,
		log:      cfg.Logger.With(zap.String("topic", cfg.Topic)),
	}
	return sharedptr.Adopt[Publisher](p, nil)
}

func (p *SyncProducer) Send(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.ByteEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return errors.Wrap(err, "kafka: send")
	}
	p.log.Debug("message sent",
		zap.Int32("partition", partition), zap.Int64("offset", offset))
	return nil
}

func (p *SyncProducer) Close() error {
	p.log.Debug("sarama producer closing")
	return errors.Wrap(p.producer.Close(), "kafka: close producer")
}
