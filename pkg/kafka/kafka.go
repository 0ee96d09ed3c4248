package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/angelpublicista/tenemos-filo-api/pkg/logger"
)

// ProducerConfig holds producer settings
type ProducerConfig struct {
	Brokers  []string
	ClientID string
}

// Producer publishes records synchronously
type Producer struct {
	client *kgo.Client
}

// NewProducer creates a producer and pings the cluster
func NewProducer(ctx context.Context, cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka ping: %w", err)
	}

	logger.Info("Kafka producer connected", zap.Strings("brokers", cfg.Brokers))
	return &Producer{client: client}, nil
}

// Publish writes one record and waits for the broker acknowledgement
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	record := &kgo.Record{
		Topic: topic,
		Key:   key,
		Value: value,
	}
	for k, v := range headers {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", topic, err)
	}
	return nil
}

// Close flushes and closes the client
func (p *Producer) Close() {
	p.client.Close()
}

// ConsumerConfig holds consumer group settings
type ConsumerConfig struct {
	Brokers  []string
	ClientID string
	Group    string
	Topics   []string
}

// Message is a consumed record
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
	Offset  int64
}

// Handler processes one message. Returning an error leaves the offset uncommitted.
type Handler func(ctx context.Context, msg Message) error

// Consumer reads a consumer group and commits after each successfully handled poll
type Consumer struct {
	client *kgo.Client
}

// NewConsumer joins the consumer group
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	return &Consumer{client: client}, nil
}

// Run polls until ctx is cancelled. Handler errors are logged and the batch is not committed.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return ctx.Err()
		}

		for _, fe := range fetches.Errors() {
			logger.Error("kafka fetch error",
				zap.String("topic", fe.Topic),
				zap.Int32("partition", fe.Partition),
				zap.Error(fe.Err),
			)
		}

		failed := false
		fetches.EachRecord(func(r *kgo.Record) {
			if failed {
				return
			}
			if err := handle(ctx, toMessage(r)); err != nil {
				failed = true
				logger.Error("kafka handler failed",
					zap.String("topic", r.Topic),
					zap.Int64("offset", r.Offset),
					zap.Error(err),
				)
			}
		})

		if failed {
			continue
		}
		if err := c.client.CommitUncommittedOffsets(ctx); err != nil && ctx.Err() == nil {
			logger.Error("kafka commit failed", zap.Error(err))
		}
	}
}

// Close leaves the group and closes the client
func (c *Consumer) Close() {
	c.client.Close()
}

func toMessage(r *kgo.Record) Message {
	msg := Message{
		Topic:  r.Topic,
		Key:    r.Key,
		Value:  r.Value,
		Offset: r.Offset,
	}
	if len(r.Headers) > 0 {
		msg.Headers = make(map[string]string, len(r.Headers))
		for _, h := range r.Headers {
			msg.Headers[h.Key] = string(h.Value)
		}
	}
	return msg
}
