// Package kafka adapts franz-go to the change feed sink.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"permitpulse/internal/platform/config"
	"permitpulse/pkg/platform/changefeed"
)

// Producer writes change feed batches to Kafka.
type Producer struct {
	client *kgo.Client
}

// New connects a producer. Returns nil when no brokers are configured.
func New(cfg config.KafkaConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Producer{client: client}, nil
}

// EnsureTopics creates topics that do not exist yet.
func (p *Producer) EnsureTopics(ctx context.Context, partitions int32, replicationFactor int16, topics ...string) error {
	admin := kadm.NewClient(p.client)
	resp, err := admin.CreateTopics(ctx, partitions, replicationFactor, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for _, topic := range resp {
		if topic.Err != nil && !errors.Is(topic.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", topic.Topic, topic.Err)
		}
	}
	return nil
}

// Send produces the batch synchronously and returns the first failure.
func (p *Producer) Send(ctx context.Context, batch []changefeed.Message) error {
	records := make([]*kgo.Record, 0, len(batch))
	for _, msg := range batch {
		records = append(records, &kgo.Record{
			Topic:     msg.Topic,
			Key:       []byte(msg.Key),
			Value:     msg.Value,
			Timestamp: msg.At,
		})
	}
	return p.client.ProduceSync(ctx, records...).FirstErr()
}

// Ping checks broker connectivity.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

func (p *Producer) Close() {
	p.client.Close()
}
