// Package kafka relays outbox entries to Kafka and consumes intake hand-offs
// with franz-go.
package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"bloodbank/pkg/platform/audit/worker"
)

const (
	headerEventID   = "event_id"
	headerEventType = "event_type"
)

// syncProducer is the slice of *kgo.Client the producer uses.
type syncProducer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Producer implements worker.Publisher. Entries are keyed by aggregate id so
// one unit or component's history stays ordered within a partition.
type Producer struct {
	client syncProducer
	topic  string
}

var _ worker.Publisher = (*Producer)(nil)

// NewClient dials the brokers with idempotent, all-ack production.
func NewClient(brokers []string, opts ...kgo.Opt) (*kgo.Client, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

func NewProducer(client syncProducer, topic string) (*Producer, error) {
	if client == nil {
		return nil, errors.New("kafka client is required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	return &Producer{client: client, topic: topic}, nil
}

// Publish produces entries and waits for every acknowledgement.
func (p *Producer) Publish(ctx context.Context, entries []worker.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	records := make([]*kgo.Record, len(entries))
	for i, e := range entries {
		records[i] = &kgo.Record{
			Topic: p.topic,
			Key:   []byte(e.Key),
			Value: e.Payload,
			Headers: []kgo.RecordHeader{
				{Key: headerEventID, Value: []byte(e.ID.String())},
				{Key: headerEventType, Value: []byte(e.EventType)},
			},
		}
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce %d transition events: %w", len(records), err)
	}
	return nil
}
