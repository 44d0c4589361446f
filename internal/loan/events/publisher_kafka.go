// Package events publishes loan lifecycle events after the ledger has committed.
// Publishing is best effort: callers log and count failures, they never undo
// the saga because of them.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"smartlib/internal/loan/models"
)

const headerEventType = "event_type"

// KafkaPublisher writes events to a Kafka topic keyed by loan ID, so all events
// for one loan land on the same partition in order.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

type Option func(*KafkaPublisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *KafkaPublisher) { p.logger = logger }
}

func NewKafkaPublisher(client *kgo.Client, topic string, opts ...Option) *KafkaPublisher {
	p := &KafkaPublisher{client: client, topic: topic, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish produces evt synchronously and returns the broker's verdict.
func (p *KafkaPublisher) Publish(ctx context.Context, evt models.LoanEvent) error {
	record, err := NewRecord(p.topic, evt)
	if err != nil {
		return err
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce %s: %w", evt.Type, err)
	}
	p.logger.DebugContext(ctx, "loan event published",
		"type", evt.Type,
		"loan_id", evt.LoanID.String(),
		"topic", p.topic,
	)
	return nil
}

// NewRecord encodes evt as a Kafka record.
func NewRecord(topic string, evt models.LoanEvent) (*kgo.Record, error) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", evt.Type, err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(evt.LoanID.String()),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: headerEventType, Value: []byte(evt.Type)},
		},
	}, nil
}

// DecodeRecord is the inverse of NewRecord.
func DecodeRecord(record *kgo.Record) (models.LoanEvent, error) {
	var evt models.LoanEvent
	if err := json.Unmarshal(record.Value, &evt); err != nil {
		return models.LoanEvent{}, fmt.Errorf("decode loan event: %w", err)
	}
	return evt, nil
}
