package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Publisher produces events to a Kafka topic with at-least-once semantics.
// Consumers must tolerate duplicates; the state machine's idempotent
// transitions already guarantee duplicates cause no double-transition.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewPublisher connects to the brokers and ensures the topic exists.
func NewPublisher(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	admin := kadm.NewClient(client)
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := admin.CreateTopic(pingCtx, 1, 1, nil, topic); err != nil {
		// Already-exists is the common case on restart.
		logger.Info("kafka topic ensure", "topic", topic, "result", err.Error())
	}

	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

// Publish produces asynchronously. Errors are logged, never propagated: the
// transition that triggered the event has already committed.
func (p *Publisher) Publish(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal event", "error", err, "type", string(event.Type))
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.EndorsementID),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("produce event", "error", err, "type", string(event.Type))
		}
	})
}

// Close flushes buffered records and releases the client.
func (p *Publisher) Close(ctx context.Context) {
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Error("flush events", "error", err)
	}
	p.client.Close()
}
