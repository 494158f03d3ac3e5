package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaNotifier publishes change events to a Kafka topic so out-of-process
// consumers (search indexers, sync targets) observe the same single event per
// operation as in-process listeners. Produce is async with a logging
// callback, keeping the write path fire-and-forget.
type KafkaNotifier struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaNotifier connects to the brokers and ensures the topic exists.
func NewKafkaNotifier(ctx context.Context, brokers []string, topic string, logger *slog.Logger) (*KafkaNotifier, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopic(ctx, 1, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}

	return &KafkaNotifier{client: client, topic: topic, logger: logger}, nil
}

func (n *KafkaNotifier) Notify(ctx context.Context, event Event) {
	event = stamp(event)
	payload, err := json.Marshal(event)
	if err != nil {
		n.logger.ErrorContext(ctx, "encode notification failed", "event_id", event.ID, "error", err)
		return
	}
	record := &kgo.Record{
		Topic: n.topic,
		Key:   []byte(event.Scope),
		Value: payload,
	}
	n.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			n.logger.Error("kafka publish failed",
				"event_id", event.ID,
				"action", event.Action,
				"error", err,
			)
		}
	})
}

// Close flushes pending produces and releases the client.
func (n *KafkaNotifier) Close(ctx context.Context) error {
	defer n.client.Close()
	return n.client.Flush(ctx)
}
