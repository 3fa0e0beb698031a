package notify

import (
	"context"
	"log/slog"

	"attesta/internal/platform/kafka/producer"
)

// Sink delivers a committed notification to its transport. Delivery is
// at-least-once: a notification may be redelivered if the worker crashes
// between delivery and marking it processed.
type Sink interface {
	Deliver(ctx context.Context, n *Notification) error
}

// KafkaSink publishes notifications to a Kafka topic, keyed by notification
// ID so consumers can deduplicate redeliveries.
type KafkaSink struct {
	producer *producer.Producer
	topic    string
}

func NewKafkaSink(prod *producer.Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: prod, topic: topic}
}

func (s *KafkaSink) Deliver(ctx context.Context, n *Notification) error {
	return s.producer.Produce(ctx, &producer.Message{
		Topic: s.topic,
		Key:   []byte(n.ID.String()),
		Value: n.Payload,
		Headers: map[string]string{
			"event":        n.Event,
			"recipient_id": n.RecipientID,
		},
	})
}

// LogSink writes notifications to the application log. It is the fallback
// transport for environments without a broker.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Deliver(ctx context.Context, n *Notification) error {
	s.logger.InfoContext(ctx, "notification",
		"id", n.ID.String(),
		"event", n.Event,
		"recipient_id", n.RecipientID,
	)
	return nil
}
