// Package eventbus publishes task lifecycle events to Kafka so downstream
// consumers can react to pre-populated tasks.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// EventBus writes task events to Kafka, one writer per topic.
type EventBus struct {
	writers map[string]*kafka.Writer
	brokers []string
}

// NewEventBus creates writers for all task topics.
func NewEventBus(brokers []string) *EventBus {
	topics := []string{TopicTaskEvents}
	writers := make(map[string]*kafka.Writer)
	for _, topic := range topics {
		writers[topic] = &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		}
	}
	return &EventBus{
		writers: writers,
		brokers: brokers,
	}
}

// Publish writes one event, keyed by source id so events of the same
// sampling source stay ordered.
func (eb *EventBus) Publish(ctx context.Context, topic string, event Event) error {
	if event.EventID == "" || event.EventType == "" || event.SourceID == "" {
		return fmt.Errorf("event missing required fields: event_id=%q, event_type=%q, source_id=%q",
			event.EventID, event.EventType, event.SourceID)
	}
	writer, ok := eb.writers[topic]
	if !ok {
		return fmt.Errorf("unknown topic %q", topic)
	}
	msg, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.SourceID),
		Value: msg,
	})
}

// Close shuts down all writers.
func (eb *EventBus) Close() error {
	var firstErr error
	for _, w := range eb.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
