package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/traderhub/account-service/pkg/kafka/producer"
)

// EventEmitter publishes account events (addedExchangeKeys,
// deletedExchangeKeys) to the events topic.
type EventEmitter struct {
	*producer.Producer
	topic string
}

func NewEventEmitter(producer *producer.Producer, topic string) *EventEmitter {
	return &EventEmitter{
		producer,
		topic,
	}
}

func (ep *EventEmitter) Emit(ctx context.Context, eventType string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("EventEmitter - Emit - json.Marshal: %w", err)
	}

	msg := kafka.Message{
		Topic: ep.topic,
		Key:   []byte(eventType),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}

	err = ep.Writer.WriteMessages(ctx, msg)
	if err != nil {
		return fmt.Errorf("EventEmitter - Emit - ep.Writer.WriteMessages: %w", err)
	}

	return nil
}

func (ep *EventEmitter) Close() error {
	err := ep.Producer.Close()
	if err != nil {
		return fmt.Errorf("EventEmitter - Close: %w", err)
	}

	return nil
}
