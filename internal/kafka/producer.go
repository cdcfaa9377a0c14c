package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer MessageWriter
	Topics Topics
	Logger *logger.Logger
}

// NewProducer builds a producer whose writer routes each message by its own
// Topic field, so one writer serves every booking topic.
func NewProducer(brokers []string, topics Topics, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Producer{Writer: writer, Topics: topics, Logger: log}
}

// PublishBookingEvent streams a lifecycle event keyed by booking number
func (p *Producer) PublishBookingEvent(ctx context.Context, event models.BookingEvent) error {
	topic, ok := p.Topics.For(event.Type)
	if !ok {
		return fmt.Errorf("no topic for event type %q", event.Type)
	}

	msgBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.Type, err)
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(event.BookingNumber),
		Value: msgBytes,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("write %s: %w", topic, err)
	}

	p.Logger.LogKafka("PUBLISH", topic, event.BookingNumber)
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
