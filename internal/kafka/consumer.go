package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Consumer reads booking events back from Kafka. Every service instance
// joins with its own group so each one sees all events for its SSE clients.
type Consumer struct {
	Reader MessageReader
	Logger *logger.Logger
}

func NewConsumer(brokers []string, topics []string, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupTopics: topics,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
	})
	return &Consumer{Reader: reader, Logger: log}
}

// Start blocks until ctx is done, handing every decoded event to handler.
func (c *Consumer) Start(ctx context.Context, handler func(models.BookingEvent)) error {
	c.Logger.Info("KAFKA", "Booking event consumer started")

	for {
		msg, err := c.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			c.Logger.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			return fmt.Errorf("read message: %w", err)
		}

		var event models.BookingEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.Logger.Warn("KAFKA", fmt.Sprintf("Failed to unmarshal message from %s: %v", msg.Topic, err))
			continue
		}

		c.Logger.LogKafka("RECEIVE", msg.Topic, event.BookingNumber)
		handler(event)
	}
}

func (c *Consumer) Close() error {
	return c.Reader.Close()
}
