package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/segmentio/kafka-go"
)

// Topics maps booking event types to topic names under one prefix,
// e.g. "fishing-tours.booking.created".
type Topics struct {
	Prefix string
}

var eventTypes = []models.BookingEventType{
	models.BookingCreatedEvent,
	models.BookingCancelledEvent,
	models.BookingConfirmedEvent,
	models.BookingCompletedEvent,
}

func (t Topics) For(eventType models.BookingEventType) (string, bool) {
	for _, et := range eventTypes {
		if et == eventType {
			if t.Prefix == "" {
				return string(et), true
			}
			return t.Prefix + "." + string(et), true
		}
	}
	return "", false
}

func (t Topics) All() []string {
	out := make([]string, 0, len(eventTypes))
	for _, et := range eventTypes {
		topic, _ := t.For(et)
		out = append(out, topic)
	}
	return out
}

// EnsureTopicsExist creates the booking topics if they don't already exist
func EnsureTopicsExist(ctx context.Context, brokers []string, topics []string, log *logger.Logger) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("dial %s: %w", brokers[0], err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("find controller: %w", err)
	}
	controllerConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer controllerConn.Close()

	for _, topic := range topics {
		err := controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     3,
			ReplicationFactor: 1,
		})
		switch {
		case err == nil:
			log.LogKafka("CREATE", topic, "topic created")
		case errors.Is(err, kafka.TopicAlreadyExists):
			log.Debug("KAFKA", fmt.Sprintf("Topic %s already exists", topic))
		default:
			// keep going so one bad topic does not block the rest
			log.Error("KAFKA", fmt.Sprintf("Error creating topic %s: %v", topic, err))
		}
	}
	return nil
}
