package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	msgs []kafka.Message
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *fakeReader) Close() error { return nil }

func sampleEvent(t models.BookingEventType) models.BookingEvent {
	return models.BookingEvent{
		Type:           t,
		BookingNumber:  "BK-20261023-ABC123",
		TourID:         7,
		BookingDate:    "2026-10-23",
		NumberOfPeople: 2,
		Status:         models.BookingPending,
		TotalAmount:    decimal.RequireFromString("226.00"),
		OccurredAt:     time.Now().UTC(),
	}
}

func TestTopics(t *testing.T) {
	topics := Topics{Prefix: "fishing-tours"}

	topic, ok := topics.For(models.BookingCancelledEvent)
	require.True(t, ok)
	assert.Equal(t, "fishing-tours.booking.cancelled", topic)

	_, ok = topics.For("booking.exploded")
	assert.False(t, ok)

	assert.Equal(t, []string{
		"fishing-tours.booking.created",
		"fishing-tours.booking.cancelled",
		"fishing-tours.booking.confirmed",
		"fishing-tours.booking.completed",
	}, topics.All())

	bare, _ := Topics{}.For(models.BookingCreatedEvent)
	assert.Equal(t, "booking.created", bare)
}

func TestPublishBookingEvent(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{Writer: w, Topics: Topics{Prefix: "fishing-tours"}, Logger: logger.NewNop()}

	require.NoError(t, p.PublishBookingEvent(context.Background(), sampleEvent(models.BookingCreatedEvent)))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "fishing-tours.booking.created", msg.Topic)
	assert.Equal(t, "BK-20261023-ABC123", string(msg.Key))

	var got models.BookingEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, models.BookingCreatedEvent, got.Type)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("226")))
}

func TestPublishBookingEvent_Errors(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := &Producer{Writer: w, Topics: Topics{Prefix: "fishing-tours"}, Logger: logger.NewNop()}

	err := p.PublishBookingEvent(context.Background(), sampleEvent(models.BookingConfirmedEvent))
	assert.ErrorContains(t, err, "leader not available")

	err = p.PublishBookingEvent(context.Background(), sampleEvent("booking.unknown"))
	assert.Error(t, err)
}

func TestConsumerStart(t *testing.T) {
	good, _ := json.Marshal(sampleEvent(models.BookingCancelledEvent))
	r := &fakeReader{msgs: []kafka.Message{
		{Topic: "fishing-tours.booking.cancelled", Value: []byte("{not json")},
		{Topic: "fishing-tours.booking.cancelled", Value: good},
	}}
	c := &Consumer{Reader: r, Logger: logger.NewNop()}

	ctx, cancel := context.WithCancel(context.Background())
	var received []models.BookingEvent
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx, func(e models.BookingEvent) {
			received = append(received, e)
			cancel()
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}

	require.Len(t, received, 1)
	assert.Equal(t, models.BookingCancelledEvent, received[0].Type)
}
