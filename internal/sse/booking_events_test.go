package sse

import (
	"context"
	"testing"
	"time"

	"ms-booking/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitReachesOnlyTourSubscribers(t *testing.T) {
	e := NewBookingEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tour1 := e.SubscribeToTour(ctx, 1)
	tour2 := e.SubscribeToTour(ctx, 2)

	require.NoError(t, e.PublishBookingEvent(ctx, models.BookingEvent{Type: models.BookingCreatedEvent, TourID: 1, BookingNumber: "BK-1"}))

	select {
	case ev := <-tour1:
		assert.Equal(t, "BK-1", ev.BookingNumber)
	case <-time.After(time.Second):
		t.Fatal("tour 1 subscriber did not receive the event")
	}

	select {
	case ev := <-tour2:
		t.Fatalf("tour 2 subscriber got %v", ev)
	default:
	}
}

func TestSlowClientDoesNotBlock(t *testing.T) {
	e := NewBookingEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := e.SubscribeToTour(ctx, 5)
	for i := 0; i < clientBuffer*3; i++ {
		e.Emit(models.BookingEvent{TourID: 5})
	}
	assert.Len(t, ch, clientBuffer)
}

func TestUnsubscribeOnContextDone(t *testing.T) {
	e := NewBookingEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())

	ch := e.SubscribeToTour(ctx, 9)
	assert.Equal(t, 1, e.ClientCount(9))

	cancel()

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("channel was not closed")
	}
	assert.Eventually(t, func() bool { return e.ClientCount(9) == 0 }, time.Second, 10*time.Millisecond)

	// Emitting after everyone left is a no-op
	e.Emit(models.BookingEvent{TourID: 9})
}
