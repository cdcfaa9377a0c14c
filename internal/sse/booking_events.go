package sse

import (
	"context"
	"sync"

	"ms-booking/internal/models"
)

const clientBuffer = 10

// BookingEventEmitter fans booking events out to SSE clients watching a tour.
type BookingEventEmitter struct {
	// key: tourID, value: client channels
	tourClients map[int64][]chan models.BookingEvent
	mu          sync.RWMutex
}

func NewBookingEventEmitter() *BookingEventEmitter {
	return &BookingEventEmitter{
		tourClients: make(map[int64][]chan models.BookingEvent),
	}
}

// SubscribeToTour registers a client for one tour. The channel is closed
// once ctx is done.
func (e *BookingEventEmitter) SubscribeToTour(ctx context.Context, tourID int64) <-chan models.BookingEvent {
	clientChan := make(chan models.BookingEvent, clientBuffer)

	e.mu.Lock()
	e.tourClients[tourID] = append(e.tourClients[tourID], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(tourID, clientChan)
	}()

	return clientChan
}

// Emit broadcasts event to every client of its tour. Slow clients miss
// events instead of blocking the sender.
func (e *BookingEventEmitter) Emit(event models.BookingEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, clientChan := range e.tourClients[event.TourID] {
		select {
		case clientChan <- event:
		default:
		}
	}
}

// PublishBookingEvent lets the emitter sit behind the service's publisher.
func (e *BookingEventEmitter) PublishBookingEvent(_ context.Context, event models.BookingEvent) error {
	e.Emit(event)
	return nil
}

func (e *BookingEventEmitter) removeClient(tourID int64, clientChan chan models.BookingEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.tourClients[tourID]
	for i, ch := range clients {
		if ch == clientChan {
			e.tourClients[tourID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.tourClients[tourID]) == 0 {
		delete(e.tourClients, tourID)
	}
}

// ClientCount returns the number of clients subscribed to a tour.
func (e *BookingEventEmitter) ClientCount(tourID int64) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.tourClients[tourID])
}
