package booking

import (
	"context"
	"errors"

	"ms-booking/internal/models"
)

// MultiPublisher hands each event to every publisher and joins their errors.
type MultiPublisher []EventPublisher

func (m MultiPublisher) PublishBookingEvent(ctx context.Context, event models.BookingEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.PublishBookingEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
