package booking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"ms-booking/internal/apperrors"
	"ms-booking/internal/booking/db"
	"ms-booking/internal/booking/promo"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"

	"github.com/shopspring/decimal"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// EventPublisher receives booking lifecycle events after commit.
type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, event models.BookingEvent) error
}

// IdempotencyStore guards POST /bookings against client retries.
type IdempotencyStore interface {
	// Begin claims key. When the key was already used it returns the record
	// stored for it, or nil while the first request is still running.
	Begin(ctx context.Context, key string) (existing *models.IdempotencyRecord, started bool, err error)
	Complete(ctx context.Context, key string, record models.IdempotencyRecord) error
	Abort(ctx context.Context, key string) error
}

type BookingService struct {
	DB          db.Repository
	Idempotency IdempotencyStore
	Events      EventPublisher
	Logger      *logger.Logger
	Now         func() time.Time
	// Location is the business timezone that decides which day is today.
	Location *time.Location
}

func NewBookingService(repo db.Repository, idem IdempotencyStore, events EventPublisher, log *logger.Logger) *BookingService {
	return &BookingService{
		DB:          repo,
		Idempotency: idem,
		Events:      events,
		Logger:      log,
		Now:         func() time.Time { return time.Now().UTC() },
		Location:    time.UTC,
	}
}

type CreateResult struct {
	Booking  *models.Booking
	Replayed bool
}

// CreateBooking reserves capacity, prices the booking, and records promo
// usage in one transaction.
func (s *BookingService) CreateBooking(ctx context.Context, actor models.Actor, req models.CreateBookingRequest, idempotencyKey string) (*CreateResult, error) {
	date, err := s.validateCreate(&req)
	if err != nil {
		return nil, err
	}

	if idempotencyKey != "" && s.Idempotency != nil {
		key := idempotencyScope(actor, req) + ":" + idempotencyKey
		fingerprint := requestFingerprint(req, date)

		existing, started, err := s.Idempotency.Begin(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("idempotency begin: %w", err)
		}
		if !started {
			if existing == nil {
				return nil, apperrors.Conflict("A booking request with this Idempotency-Key is still in progress")
			}
			if existing.Fingerprint != fingerprint {
				s.Logger.LogSecurity("IDEMPOTENCY_MISMATCH", fmt.Sprintf("key %s reused with a different request", key))
				return nil, apperrors.Conflict("Idempotency-Key was already used for a different booking request")
			}
			b, err := s.DB.GetBookingByNumber(ctx, existing.BookingNumber)
			if err != nil {
				return nil, err
			}
			if b == nil {
				return nil, apperrors.Conflict("Idempotency-Key was used for a booking that no longer exists")
			}
			s.Logger.LogBooking("REPLAY", b.BookingNumber, "idempotent create replayed")
			return &CreateResult{Booking: b, Replayed: true}, nil
		}

		booking, err := s.createBooking(ctx, actor, req, date)
		if err != nil {
			if abortErr := s.Idempotency.Abort(ctx, key); abortErr != nil {
				s.Logger.Warn("REDIS", fmt.Sprintf("Failed to release idempotency key %s: %v", key, abortErr))
			}
			return nil, err
		}
		record := models.IdempotencyRecord{BookingNumber: booking.BookingNumber, Fingerprint: fingerprint}
		if err := s.Idempotency.Complete(ctx, key, record); err != nil {
			s.Logger.Warn("REDIS", fmt.Sprintf("Failed to record idempotency key %s: %v", key, err))
		}
		return &CreateResult{Booking: booking}, nil
	}

	booking, err := s.createBooking(ctx, actor, req, date)
	if err != nil {
		return nil, err
	}
	return &CreateResult{Booking: booking}, nil
}

func (s *BookingService) createBooking(ctx context.Context, actor models.Actor, req models.CreateBookingRequest, date time.Time) (*models.Booking, error) {
	var booking *models.Booking

	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx db.Repository) error {
		tour, err := tx.GetTour(ctx, req.TourID)
		if err != nil {
			return err
		}
		if tour == nil || tour.Status != models.TourActive {
			return apperrors.NotFound("Tour not found")
		}
		if req.NumberOfPeople > tour.Capacity {
			return apperrors.BadRequest("Number of people exceeds the tour capacity of %d", tour.Capacity)
		}

		avail, err := tx.GetAvailability(ctx, tour.ID, date)
		if err != nil {
			return err
		}
		if avail == nil || !avail.IsAvailable || avail.AvailableSlots < req.NumberOfPeople {
			return apperrors.BadRequest("Insufficient availability")
		}

		price := avail.PricePerPerson(tour)
		discount, applied, err := s.applyPromocion(ctx, tx, actor, req.PromocionCode, tour.ID, Subtotal(price, req.NumberOfPeople))
		if err != nil {
			return err
		}

		reserved, err := tx.ReserveSlots(ctx, tour.ID, date, req.NumberOfPeople)
		if err != nil {
			return err
		}
		if !reserved {
			return apperrors.BadRequest("Insufficient availability")
		}

		quote := NewQuote(price, req.NumberOfPeople, discount)
		now := s.Now()
		booking = &models.Booking{
			BookingNumber:  utils.GenerateBookingNumber(now),
			TourID:         tour.ID,
			BookingDate:    date,
			NumberOfPeople: req.NumberOfPeople,
			CustomerName:   req.CustomerName,
			CustomerEmail:  req.CustomerEmail,
			CustomerPhone:  req.CustomerPhone,
			CustomerNotes:  req.CustomerNotes,
			Subtotal:       quote.Subtotal,
			DiscountAmount: quote.Discount,
			TaxAmount:      quote.Tax,
			TotalAmount:    quote.Total,
			Status:         models.BookingPending,
			CreatedAt:      now,
		}
		if user, ok := models.AsUser(actor); ok {
			booking.UserID = user.ID
		}
		if applied != nil {
			booking.PromocionID = &applied.ID
		}

		if err := tx.CreateBooking(ctx, booking); err != nil {
			return err
		}

		if applied != nil {
			if user, ok := models.AsUser(actor); ok {
				usage := &models.PromocionUsage{
					PromocionID:    applied.ID,
					UserID:         user.ID,
					BookingID:      booking.ID,
					DiscountAmount: quote.Discount,
					UsedAt:         now,
				}
				if err := tx.CreatePromocionUsage(ctx, usage); err != nil {
					return err
				}
			}
		}

		booking.Tour = tour
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.Logger.LogBooking("CREATE", booking.BookingNumber, fmt.Sprintf("tour=%d date=%s people=%d total=%s",
		booking.TourID, date.Format(utils.DateLayout), booking.NumberOfPeople, booking.TotalAmount.StringFixed(2)))
	s.publish(ctx, models.BookingCreatedEvent, booking)
	return booking, nil
}

// applyPromocion returns the discount for code, or zero when the code cannot
// be used. An unusable code is never an error: checkout goes through at full price.
func (s *BookingService) applyPromocion(ctx context.Context, tx db.Repository, actor models.Actor, code string, tourID int64, subtotal decimal.Decimal) (decimal.Decimal, *models.Promocion, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return decimal.Zero, nil, nil
	}

	p, err := tx.FindPromocionByCode(ctx, code, true)
	if err != nil {
		return decimal.Zero, nil, err
	}
	if p == nil {
		s.Logger.Debug("PROMO", fmt.Sprintf("Promo code %s not found, booking at full price", code))
		return decimal.Zero, nil, nil
	}

	in := promo.Input{TourID: tourID, Subtotal: subtotal, Now: s.Now()}
	if user, ok := models.AsUser(actor); ok {
		used, err := tx.CountPromocionUsage(ctx, p.ID, user.ID)
		if err != nil {
			return decimal.Zero, nil, err
		}
		in.PriorUses = used
		in.CheckUserLimit = true
	}

	res := promo.Evaluate(p, in)
	if !res.IsValid || res.DiscountAmount.IsZero() {
		s.Logger.Debug("PROMO", fmt.Sprintf("Promo code %s not applied: %s", p.Code, res.Reason))
		return decimal.Zero, nil, nil
	}

	claimed, err := tx.ClaimPromocion(ctx, p.ID)
	if err != nil {
		return decimal.Zero, nil, err
	}
	if !claimed {
		s.Logger.Debug("PROMO", fmt.Sprintf("Promo code %s exhausted concurrently", p.Code))
		return decimal.Zero, nil, nil
	}

	return res.DiscountAmount, p, nil
}

// CancelBooking cancels a pending or confirmed booking and gives its slots back.
func (s *BookingService) CancelBooking(ctx context.Context, actor models.Actor, number string, req models.CancelBookingRequest) (*models.Booking, error) {
	var booking *models.Booking

	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx db.Repository) error {
		b, err := tx.GetBookingByNumber(ctx, number)
		if err != nil {
			return err
		}
		if b == nil {
			return apperrors.NotFound("Booking not found")
		}
		if err := authorizeCancel(actor, b, req.CustomerEmail); err != nil {
			return err
		}
		if b.Status == models.BookingCancelled {
			return apperrors.BadRequest("Booking is already cancelled")
		}
		if !b.Status.CanTransitionTo(models.BookingCancelled) {
			return apperrors.BadRequest("Cannot cancel a %s booking", b.Status)
		}

		now := s.Now()
		reason := strings.TrimSpace(req.CancellationReason)
		ok, err := tx.TransitionBooking(ctx, b.ID, models.BookingCancelled, reason, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.BadRequest("Booking is already cancelled")
		}

		if err := tx.ReleaseSlots(ctx, b.TourID, b.BookingDate, b.NumberOfPeople); err != nil {
			return err
		}

		b.Status = models.BookingCancelled
		b.CancelledAt = &now
		b.CancellationReason = reason
		b.UpdatedAt = now
		booking = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cancel booking %s: %w", number, err)
	}

	s.Logger.LogBooking("CANCEL", booking.BookingNumber, fmt.Sprintf("released %d slots", booking.NumberOfPeople))
	s.publish(ctx, models.BookingCancelledEvent, booking)
	return booking, nil
}

func authorizeCancel(actor models.Actor, b *models.Booking, customerEmail string) error {
	if user, ok := models.AsUser(actor); ok {
		if user.IsAdmin() || b.OwnedBy(user.ID) {
			return nil
		}
		return apperrors.Forbidden("You are not allowed to cancel this booking")
	}

	if !b.IsGuest() {
		return apperrors.Unauthorized("Authentication required to cancel this booking")
	}
	if customerEmail == "" || !strings.EqualFold(strings.TrimSpace(customerEmail), b.CustomerEmail) {
		return apperrors.Forbidden("You are not allowed to cancel this booking")
	}
	return nil
}

// ConfirmBooking is reserved for admins and the captain of the booked tour.
func (s *BookingService) ConfirmBooking(ctx context.Context, actor models.Actor, number string) (*models.Booking, error) {
	return s.advance(ctx, actor, number, models.BookingConfirmed)
}

func (s *BookingService) CompleteBooking(ctx context.Context, actor models.Actor, number string) (*models.Booking, error) {
	return s.advance(ctx, actor, number, models.BookingCompleted)
}

func (s *BookingService) advance(ctx context.Context, actor models.Actor, number string, to models.BookingStatus) (*models.Booking, error) {
	user, ok := models.AsUser(actor)
	if !ok {
		return nil, apperrors.Unauthorized("Authentication required")
	}
	if !user.HasRole(models.RoleAdmin, models.RoleCapitan) {
		return nil, apperrors.Forbidden("Only admins and captains can %s bookings", verb(to))
	}

	var booking *models.Booking
	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx db.Repository) error {
		b, err := tx.GetBookingByNumber(ctx, number)
		if err != nil {
			return err
		}
		if b == nil {
			return apperrors.NotFound("Booking not found")
		}
		if !user.IsAdmin() && (b.Tour == nil || b.Tour.CaptainID != user.ID) {
			return apperrors.Forbidden("You can only %s bookings for your own tours", verb(to))
		}
		if b.Status == to {
			return apperrors.BadRequest("Booking is already %s", to)
		}
		if !b.Status.CanTransitionTo(to) {
			return apperrors.BadRequest("Cannot %s a %s booking", verb(to), b.Status)
		}

		now := s.Now()
		ok, err := tx.TransitionBooking(ctx, b.ID, to, "", now)
		if err != nil {
			return err
		}
		if !ok {
			return apperrors.BadRequest("Booking can no longer be %s", to)
		}

		b.Status = to
		b.UpdatedAt = now
		switch to {
		case models.BookingConfirmed:
			b.ConfirmedAt = &now
		case models.BookingCompleted:
			b.CompletedAt = &now
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s booking %s: %w", verb(to), number, err)
	}

	s.Logger.LogBooking(strings.ToUpper(verb(to)), booking.BookingNumber, fmt.Sprintf("by %s (%s)", user.ID, user.Role))
	if to == models.BookingConfirmed {
		s.publish(ctx, models.BookingConfirmedEvent, booking)
	} else {
		s.publish(ctx, models.BookingCompletedEvent, booking)
	}
	return booking, nil
}

func verb(to models.BookingStatus) string {
	switch to {
	case models.BookingConfirmed:
		return "confirm"
	case models.BookingCompleted:
		return "complete"
	case models.BookingCancelled:
		return "cancel"
	}
	return string(to)
}

// GetBooking returns a booking by number. Guests may read any booking whose
// number they hold; signed-in users only their own, their tours', or all as admin.
func (s *BookingService) GetBooking(ctx context.Context, actor models.Actor, number string) (*models.Booking, error) {
	b, err := s.DB.GetBookingByNumber(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", number, err)
	}
	if b == nil {
		return nil, apperrors.NotFound("Booking not found")
	}
	if user, ok := models.AsUser(actor); ok && !canView(user, b) {
		return nil, apperrors.Forbidden("You are not allowed to view this booking")
	}
	return b, nil
}

func canView(user models.AuthenticatedUser, b *models.Booking) bool {
	if user.IsAdmin() || b.OwnedBy(user.ID) {
		return true
	}
	return user.Role == models.RoleCapitan && b.Tour != nil && b.Tour.CaptainID == user.ID
}

// AuthorizeTourFeed checks that user may watch live bookings of a tour.
func (s *BookingService) AuthorizeTourFeed(ctx context.Context, user models.AuthenticatedUser, tourID int64) error {
	tour, err := s.DB.GetTour(ctx, tourID)
	if err != nil {
		return fmt.Errorf("tour feed %d: %w", tourID, err)
	}
	if tour == nil {
		return apperrors.NotFound("Tour not found")
	}
	if !user.IsAdmin() && tour.CaptainID != user.ID {
		return apperrors.Forbidden("You can only follow bookings for your own tours")
	}
	return nil
}

func (s *BookingService) ListMyBookings(ctx context.Context, user models.AuthenticatedUser, page, limit int, status string) ([]models.Booking, *utils.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	filter := models.BookingListFilter{UserID: user.ID, Page: page, Limit: limit}
	if status != "" {
		st, err := models.ParseBookingStatus(status)
		if err != nil {
			return nil, nil, apperrors.BadRequest("Invalid status filter %q", status)
		}
		filter.Status = st
	}

	bookings, total, err := s.DB.ListBookings(ctx, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("list bookings for %s: %w", user.ID, err)
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	return bookings, utils.NewPagination(page, limit, total), nil
}

// ValidatePromocion previews a code without writing anything.
func (s *BookingService) ValidatePromocion(ctx context.Context, actor models.Actor, code string, tourID int64, subtotal decimal.Decimal) (*models.PromoValidation, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.BadRequest("Promo code is required")
	}
	if subtotal.IsNegative() {
		return nil, apperrors.BadRequest("Subtotal cannot be negative")
	}

	p, err := s.DB.FindPromocionByCode(ctx, code, false)
	if err != nil {
		return nil, fmt.Errorf("validate promo %s: %w", code, err)
	}
	if p == nil {
		return nil, apperrors.NotFound("Promotion not found")
	}

	if tourID != 0 {
		tour, err := s.DB.GetTour(ctx, tourID)
		if err != nil {
			return nil, fmt.Errorf("validate promo %s: %w", code, err)
		}
		if tour == nil || tour.Status != models.TourActive {
			return nil, apperrors.NotFound("Tour not found")
		}
	}

	in := promo.Input{TourID: tourID, Subtotal: subtotal, Now: s.Now()}
	if user, ok := models.AsUser(actor); ok {
		used, err := s.DB.CountPromocionUsage(ctx, p.ID, user.ID)
		if err != nil {
			return nil, fmt.Errorf("validate promo %s: %w", code, err)
		}
		in.PriorUses = used
		in.CheckUserLimit = true
	}

	res := promo.Evaluate(p, in)
	if !res.IsValid {
		if res.Reason.NotFound() {
			return nil, apperrors.NotFound("%s", res.Reason)
		}
		return nil, apperrors.BadRequest("%s", res.Reason)
	}

	return &models.PromoValidation{Promotion: p, CalculatedDiscount: res.DiscountAmount}, nil
}

func (s *BookingService) validateCreate(req *models.CreateBookingRequest) (time.Time, error) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)

	var missing []string
	if req.TourID <= 0 {
		missing = append(missing, "tour_id")
	}
	if req.BookingDate == "" {
		missing = append(missing, "booking_date")
	}
	if req.CustomerName == "" {
		missing = append(missing, "customer_name")
	}
	if req.CustomerEmail == "" {
		missing = append(missing, "customer_email")
	}
	if len(missing) > 0 {
		return time.Time{}, apperrors.BadRequest("Missing required fields: %s", strings.Join(missing, ", "))
	}

	if req.NumberOfPeople < 1 {
		return time.Time{}, apperrors.BadRequest("number_of_people must be at least 1")
	}
	if _, err := mail.ParseAddress(req.CustomerEmail); err != nil {
		return time.Time{}, apperrors.BadRequest("customer_email is not a valid email address")
	}

	date, err := utils.ParseDate(req.BookingDate)
	if err != nil {
		return time.Time{}, apperrors.BadRequest("%s", err.Error())
	}
	if date.Before(utils.Today(s.Now(), s.Location)) {
		return time.Time{}, apperrors.BadRequest("booking_date cannot be in the past")
	}
	return date, nil
}

// idempotencyScope keeps keys from different callers apart. Guests have no
// identity beyond the e-mail they book under.
func idempotencyScope(actor models.Actor, req models.CreateBookingRequest) string {
	if user, ok := models.AsUser(actor); ok {
		return "user:" + user.ID
	}
	return "guest:" + strings.ToLower(req.CustomerEmail)
}

// requestFingerprint hashes the normalized create request so a reused key
// only replays the request it was first sent with.
func requestFingerprint(req models.CreateBookingRequest, date time.Time) string {
	normalized := struct {
		TourID         int64  `json:"tour_id"`
		BookingDate    string `json:"booking_date"`
		NumberOfPeople int    `json:"number_of_people"`
		CustomerName   string `json:"customer_name"`
		CustomerEmail  string `json:"customer_email"`
		CustomerPhone  string `json:"customer_phone"`
		CustomerNotes  string `json:"customer_notes"`
		PromocionCode  string `json:"promocion_code"`
	}{
		TourID:         req.TourID,
		BookingDate:    date.Format(utils.DateLayout),
		NumberOfPeople: req.NumberOfPeople,
		CustomerName:   req.CustomerName,
		CustomerEmail:  strings.ToLower(req.CustomerEmail),
		CustomerPhone:  strings.TrimSpace(req.CustomerPhone),
		CustomerNotes:  strings.TrimSpace(req.CustomerNotes),
		PromocionCode:  strings.ToUpper(strings.TrimSpace(req.PromocionCode)),
	}
	raw, _ := json.Marshal(normalized)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func (s *BookingService) publish(ctx context.Context, t models.BookingEventType, b *models.Booking) {
	if s.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.Events.PublishBookingEvent(ctx, models.NewBookingEvent(t, b)); err != nil {
		s.Logger.Error("EVENTS", fmt.Sprintf("Failed to publish %s for %s: %v", t, b.BookingNumber, err))
	}
}
