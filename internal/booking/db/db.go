package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-booking/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// Repository is the persistence surface of the booking flow. Every method
// runs against either the pool or the transaction handed to RunInTx.
type Repository interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error

	GetTour(ctx context.Context, id int64) (*models.Tour, error)
	GetAvailability(ctx context.Context, tourID int64, date time.Time) (*models.TourAvailability, error)
	ReserveSlots(ctx context.Context, tourID int64, date time.Time, n int) (bool, error)
	ReleaseSlots(ctx context.Context, tourID int64, date time.Time, n int) error

	FindPromocionByCode(ctx context.Context, code string, lock bool) (*models.Promocion, error)
	CountPromocionUsage(ctx context.Context, promocionID int64, userID string) (int, error)
	ClaimPromocion(ctx context.Context, promocionID int64) (bool, error)
	CreatePromocionUsage(ctx context.Context, usage *models.PromocionUsage) error

	CreateBooking(ctx context.Context, b *models.Booking) error
	GetBookingByNumber(ctx context.Context, number string) (*models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingListFilter) ([]models.Booking, int, error)
	TransitionBooking(ctx context.Context, id int64, to models.BookingStatus, reason string, at time.Time) (bool, error)
}

// DB implements Repository on bun. Bun is a *bun.DB or a bun.Tx.
type DB struct {
	Bun bun.IDB
}

var _ Repository = (*DB)(nil)

func New(idb bun.IDB) *DB {
	return &DB{Bun: idb}
}

// RunInTx commits when fn returns nil and rolls back otherwise.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	return d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &DB{Bun: tx})
	})
}

// ---------------- TOURS & AVAILABILITY ----------------

// GetTour returns nil, nil when the tour does not exist.
func (d *DB) GetTour(ctx context.Context, id int64) (*models.Tour, error) {
	var tour models.Tour
	err := d.Bun.NewSelect().
		Model(&tour).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select tour %d: %w", id, err)
	}
	return &tour, nil
}

func (d *DB) GetAvailability(ctx context.Context, tourID int64, date time.Time) (*models.TourAvailability, error) {
	var avail models.TourAvailability
	err := d.Bun.NewSelect().
		Model(&avail).
		Where("tour_id = ?", tourID).
		Where("date = ?", date).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select availability: %w", err)
	}
	return &avail, nil
}

// ReserveSlots takes n slots in one conditional statement. It reports false
// when the day is closed or has fewer than n slots left.
func (d *DB) ReserveSlots(ctx context.Context, tourID int64, date time.Time, n int) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.TourAvailability)(nil)).
		Set("available_slots = available_slots - ?", n).
		Set("updated_at = ?", time.Now().UTC()).
		Where("tour_id = ?", tourID).
		Where("date = ?", date).
		Where("is_available = ?", true).
		Where("available_slots >= ?", n).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("reserve slots: %w", err)
	}
	return affectedOne(res)
}

func (d *DB) ReleaseSlots(ctx context.Context, tourID int64, date time.Time, n int) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.TourAvailability)(nil)).
		Set("available_slots = available_slots + ?", n).
		Set("updated_at = ?", time.Now().UTC()).
		Where("tour_id = ?", tourID).
		Where("date = ?", date).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("release slots: %w", err)
	}
	ok, err := affectedOne(res)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("release slots: no availability row for tour %d on %s", tourID, date.Format("2006-01-02"))
	}
	return nil
}

// ---------------- PROMOCIONES ----------------

// FindPromocionByCode looks a code up case-insensitively. With lock set the
// row is held FOR UPDATE on PostgreSQL until the transaction ends.
func (d *DB) FindPromocionByCode(ctx context.Context, code string, lock bool) (*models.Promocion, error) {
	var p models.Promocion
	q := d.Bun.NewSelect().
		Model(&p).
		Where("UPPER(code) = ?", strings.ToUpper(strings.TrimSpace(code))).
		Limit(1)
	if lock && d.Bun.Dialect().Name() == dialect.PG {
		q = q.For("UPDATE")
	}
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select promocion: %w", err)
	}
	return &p, nil
}

func (d *DB) CountPromocionUsage(ctx context.Context, promocionID int64, userID string) (int, error) {
	n, err := d.Bun.NewSelect().
		Model((*models.PromocionUsage)(nil)).
		Where("promocion_id = ?", promocionID).
		Where("user_id = ?", userID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count promocion usage: %w", err)
	}
	return n, nil
}

// ClaimPromocion bumps current_usage_count unless the global limit is reached.
func (d *DB) ClaimPromocion(ctx context.Context, promocionID int64) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Promocion)(nil)).
		Set("current_usage_count = current_usage_count + 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", promocionID).
		Where("usage_limit IS NULL OR current_usage_count < usage_limit").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("claim promocion: %w", err)
	}
	return affectedOne(res)
}

func (d *DB) CreatePromocionUsage(ctx context.Context, usage *models.PromocionUsage) error {
	if usage.UsedAt.IsZero() {
		usage.UsedAt = time.Now().UTC()
	}
	if _, err := d.Bun.NewInsert().Model(usage).Exec(ctx); err != nil {
		return fmt.Errorf("insert promocion usage: %w", err)
	}
	return nil
}

// ---------------- BOOKINGS ----------------

func (d *DB) CreateBooking(ctx context.Context, b *models.Booking) error {
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	if _, err := d.Bun.NewInsert().Model(b).Exec(ctx); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// GetBookingByNumber loads a booking with its tour; nil, nil when absent.
func (d *DB) GetBookingByNumber(ctx context.Context, number string) (*models.Booking, error) {
	var b models.Booking
	err := d.Bun.NewSelect().
		Model(&b).
		Relation("Tour").
		Where("booking.booking_number = ?", number).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select booking %s: %w", number, err)
	}
	return &b, nil
}

func (d *DB) ListBookings(ctx context.Context, filter models.BookingListFilter) ([]models.Booking, int, error) {
	var bookings []models.Booking
	q := d.Bun.NewSelect().
		Model(&bookings).
		Relation("Tour").
		Where("booking.user_id = ?", filter.UserID)
	if filter.Status != "" {
		q = q.Where("booking.status = ?", filter.Status)
	}

	total, err := q.
		Order("booking.created_at DESC", "booking.id DESC").
		Limit(filter.Limit).
		Offset((filter.Page - 1) * filter.Limit).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, total, nil
}

// TransitionBooking moves a booking to status to, but only from a status the
// transition table allows. It reports false when the row was not in such a
// status, which also covers a concurrent transition that won the race.
func (d *DB) TransitionBooking(ctx context.Context, id int64, to models.BookingStatus, reason string, at time.Time) (bool, error) {
	from := models.SourcesFor(to)
	if len(from) == 0 {
		return false, fmt.Errorf("no transition leads to %s", to)
	}

	q := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", at)

	switch to {
	case models.BookingCancelled:
		q = q.Set("cancelled_at = ?", at).Set("cancellation_reason = ?", nullIfEmpty(reason))
	case models.BookingConfirmed:
		q = q.Set("confirmed_at = ?", at)
	case models.BookingCompleted:
		q = q.Set("completed_at = ?", at)
	}

	res, err := q.
		Where("id = ?", id).
		Where("status IN (?)", bun.In(from)).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("transition booking %d to %s: %w", id, to, err)
	}
	return affectedOne(res)
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
