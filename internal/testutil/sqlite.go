// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-booking/internal/models"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// NewSQLiteDB opens an in-memory SQLite database with every booking table
// created from the models. A single connection keeps the in-memory schema alive.
func NewSQLiteDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.User)(nil),
		(*models.Tour)(nil),
		(*models.TourAvailability)(nil),
		(*models.Promocion)(nil),
		(*models.Booking)(nil),
		(*models.PromocionUsage)(nil),
	} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(ctx); err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}

	t.Cleanup(func() { bunDB.Close() })
	return bunDB
}

// Date returns a calendar date in UTC, days from today.
func Date(days int) time.Time {
	y, m, d := time.Now().UTC().AddDate(0, 0, days).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func MustInsert(t *testing.T, db bun.IDB, model interface{}) {
	t.Helper()
	if _, err := db.NewInsert().Model(model).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to insert %T: %v", model, err)
	}
}

// SeedTour inserts an active tour priced at price with one availability row.
func SeedTour(t *testing.T, db bun.IDB, captainID, price string, capacity int, date time.Time, slots int) (*models.Tour, *models.TourAvailability) {
	t.Helper()

	now := time.Now().UTC()
	tour := &models.Tour{
		CaptainID:     captainID,
		Title:         "Pesca de marlin en Quepos",
		Location:      "Quepos, Puntarenas",
		Price:         decimal.RequireFromString(price),
		Capacity:      capacity,
		DurationHours: decimal.NewFromInt(8),
		Status:        models.TourActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	MustInsert(t, db, tour)

	avail := &models.TourAvailability{
		TourID:         tour.ID,
		Date:           date,
		AvailableSlots: slots,
		IsAvailable:    true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	MustInsert(t, db, avail)

	return tour, avail
}

// SeedPromocion inserts an active promotion valid for a day on each side of now.
func SeedPromocion(t *testing.T, db bun.IDB, p *models.Promocion) *models.Promocion {
	t.Helper()

	now := time.Now().UTC()
	if p.ValidFrom.IsZero() {
		p.ValidFrom = now.Add(-24 * time.Hour)
	}
	if p.ValidUntil.IsZero() {
		p.ValidUntil = now.Add(24 * time.Hour)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	MustInsert(t, db, p)
	return p
}

func SeedUser(t *testing.T, db bun.IDB, id string, role models.Role) *models.User {
	t.Helper()

	now := time.Now().UTC()
	u := &models.User{
		ID:           id,
		Email:        id + "@pescatours.cr",
		FullName:     "Test " + string(role),
		PasswordHash: "x",
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	MustInsert(t, db, u)
	return u
}

func Dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func IntPtr(i int) *int {
	return &i
}
