package tours

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

type Store struct {
	DB bun.IDB
}

func NewStore(db bun.IDB) *Store {
	return &Store{DB: db}
}

// GetActiveTour returns nil, nil for unknown or unpublished tours.
func (s *Store) GetActiveTour(ctx context.Context, id int64) (*models.Tour, error) {
	var tour models.Tour
	err := s.DB.NewSelect().
		Model(&tour).
		Where("id = ?", id).
		Where("status = ?", models.TourActive).
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

// ListAvailability returns the rows for tourID between from and to inclusive, by date.
func (s *Store) ListAvailability(ctx context.Context, tourID int64, from, to time.Time) ([]models.TourAvailability, error) {
	var rows []models.TourAvailability
	err := s.DB.NewSelect().
		Model(&rows).
		Where("tour_id = ?", tourID).
		Where("date >= ?", from).
		Where("date <= ?", to).
		Order("date ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list availability for tour %d: %w", tourID, err)
	}
	return rows, nil
}
