package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

// UserStore persists accounts in the users table.
type UserStore struct {
	DB bun.IDB
}

func NewUserStore(db bun.IDB) *UserStore {
	return &UserStore{DB: db}
}

func (s *UserStore) CreateUser(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	u.Email = normalizeEmail(u.Email)
	u.CreatedAt = now
	u.UpdatedAt = now
	if _, err := s.DB.NewInsert().Model(u).Exec(ctx); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByEmail returns nil, nil when no account uses email.
func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.DB.NewSelect().Model(&u).Where("email = ?", normalizeEmail(email)).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user by email: %w", err)
	}
	return &u, nil
}

func (s *UserStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.DB.NewSelect().Model(&u).Where("id = ?", id).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user %s: %w", id, err)
	}
	return &u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
