package apperrors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestFrom_TypedErrorPassesThroughWrapping(t *testing.T) {
	base := Forbidden("You cannot cancel this booking")
	wrapped := fmt.Errorf("cancel booking: %w", base)

	got := From(wrapped)
	assert.Same(t, base, got)
	assert.Equal(t, http.StatusForbidden, got.Status)
}

func TestFrom_PostgresIntegrityErrors(t *testing.T) {
	cases := []struct {
		code   pq.ErrorCode
		status int
	}{
		{"23505", http.StatusConflict},
		{"23503", http.StatusBadRequest},
		{"23514", http.StatusBadRequest},
		{"23502", http.StatusBadRequest},
	}

	for _, tc := range cases {
		err := fmt.Errorf("insert booking: %w", &pq.Error{
			Code:       tc.code,
			Constraint: "bookings_booking_number_key",
			Detail:     "Key (booking_number)=(BK-1) already exists.",
		})
		got := From(err)
		assert.Equal(t, tc.status, got.Status, "code %s", tc.code)
		assert.Contains(t, got.Detail, "bookings_booking_number_key")
	}
}

func TestFrom_UnknownErrorIsInternalWithStack(t *testing.T) {
	got := From(errors.New("connection reset"))
	assert.Equal(t, http.StatusInternalServerError, got.Status)
	assert.Equal(t, "Internal server error", got.Message)
	assert.NotEmpty(t, got.Stack)
}

func TestFrom_NoRows(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusOf(sql.ErrNoRows))
	assert.Nil(t, From(nil))
}
