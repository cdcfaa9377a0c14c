package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"ms-booking/internal/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBookingNumber(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	pattern := regexp.MustCompile(`^BK-20261016-[A-Z2-9]{6}$`)

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		n := GenerateBookingNumber(now)
		assert.Regexp(t, pattern, n)
		seen[n] = true
	}
	assert.Greater(t, len(seen), 190, "booking numbers should rarely collide")
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-12-24")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("24/12/2026")
	assert.Error(t, err)
}

func TestToday(t *testing.T) {
	costaRica := time.FixedZone("CST", -6*60*60)
	// 20:00 on the 16th in Costa Rica is already the 17th in UTC
	now := time.Date(2026, 10, 17, 2, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), Today(now, costaRica))
	assert.Equal(t, time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), Today(now, nil))
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 10, 21)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 0, NewPagination(1, 10, 0).TotalPages)
}

func TestWriteError_HidesInternalsInProduction(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("pq: connection refused"), false)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Internal server error", body["message"])
	assert.NotContains(t, body, "error")
}

func TestWriteError_ExposesCauseOutsideProduction(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.New("pq: connection refused"), true)

	var body APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	assert.Equal(t, "pq: connection refused", body.Error.Cause)
	assert.NotEmpty(t, body.Error.Stack)
}

func TestWriteError_TypedStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, apperrors.NotFound("Booking not found"), false)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Booking not found"}`, rec.Body.String())
}
