package main

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/sse"
	"ms-booking/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterWiring(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://unused")
	t.Setenv("JWT_SECRET", "router-test-secret-16")
	cfg, err := config.Load()
	require.NoError(t, err)

	bunDB := testutil.NewSQLiteDB(t)
	tour, _ := testutil.SeedTour(t, bunDB, "captain-1", "100", 4, testutil.Date(3), 4)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	emitter := sse.NewBookingEventEmitter()
	router := newRouter(cfg, logger.NewNop(), bunDB, client, emitter, emitter)

	tests := []struct {
		method string
		path   string
		body   string
		code   int
	}{
		{http.MethodGet, "/health", "", http.StatusOK},
		{http.MethodGet, "/api/tours/" + strconv.FormatInt(tour.ID, 10) + "/availability", "", http.StatusOK},
		{http.MethodGet, "/api/auth/me", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/bookings/my-bookings", "", http.StatusUnauthorized},
		{http.MethodPut, "/api/bookings/BK-20260101-AAAAAA/confirm", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/bookings/BK-20260101-AAAAAA", "", http.StatusNotFound},
		{http.MethodPost, "/api/bookings/", `{"tour_id":` + strconv.FormatInt(tour.ID, 10) + `,"booking_date":"` +
			testutil.Date(3).Format("2006-01-02") + `","number_of_people":2,"customer_name":"Ana","customer_email":"ana@example.com"}`, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://unused")
	t.Setenv("JWT_SECRET", "router-test-secret-16")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://pescatours.cr")
	cfg, err := config.Load()
	require.NoError(t, err)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	emitter := sse.NewBookingEventEmitter()
	router := newRouter(cfg, logger.NewNop(), testutil.NewSQLiteDB(t), client, emitter, emitter)

	req := httptest.NewRequest(http.MethodOptions, "/api/bookings/", nil)
	req.Header.Set("Origin", "https://pescatours.cr")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Idempotency-Key")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "https://pescatours.cr", rec.Header().Get("Access-Control-Allow-Origin"))
}
