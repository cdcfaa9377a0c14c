package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost:5432/booking?sslmode=disable")
	t.Setenv("JWT_SECRET", "a-secret-of-at-least-16")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8085", cfg.Server.Port)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL)
	assert.Equal(t, 24*time.Hour, cfg.Booking.IdempotencyTTL)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Kafka.Enabled)
	assert.True(t, cfg.Kafka.SSEFromConsumer)
	assert.True(t, cfg.Migrations.AutoRun)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, cfg.Auth.JWTSecret, cfg.Booking.VoucherSecret)
	require.NotNil(t, cfg.Booking.Location)
	assert.Equal(t, "America/Costa_Rica", cfg.Booking.Location.String())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://pescatours.cr,https://admin.pescatours.cr")
	t.Setenv("VOUCHER_SECRET", "voucher-only-secret")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Len(t, cfg.Server.AllowedOrigins, 2)
	assert.Equal(t, "voucher-only-secret", cfg.Booking.VoucherSecret)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenTTL)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing dsn", func(t *testing.T) {
		t.Setenv("POSTGRES_DSN", "")
		t.Setenv("JWT_SECRET", "a-secret-of-at-least-16")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("short secret", func(t *testing.T) {
		t.Setenv("POSTGRES_DSN", "postgres://localhost/booking")
		t.Setenv("JWT_SECRET", "short")
		_, err := Load()
		assert.ErrorContains(t, err, "JWT_SECRET")
	})

	t.Run("unknown timezone", func(t *testing.T) {
		setRequired(t)
		t.Setenv("BUSINESS_TIMEZONE", "Mars/Olympus_Mons")
		_, err := Load()
		assert.ErrorContains(t, err, "BUSINESS_TIMEZONE")
	})

	t.Run("bad duration", func(t *testing.T) {
		setRequired(t)
		t.Setenv("ACCESS_TOKEN_TTL", "soon")
		_, err := Load()
		assert.Error(t, err)
	})
}
