package config

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"APP_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"INFO"`

	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	Auth       AuthConfig
	Booking    BookingConfig
	Migrations MigrationsConfig
}

type ServerConfig struct {
	Port           string        `env:"PORT" envDefault:":8085"`
	ReadTimeout    time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	IdleTimeout    time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownGrace  time.Duration `env:"SERVER_SHUTDOWN_GRACE" envDefault:"5s"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
}

type DatabaseConfig struct {
	DSN          string        `env:"POSTGRES_DSN,required,notEmpty"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxLifetime  time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
	ConnectTries int           `env:"DB_CONNECT_RETRIES" envDefault:"5"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type KafkaConfig struct {
	Enabled     bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	Brokers     []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	TopicPrefix string   `env:"KAFKA_TOPIC_PREFIX" envDefault:"fishing-tours"`
	// SSEFromConsumer feeds live streams from the topics instead of in-process,
	// so every instance sees bookings made on the others.
	SSEFromConsumer bool `env:"KAFKA_SSE_CONSUMER" envDefault:"true"`
}

type AuthConfig struct {
	JWTSecret       string        `env:"JWT_SECRET,required"`
	Issuer          string        `env:"JWT_ISSUER" envDefault:"fishing-tours-auth"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
}

type BookingConfig struct {
	IdempotencyTTL time.Duration `env:"BOOKING_IDEMPOTENCY_TTL" envDefault:"24h"`
	CreateLockTTL  time.Duration `env:"BOOKING_CREATE_LOCK_TTL" envDefault:"10s"`
	// VoucherSecret encrypts QR voucher payloads; falls back to JWT_SECRET.
	VoucherSecret string `env:"VOUCHER_SECRET"`
	// Timezone decides which calendar day is "today" for bookings and the
	// availability calendar.
	Timezone string         `env:"BUSINESS_TIMEZONE" envDefault:"America/Costa_Rica"`
	Location *time.Location `env:"-"`
}

type MigrationsConfig struct {
	Dir      string `env:"MIGRATIONS_DIR" envDefault:"./migrations"`
	AutoRun  bool   `env:"AUTO_MIGRATE" envDefault:"true"`
	SeedData bool   `env:"SEED_DATA" envDefault:"false"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if len(cfg.Auth.JWTSecret) < 16 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	loc, err := time.LoadLocation(cfg.Booking.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid BUSINESS_TIMEZONE %q: %w", cfg.Booking.Timezone, err)
	}
	cfg.Booking.Location = loc
	if cfg.Booking.VoucherSecret == "" {
		cfg.Booking.VoucherSecret = cfg.Auth.JWTSecret
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
