package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"ms-booking/internal/auth"
	"ms-booking/internal/auth/auth_api"
	"ms-booking/internal/booking"
	"ms-booking/internal/booking/booking_api"
	bookingdb "ms-booking/internal/booking/db"
	bookingredis "ms-booking/internal/booking/redis"
	"ms-booking/internal/booking/voucher"
	"ms-booking/internal/config"
	"ms-booking/internal/database"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/health"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/sse"
	"ms-booking/internal/tours"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	"golang.org/x/sync/errgroup"
)

const serviceName = "booking-service"

func runMigrations(cfg *config.Config, log *logger.Logger) error {
	// The migrate driver closes the connection it is handed, so it gets its own.
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN)))

	runner := migrations.NewRunner(sqldb, migrations.MigrateOptions{
		MigrationsDir: cfg.Migrations.Dir,
		AutoMigrate:   cfg.Migrations.AutoRun,
		SeedData:      cfg.Migrations.SeedData,
	}, log)
	defer func() {
		if err := runner.Close(); err != nil {
			log.Warn("MIGRATION", fmt.Sprintf("Failed to close migrator: %v", err))
		}
	}()

	return runner.RunMigrations()
}

func newRouter(cfg *config.Config, log *logger.Logger, bunDB *bun.DB, redisClient *redis.Client, events booking.EventPublisher, emitter *sse.BookingEventEmitter) http.Handler {
	expose := !cfg.IsProduction()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTL)
	sessions := auth.NewSessionStore(redisClient, cfg.Auth.RefreshTokenTTL)
	mw := auth.NewMiddleware(tokens, sessions, log, expose)

	authService := auth.NewAuthService(auth.NewUserStore(bunDB), tokens, sessions, log)
	authHandler := auth_api.NewHandler(authService, log, expose)

	bookingService := booking.NewBookingService(
		bookingdb.New(bunDB),
		bookingredis.NewRedis(redisClient, log, cfg.Booking.CreateLockTTL, cfg.Booking.IdempotencyTTL),
		events,
		log,
	)
	if cfg.Booking.Location != nil {
		bookingService.Location = cfg.Booking.Location
	}
	bookingHandler := booking_api.NewHandler(bookingService, voucher.NewGenerator(cfg.Booking.VoucherSecret), emitter, log, expose)

	tourHandler := tours.NewHandler(tours.NewStore(bunDB), log, expose)
	if cfg.Booking.Location != nil {
		tourHandler.Location = cfg.Booking.Location
	}

	healthHandler := health.NewHandler(serviceName, map[string]health.Pinger{
		"database": bunDB.PingContext,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(log.Middleware)

	r.Method(http.MethodGet, "/health", healthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			authHandler.RegisterRoutes(r, mw)
		})
		log.Info("ROUTER", "Auth routes registered under /api/auth")

		r.Route("/bookings", func(r chi.Router) {
			bookingHandler.RegisterRoutes(r, mw)
		})
		log.Info("ROUTER", "Booking routes registered under /api/bookings")

		r.Get("/tours/{tour_id}/availability", tourHandler.GetAvailability)
		log.Info("ROUTER", "Availability calendar registered at /api/tours/{tour_id}/availability")
	})

	return r
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Booking Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	if err := run(log); err != nil {
		log.Fatal("APP", err.Error())
	}
}

func run(log *logger.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Migrations.AutoRun {
		if err := runMigrations(cfg, log); err != nil {
			return err
		}
	}

	bunDB, err := database.ConnectPostgres(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer bunDB.Close()

	redisClient, err := database.ConnectRedis(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	emitter := sse.NewBookingEventEmitter()
	g, gctx := errgroup.WithContext(ctx)

	var events booking.EventPublisher = emitter
	if cfg.Kafka.Enabled {
		topics := kafka.Topics{Prefix: cfg.Kafka.TopicPrefix}
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, topics.All(), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}

		producer := kafka.NewProducer(cfg.Kafka.Brokers, topics, log)
		defer producer.Close()

		if cfg.Kafka.SSEFromConsumer {
			events = producer
			consumer := kafka.NewConsumer(cfg.Kafka.Brokers, topics.All(), serviceName+"-sse-"+uuid.NewString()[:8], log)
			defer consumer.Close()
			g.Go(func() error {
				return consumer.Start(gctx, emitter.Emit)
			})
		} else {
			events = booking.MultiPublisher{producer, emitter}
		}
		log.Info("KAFKA", fmt.Sprintf("Publishing booking events to %v", cfg.Kafka.Brokers))
	} else {
		log.Info("KAFKA", "Kafka disabled, booking events go straight to SSE clients")
	}

	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     newRouter(cfg, log, bunDB, redisClient, events, emitter),
		ReadTimeout: cfg.Server.ReadTimeout,
		// no WriteTimeout: SSE streams stay open
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	g.Go(func() error {
		log.Info("HTTP", fmt.Sprintf("Booking Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("APP", "Shutdown signal received, initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		log.Info("HTTP", "Booking Service shutdown complete")
		return nil
	})

	return g.Wait()
}
