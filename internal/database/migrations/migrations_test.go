package migrations_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"ms-booking/internal/booking"
	bookingdb "ms-booking/internal/booking/db"
	"ms-booking/internal/config"
	"ms-booking/internal/database"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

const migrationsDir = "../../../migrations"

func startPostgres(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "booking",
				"POSTGRES_PASSWORD": "booking",
				"POSTGRES_DB":       "booking",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://booking:booking@%s:%s/booking?sslmode=disable", host, port.Port())
}

// migrate runs every migration through its own connection, as main does.
func migrate(t *testing.T, dsn string, seed bool) *migrations.Runner {
	t.Helper()

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	runner := migrations.NewRunner(sqldb, migrations.MigrateOptions{
		MigrationsDir: migrationsDir,
		AutoMigrate:   true,
		SeedData:      seed,
	}, logger.NewNop())
	require.NoError(t, runner.RunMigrations())
	return runner
}

func connect(t *testing.T, dsn string) *bun.DB {
	t.Helper()

	bunDB, err := database.ConnectPostgres(context.Background(), config.DatabaseConfig{
		DSN:          dsn,
		MaxOpenConns: 20,
		MaxIdleConns: 5,
		MaxLifetime:  time.Minute,
		ConnectTries: 3,
	}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })
	return bunDB
}

func TestMigrationsUpDown(t *testing.T) {
	dsn := startPostgres(t)

	runner := migrate(t, dsn, false)
	version, dirty, err := runner.Version()
	require.NoError(t, err)
	assert.Equal(t, migrations.SchemaVersion, version)
	assert.False(t, dirty)

	require.NoError(t, runner.MigrateUp())
	version, _, err = runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)

	bunDB := connect(t, dsn)
	count, err := bunDB.NewSelect().Model((*models.Tour)(nil)).Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, runner.MigrateDown())
	version, _, err = runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	require.NoError(t, runner.Close())
}

func TestConcurrentBookingsNeverOversell(t *testing.T) {
	dsn := startPostgres(t)
	runner := migrate(t, dsn, true)
	defer runner.Close()

	bunDB := connect(t, dsn)
	svc := booking.NewBookingService(bookingdb.New(bunDB), nil, nil, logger.NewNop())

	// Tour 2 seeds capacity 4 with 8 slots per day.
	date := utils.TruncateDate(time.Now()).AddDate(0, 0, 5)
	const attempts = 8

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		failed  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.CreateBooking(context.Background(), models.Guest{}, models.CreateBookingRequest{
				TourID:         2,
				BookingDate:    date.Format(utils.DateLayout),
				NumberOfPeople: 3,
				CustomerName:   fmt.Sprintf("Cliente %d", i),
				CustomerEmail:  fmt.Sprintf("cliente%d@example.com", i),
			}, "")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				return
			}
			created++
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 2, created)
	assert.Equal(t, attempts-2, failed)

	var avail models.TourAvailability
	require.NoError(t, bunDB.NewSelect().Model(&avail).
		Where("tour_id = ?", 2).
		Where("date = ?", date).
		Scan(context.Background()))
	assert.Equal(t, 2, avail.AvailableSlots)
}

func TestPromoUsageLimitHoldsUnderConcurrency(t *testing.T) {
	dsn := startPostgres(t)
	runner := migrate(t, dsn, true)
	defer runner.Close()

	bunDB := connect(t, dsn)
	ctx := context.Background()

	_, err := bunDB.NewUpdate().Model((*models.Promocion)(nil)).
		Set("usage_limit = ?", 3).
		Where("code = ?", "BIENVENIDO10").
		Exec(ctx)
	require.NoError(t, err)

	svc := booking.NewBookingService(bookingdb.New(bunDB), nil, nil, logger.NewNop())
	date := utils.TruncateDate(time.Now()).AddDate(0, 0, 10)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.CreateBooking(ctx, models.Guest{}, models.CreateBookingRequest{
				TourID:         1,
				BookingDate:    date.Format(utils.DateLayout),
				NumberOfPeople: 1,
				CustomerName:   fmt.Sprintf("Cliente %d", i),
				CustomerEmail:  fmt.Sprintf("promo%d@example.com", i),
				PromocionCode:  "bienvenido10",
			}, "")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	var p models.Promocion
	require.NoError(t, bunDB.NewSelect().Model(&p).Where("code = ?", "BIENVENIDO10").Scan(ctx))
	assert.Equal(t, 3, p.CurrentUsageCount)

	discounted, err := bunDB.NewSelect().Model((*models.Booking)(nil)).
		Where("promocion_id = ?", p.ID).
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, discounted)
}
