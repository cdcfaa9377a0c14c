// Command migrate applies the SQL migrations under ./migrations.
//
//	migrate [-dir ./migrations] up | down | version | to <n> | seed
//
// up stops at the schema; seed also loads the demo data.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"ms-booking/internal/database/migrations"
	"ms-booking/internal/logger"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun/driver/pgdriver"
)

func main() {
	dir := flag.String("dir", "./migrations", "migrations directory")
	flag.Parse()

	log := logger.New(logger.Options{
		Service: "booking-migrate",
		Level:   logger.ParseLevel(os.Getenv("LOG_LEVEL")),
		Color:   true,
		Output:  os.Stdout,
	})
	defer log.Close()

	_ = godotenv.Load()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("CONFIG", "POSTGRES_DSN not set")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err := sqldb.PingContext(ctx)
	cancel()
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to database: %v", err))
	}

	runner := migrations.NewRunner(sqldb, migrations.MigrateOptions{MigrationsDir: *dir}, log)
	defer runner.Close()

	if err := run(runner, flag.Args()); err != nil {
		log.Fatal("MIGRATION", err.Error())
	}

	version, dirty, err := runner.Version()
	if err != nil {
		log.Fatal("MIGRATION", err.Error())
	}
	log.Info("MIGRATION", fmt.Sprintf("Schema version %d (dirty=%t)", version, dirty))
}

func run(runner *migrations.Runner, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: migrate [-dir path] up | down | version | to <n> | seed")
	}

	switch args[0] {
	case "up":
		return runner.RunMigrations()
	case "seed":
		return runner.MigrateUp()
	case "down":
		return runner.MigrateDown()
	case "version":
		return nil
	case "to":
		if len(args) < 2 {
			return fmt.Errorf("to: missing version")
		}
		v, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("to: invalid version %q", args[1])
		}
		return runner.MigrateTo(uint(v))
	}
	return fmt.Errorf("unknown command %q", args[0])
}
