package main

import (
	"errors"
	"flag"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"fleet/internal/app"
	"fleet/internal/config"
	"fleet/internal/logging"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	steps := flag.Int("steps", 0, "number of steps to apply; 0 applies all")
	path := flag.String("path", "migrations", "directory holding the migration files")
	flag.Parse()

	config.LoadDotEnvUp(6)

	logger := logging.Setup("fleet-migrate", os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))

	// Only database settings are needed; secrets are not required here.
	dbCfg := config.DatabaseConfigFromEnv()

	m, err := migrate.New("file://"+*path, app.MigrationURL(dbCfg))
	if err != nil {
		logger.Error("failed to initialise migrations", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	switch {
	case *steps != 0 && *direction == "down":
		err = m.Steps(-*steps)
	case *steps != 0:
		err = m.Steps(*steps)
	case *direction == "down":
		err = m.Down()
	case *direction == "up":
		err = m.Up()
	default:
		logger.Error("unknown direction", "direction", *direction)
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("migration failed", "direction", *direction, "steps", *steps, "error", err)
		os.Exit(1)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		logger.Error("failed to read schema version", "error", verr)
		os.Exit(1)
	}
	logger.Info("migrations applied", "direction", *direction, "version", version, "dirty", dirty)
}
