package main

import (
	"errors"
	"flag"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"

	"github.com/MikeMC777/ecom-ledger/internal/config"
	"github.com/MikeMC777/ecom-ledger/internal/logging"
)

func main() {
	cfg := config.Load()
	log := logging.MustNew("migrate", cfg.Env)
	defer func() { _ = log.Sync() }()

	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		log.Error("usage: migrate <up|down|version>")
		os.Exit(1)
	}

	m, err := migrate.New(cfg.MigrationsPath, cfg.PostgresDSN)
	if err != nil {
		log.Error("failed to create migrate instance", zap.Error(err))
		os.Exit(1)
	}
	defer func() { _, _ = m.Close() }()

	switch cmd := args[0]; cmd {
	case "up":
		err = m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no pending migrations")
			return
		}
		if err != nil {
			log.Error("migration up failed", zap.Error(err))
			os.Exit(1)
		}
		log.Info("migrations applied successfully")

	case "down":
		err = m.Steps(-1)
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no migrations to rollback")
			return
		}
		if err != nil {
			log.Error("migration down failed", zap.Error(err))
			os.Exit(1)
		}
		log.Info("migration rolled back successfully")

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info("no migrations applied yet")
			return
		}
		if err != nil {
			log.Error("failed to get version", zap.Error(err))
			os.Exit(1)
		}
		log.Info("current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))

	default:
		log.Error("unknown command", zap.String("command", cmd))
		os.Exit(1)
	}
}
