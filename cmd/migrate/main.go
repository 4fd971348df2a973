package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/spf13/pflag"

	"github.com/yourusername/proptrack-api/internal/config"
	"github.com/yourusername/proptrack-api/internal/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		dsn    string
		source string
		force  int
		down   bool
	)

	flagSet := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	flagSet.StringVar(&dsn, "dsn", "", "строка подключения PostgreSQL (по умолчанию из CONFIG_PATH)")
	flagSet.StringVar(&source, "path", "", "источник миграций, например file://migrations")
	flagSet.IntVar(&force, "force", -1, "принудительно установить версию и снять признак dirty")
	flagSet.BoolVar(&down, "down", false, "откатить все миграции")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"), "console")
	log := logger.For("migrate")
	defer func() { _ = logger.Sync() }()

	if dsn == "" || source == "" {
		cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
		if err != nil {
			return fmt.Errorf("--dsn не задан и конфигурация не загружена: %w", err)
		}
		if dsn == "" {
			dsn = cfg.Database.PostgresConnectionString()
		}
		if source == "" {
			source = cfg.Database.MigrationsPath
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithDatabaseInstance(source, "postgres", driver)
	if err != nil {
		return err
	}

	switch {
	case force >= 0:
		log.Infow("Принудительная установка версии миграций", "version", force)
		err = m.Force(force)
	case down:
		log.Info("Откат всех миграций")
		err = m.Down()
	default:
		log.Infow("Применение миграций", "source", source)
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	log.Infow("Миграции выполнены", "version", version, "dirty", dirty)
	return nil
}
