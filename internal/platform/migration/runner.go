// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package migration wraps golang-migrate for the users and identities schema.
//
// The API server applies pending migrations at startup; identityctl exposes
// the same runner for up, down and status from the command line.
package migration

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// pgx5 driver registers "pgx5" scheme for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	// file source reads .sql files from disk.
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Status describes the schema version of a database.
type Status struct {
	Version uint
	Dirty   bool
	Empty   bool
}

// Runner applies migrations from a directory to one database.
type Runner struct {
	databaseURL string
	sourceURL   string
	logger      *slog.Logger
}

// NewRunner prepares a runner. Nothing is opened until a method is called.
//
// # Parameters
//   - dsn: A libpq-compatible DSN or postgres:// URL.
//   - migrationsPath: Filesystem path to the migrations directory.
//   - logger: Structured logger for migration events.
func NewRunner(dsn, migrationsPath string, logger *slog.Logger) *Runner {
	return &Runner{
		databaseURL: ToPgx5DSN(dsn),
		sourceURL:   "file://" + migrationsPath,
		logger:      logger,
	}
}

// Up applies all pending migrations.
func (runner *Runner) Up() error {
	return runner.with(func(migrator *migrate.Migrate) error {
		before, err := runner.status(migrator)
		if err != nil {
			return err
		}
		if before.Dirty {
			return fmt.Errorf("migration: database is in a dirty state at version %d (manual intervention required)", before.Version)
		}

		runner.logger.Info("migration_started", slog.Uint64("current_version", uint64(before.Version)))

		if err := migrator.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				runner.logger.Info("migration_already_up_to_date")
				return nil
			}
			return fmt.Errorf("migration: up failed: %w", err)
		}

		after, _ := runner.status(migrator)
		runner.logger.Info("migration_successful",
			slog.Uint64("from_version", uint64(before.Version)),
			slog.Uint64("to_version", uint64(after.Version)),
		)
		return nil
	})
}

// Down rolls back the given number of migrations.
func (runner *Runner) Down(steps int) error {
	if steps <= 0 {
		return fmt.Errorf("migration: steps must be positive, got %d", steps)
	}

	return runner.with(func(migrator *migrate.Migrate) error {
		if err := migrator.Steps(-steps); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				return nil
			}
			return fmt.Errorf("migration: down failed: %w", err)
		}

		runner.logger.Info("migration_rolled_back", slog.Int("steps", steps))
		return nil
	})
}

// Status reports the current schema version.
func (runner *Runner) Status() (Status, error) {
	var current Status
	err := runner.with(func(migrator *migrate.Migrate) error {
		var err error
		current, err = runner.status(migrator)
		return err
	})
	return current, err
}

// RunUp applies all pending migrations in one call.
func RunUp(dsn, migrationsPath string, logger *slog.Logger) error {
	return NewRunner(dsn, migrationsPath, logger).Up()
}

func (runner *Runner) with(fn func(migrator *migrate.Migrate) error) error {
	migrator, err := migrate.New(runner.sourceURL, runner.databaseURL)
	if err != nil {
		return fmt.Errorf("migration: failed to initialize: %w", err)
	}
	defer func() {
		sourceError, dbError := migrator.Close()
		if sourceError != nil {
			runner.logger.Error("migration_source_close_failed", slog.Any("error", sourceError))
		}
		if dbError != nil {
			runner.logger.Error("migration_db_close_failed", slog.Any("error", dbError))
		}
	}()

	migrator.Log = &migrateLogger{logger: runner.logger}

	return fn(migrator)
}

func (runner *Runner) status(migrator *migrate.Migrate) (Status, error) {
	version, dirty, err := migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Status{Empty: true}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("migration: failed to get current version: %w", err)
	}
	return Status{Version: version, Dirty: dirty}, nil
}

// ToPgx5DSN rewrites postgres:// and postgresql:// URLs to the pgx5:// scheme golang-migrate expects.
func ToPgx5DSN(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dsn, prefix); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}

// migrateLogger adapts golang-migrate's logger interface to slog.
type migrateLogger struct {
	logger  *slog.Logger
	verbose bool
}

// Printf implements migrate.Logger.
func (l *migrateLogger) Printf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Verbose implements migrate.Logger.
func (l *migrateLogger) Verbose() bool {
	return l.verbose
}
