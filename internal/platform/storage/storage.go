// Package storage opens the configured database and builds the matching
// store implementations, so that binaries can stay driver-agnostic.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/scry-scheduler/internal/config"
	"github.com/phrazzld/scry-scheduler/internal/platform/migrations"
	"github.com/phrazzld/scry-scheduler/internal/platform/postgres"
	"github.com/phrazzld/scry-scheduler/internal/platform/sqlite"
	"github.com/phrazzld/scry-scheduler/internal/store"
)

// Backend is an open database together with its stores.
type Backend struct {
	DB     *sql.DB
	Driver string

	Cards  store.CardStore
	States store.ReviewStateStore
	Logs   store.ReviewLogStore

	logger *slog.Logger
}

// Open connects to the database named by cfg. The schema is not touched;
// call Migrate for that.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "storage"), slog.String("driver", cfg.Driver))

	b := &Backend{Driver: cfg.Driver, logger: logger}

	var err error
	switch cfg.Driver {
	case migrations.DriverPostgres:
		b.DB, err = postgres.Open(ctx, cfg.URL, logger)
		if err != nil {
			return nil, err
		}
		b.Cards = postgres.NewPostgresCardStore(b.DB, logger)
		b.States = postgres.NewPostgresReviewStateStore(b.DB, logger)
		b.Logs = postgres.NewPostgresReviewLogStore(b.DB, logger)

	case migrations.DriverSQLite:
		b.DB, err = sqlite.Open(ctx, cfg.URL, logger)
		if err != nil {
			return nil, err
		}
		b.Cards = sqlite.NewSQLiteCardStore(b.DB, logger)
		b.States = sqlite.NewSQLiteReviewStateStore(b.DB, logger)
		b.Logs = sqlite.NewSQLiteReviewLogStore(b.DB, logger)

	default:
		return nil, fmt.Errorf("%w: %q", migrations.ErrUnknownDriver, cfg.Driver)
	}

	return b, nil
}

// Migrate runs a migrations command against the backend.
func (b *Backend) Migrate(ctx context.Context, command string) error {
	return migrations.Run(ctx, b.DB, b.Driver, command, b.logger)
}

// Close closes the database.
func (b *Backend) Close() error {
	if err := b.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	b.logger.Debug("database closed")
	return nil
}
