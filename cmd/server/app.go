package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/scry-scheduler/internal/config"
	"github.com/phrazzld/scry-scheduler/internal/domain/srs"
	"github.com/phrazzld/scry-scheduler/internal/events"
	"github.com/phrazzld/scry-scheduler/internal/platform/migrations"
	"github.com/phrazzld/scry-scheduler/internal/platform/storage"
	"github.com/phrazzld/scry-scheduler/internal/service/auth"
	"github.com/phrazzld/scry-scheduler/internal/service/card_review"
)

// application holds the shared dependencies of the server and releases them
// on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	backend *storage.Backend

	jwtService        auth.JWTService
	srsService        srs.Service
	eventEmitter      *events.InMemoryEventEmitter
	cardReviewService card_review.CardReviewService

	// now is the service clock; tests pin it.
	now func() time.Time
}

// newApplication opens the database and builds every service.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	return newApplicationWithClock(ctx, cfg, logger, func() time.Time { return time.Now().UTC() })
}

func newApplicationWithClock(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	now func() time.Time,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		now:    now,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	logger.Info("JWT authentication service initialized",
		slog.Int("token_lifetime_minutes", cfg.Auth.TokenLifetimeMinutes))

	app.backend, err = storage.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	app.srsService = cfg.Scheduler.NewScheduler()

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(events.NewLoggingHandler(logger))

	app.cardReviewService, err = card_review.NewCardReviewService(
		app.backend.DB,
		app.backend.Cards,
		app.backend.States,
		app.backend.Logs,
		app.srsService,
		logger,
		card_review.WithClock(now),
		card_review.WithEventEmitter(app.eventEmitter),
	)
	if err != nil {
		app.cleanup()
		return nil, fmt.Errorf("failed to create card review service: %w", err)
	}

	logger.Info("application initialized successfully")
	return app, nil
}

func (app *application) migrate(ctx context.Context) error {
	if err := app.backend.Migrate(ctx, migrations.CommandUp); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Run serves HTTP until ctx is cancelled.
func (app *application) Run(ctx context.Context) error {
	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup releases application resources. It is safe to call more than once.
func (app *application) cleanup() {
	if app.backend != nil {
		if err := app.backend.Close(); err != nil {
			app.logger.Error("error closing database connection", slog.String("error", err.Error()))
		}
		app.backend = nil
	}
	app.logger.Info("application shutdown completed")
}
