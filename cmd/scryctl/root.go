package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-scheduler/internal/config"
	"github.com/phrazzld/scry-scheduler/internal/platform/logger"
	"github.com/phrazzld/scry-scheduler/internal/platform/storage"
	"github.com/phrazzld/scry-scheduler/internal/service/card_review"
	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	configDir string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "scryctl",
		Short: "Review, simulate and administer scry-scheduler",
		Long: `scryctl drives the scry-scheduler review engine from the terminal.

Configuration is read the same way as the server: a .env file and an
optional config.yaml in --config-dir, overridden by SCRY_* environment
variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configDir, "config-dir", ".", "directory holding .env and config.yaml")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr (debug, info, warn, error)")

	root.AddCommand(
		newSimulateCmd(),
		newReviewCmd(opts),
		newMigrateCmd(opts),
		newTokenCmd(opts),
		newCardCmd(opts),
	)
	return root
}

// load reads configuration and sets up a stderr logger at the level given
// by --log-level.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFrom(o.configDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	serverCfg := cfg.Server
	serverCfg.LogLevel = o.logLevel
	log, err := logger.SetupWithWriter(serverCfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}
	return cfg, log, nil
}

// openBackend loads configuration and opens the configured database.
func (o *rootOptions) openBackend(ctx context.Context, cmd *cobra.Command) (*config.Config, *storage.Backend, *slog.Logger, error) {
	cfg, log, err := o.load(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	backend, err := storage.Open(ctx, cfg.Database, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return cfg, backend, log, nil
}

func newReviewService(
	cfg *config.Config,
	backend *storage.Backend,
	log *slog.Logger,
	opts ...card_review.Option,
) (card_review.CardReviewService, error) {
	return card_review.NewCardReviewService(
		backend.DB,
		backend.Cards,
		backend.States,
		backend.Logs,
		cfg.Scheduler.NewScheduler(),
		log,
		opts...,
	)
}

func parseUser(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, fmt.Errorf("--user is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --user: %w", err)
	}
	return id, nil
}
