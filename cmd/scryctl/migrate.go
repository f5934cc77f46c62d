package main

import (
	"fmt"

	"github.com/phrazzld/scry-scheduler/internal/platform/migrations"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status|version|reset]",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{migrations.CommandUp, migrations.CommandDown, migrations.CommandStatus, migrations.CommandVersion, migrations.CommandReset},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			_, backend, _, err := opts.openBackend(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			if err := backend.Migrate(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: ok\n", args[0])
			return nil
		},
	}
}
