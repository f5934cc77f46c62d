package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-scheduler/internal/service/auth"
	"github.com/spf13/cobra"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var userFlag string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for local development",
		Long: `token signs an access token for --user with the configured JWT secret.
Without --user a random user ID is generated and printed to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load(cmd)
			if err != nil {
				return err
			}

			userID := uuid.New()
			if userFlag != "" {
				if userID, err = uuid.Parse(userFlag); err != nil {
					return fmt.Errorf("invalid --user: %w", err)
				}
			} else {
				fmt.Fprintln(cmd.ErrOrStderr(), "user:", userID)
			}

			svc, err := auth.NewJWTService(cfg.Auth)
			if err != nil {
				return err
			}
			token, err := svc.GenerateToken(cmd.Context(), userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userFlag, "user", "", "user ID the token is issued for")
	return cmd
}
