package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/misbah-png/My-Journal/internal/app"
	"github.com/misbah-png/My-Journal/internal/auth"
	"github.com/misbah-png/My-Journal/internal/config"
	"github.com/misbah-png/My-Journal/internal/security"
)

func newUserAddCommand(ctx context.Context) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "useradd",
		Short: "Create an account directly in the configured store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			backend, err := app.BuildBackend(ctx, cfg)
			if err != nil {
				return err
			}
			defer backend.Close()

			// The throwaway session manager exists only to satisfy the
			// service constructor; the issued token is discarded.
			svc := auth.NewService(backend, security.NewSessionManager(time.Minute))
			user, _, err := svc.Register(ctx, email, password)
			if err != nil {
				return err
			}
			cmd.Printf("created user %s (%s)\n", user.ID, user.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address for the new account")
	cmd.Flags().StringVar(&password, "password", "", "Password for the new account")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
