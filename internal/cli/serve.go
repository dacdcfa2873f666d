package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/misbah-png/My-Journal/internal/app"
	"github.com/misbah-png/My-Journal/internal/config"
)

func newServeCommand(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the journal HTTP server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level(cfg.LogLevel)}))
			backend, err := app.BuildBackend(ctx, cfg)
			if err != nil {
				return err
			}
			defer backend.Close()
			logger.Info("starting", "store", backend.Name(), "bind", cfg.BindAddress)
			return app.New(cfg, backend, logger).Run(ctx)
		},
	}
}

func level(v string) slog.Level {
	switch v {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
