package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/misbah-png/My-Journal/internal/api"
	"github.com/misbah-png/My-Journal/internal/assistant"
	"github.com/misbah-png/My-Journal/internal/auth"
	"github.com/misbah-png/My-Journal/internal/calendar"
	"github.com/misbah-png/My-Journal/internal/config"
	"github.com/misbah-png/My-Journal/internal/habits"
	"github.com/misbah-png/My-Journal/internal/reminder"
	"github.com/misbah-png/My-Journal/internal/security"
	"github.com/misbah-png/My-Journal/internal/store"
	"github.com/misbah-png/My-Journal/internal/tasks"
)

type Application struct {
	cfg     config.Config
	backend store.Backend
	logger  *slog.Logger
}

func New(cfg config.Config, backend store.Backend, logger *slog.Logger) *Application {
	if logger == nil {
		logger = slog.Default()
	}
	return &Application{cfg: cfg, backend: backend, logger: logger}
}

func (a *Application) Run(ctx context.Context) error {
	sessions := security.NewSessionManager(a.cfg.SessionTTL)

	opts := api.Options{
		Backend:  a.backend,
		Calendar: calendar.NewService(a.backend, a.logger),
		Habits:   habits.NewService(a.backend),
		Tasks:    tasks.NewService(a.backend),
		Auth:     auth.NewService(a.backend, sessions),
		Sessions: sessions,
		Logger:   a.logger,
	}
	if a.cfg.AssistantEnabled() {
		opts.Assistant = assistant.NewClient(assistant.Options{
			BaseURL: a.cfg.AssistantURL,
			APIKey:  a.cfg.AssistantKey,
			Model:   a.cfg.AssistantModel,
			Timeout: a.cfg.RequestTimeout,
		})
	}
	server := api.New(opts)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 3)
	wg := sync.WaitGroup{}

	if a.cfg.BindAddress != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.ServeTCP(ctx, a.cfg.BindAddress); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("tcp server: %w", err)
			}
		}()
	}
	if a.cfg.UnixSocketPath != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.ServeUnix(ctx, a.cfg.UnixSocketPath); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("unix server: %w", err)
			}
		}()
	}

	if a.cfg.EnableReminder {
		notifier := reminder.NewNotifier(a.backend, reminder.Options{
			Schedule:   a.cfg.ReminderCron,
			Lead:       a.cfg.ReminderLead,
			WebhookURL: a.cfg.WebhookURL,
			Logger:     a.logger,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := notifier.Run(ctx); err != nil {
				errCh <- fmt.Errorf("reminder: %w", err)
			}
		}()
	}

	select {
	case err := <-errCh:
		cancel()
		wg.Wait()
		return err
	case <-ctx.Done():
		wg.Wait()
		return nil
	}
}
