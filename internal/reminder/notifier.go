// Package reminder periodically scans every user's calendar for events about
// to start and announces them, either to the log or to a configured webhook.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/robfig/cron/v3"

	"github.com/misbah-png/My-Journal/internal/domain"
	"github.com/misbah-png/My-Journal/internal/store"
)

type Options struct {
	// Schedule is a cron expression (robfig/cron, "@every 1m" style allowed).
	Schedule string
	// Lead is how far before an event's start it becomes due for a reminder.
	Lead time.Duration
	// WebhookURL, if set, receives a POST per due event.
	WebhookURL string
	Logger     *slog.Logger
}

type Notifier struct {
	backend  store.Backend
	schedule string
	lead     time.Duration
	webhook  string
	http     *resty.Client
	log      *slog.Logger
	now      func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

func NewNotifier(backend store.Backend, opts Options) *Notifier {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lead := opts.Lead
	if lead <= 0 {
		lead = 15 * time.Minute
	}
	schedule := opts.Schedule
	if schedule == "" {
		schedule = "@every 1m"
	}
	return &Notifier{
		backend:  backend,
		schedule: schedule,
		lead:     lead,
		webhook:  opts.WebhookURL,
		http:     resty.New().SetTimeout(10 * time.Second),
		log:      logger,
		now:      time.Now,
		seen:     make(map[string]time.Time),
	}
}

// Run installs the scan on a cron schedule and blocks until ctx is done.
func (n *Notifier) Run(ctx context.Context) error {
	c := cron.New()
	if _, err := c.AddFunc(n.schedule, func() { n.Scan(ctx) }); err != nil {
		return fmt.Errorf("reminder schedule %q: %w", n.schedule, err)
	}
	c.Start()
	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	return nil
}

// Scan announces every event starting within the lead window, at most once
// per event id.
func (n *Notifier) Scan(ctx context.Context) {
	users, err := n.backend.ListUsers(ctx)
	if err != nil {
		n.log.Error("reminder scan: list users", "err", err)
		return
	}
	now := n.now()
	n.prune(now)
	for _, user := range users {
		events, err := n.backend.List(ctx, user.ID)
		if err != nil {
			n.log.Error("reminder scan: list events", "user", user.ID, "err", err)
			continue
		}
		for _, e := range events {
			if !n.due(e, now) {
				continue
			}
			n.announce(ctx, user, e)
		}
	}
}

func (n *Notifier) due(e domain.Event, now time.Time) bool {
	if !e.Start.After(now) || e.Start.Sub(now) > n.lead {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.seen[e.ID]; ok {
		return false
	}
	n.seen[e.ID] = e.Start
	return true
}

func (n *Notifier) prune(now time.Time) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for id, start := range n.seen {
		if start.Before(now.Add(-24 * time.Hour)) {
			delete(n.seen, id)
		}
	}
}

type webhookPayload struct {
	UserID string       `json:"user_id"`
	Email  string       `json:"email"`
	Event  domain.Event `json:"event"`
}

func (n *Notifier) announce(ctx context.Context, user domain.User, e domain.Event) {
	n.log.Info("upcoming event",
		"user", user.ID,
		"event", e.ID,
		"title", e.Title,
		"starts_in", e.Start.Sub(n.now()).Round(time.Second).String(),
	)
	if n.webhook == "" {
		return
	}
	resp, err := n.http.R().
		SetContext(ctx).
		SetBody(webhookPayload{UserID: user.ID, Email: user.Email, Event: e}).
		Post(n.webhook)
	if err != nil {
		n.log.Error("reminder webhook", "event", e.ID, "err", err)
		return
	}
	if resp.IsError() {
		n.log.Error("reminder webhook", "event", e.ID, "status", resp.StatusCode())
	}
}
