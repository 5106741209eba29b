package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"order-desk/internal/common/logger"
	"order-desk/internal/config"
	"order-desk/internal/domain"
)

const (
	NotifierJob  = "item_expiry_alert"
	AlertSubject = "Items Expiry Alert"
)

type ItemSource interface {
	ExpiringBetween(ctx context.Context, from, to time.Time) ([]domain.Item, error)
}

type ManagerSource interface {
	ListVerifiedManagers(ctx context.Context) ([]domain.User, error)
}

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Notifier mails verified managers the items expiring within the next days, once a day.
type Notifier struct {
	r        *runner
	items    ItemSource
	managers ManagerSource
	mail     Mailer
	hour     int
	days     int
	loc      *time.Location
}

func NewNotifier(items ItemSource, managers ManagerSource, mail Mailer, cfg config.JobsConfig, lg *logger.Logger, opts ...Option) *Notifier {
	n := &Notifier{items: items, managers: managers, mail: mail, hour: cfg.NotifyHour, days: cfg.NotifyDays, loc: cfg.Location()}
	n.r = &runner{name: NotifierJob, lg: lg, now: time.Now, work: n.notify}
	for _, o := range opts {
		o(n.r)
	}
	return n
}

// RunOnce returns the number of mails sent.
func (n *Notifier) RunOnce(ctx context.Context) (int64, error) { return n.r.runOnce(ctx) }

// Run checks once at start and then daily at the configured hour.
func (n *Notifier) Run(ctx context.Context) error {
	return n.r.loop(ctx, func(now time.Time) time.Duration {
		return NextRun(now, n.hour, n.loc).Sub(now)
	})
}

// NextRun is the first hour:00 in loc strictly after now.
func NextRun(now time.Time, hour int, loc *time.Location) time.Time {
	local := now.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, 0, 0, 0, loc)
	}
	return next
}

// Window covers today from midnight through the end of the day days from now, in loc.
func Window(now time.Time, days int, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	to := time.Date(local.Year(), local.Month(), local.Day()+days, 23, 59, 59, 999999999, loc)
	return from, to
}

// AlertBody lists items as "- <name> (Expires: YYYY-MM-DD)".
func AlertBody(items []domain.Item, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("The following items are expiring soon:\n\n")
	for _, it := range items {
		fmt.Fprintf(&b, "- %s (Expires: %s)\n", it.Name, it.ExpiryDate.In(loc).Format("2006-01-02"))
	}
	return b.String()
}

func (n *Notifier) notify(ctx context.Context, now time.Time) (int64, error) {
	from, to := Window(now, n.days, n.loc)
	items, err := n.items.ExpiringBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("load expiring items: %w", err)
	}
	n.r.lg.Debug("expiring_items_found", map[string]any{"count": len(items)})
	if len(items) == 0 {
		return 0, nil
	}
	managers, err := n.managers.ListVerifiedManagers(ctx)
	if err != nil {
		return 0, fmt.Errorf("load managers: %w", err)
	}
	if len(managers) == 0 {
		n.r.lg.Info("expiry_alert_skipped", map[string]any{"reason": "no verified managers", "items": len(items)})
		return 0, nil
	}

	body := AlertBody(items, n.loc)
	var sent int64
	for _, m := range managers {
		if err := n.mail.Send(ctx, m.Email, AlertSubject, body); err != nil {
			n.r.lg.Error("expiry_alert_failed", err, map[string]any{"manager_id": m.ID})
			continue
		}
		sent++
	}
	return sent, nil
}
