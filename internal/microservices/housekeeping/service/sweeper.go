package service

import (
	"context"
	"time"

	"order-desk/internal/common/logger"
	"order-desk/internal/common/metrics"
)

const SweeperJob = "expire_pending_orders"

type OrderExpirer interface {
	SweepExpiredOrders(ctx context.Context, now time.Time) (int64, error)
}

type Option func(*runner)

func WithLocker(l JobLocker) Option { return func(r *runner) { r.locker = l } }

func WithMetrics(m *metrics.JobMetrics) Option { return func(r *runner) { r.metrics = m } }

func WithClock(now func() time.Time) Option { return func(r *runner) { r.now = now } }

// Sweeper expires stale pending orders on a fixed interval.
type Sweeper struct {
	r        *runner
	interval time.Duration
}

func NewSweeper(orders OrderExpirer, interval time.Duration, lg *logger.Logger, opts ...Option) *Sweeper {
	r := &runner{name: SweeperJob, lg: lg, now: time.Now}
	r.work = func(ctx context.Context, now time.Time) (int64, error) {
		return orders.SweepExpiredOrders(ctx, now)
	}
	for _, o := range opts {
		o(r)
	}
	return &Sweeper{r: r, interval: interval}
}

func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) { return s.r.runOnce(ctx) }

// Run sweeps once at start and then every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	return s.r.loop(ctx, func(time.Time) time.Duration { return s.interval })
}
