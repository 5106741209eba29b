package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"order-desk/internal/common/logger"
	"order-desk/internal/common/metrics"
)

// ErrBusy is returned by RunOnce while another run of the same job is in progress.
var ErrBusy = errors.New("job already running")

// JobLocker guards a job across processes. release must be called after a successful lock.
type JobLocker interface {
	TryLock(ctx context.Context, job string) (release func(), ok bool, err error)
}

// runner executes one named job at a time in this process and, with a locker, across processes.
type runner struct {
	name    string
	work    func(ctx context.Context, now time.Time) (int64, error)
	busy    atomic.Bool
	locker  JobLocker
	metrics *metrics.JobMetrics
	lg      *logger.Logger
	now     func() time.Time
}

func (r *runner) runOnce(ctx context.Context) (int64, error) {
	if !r.busy.CompareAndSwap(false, true) {
		r.lg.Debug("job_skipped", map[string]any{"job": r.name, "reason": "running"})
		return 0, ErrBusy
	}
	defer r.busy.Store(false)

	if r.locker != nil {
		release, ok, err := r.locker.TryLock(ctx, r.name)
		if err != nil {
			r.metrics.Observe(r.name, 0, err)
			return 0, err
		}
		if !ok {
			r.lg.Debug("job_skipped", map[string]any{"job": r.name, "reason": "locked elsewhere"})
			return 0, ErrBusy
		}
		defer release()
	}

	start := r.now()
	n, err := r.work(ctx, start)
	r.metrics.Observe(r.name, n, err)
	if err != nil {
		r.lg.Error("job_failed", err, map[string]any{"job": r.name})
		return n, err
	}
	r.lg.Info("job_completed", map[string]any{"job": r.name, "affected": n, "duration_ms": time.Since(start).Milliseconds()})
	return n, nil
}

// loop runs the job immediately, then each time wait elapses, until ctx is done.
// Ticks never overlap because the loop is a single goroutine.
func (r *runner) loop(ctx context.Context, wait func(now time.Time) time.Duration) error {
	r.lg.Info("job_started", map[string]any{"job": r.name})
	_, _ = r.runOnce(ctx)

	for {
		d := wait(r.now())
		r.lg.Debug("job_scheduled", map[string]any{"job": r.name, "in": d.String()})
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			r.lg.Info("graceful_shutdown", map[string]any{"job": r.name})
			return nil
		case <-t.C:
			_, _ = r.runOnce(ctx)
		}
	}
}
