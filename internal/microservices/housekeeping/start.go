package housekeeping

import (
	"database/sql"

	"order-desk/internal/common/logger"
	"order-desk/internal/common/metrics"
	"order-desk/internal/config"
	"order-desk/internal/microservices/housekeeping/repository"
	"order-desk/internal/microservices/housekeeping/service"
)

type Jobs struct {
	Sweeper  *service.Sweeper
	Notifier *service.Notifier
}

// New builds both jobs. Each takes a Postgres advisory lock per run, so several
// instances can be started without double sweeps or duplicate alerts.
func New(db *sql.DB, orders service.OrderExpirer, items service.ItemSource, managers service.ManagerSource,
	mail service.Mailer, cfg config.JobsConfig, jm *metrics.JobMetrics, lg *logger.Logger,
) *Jobs {
	locks := repository.NewJobLockRepository(db)
	return &Jobs{
		Sweeper: service.NewSweeper(orders, cfg.SweepInterval, lg.Named("sweeper"),
			service.WithLocker(locks), service.WithMetrics(jm)),
		Notifier: service.NewNotifier(items, managers, mail, cfg, lg.Named("expiry-notifier"),
			service.WithLocker(locks), service.WithMetrics(jm)),
	}
}
