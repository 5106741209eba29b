package app

import (
	"context"
	"database/sql"
	"fmt"

	"order-desk/internal/common/logger"
	"order-desk/internal/common/metrics"
	"order-desk/internal/config"
	"order-desk/internal/connections/database"
	"order-desk/internal/connections/kafka"
	"order-desk/internal/connections/mailer"
	"order-desk/internal/connections/rabbitmq"
	"order-desk/internal/microservices/catalog"
	"order-desk/internal/microservices/housekeeping"
	"order-desk/internal/microservices/identity"
	"order-desk/internal/microservices/order"
	"order-desk/internal/microservices/order/service"
)

const eventSource = "order-desk"

// App holds the connections and modules one process runs on.
type App struct {
	Cfg     *config.Config
	Log     *logger.Logger
	DB      *sql.DB
	Metrics *metrics.ServerMetrics
	Jobs    *metrics.JobMetrics

	Orders   *order.Module
	Catalog  *catalog.Module
	Identity *identity.Module

	closers []func()
}

// Open connects to Postgres, applies the schema, connects the configured event broker
// and wires every module.
func Open(ctx context.Context, cfg *config.Config, lg *logger.Logger) (*App, error) {
	db, err := database.ConnectDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &App{Cfg: cfg, Log: lg, DB: db}
	a.closers = append(a.closers, func() { _ = db.Close() })
	lg.Info("db_connected", map[string]any{"host": cfg.Database.Host, "database": cfg.Database.Database})

	if err := database.Migrate(ctx, db); err != nil {
		a.Close()
		return nil, err
	}

	pub, err := a.publisher()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Metrics = metrics.NewServerMetrics("api")
	a.Jobs = metrics.NewJobMetrics(a.Metrics.Registry())

	a.Orders = order.New(db, pub, lg, cfg.Jobs.PendingTTL)
	a.Catalog = catalog.New(db, lg)
	a.Identity = identity.New(db, mailer.New(cfg.Mail, lg.Named("mailer")), cfg.Auth, lg)
	return a, nil
}

func (a *App) publisher() (service.EventPublisher, error) {
	switch a.Cfg.Events.Driver {
	case "rabbitmq":
		c, err := rabbitmq.Dial(a.Cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		a.closers = append(a.closers, c.Close)
		if err := c.DeclareTopology(); err != nil {
			return nil, fmt.Errorf("rabbitmq topology: %w", err)
		}
		a.Log.Info("rabbitmq_connected", map[string]any{"host": a.Cfg.RabbitMQ.Host, "exchange": rabbitmq.OrdersExchange})
		return rabbitmq.NewOrderPublisher(c, eventSource), nil
	case "kafka":
		p, err := kafka.NewOrderPublisher(a.Cfg.Kafka)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = p.Close() })
		a.Log.Info("kafka_writer_ready", map[string]any{"brokers": a.Cfg.Kafka.Brokers, "topic": a.Cfg.Kafka.Topic})
		return p, nil
	}
	return service.NoopPublisher{}, nil
}

// Housekeeping builds the sweeper and expiry notifier over this app's modules.
func (a *App) Housekeeping() *housekeeping.Jobs {
	m := mailer.New(a.Cfg.Mail, a.Log.Named("mailer"))
	return housekeeping.New(a.DB, a.Orders.Service, a.Catalog.Repo, a.Identity.Repo, m, a.Cfg.Jobs, a.Jobs, a.Log)
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
