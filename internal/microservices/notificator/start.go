package notificator

import (
	"context"
	"fmt"

	"order-desk/internal/common/logger"
	"order-desk/internal/config"
	"order-desk/internal/connections/kafka"
	"order-desk/internal/connections/rabbitmq"
	"order-desk/internal/microservices/notificator/service"
)

const consumerName = "notificator"

// Start subscribes to order events on the configured broker and logs them until ctx is done.
func Start(ctx context.Context, cfg *config.Config, lg *logger.Logger) error {
	ns := service.NewNotificatorService(lg, nil)

	switch cfg.Events.Driver {
	case "rabbitmq":
		rmq, err := rabbitmq.Dial(cfg.RabbitMQ)
		if err != nil {
			return err
		}
		defer rmq.Close()
		if err := rmq.DeclareTopology(); err != nil {
			return err
		}
		msgs, cancel, err := rmq.Consume(rabbitmq.NotificationsQueue, consumerName, 10)
		if err != nil {
			return err
		}
		defer cancel()
		lg.Info("subscriber_started", map[string]any{"driver": "rabbitmq", "queue": rabbitmq.NotificationsQueue})
		return ns.ConsumeRabbit(ctx, msgs)

	case "kafka":
		c := kafka.NewClient(cfg.Kafka.Brokers)
		if !c.Enabled() {
			return kafka.ErrDisabled
		}
		r := c.NewReader(cfg.Kafka.Topic, cfg.Kafka.GroupID)
		defer r.Close()
		lg.Info("subscriber_started", map[string]any{"driver": "kafka", "topic": cfg.Kafka.Topic})
		return ns.ConsumeKafka(ctx, r)
	}
	return fmt.Errorf("events driver %q has nothing to subscribe to", cfg.Events.Driver)
}
