package order

import (
	"database/sql"
	"time"

	"order-desk/internal/common/logger"
	"order-desk/internal/microservices/order/handlers"
	"order-desk/internal/microservices/order/repository"
	"order-desk/internal/microservices/order/service"
)

type Module struct {
	Service *service.OrderService
	Handler *handlers.OrderHandler
}

// New wires the order ledger over db. pub receives events after each commit.
func New(db *sql.DB, pub service.EventPublisher, lg *logger.Logger, pendingTTL time.Duration) *Module {
	svc := service.NewOrderService(repository.NewOrderRepository(db), pub, lg.Named("order-service"),
		service.WithPendingTTL(pendingTTL))
	return &Module{Service: svc, Handler: handlers.NewOrderHandler(svc)}
}
