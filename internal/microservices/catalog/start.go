package catalog

import (
	"database/sql"

	"order-desk/internal/common/logger"
	"order-desk/internal/microservices/catalog/handlers"
	"order-desk/internal/microservices/catalog/repository"
	"order-desk/internal/microservices/catalog/service"
)

type Module struct {
	Repo    *repository.ItemRepository
	Service *service.CatalogService
	Handler *handlers.ItemHandler
}

func New(db *sql.DB, lg *logger.Logger) *Module {
	repo := repository.NewItemRepository(db)
	svc := service.NewCatalogService(repo, lg.Named("catalog-service"))
	return &Module{Repo: repo, Service: svc, Handler: handlers.NewItemHandler(svc)}
}
