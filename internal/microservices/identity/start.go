package identity

import (
	"database/sql"

	"order-desk/internal/common/logger"
	"order-desk/internal/config"
	"order-desk/internal/connections/mailer"
	"order-desk/internal/microservices/identity/handlers"
	"order-desk/internal/microservices/identity/middleware"
	"order-desk/internal/microservices/identity/repository"
	"order-desk/internal/microservices/identity/service"
)

type Module struct {
	Repo    *repository.UserRepository
	Service *service.IdentityService
	Handler *handlers.IdentityHandler
	Auth    *middleware.Auth
}

func New(db *sql.DB, m mailer.Mailer, cfg config.AuthConfig, lg *logger.Logger) *Module {
	repo := repository.NewUserRepository(db)
	tokens := service.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	svc := service.NewIdentityService(repo, m, tokens, lg.Named("identity-service"), cfg)
	return &Module{
		Repo:    repo,
		Service: svc,
		Handler: handlers.NewIdentityHandler(svc),
		Auth:    middleware.NewAuth(tokens, repo),
	}
}
