package api

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"order-desk/internal/app"
	"order-desk/internal/common/httpx"
	"order-desk/internal/common/logger"
	"order-desk/internal/common/metrics"
	"order-desk/internal/config"
)

// Registrar mounts a module's routes on the versioned group.
type Registrar interface {
	Register(rg *gin.RouterGroup, g httpx.Guards)
}

type Options struct {
	HTTP    config.HTTPConfig
	Log     *logger.Logger
	Metrics *metrics.ServerMetrics
	DB      *sql.DB
	Guards  httpx.Guards
	Modules []Registrar
}

func NewRouter(o Options) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	cc := cors.DefaultConfig()
	cc.AllowOrigins = o.HTTP.AllowedOrigins
	if len(cc.AllowOrigins) == 0 || (len(cc.AllowOrigins) == 1 && cc.AllowOrigins[0] == "*") {
		cc.AllowOrigins = nil
		cc.AllowAllOrigins = true
	}
	cc.AllowHeaders = append(cc.AllowHeaders, "Authorization", httpx.RequestIDHeader)
	cc.ExposeHeaders = []string{httpx.RequestIDHeader, "Content-Disposition"}
	r.Use(cors.New(cc))

	r.Use(httpx.RequestID(o.Log), httpx.AccessLog())
	if o.Metrics != nil {
		r.Use(o.Metrics.Middleware())
		r.GET("/metrics", gin.WrapH(o.Metrics.Handler()))
	}

	r.GET("/health", func(c *gin.Context) {
		if o.DB != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := o.DB.PingContext(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": "database unavailable"})
				return
			}
		}
		httpx.OK(c, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	for _, m := range o.Modules {
		m.Register(v1, o.Guards)
	}
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "route not found", "code": "NOT_FOUND"})
	})
	return r
}

// Run serves the HTTP API of a until ctx is cancelled.
func Run(ctx context.Context, a *app.App) error {
	r := NewRouter(Options{
		HTTP:    a.Cfg.HTTP,
		Log:     a.Log.Named("api"),
		Metrics: a.Metrics,
		DB:      a.DB,
		Guards:  a.Identity.Auth.Guards(),
		Modules: []Registrar{a.Identity.Handler, a.Catalog.Handler, a.Orders.Handler},
	})
	addr := ":" + strconv.Itoa(a.Cfg.HTTP.Port)
	a.Log.Info("service_started", map[string]any{"service": "api", "addr": addr})
	return httpx.New(addr, r).Run(ctx)
}
