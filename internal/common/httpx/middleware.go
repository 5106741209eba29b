package httpx

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"order-desk/internal/common/logger"
	"order-desk/internal/domain"
)

const RequestIDHeader = "X-Request-ID"

// RequestID tags every request with an id (taken from the header when present) and
// stores a logger carrying it in the gin context.
func RequestID(lg *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Set(loggerKey, lg.WithRequestID(id))
		c.Next()
	}
}

// AccessLog writes one debug line per request.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		Logger(c).Debug("http_request", map[string]any{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}

// Guards are the middlewares protected routes are mounted behind.
type Guards struct {
	Authenticate gin.HandlerFunc
	RestrictTo   func(roles ...domain.Role) gin.HandlerFunc
}
