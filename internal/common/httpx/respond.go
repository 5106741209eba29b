package httpx

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"order-desk/internal/common/logger"
	"order-desk/internal/domain"
)

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "data": data})
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{"ok": true, "data": data})
}

// BadRequest answers malformed input that never reached the service layer.
func BadRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"ok": false, "error": msg, "code": "VALIDATION"})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(k domain.Kind) int {
	switch k {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidState, domain.KindConflict:
		return http.StatusConflict
	case domain.KindUnauthorized:
		return http.StatusForbidden
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindBusinessRule:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Fail writes err as an error envelope. Internal errors are logged and replaced by an opaque message.
func Fail(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status := StatusFor(kind)
	if kind == domain.KindInternal {
		Logger(c).Error("request_failed", err, map[string]any{"path": c.FullPath(), "method": c.Request.Method})
		c.AbortWithStatusJSON(status, gin.H{"ok": false, "error": "internal server error", "code": kind.String()})
		return
	}
	code := kind.String()
	var de *domain.Error
	if errors.As(err, &de) {
		code = de.Code
	}
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "error": err.Error(), "code": code})
}

// IDParam parses a positive integer path parameter.
func IDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		BadRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// QueryInt parses an optional integer query parameter, returning d when absent or malformed.
func QueryInt(c *gin.Context, key string, d int) int {
	s := c.Query(key)
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return n
}

const loggerKey = "logger"

// Logger returns the request scoped logger set by RequestID, or a fallback.
func Logger(c *gin.Context) *logger.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*logger.Logger); ok {
			return lg
		}
	}
	return logger.New("api")
}

const (
	userIDKey = "userId"
	roleKey   = "role"
)

// SetCaller records the authenticated user on the request.
func SetCaller(c *gin.Context, id int64, role domain.Role) {
	c.Set(userIDKey, id)
	c.Set(roleKey, role)
}

// Caller returns the authenticated user id and role. ok is false on unauthenticated routes.
func Caller(c *gin.Context) (id int64, role domain.Role, ok bool) {
	v, exists := c.Get(userIDKey)
	if !exists {
		return 0, "", false
	}
	id, ok = v.(int64)
	if r, exists := c.Get(roleKey); exists {
		role, _ = r.(domain.Role)
	}
	return id, role, ok
}
