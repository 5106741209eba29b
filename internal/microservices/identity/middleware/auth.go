package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"order-desk/internal/common/httpx"
	"order-desk/internal/domain"
)

const userKey = "user"

type TokenParser interface {
	Parse(raw string) (int64, domain.Role, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (domain.User, error)
}

type Auth struct {
	tokens TokenParser
	users  UserLookup
}

func NewAuth(tokens TokenParser, users UserLookup) *Auth {
	return &Auth{tokens: tokens, users: users}
}

// Authenticate checks the Bearer token and loads its user. The role stored for the caller
// comes from the database, so a role change takes effect before the token expires.
func (a *Auth) Authenticate(c *gin.Context) {
	if a.authenticate(c) {
		c.Next()
	}
}

// RequireVerified must run after Authenticate.
func (a *Auth) RequireVerified(c *gin.Context) {
	if a.requireVerified(c) {
		c.Next()
	}
}

func (a *Auth) authenticate(c *gin.Context) bool {
	h := c.GetHeader("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		httpx.Fail(c, domain.ErrInvalidToken.Withf("no token provided"))
		return false
	}
	id, _, err := a.tokens.Parse(strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")))
	if err != nil {
		httpx.Fail(c, err)
		return false
	}
	u, err := a.users.GetByID(c.Request.Context(), id)
	if errors.Is(err, domain.ErrUserNotFound) {
		httpx.Fail(c, domain.ErrInvalidToken.Withf("user no longer exists"))
		return false
	}
	if err != nil {
		httpx.Fail(c, err)
		return false
	}
	httpx.SetCaller(c, u.ID, u.Role)
	c.Set(userKey, u)
	return true
}

func (a *Auth) requireVerified(c *gin.Context) bool {
	v, ok := c.Get(userKey)
	if !ok {
		httpx.Fail(c, domain.ErrInvalidToken)
		return false
	}
	if u, _ := v.(domain.User); !u.IsVerified {
		httpx.Fail(c, domain.ErrNotVerified.Withf("account not verified, please check your email"))
		return false
	}
	return true
}

func (a *Auth) RestrictTo(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, role, ok := httpx.Caller(c)
		if ok {
			for _, r := range roles {
				if r == role {
					c.Next()
					return
				}
			}
		}
		httpx.Fail(c, domain.ErrForbidden)
	}
}

// Guards bundles Authenticate and RequireVerified with RestrictTo for route registration.
func (a *Auth) Guards() httpx.Guards {
	return httpx.Guards{
		Authenticate: func(c *gin.Context) {
			if a.authenticate(c) && a.requireVerified(c) {
				c.Next()
			}
		},
		RestrictTo: a.RestrictTo,
	}
}
