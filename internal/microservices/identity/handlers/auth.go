package handlers

import (
	"github.com/gin-gonic/gin"

	"order-desk/internal/common/httpx"
	"order-desk/internal/domain"
	"order-desk/internal/microservices/identity/service"
)

type IdentityHandler struct {
	service service.IdentityServiceInterface
}

func NewIdentityHandler(s service.IdentityServiceInterface) *IdentityHandler {
	return &IdentityHandler{service: s}
}

func (ih *IdentityHandler) CreateUser(c *gin.Context) {
	var req domain.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "invalid JSON body")
		return
	}
	u, err := ih.service.CreateUser(c.Request.Context(), req)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.Created(c, gin.H{"user": u, "message": "user created, verification email sent"})
}

func (ih *IdentityHandler) Verify(c *gin.Context) {
	if err := ih.service.VerifyEmail(c.Request.Context(), c.Param("token")); err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, gin.H{"message": "email verified"})
}

func (ih *IdentityHandler) Login(c *gin.Context) {
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "email and password are required")
		return
	}
	token, u, err := ih.service.Login(c.Request.Context(), req)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, gin.H{"token": token, "user": u})
}

func (ih *IdentityHandler) Forgot(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "email is required")
		return
	}
	if err := ih.service.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, gin.H{"message": "reset email sent"})
}

func (ih *IdentityHandler) Reset(c *gin.Context) {
	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "password is required")
		return
	}
	if err := ih.service.ResetPassword(c.Request.Context(), c.Param("token"), req.Password); err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, gin.H{"message": "password reset"})
}

func (ih *IdentityHandler) ListUsers(c *gin.Context) {
	users, err := ih.service.ListUsers(c.Request.Context())
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	httpx.OK(c, gin.H{"users": users})
}

func (ih *IdentityHandler) GetUser(c *gin.Context) {
	id, ok := httpx.IDParam(c, "id")
	if !ok {
		return
	}
	u, err := ih.service.GetUser(c.Request.Context(), id)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, gin.H{"user": u})
}

func (ih *IdentityHandler) UpdateUser(c *gin.Context) {
	id, ok := httpx.IDParam(c, "id")
	if !ok {
		return
	}
	var upd domain.UserUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		httpx.BadRequest(c, "invalid JSON body")
		return
	}
	u, err := ih.service.UpdateUser(c.Request.Context(), id, upd)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, gin.H{"user": u})
}

func (ih *IdentityHandler) DeleteUser(c *gin.Context) {
	id, ok := httpx.IDParam(c, "id")
	if !ok {
		return
	}
	if err := ih.service.DeleteUser(c.Request.Context(), id); err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, gin.H{"id": id, "deleted": true})
}

func (ih *IdentityHandler) Register(rg *gin.RouterGroup, g httpx.Guards) {
	auth := rg.Group("/auth")
	auth.POST("/create-user", g.Authenticate, g.RestrictTo(domain.RoleManager), ih.CreateUser)
	auth.POST("/login", ih.Login)
	auth.GET("/verify/:token", ih.Verify)
	auth.POST("/forgot", ih.Forgot)
	auth.POST("/reset/:token", ih.Reset)

	users := rg.Group("/users", g.Authenticate, g.RestrictTo(domain.RoleManager))
	users.GET("", ih.ListUsers)
	users.GET("/:id", ih.GetUser)
	users.PUT("/:id", ih.UpdateUser)
	users.DELETE("/:id", ih.DeleteUser)
}
