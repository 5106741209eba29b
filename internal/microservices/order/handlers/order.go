package handlers

import (
	"github.com/gin-gonic/gin"

	"order-desk/internal/common/httpx"
	"order-desk/internal/domain"
	"order-desk/internal/microservices/order/service"
)

type OrderHandler struct {
	service service.OrderServiceInterface
}

func NewOrderHandler(s service.OrderServiceInterface) *OrderHandler {
	return &OrderHandler{service: s}
}

func (oh *OrderHandler) CreateOrder(c *gin.Context) {
	var req domain.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "invalid JSON body")
		return
	}
	cashierID, _, _ := httpx.Caller(c)
	resp, err := oh.service.CreateOrder(c.Request.Context(), cashierID, req)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.Created(c, resp)
}

func (oh *OrderHandler) ListOrders(c *gin.Context) {
	f := domain.OrderFilter{
		Status: domain.OrderStatus(c.Query("status")),
		Limit:  httpx.QueryInt(c, "limit", 0),
		Offset: httpx.QueryInt(c, "offset", 0),
	}
	orders, err := oh.service.ListOrders(c.Request.Context(), f)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	if orders == nil {
		orders = []domain.OrderView{}
	}
	httpx.OK(c, gin.H{"orders": orders})
}

func (oh *OrderHandler) GetOrder(c *gin.Context) {
	orderID, ok := httpx.IDParam(c, "orderId")
	if !ok {
		return
	}
	id, role, _ := httpx.Caller(c)
	o, err := oh.service.GetOrder(c.Request.Context(), orderID, service.Actor{ID: id, Role: role})
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, o)
}

func (oh *OrderHandler) AddLine(c *gin.Context) {
	orderID, ok := httpx.IDParam(c, "orderId")
	if !ok {
		return
	}
	var req domain.AddLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "item id and quantity are required")
		return
	}
	actorID, _, _ := httpx.Caller(c)
	resp, err := oh.service.AddLine(c.Request.Context(), orderID, actorID, req)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.Created(c, resp)
}

func (oh *OrderHandler) RemoveLine(c *gin.Context) {
	orderID, ok := httpx.IDParam(c, "orderId")
	if !ok {
		return
	}
	itemID, ok := httpx.IDParam(c, "itemId")
	if !ok {
		return
	}
	callerID, _, _ := httpx.Caller(c)
	resp, err := oh.service.RemoveLine(c.Request.Context(), orderID, itemID, callerID)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, resp)
}

func (oh *OrderHandler) SetStatus(c *gin.Context) {
	orderID, ok := httpx.IDParam(c, "orderId")
	if !ok {
		return
	}
	var req domain.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.BadRequest(c, "newStatus is required")
		return
	}
	callerID, _, _ := httpx.Caller(c)
	resp, err := oh.service.SetStatus(c.Request.Context(), orderID, req.NewStatus, callerID)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, resp)
}

func (oh *OrderHandler) CancelOrder(c *gin.Context) {
	orderID, ok := httpx.IDParam(c, "orderId")
	if !ok {
		return
	}
	managerID, _, _ := httpx.Caller(c)
	resp, err := oh.service.CancelOrder(c.Request.Context(), orderID, managerID)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, resp)
}

// Timeline lists status changes oldest first.
func (oh *OrderHandler) Timeline(c *gin.Context) {
	orderID, ok := httpx.IDParam(c, "orderId")
	if !ok {
		return
	}
	id, role, _ := httpx.Caller(c)
	limit := httpx.QueryInt(c, "limit", 50)
	offset := httpx.QueryInt(c, "offset", 0)
	events, err := oh.service.Timeline(c.Request.Context(), orderID, service.Actor{ID: id, Role: role}, limit, offset)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, gin.H{"orderId": orderID, "events": events})
}

func (oh *OrderHandler) Register(rg *gin.RouterGroup, g httpx.Guards) {
	orders := rg.Group("/orders", g.Authenticate)
	orders.POST("", g.RestrictTo(domain.RoleCashier), oh.CreateOrder)
	orders.GET("", g.RestrictTo(domain.RoleManager), oh.ListOrders)
	orders.GET("/:orderId", g.RestrictTo(domain.RoleManager, domain.RoleCashier), oh.GetOrder)
	orders.GET("/:orderId/timeline", g.RestrictTo(domain.RoleManager, domain.RoleCashier), oh.Timeline)
	orders.POST("/:orderId/add-item", g.RestrictTo(domain.RoleCashier), oh.AddLine)
	orders.DELETE("/:orderId/items/:itemId", g.RestrictTo(domain.RoleCashier), oh.RemoveLine)
	orders.PUT("/:orderId/status", g.RestrictTo(domain.RoleCashier), oh.SetStatus)
	orders.PATCH("/:orderId/cancel", g.RestrictTo(domain.RoleManager), oh.CancelOrder)
}
