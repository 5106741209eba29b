package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-desk/internal/common/httpx"
	"order-desk/internal/domain"
	"order-desk/internal/microservices/order/service"
)

type stubService struct {
	service.OrderServiceInterface

	gotCashier int64
	gotReq     domain.CreateOrderRequest
	gotStatus  domain.OrderStatus
	gotFilter  domain.OrderFilter
	gotActor   service.Actor
	err        error
}

func (s *stubService) CreateOrder(_ context.Context, cashierID int64, req domain.CreateOrderRequest) (domain.CreateOrderResponse, error) {
	s.gotCashier, s.gotReq = cashierID, req
	if s.err != nil {
		return domain.CreateOrderResponse{}, s.err
	}
	return domain.CreateOrderResponse{OrderID: 7, Status: domain.StatusPending, TotalCost: decimal.RequireFromString("30")}, nil
}

func (s *stubService) SetStatus(_ context.Context, orderID int64, st domain.OrderStatus, callerID int64) (domain.StatusResponse, error) {
	s.gotStatus = st
	if s.err != nil {
		return domain.StatusResponse{}, s.err
	}
	return domain.StatusResponse{OrderID: orderID, Status: st}, nil
}

func (s *stubService) RemoveLine(_ context.Context, orderID, itemID, callerID int64) (domain.RemoveLineResponse, error) {
	return domain.RemoveLineResponse{OrderID: orderID, NewTotal: decimal.NewFromInt(itemID), RemainingItems: 1}, s.err
}

func (s *stubService) ListOrders(_ context.Context, f domain.OrderFilter) ([]domain.OrderView, error) {
	s.gotFilter = f
	return nil, s.err
}

func (s *stubService) Timeline(_ context.Context, orderID int64, caller service.Actor, limit, offset int) ([]domain.StatusLogEntry, error) {
	s.gotActor = caller
	return []domain.StatusLogEntry{{OrderID: orderID, Status: domain.StatusPending, ChangedBy: "10", ChangedAt: time.Unix(0, 0).UTC()}}, s.err
}

// testGuards trusts an "X-Test-User: <id>:<role>" header.
func testGuards() httpx.Guards {
	return httpx.Guards{
		Authenticate: func(c *gin.Context) {
			parts := strings.SplitN(c.GetHeader("X-Test-User"), ":", 2)
			if len(parts) != 2 {
				httpx.Fail(c, domain.ErrInvalidToken)
				return
			}
			id, _ := strconv.ParseInt(parts[0], 10, 64)
			httpx.SetCaller(c, id, domain.Role(parts[1]))
			c.Next()
		},
		RestrictTo: func(roles ...domain.Role) gin.HandlerFunc {
			return func(c *gin.Context) {
				_, role, _ := httpx.Caller(c)
				for _, r := range roles {
					if r == role {
						c.Next()
						return
					}
				}
				httpx.Fail(c, domain.ErrForbidden)
			}
		},
	}
}

func newRouter(s *stubService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewOrderHandler(s).Register(r.Group("/api/v1"), testGuards())
	return r
}

func do(t *testing.T, r http.Handler, method, path, user, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func TestCreateOrderHandler(t *testing.T) {
	s := &stubService{}
	w, body := do(t, newRouter(s), http.MethodPost, "/api/v1/orders", "10:cashier",
		`{"waiterId": 20, "items": [{"itemId": 1, "quantity": 3}]}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, body["ok"])
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 7, data["orderId"])
	assert.Equal(t, "30", data["totalCost"])
	assert.EqualValues(t, 10, s.gotCashier)
	assert.EqualValues(t, 20, s.gotReq.WaiterID)
	require.Len(t, s.gotReq.Items, 1)
	assert.Equal(t, 3, s.gotReq.Items[0].Quantity)
}

func TestCreateOrderHandlerErrors(t *testing.T) {
	s := &stubService{}
	r := newRouter(s)

	w, body := do(t, r, http.MethodPost, "/api/v1/orders", "10:cashier", `{"waiterId":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["ok"])

	w, _ = do(t, r, http.MethodPost, "/api/v1/orders", "30:manager", `{}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = do(t, r, http.MethodPost, "/api/v1/orders", "", `{}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	s.err = domain.ErrExpiredItem.Withf(`item "Milk" is expired and cannot be added`)
	w, body = do(t, r, http.MethodPost, "/api/v1/orders", "10:cashier", `{"waiterId": 2, "items": [{"itemId": 1, "quantity": 1}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "EXPIRED_ITEM", body["code"])
	assert.Equal(t, `item "Milk" is expired and cannot be added`, body["error"])
}

func TestSetStatusHandler(t *testing.T) {
	s := &stubService{}
	r := newRouter(s)

	w, body := do(t, r, http.MethodPut, "/api/v1/orders/5/status", "10:cashier", `{"newStatus": "complete"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.StatusComplete, s.gotStatus)
	assert.Equal(t, "complete", body["data"].(map[string]any)["status"])

	s.err = domain.ErrInsufficientStock.Withf("insufficient stock for item: Coffee")
	w, body = do(t, r, http.MethodPut, "/api/v1/orders/5/status", "10:cashier", `{"newStatus": "complete"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "INSUFFICIENT_STOCK", body["code"])

	s.err = domain.ErrAlreadyComplete
	w, _ = do(t, r, http.MethodPut, "/api/v1/orders/5/status", "10:cashier", `{"newStatus": "complete"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = do(t, r, http.MethodPut, "/api/v1/orders/abc/status", "10:cashier", `{"newStatus": "complete"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRemoveLineHandlerParsesBothIDs(t *testing.T) {
	s := &stubService{}
	w, body := do(t, newRouter(s), http.MethodDelete, "/api/v1/orders/5/items/9", "10:cashier", "")
	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 5, data["orderId"])
	assert.Equal(t, "9", data["newTotal"])
}

func TestListOrdersHandler(t *testing.T) {
	s := &stubService{}
	w, body := do(t, newRouter(s), http.MethodGet, "/api/v1/orders?status=pending&limit=5&offset=10", "30:manager", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.OrderFilter{Status: domain.StatusPending, Limit: 5, Offset: 10}, s.gotFilter)
	assert.Equal(t, []any{}, body["data"].(map[string]any)["orders"])

	w, _ = do(t, newRouter(s), http.MethodGet, "/api/v1/orders", "10:cashier", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestTimelineHandlerPassesCaller(t *testing.T) {
	s := &stubService{}
	w, body := do(t, newRouter(s), http.MethodGet, "/api/v1/orders/5/timeline", "10:cashier", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.Actor{ID: 10, Role: domain.RoleCashier}, s.gotActor)
	events := body["data"].(map[string]any)["events"].([]any)
	assert.Len(t, events, 1)
}
