package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-desk/internal/common/httpx"
	"order-desk/internal/domain"
	"order-desk/internal/microservices/catalog/service"
)

type stubCatalog struct {
	service.CatalogServiceInterface

	created  []domain.Item
	gotRole  domain.Role
	filter   domain.ItemFilter
	imported []byte
	export   []byte
	err      error
}

func (s *stubCatalog) CreateItems(_ context.Context, items []domain.Item) ([]domain.Item, error) {
	s.created = items
	return items, s.err
}

func (s *stubCatalog) DeleteItem(context.Context, int64) error { return s.err }

func (s *stubCatalog) ListItems(_ context.Context, role domain.Role, f domain.ItemFilter) ([]domain.Item, error) {
	s.gotRole, s.filter = role, f
	return nil, s.err
}

func (s *stubCatalog) ImportCSV(_ context.Context, data []byte) (domain.ImportResult, error) {
	s.imported = data
	return domain.ImportResult{Created: 2, Skipped: 1}, s.err
}

func (s *stubCatalog) ExportCSV(context.Context) ([]byte, error) { return s.export, s.err }

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

func newRouter(s *stubCatalog) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewItemHandler(s)
	h.now = func() time.Time { return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC) }
	h.Register(r.Group("/api/v1"), testGuards())
	return r
}

func send(r http.Handler, req *http.Request, user string) *httptest.ResponseRecorder {
	req.Header.Set("X-Test-User", user)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateItemsAcceptsObjectOrArray(t *testing.T) {
	s := &stubCatalog{}
	r := newRouter(s)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items",
		strings.NewReader(`{"sku":"MLK-1","name":"Milk","price":"1.50","expiryDate":"2025-07-01","stockQuantity":3}`))
	w := send(r, req, "30:manager")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, s.created, 1)
	assert.Equal(t, "1.5", s.created[0].Price.String())
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), s.created[0].ExpiryDate)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/items",
		strings.NewReader(` [{"sku":"A","name":"a","price":1,"expiryDate":"2025-07-01T10:00:00Z"},{"sku":"B","name":"b","price":2,"expiryDate":"2025-07-02"}]`))
	w = send(r, req, "30:manager")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Len(t, s.created, 2)
}

func TestCreateItemsRejectsBadInput(t *testing.T) {
	r := newRouter(&stubCatalog{})

	w := send(r, httptest.NewRequest(http.MethodPost, "/api/v1/items", strings.NewReader(`{"sku":`)), "30:manager")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, httptest.NewRequest(http.MethodPost, "/api/v1/items",
		strings.NewReader(`{"sku":"A","name":"a","price":1,"expiryDate":"soon"}`)), "30:manager")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(r, httptest.NewRequest(http.MethodPost, "/api/v1/items", strings.NewReader(`{}`)), "20:waiter")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDeleteReferencedItem(t *testing.T) {
	r := newRouter(&stubCatalog{err: domain.ErrItemReferenced})
	w := send(r, httptest.NewRequest(http.MethodDelete, "/api/v1/items/4", nil), "30:manager")
	assert.Equal(t, http.StatusConflict, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["ok"])
}

func TestListItemsQuery(t *testing.T) {
	s := &stubCatalog{}
	r := newRouter(s)

	w := send(r, httptest.NewRequest(http.MethodGet, "/api/v1/items?category=dairy&sortBy=price&order=DESC", nil), "20:waiter")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.RoleWaiter, s.gotRole)
	assert.Equal(t, domain.ItemFilter{Category: "dairy", SortBy: domain.SortPrice, Descending: true}, s.filter)
	assert.JSONEq(t, `{"ok":true,"data":{"items":[]}}`, w.Body.String())

	w = send(r, httptest.NewRequest(http.MethodGet, "/api/v1/items", nil), "10:cashier")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestImportItemsMultipart(t *testing.T) {
	s := &stubCatalog{}
	r := newRouter(s)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "items.csv")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("sku,name,price,expiryDate\nA,a,1,2025-07-01\n"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := send(r, req, "30:manager")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, string(s.imported), "A,a,1")
	assert.JSONEq(t, `{"ok":true,"data":{"created":2,"updated":0,"skipped":1}}`, w.Body.String())

	w = send(r, httptest.NewRequest(http.MethodPost, "/api/v1/items/import", strings.NewReader("")), "30:manager")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportItems(t *testing.T) {
	r := newRouter(&stubCatalog{export: []byte("sku,name\n")})
	w := send(r, httptest.NewRequest(http.MethodGet, "/api/v1/items/export", nil), "30:manager")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="items-20250601-080000.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "sku,name\n", w.Body.String())

	r = newRouter(&stubCatalog{err: domain.ErrNoItems})
	w = send(r, httptest.NewRequest(http.MethodGet, "/api/v1/items/export", nil), "30:manager")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
