package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"order-desk/internal/common/httpx"
	"order-desk/internal/domain"
	"order-desk/internal/microservices/catalog/service"
)

const maxImportSize = 5 << 20

type ItemHandler struct {
	service service.CatalogServiceInterface
	now     func() time.Time
}

func NewItemHandler(s service.CatalogServiceInterface) *ItemHandler {
	return &ItemHandler{service: s, now: time.Now}
}

type itemInput struct {
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Category      string          `json:"category"`
	ExpiryDate    string          `json:"expiryDate"`
	StockQuantity int             `json:"stockQuantity"`
}

func (in itemInput) item() (domain.Item, error) {
	it := domain.Item{
		SKU:           in.SKU,
		Name:          in.Name,
		Description:   in.Description,
		Price:         in.Price,
		Category:      in.Category,
		StockQuantity: in.StockQuantity,
	}
	if in.ExpiryDate != "" {
		t, ok := service.ParseDate(in.ExpiryDate)
		if !ok {
			return domain.Item{}, domain.Validationf("invalid expiryDate %q", in.ExpiryDate)
		}
		it.ExpiryDate = t
	}
	return it, nil
}

// CreateItems accepts a single item object or an array of them.
func (ih *ItemHandler) CreateItems(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		httpx.BadRequest(c, "could not read body")
		return
	}
	raw = bytes.TrimSpace(raw)

	var inputs []itemInput
	if len(raw) > 0 && raw[0] == '[' {
		err = json.Unmarshal(raw, &inputs)
	} else {
		var one itemInput
		err = json.Unmarshal(raw, &one)
		inputs = []itemInput{one}
	}
	if err != nil {
		httpx.BadRequest(c, "invalid JSON body")
		return
	}

	items := make([]domain.Item, 0, len(inputs))
	for _, in := range inputs {
		it, err := in.item()
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		items = append(items, it)
	}
	saved, err := ih.service.CreateItems(c.Request.Context(), items)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.Created(c, gin.H{"items": saved})
}

func (ih *ItemHandler) UpdateItem(c *gin.Context) {
	id, ok := httpx.IDParam(c, "id")
	if !ok {
		return
	}
	var u domain.ItemUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		httpx.BadRequest(c, "invalid JSON body")
		return
	}
	it, err := ih.service.UpdateItem(c.Request.Context(), id, u)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, it)
}

func (ih *ItemHandler) DeleteItem(c *gin.Context) {
	id, ok := httpx.IDParam(c, "id")
	if !ok {
		return
	}
	if err := ih.service.DeleteItem(c.Request.Context(), id); err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, gin.H{"id": id, "deleted": true})
}

// ListItems supports ?category=, ?sortBy=name|price|expiryDate|totalStockValue and ?order=asc|desc.
func (ih *ItemHandler) ListItems(c *gin.Context) {
	f := domain.ItemFilter{
		Category:   strings.TrimSpace(c.Query("category")),
		SortBy:     domain.ItemSort(c.Query("sortBy")),
		Descending: strings.EqualFold(c.Query("order"), "desc"),
	}
	_, role, _ := httpx.Caller(c)
	items, err := ih.service.ListItems(c.Request.Context(), role, f)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	if items == nil {
		items = []domain.Item{}
	}
	httpx.OK(c, gin.H{"items": items})
}

// ImportItems takes a multipart upload in the "file" field.
func (ih *ItemHandler) ImportItems(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		httpx.BadRequest(c, "csv file is required in the \"file\" field")
		return
	}
	if fh.Size > maxImportSize {
		httpx.BadRequest(c, "csv file is too large")
		return
	}
	f, err := fh.Open()
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		httpx.Fail(c, err)
		return
	}

	res, err := ih.service.ImportCSV(c.Request.Context(), data)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	httpx.OK(c, res)
}

func (ih *ItemHandler) ExportItems(c *gin.Context) {
	data, err := ih.service.ExportCSV(c.Request.Context())
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	name := "items-" + ih.now().UTC().Format("20060102-150405") + ".csv"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

func (ih *ItemHandler) Register(rg *gin.RouterGroup, g httpx.Guards) {
	items := rg.Group("/items", g.Authenticate)
	items.GET("", g.RestrictTo(domain.RoleWaiter, domain.RoleManager), ih.ListItems)
	items.POST("", g.RestrictTo(domain.RoleManager), ih.CreateItems)
	items.POST("/import", g.RestrictTo(domain.RoleManager), ih.ImportItems)
	items.GET("/export", g.RestrictTo(domain.RoleManager), ih.ExportItems)
	items.PUT("/:id", g.RestrictTo(domain.RoleManager), ih.UpdateItem)
	items.DELETE("/:id", g.RestrictTo(domain.RoleManager), ih.DeleteItem)
}
