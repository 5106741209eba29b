package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"order-desk/internal/domain"
)

var csvHeader = []string{"sku", "name", "description", "price", "category", "expiryDate", "stockQuantity"}

const defaultCategory = "general"

func (s *CatalogService) ExportCSV(ctx context.Context) ([]byte, error) {
	items, err := s.repo.List(ctx, domain.ItemFilter{})
	if err != nil {
		return nil, fmt.Errorf("export items: %w", err)
	}
	if len(items) == 0 {
		return nil, domain.ErrNoItems.Withf("no items found to export")
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, items); err != nil {
		return nil, err
	}
	s.lg.Info("items_exported", map[string]any{"count": len(items)})
	return buf.Bytes(), nil
}

// WriteCSV renders items with a header row. Prices keep two decimals, expiry dates are RFC3339 in UTC.
func WriteCSV(w io.Writer, items []domain.Item) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, it := range items {
		if err := cw.Write([]string{
			it.SKU,
			it.Name,
			it.Description,
			it.Price.StringFixed(2),
			it.Category,
			it.ExpiryDate.UTC().Format(time.RFC3339),
			strconv.Itoa(it.StockQuantity),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ImportCSV upserts rows by sku. Rows missing sku, name, price or expiryDate, or carrying
// unparsable values, are skipped.
func (s *CatalogService) ImportCSV(ctx context.Context, data []byte) (domain.ImportResult, error) {
	items, skipped, err := ParseCSV(bytes.NewReader(data))
	if err != nil {
		return domain.ImportResult{}, err
	}
	res := domain.ImportResult{Skipped: skipped}
	if len(items) > 0 {
		if res.Created, res.Updated, err = s.repo.Upsert(ctx, items); err != nil {
			return domain.ImportResult{}, fmt.Errorf("import items: %w", err)
		}
	}
	s.lg.Info("items_imported", map[string]any{"created": res.Created, "updated": res.Updated, "skipped": res.Skipped})
	return res, nil
}

// ParseCSV reads header-keyed rows into items. A later row with the same sku replaces the earlier one.
func ParseCSV(r io.Reader) ([]domain.Item, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, 0, domain.Validationf("csv file is empty")
	}
	if err != nil {
		return nil, 0, domain.Validationf("invalid csv: %v", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))] = i
	}
	for _, required := range []string{"sku", "name", "price", "expiryDate"} {
		if _, ok := col[required]; !ok {
			return nil, 0, domain.Validationf("csv header is missing %q", required)
		}
	}

	var (
		items   []domain.Item
		skipped int
		bySKU   = map[string]int{}
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, domain.Validationf("invalid csv: %v", err)
		}
		get := func(name string) string {
			if i, ok := col[name]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		it, ok := rowItem(get)
		if !ok {
			skipped++
			continue
		}
		if i, dup := bySKU[it.SKU]; dup {
			items[i] = it
			continue
		}
		bySKU[it.SKU] = len(items)
		items = append(items, it)
	}
	return items, skipped, nil
}

func rowItem(get func(string) string) (domain.Item, bool) {
	sku, name, priceStr, expiryStr := get("sku"), get("name"), get("price"), get("expiryDate")
	if sku == "" || name == "" || priceStr == "" || expiryStr == "" {
		return domain.Item{}, false
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil || price.IsNegative() {
		return domain.Item{}, false
	}
	expiry, ok := ParseDate(expiryStr)
	if !ok {
		return domain.Item{}, false
	}
	stock, err := strconv.Atoi(get("stockQuantity"))
	if err != nil || stock < 0 {
		stock = 0
	}
	category := get("category")
	if category == "" {
		category = defaultCategory
	}
	return domain.Item{
		SKU:           sku,
		Name:          name,
		Description:   get("description"),
		Price:         price.Round(2),
		Category:      category,
		ExpiryDate:    expiry,
		StockQuantity: stock,
	}, true
}

// ParseDate accepts RFC3339 timestamps and plain dates.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
