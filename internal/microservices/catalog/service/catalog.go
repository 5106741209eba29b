package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"order-desk/internal/common/logger"
	"order-desk/internal/domain"
	"order-desk/internal/microservices/catalog/repository"
)

type CatalogServiceInterface interface {
	CreateItems(ctx context.Context, items []domain.Item) ([]domain.Item, error)
	UpdateItem(ctx context.Context, id int64, u domain.ItemUpdate) (domain.Item, error)
	DeleteItem(ctx context.Context, id int64) error
	ListItems(ctx context.Context, role domain.Role, f domain.ItemFilter) ([]domain.Item, error)
	ExportCSV(ctx context.Context) ([]byte, error)
	ImportCSV(ctx context.Context, data []byte) (domain.ImportResult, error)
}

type CatalogService struct {
	repo repository.ItemRepositoryInterface
	lg   *logger.Logger
	now  func() time.Time
}

func NewCatalogService(repo repository.ItemRepositoryInterface, lg *logger.Logger) *CatalogService {
	return &CatalogService{repo: repo, lg: lg, now: time.Now}
}

func validateItem(it domain.Item) error {
	switch {
	case strings.TrimSpace(it.SKU) == "":
		return domain.Validationf("sku is required")
	case strings.TrimSpace(it.Name) == "":
		return domain.Validationf("name is required")
	case it.Price.IsNegative():
		return domain.Validationf("price must not be negative")
	case it.StockQuantity < 0:
		return domain.Validationf("stockQuantity must not be negative")
	case it.ExpiryDate.IsZero():
		return domain.Validationf("expiryDate is required")
	}
	return nil
}

// CreateItems inserts every item or none of them.
func (s *CatalogService) CreateItems(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	if len(items) == 0 {
		return nil, domain.Validationf("at least one item is required")
	}
	for i := range items {
		items[i].SKU = strings.TrimSpace(items[i].SKU)
		items[i].Name = strings.TrimSpace(items[i].Name)
		if items[i].Category == "" {
			items[i].Category = defaultCategory
		}
		if err := validateItem(items[i]); err != nil {
			return nil, err
		}
	}
	saved, err := s.repo.CreateMany(ctx, items)
	if err != nil {
		return nil, fmt.Errorf("create items: %w", err)
	}
	s.lg.Info("items_created", map[string]any{"count": len(saved)})
	return saved, nil
}

func (s *CatalogService) UpdateItem(ctx context.Context, id int64, u domain.ItemUpdate) (domain.Item, error) {
	if u.Empty() {
		return domain.Item{}, domain.Validationf("no updatable fields supplied")
	}
	it, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Item{}, err
	}
	u.Apply(&it)
	if err := validateItem(it); err != nil {
		return domain.Item{}, err
	}
	saved, err := s.repo.Update(ctx, it)
	if err != nil {
		return domain.Item{}, fmt.Errorf("update item %d: %w", id, err)
	}
	s.lg.Info("item_updated", map[string]any{"item_id": id})
	return saved, nil
}

func (s *CatalogService) DeleteItem(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete item %d: %w", id, err)
	}
	s.lg.Info("item_deleted", map[string]any{"item_id": id})
	return nil
}

// ListItems hides expired stock from waiters.
func (s *CatalogService) ListItems(ctx context.Context, role domain.Role, f domain.ItemFilter) ([]domain.Item, error) {
	switch f.SortBy {
	case domain.SortNone, domain.SortName, domain.SortPrice, domain.SortExpiryDate, domain.SortTotalStockValue:
	default:
		return nil, domain.Validationf("unsupported sortBy %q", f.SortBy)
	}
	if role == domain.RoleWaiter {
		now := s.now()
		f.NotExpiredAt = &now
	}
	return s.repo.List(ctx, f)
}
