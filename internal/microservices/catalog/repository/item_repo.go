package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"order-desk/internal/connections/database"
	"order-desk/internal/domain"
)

type ItemRepositoryInterface interface {
	CreateMany(ctx context.Context, items []domain.Item) ([]domain.Item, error)
	Get(ctx context.Context, id int64) (domain.Item, error)
	Update(ctx context.Context, it domain.Item) (domain.Item, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f domain.ItemFilter) ([]domain.Item, error)
	// Upsert inserts or updates every item by sku in one transaction.
	Upsert(ctx context.Context, items []domain.Item) (created, updated int, err error)
	ExpiringBetween(ctx context.Context, from, to time.Time) ([]domain.Item, error)
}

type ItemRepository struct {
	db *sql.DB
}

func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

const itemColumns = `id, sku, name, description, category, price, stock_quantity, expiry_date, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }, it *domain.Item) error {
	return row.Scan(&it.ID, &it.SKU, &it.Name, &it.Description, &it.Category, &it.Price,
		&it.StockQuantity, &it.ExpiryDate, &it.CreatedAt, &it.UpdatedAt)
}

func mapWriteErr(err error) error {
	switch {
	case database.IsUniqueViolation(err):
		return domain.ErrDuplicateSKU
	case database.IsForeignKeyViolation(err):
		return domain.ErrItemReferenced
	}
	return err
}

func (r *ItemRepository) CreateMany(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	out := make([]domain.Item, 0, len(items))
	err := database.InTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, it := range items {
			row := tx.QueryRowContext(ctx, `
				INSERT INTO items (sku, name, description, category, price, stock_quantity, expiry_date)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING `+itemColumns,
				it.SKU, it.Name, it.Description, it.Category, it.Price, it.StockQuantity, it.ExpiryDate)
			var saved domain.Item
			if err := scanItem(row, &saved); err != nil {
				if database.IsUniqueViolation(err) {
					return domain.ErrDuplicateSKU.Withf("sku already exists: %s", it.SKU)
				}
				return fmt.Errorf("failed to insert item %s: %w", it.SKU, err)
			}
			out = append(out, saved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ItemRepository) Get(ctx context.Context, id int64) (domain.Item, error) {
	var it domain.Item
	err := scanItem(r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id), &it)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, domain.ErrItemNotFound
	}
	if err != nil {
		return domain.Item{}, fmt.Errorf("failed to get item %d: %w", id, err)
	}
	return it, nil
}

func (r *ItemRepository) Update(ctx context.Context, it domain.Item) (domain.Item, error) {
	var saved domain.Item
	err := scanItem(r.db.QueryRowContext(ctx, `
		UPDATE items SET name = $2, description = $3, category = $4, price = $5,
			stock_quantity = $6, expiry_date = $7, updated_at = now()
		WHERE id = $1
		RETURNING `+itemColumns,
		it.ID, it.Name, it.Description, it.Category, it.Price, it.StockQuantity, it.ExpiryDate), &saved)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, domain.ErrItemNotFound
	}
	if err != nil {
		return domain.Item{}, fmt.Errorf("failed to update item %d: %w", it.ID, mapWriteErr(err))
	}
	return saved, nil
}

func (r *ItemRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item %d: %w", id, mapWriteErr(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

var sortExpr = map[domain.ItemSort]string{
	domain.SortName:            "name",
	domain.SortPrice:           "price",
	domain.SortExpiryDate:      "expiry_date",
	domain.SortTotalStockValue: "price * stock_quantity",
}

func (r *ItemRepository) List(ctx context.Context, f domain.ItemFilter) ([]domain.Item, error) {
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.NotExpiredAt != nil {
		args = append(args, *f.NotExpiredAt)
		where = append(where, fmt.Sprintf("expiry_date > $%d", len(args)))
	}
	query := `SELECT ` + itemColumns + ` FROM items`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if expr, ok := sortExpr[f.SortBy]; ok {
		dir := "ASC"
		if f.Descending {
			dir = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s, id", expr, dir)
	} else {
		query += " ORDER BY id"
	}
	return r.query(ctx, query, args...)
}

func (r *ItemRepository) ExpiringBetween(ctx context.Context, from, to time.Time) ([]domain.Item, error) {
	return r.query(ctx, `SELECT `+itemColumns+` FROM items
		WHERE expiry_date BETWEEN $1 AND $2 ORDER BY expiry_date, id`, from, to)
}

func (r *ItemRepository) query(ctx context.Context, query string, args ...any) ([]domain.Item, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	out := []domain.Item{}
	for rows.Next() {
		var it domain.Item
		if err := scanItem(rows, &it); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *ItemRepository) Upsert(ctx context.Context, items []domain.Item) (created, updated int, err error) {
	err = database.InTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, it := range items {
			var inserted bool
			if err := tx.QueryRowContext(ctx, `
				INSERT INTO items (sku, name, description, category, price, stock_quantity, expiry_date)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (sku) DO UPDATE SET
					name = EXCLUDED.name,
					description = EXCLUDED.description,
					category = EXCLUDED.category,
					price = EXCLUDED.price,
					stock_quantity = EXCLUDED.stock_quantity,
					expiry_date = EXCLUDED.expiry_date,
					updated_at = now()
				RETURNING (xmax = 0)`,
				it.SKU, it.Name, it.Description, it.Category, it.Price, it.StockQuantity, it.ExpiryDate,
			).Scan(&inserted); err != nil {
				return fmt.Errorf("failed to upsert item %s: %w", it.SKU, err)
			}
			if inserted {
				created++
			} else {
				updated++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return created, updated, nil
}
