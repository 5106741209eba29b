package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"order-desk/internal/connections/database"
	"order-desk/internal/domain"
)

// Tx is the set of reads and writes an order operation performs inside one transaction.
type Tx interface {
	LockOrder(ctx context.Context, id int64) (domain.Order, error)
	Lines(ctx context.Context, orderID int64) ([]domain.OrderLine, error)
	GetItem(ctx context.Context, id int64) (domain.Item, error)
	// LockItems locks the rows in ascending id order and returns them keyed by id.
	LockItems(ctx context.Context, ids []int64) (map[int64]domain.Item, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)

	InsertOrder(ctx context.Context, o *domain.Order) error
	InsertLine(ctx context.Context, l *domain.OrderLine) error
	DeleteLine(ctx context.Context, lineID int64) error
	UpdateTotal(ctx context.Context, orderID int64, total decimal.Decimal) error
	UpdateStatus(ctx context.Context, orderID int64, status domain.OrderStatus) error
	SetStock(ctx context.Context, itemID int64, stock int) error
	AppendStatusLog(ctx context.Context, e domain.StatusLogEntry) error
}

type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.OrderView, error)
	GetOrder(ctx context.Context, id int64) (domain.Order, error)
	Timeline(ctx context.Context, orderID int64, limit, offset int) ([]domain.StatusLogEntry, error)
	// ExpirePending moves every pending order created at or before cutoff to expired
	// and logs each transition stamped with at. Returns the number of orders moved.
	ExpirePending(ctx context.Context, cutoff, at time.Time, changedBy string) (int64, error)
}

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return database.InTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&pgTx{q: tx})
	})
}

const orderColumns = `o.id, o.status, o.total_cost, o.cashier_id, o.waiter_id, o.created_at, o.updated_at`

func scanOrder(row interface{ Scan(...any) error }, o *domain.Order, extra ...any) error {
	dest := append([]any{&o.ID, &o.Status, &o.TotalCost, &o.CashierID, &o.WaiterID, &o.CreatedAt, &o.UpdatedAt}, extra...)
	return row.Scan(dest...)
}

func (r *OrderRepository) ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.OrderView, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("o.status = $%d", len(args)))
	}
	query := `SELECT ` + orderColumns + `, c.id, c.name, c.email, w.id, w.name, w.email
		FROM orders o
		JOIN users c ON c.id = o.cashier_id
		JOIN users w ON w.id = o.waiter_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY o.created_at DESC, o.id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var (
		out []domain.OrderView
		ids []int64
	)
	for rows.Next() {
		var v domain.OrderView
		if err := scanOrder(rows, &v.Order,
			&v.Cashier.ID, &v.Cashier.Name, &v.Cashier.Email,
			&v.Waiter.ID, &v.Waiter.Name, &v.Waiter.Email); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, v)
		ids = append(ids, v.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}

	lines, err := linesFor(ctx, r.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Lines = lines[out[i].ID]
	}
	return out, nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	var o domain.Order
	err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id), &o)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to get order %d: %w", id, err)
	}
	lines, err := linesFor(ctx, r.db, []int64{id})
	if err != nil {
		return domain.Order{}, err
	}
	o.Lines = lines[id]
	return o, nil
}

func linesFor(ctx context.Context, q database.Querier, orderIDs []int64) (map[int64][]domain.OrderLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT l.id, l.order_id, l.item_id, i.name, l.quantity, l.price_snapshot, l.created_at
		FROM order_lines l
		JOIN items i ON i.id = l.item_id
		WHERE l.order_id = ANY($1)
		ORDER BY l.id`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load order lines: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]domain.OrderLine, len(orderIDs))
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ItemID, &l.ItemName, &l.Quantity, &l.PriceSnapshot, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		out[l.OrderID] = append(out[l.OrderID], l)
	}
	return out, rows.Err()
}

func (r *OrderRepository) Timeline(ctx context.Context, orderID int64, limit, offset int) ([]domain.StatusLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, status, changed_by, changed_at
		FROM order_status_log WHERE order_id = $1
		ORDER BY changed_at ASC, id ASC
		LIMIT $2 OFFSET $3`, orderID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to load timeline: %w", err)
	}
	defer rows.Close()

	out := []domain.StatusLogEntry{}
	for rows.Next() {
		var e domain.StatusLogEntry
		if err := rows.Scan(&e.OrderID, &e.Status, &e.ChangedBy, &e.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *OrderRepository) ExpirePending(ctx context.Context, cutoff, at time.Time, changedBy string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		WITH expired AS (
			UPDATE orders SET status = 'expired', updated_at = $3
			WHERE status = 'pending' AND created_at <= $1
			RETURNING id
		)
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
		SELECT id, 'expired', $2, $3 FROM expired`, cutoff, changedBy, at)
	if err != nil {
		return 0, fmt.Errorf("failed to expire pending orders: %w", err)
	}
	return res.RowsAffected()
}

type pgTx struct {
	q database.Querier
}

func (t *pgTx) LockOrder(ctx context.Context, id int64) (domain.Order, error) {
	var o domain.Order
	err := scanOrder(t.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1 FOR UPDATE`, id), &o)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to lock order %d: %w", id, err)
	}
	return o, nil
}

func (t *pgTx) Lines(ctx context.Context, orderID int64) ([]domain.OrderLine, error) {
	lines, err := linesFor(ctx, t.q, []int64{orderID})
	if err != nil {
		return nil, err
	}
	return lines[orderID], nil
}

const itemColumns = `id, sku, name, description, category, price, stock_quantity, expiry_date, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }, it *domain.Item) error {
	return row.Scan(&it.ID, &it.SKU, &it.Name, &it.Description, &it.Category, &it.Price,
		&it.StockQuantity, &it.ExpiryDate, &it.CreatedAt, &it.UpdatedAt)
}

func (t *pgTx) GetItem(ctx context.Context, id int64) (domain.Item, error) {
	var it domain.Item
	err := scanItem(t.q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id), &it)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, domain.ErrItemNotFound
	}
	if err != nil {
		return domain.Item{}, fmt.Errorf("failed to get item %d: %w", id, err)
	}
	return it, nil
}

func (t *pgTx) LockItems(ctx context.Context, ids []int64) (map[int64]domain.Item, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	rows, err := t.q.QueryContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ANY($1) ORDER BY id FOR UPDATE`, sorted)
	if err != nil {
		return nil, fmt.Errorf("failed to lock items: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]domain.Item, len(sorted))
	for rows.Next() {
		var it domain.Item
		if err := scanItem(rows, &it); err != nil {
			return nil, err
		}
		out[it.ID] = it
	}
	return out, rows.Err()
}

func (t *pgTx) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	err := t.q.QueryRowContext(ctx, `SELECT id, name, email, role, is_verified, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.IsVerified, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return u, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	err := t.q.QueryRowContext(ctx, `
		INSERT INTO orders (status, total_cost, cashier_id, waiter_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		o.Status, o.TotalCost, o.CashierID, o.WaiterID,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (t *pgTx) InsertLine(ctx context.Context, l *domain.OrderLine) error {
	err := t.q.QueryRowContext(ctx, `
		INSERT INTO order_lines (order_id, item_id, quantity, price_snapshot, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at`,
		l.OrderID, l.ItemID, l.Quantity, l.PriceSnapshot,
	).Scan(&l.ID, &l.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order line for item %d: %w", l.ItemID, err)
	}
	return nil
}

func (t *pgTx) DeleteLine(ctx context.Context, lineID int64) error {
	if _, err := t.q.ExecContext(ctx, `DELETE FROM order_lines WHERE id = $1`, lineID); err != nil {
		return fmt.Errorf("failed to delete order line %d: %w", lineID, err)
	}
	return nil
}

func (t *pgTx) UpdateTotal(ctx context.Context, orderID int64, total decimal.Decimal) error {
	if _, err := t.q.ExecContext(ctx, `UPDATE orders SET total_cost = $2, updated_at = NOW() WHERE id = $1`, orderID, total); err != nil {
		return fmt.Errorf("failed to update order total: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateStatus(ctx context.Context, orderID int64, status domain.OrderStatus) error {
	if _, err := t.q.ExecContext(ctx, `UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, orderID, status); err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return nil
}

func (t *pgTx) SetStock(ctx context.Context, itemID int64, stock int) error {
	if _, err := t.q.ExecContext(ctx, `UPDATE items SET stock_quantity = $2, updated_at = NOW() WHERE id = $1`, itemID, stock); err != nil {
		return fmt.Errorf("failed to update stock of item %d: %w", itemID, err)
	}
	return nil
}

func (t *pgTx) AppendStatusLog(ctx context.Context, e domain.StatusLogEntry) error {
	if _, err := t.q.ExecContext(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
		VALUES ($1, $2, $3, $4)`, e.OrderID, e.Status, e.ChangedBy, e.ChangedAt); err != nil {
		return fmt.Errorf("failed to insert order status log: %w", err)
	}
	return nil
}
