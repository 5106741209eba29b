package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"order-desk/internal/common/logger"
	"order-desk/internal/domain"
	"order-desk/internal/microservices/order/repository"
)

// SweeperActor is recorded as changed_by for expiry transitions.
const SweeperActor = "sweeper"

type EventPublisher interface {
	Publish(ctx context.Context, ev domain.OrderEvent) error
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, domain.OrderEvent) error { return nil }

// Actor is the authenticated caller of a read operation.
type Actor struct {
	ID   int64
	Role domain.Role
}

type OrderServiceInterface interface {
	CreateOrder(ctx context.Context, cashierID int64, req domain.CreateOrderRequest) (domain.CreateOrderResponse, error)
	AddLine(ctx context.Context, orderID, actorID int64, req domain.AddLineRequest) (domain.AddLineResponse, error)
	RemoveLine(ctx context.Context, orderID, itemID, callerID int64) (domain.RemoveLineResponse, error)
	SetStatus(ctx context.Context, orderID int64, newStatus domain.OrderStatus, callerID int64) (domain.StatusResponse, error)
	CancelOrder(ctx context.Context, orderID, managerID int64) (domain.StatusResponse, error)
	SweepExpiredOrders(ctx context.Context, now time.Time) (int64, error)
	ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.OrderView, error)
	GetOrder(ctx context.Context, orderID int64, caller Actor) (domain.Order, error)
	Timeline(ctx context.Context, orderID int64, caller Actor, limit, offset int) ([]domain.StatusLogEntry, error)
}

type OrderService struct {
	store      repository.Store
	publisher  EventPublisher
	lg         *logger.Logger
	now        func() time.Time
	pendingTTL time.Duration
}

type Option func(*OrderService)

func WithClock(now func() time.Time) Option { return func(s *OrderService) { s.now = now } }

func WithPendingTTL(d time.Duration) Option {
	return func(s *OrderService) {
		if d > 0 {
			s.pendingTTL = d
		}
	}
}

func NewOrderService(store repository.Store, pub EventPublisher, lg *logger.Logger, opts ...Option) *OrderService {
	if pub == nil {
		pub = NoopPublisher{}
	}
	s := &OrderService{
		store:      store,
		publisher:  pub,
		lg:         lg,
		now:        time.Now,
		pendingTTL: domain.PendingOrderTTL,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func actorTag(id int64) string { return strconv.FormatInt(id, 10) }

func (s *OrderService) CreateOrder(ctx context.Context, cashierID int64, req domain.CreateOrderRequest) (domain.CreateOrderResponse, error) {
	if len(req.Items) == 0 {
		return domain.CreateOrderResponse{}, domain.Validationf("items are required to create an order")
	}
	if req.WaiterID <= 0 {
		return domain.CreateOrderResponse{}, domain.ErrInvalidWaiter
	}
	for _, l := range req.Items {
		if l.ItemID <= 0 {
			return domain.CreateOrderResponse{}, domain.Validationf("invalid item id: %d", l.ItemID)
		}
		if l.Quantity <= 0 {
			return domain.CreateOrderResponse{}, domain.Validationf("invalid quantity for item %d", l.ItemID)
		}
	}

	now := s.now()
	var order domain.Order
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		waiter, err := tx.GetUser(ctx, req.WaiterID)
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrInvalidWaiter
		}
		if err != nil {
			return err
		}
		if waiter.Role != domain.RoleWaiter {
			return domain.ErrInvalidWaiter
		}

		lines := make([]domain.OrderLine, 0, len(req.Items))
		for _, in := range req.Items {
			item, err := tx.GetItem(ctx, in.ItemID)
			if errors.Is(err, domain.ErrItemNotFound) {
				return domain.ErrInvalidItem.Withf("item not found: %d", in.ItemID)
			}
			if err != nil {
				return err
			}
			if item.ExpiredAt(now) {
				return domain.ErrExpiredItem.Withf("item %q is expired and cannot be added", item.Name)
			}
			lines = append(lines, domain.OrderLine{ItemID: item.ID, ItemName: item.Name, Quantity: in.Quantity, PriceSnapshot: item.Price})
		}

		order = domain.Order{
			Status:    domain.StatusPending,
			TotalCost: domain.SumLines(lines),
			CashierID: cashierID,
			WaiterID:  req.WaiterID,
		}
		if err := tx.InsertOrder(ctx, &order); err != nil {
			return err
		}
		for i := range lines {
			lines[i].OrderID = order.ID
			if err := tx.InsertLine(ctx, &lines[i]); err != nil {
				return err
			}
		}
		order.Lines = lines
		return tx.AppendStatusLog(ctx, domain.StatusLogEntry{
			OrderID: order.ID, Status: domain.StatusPending, ChangedBy: actorTag(cashierID), ChangedAt: now,
		})
	})
	if err != nil {
		return domain.CreateOrderResponse{}, fmt.Errorf("create order: %w", err)
	}

	s.lg.Info("order_created", map[string]any{"order_id": order.ID, "cashier_id": cashierID, "total_cost": order.TotalCost.StringFixed(2), "lines": len(order.Lines)})
	s.emit(ctx, domain.EventOrderCreated, order, cashierID)
	return domain.CreateOrderResponse{OrderID: order.ID, Status: order.Status, TotalCost: order.TotalCost}, nil
}

func (s *OrderService) AddLine(ctx context.Context, orderID, actorID int64, req domain.AddLineRequest) (domain.AddLineResponse, error) {
	if req.ItemID <= 0 {
		return domain.AddLineResponse{}, domain.Validationf("item id and quantity are required")
	}
	if req.Quantity <= 0 {
		return domain.AddLineResponse{}, domain.Validationf("quantity must be a positive integer")
	}

	now := s.now()
	var (
		order domain.Order
		item  domain.Item
	)
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		if order, err = tx.LockOrder(ctx, orderID); err != nil {
			return err
		}
		if order.Status != domain.StatusPending {
			return domain.ErrOrderNotPending.Withf("cannot modify a %s order", order.Status)
		}
		if item, err = tx.GetItem(ctx, req.ItemID); err != nil {
			return err
		}
		if item.ExpiredAt(now) {
			return domain.ErrItemExpired.Withf("item %s is expired and cannot be added", item.Name)
		}

		line := domain.OrderLine{OrderID: orderID, ItemID: item.ID, ItemName: item.Name, Quantity: req.Quantity, PriceSnapshot: item.Price}
		if err := tx.InsertLine(ctx, &line); err != nil {
			return err
		}
		order.TotalCost = order.TotalCost.Add(line.Cost())
		return tx.UpdateTotal(ctx, orderID, order.TotalCost)
	})
	if err != nil {
		return domain.AddLineResponse{}, fmt.Errorf("add item to order %d: %w", orderID, err)
	}

	s.lg.Info("order_line_added", map[string]any{"order_id": orderID, "item_id": item.ID, "quantity": req.Quantity, "new_total": order.TotalCost.StringFixed(2)})
	s.emit(ctx, domain.EventOrderLineAdded, order, actorID)
	return domain.AddLineResponse{OrderID: orderID, ItemName: item.Name, NewTotal: order.TotalCost}, nil
}

// RemoveLine deletes the oldest line referencing itemID and re-sums the remaining lines
// at the items' current prices, not their snapshots.
// Stock is left alone: it only moves when an order completes.
func (s *OrderService) RemoveLine(ctx context.Context, orderID, itemID, callerID int64) (domain.RemoveLineResponse, error) {
	now := s.now()
	var (
		order     domain.Order
		remaining []domain.OrderLine
	)
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		if order, err = tx.LockOrder(ctx, orderID); err != nil {
			return err
		}
		if order.CashierID != callerID {
			return domain.ErrOrderNotFound.Withf("order not found or not yours")
		}
		if order.Status != domain.StatusPending {
			return domain.ErrOrderNotPending.Withf("cannot modify a %s order", order.Status)
		}

		lines, err := tx.Lines(ctx, orderID)
		if err != nil {
			return err
		}
		idx := -1
		for i, l := range lines {
			if l.ItemID == itemID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return domain.ErrLineNotFound
		}

		item, err := tx.GetItem(ctx, itemID)
		if errors.Is(err, domain.ErrItemNotFound) {
			return domain.ErrItemInvalid.Withf("item %d no longer exists", itemID)
		}
		if err != nil {
			return err
		}
		if item.ExpiredAt(now) {
			return domain.ErrItemExpired.Withf("item expired: %s", item.Name)
		}

		if err := tx.DeleteLine(ctx, lines[idx].ID); err != nil {
			return err
		}
		remaining = append(append([]domain.OrderLine{}, lines[:idx]...), lines[idx+1:]...)
		if order.TotalCost, err = currentTotal(ctx, tx, remaining); err != nil {
			return err
		}
		return tx.UpdateTotal(ctx, orderID, order.TotalCost)
	})
	if err != nil {
		return domain.RemoveLineResponse{}, fmt.Errorf("remove item %d from order %d: %w", itemID, orderID, err)
	}

	s.lg.Info("order_line_removed", map[string]any{"order_id": orderID, "item_id": itemID, "new_total": order.TotalCost.StringFixed(2)})
	s.emit(ctx, domain.EventOrderLineRemoved, order, callerID)
	return domain.RemoveLineResponse{OrderID: orderID, NewTotal: order.TotalCost, RemainingItems: len(remaining)}, nil
}

// currentTotal prices each line at its item's price as of now.
func currentTotal(ctx context.Context, tx repository.Tx, lines []domain.OrderLine) (decimal.Decimal, error) {
	prices := make(map[int64]decimal.Decimal, len(lines))
	total := decimal.Zero
	for _, l := range lines {
		price, ok := prices[l.ItemID]
		if !ok {
			it, err := tx.GetItem(ctx, l.ItemID)
			if err != nil {
				return decimal.Zero, fmt.Errorf("reprice item %d: %w", l.ItemID, err)
			}
			price = it.Price
			prices[l.ItemID] = price
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total, nil
}

func (s *OrderService) SetStatus(ctx context.Context, orderID int64, newStatus domain.OrderStatus, callerID int64) (domain.StatusResponse, error) {
	if !newStatus.CashierTarget() {
		return domain.StatusResponse{}, domain.ErrInvalidStatus
	}

	now := s.now()
	var (
		order   domain.Order
		changed bool
	)
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		if order, err = tx.LockOrder(ctx, orderID); err != nil {
			return err
		}
		if order.CashierID != callerID {
			return domain.ErrUnauthorized
		}
		switch order.Status {
		case domain.StatusComplete:
			return domain.ErrAlreadyComplete
		case domain.StatusCancelled, domain.StatusExpired:
			return domain.ErrInvalidTransition.Withf("order is %s", order.Status)
		}
		if newStatus == order.Status {
			return nil
		}

		if newStatus == domain.StatusComplete {
			if err := consumeStock(ctx, tx, orderID); err != nil {
				return err
			}
		}
		if err := tx.UpdateStatus(ctx, orderID, newStatus); err != nil {
			return err
		}
		order.Status = newStatus
		changed = true
		return tx.AppendStatusLog(ctx, domain.StatusLogEntry{
			OrderID: orderID, Status: newStatus, ChangedBy: actorTag(callerID), ChangedAt: now,
		})
	})
	if err != nil {
		return domain.StatusResponse{}, fmt.Errorf("update status of order %d: %w", orderID, err)
	}

	if changed {
		s.lg.Info("order_status_changed", map[string]any{"order_id": orderID, "status": order.Status, "cashier_id": callerID})
		s.emit(ctx, domain.EventOrderStatusChanged, order, callerID)
	}
	return domain.StatusResponse{OrderID: orderID, Status: order.Status}, nil
}

// consumeStock locks every referenced item and decrements it by the ordered quantity.
// Nothing is written unless every item has enough stock.
func consumeStock(ctx context.Context, tx repository.Tx, orderID int64) error {
	lines, err := tx.Lines(ctx, orderID)
	if err != nil {
		return err
	}
	need := make(map[int64]int, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if _, seen := need[l.ItemID]; !seen {
			ids = append(ids, l.ItemID)
		}
		need[l.ItemID] += l.Quantity
	}
	items, err := tx.LockItems(ctx, ids)
	if err != nil {
		return err
	}

	newStock := make(map[int64]int, len(ids))
	for _, id := range ids {
		it, ok := items[id]
		if !ok {
			return domain.ErrItemNotFound.Withf("item not found: %d", id)
		}
		left := it.StockQuantity - need[id]
		if left < 0 {
			return domain.ErrInsufficientStock.Withf("insufficient stock for item: %s", it.Name)
		}
		newStock[id] = left
	}
	for _, id := range ids {
		if err := tx.SetStock(ctx, id, newStock[id]); err != nil {
			return err
		}
	}
	return nil
}

// CancelOrder is the manager path from complete to cancelled. Stock is not restored.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, managerID int64) (domain.StatusResponse, error) {
	now := s.now()
	var order domain.Order
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		if order, err = tx.LockOrder(ctx, orderID); err != nil {
			return err
		}
		if order.Status != domain.StatusComplete {
			return domain.ErrInvalidTransition.Withf("only completed orders can be cancelled")
		}
		if err := tx.UpdateStatus(ctx, orderID, domain.StatusCancelled); err != nil {
			return err
		}
		order.Status = domain.StatusCancelled
		return tx.AppendStatusLog(ctx, domain.StatusLogEntry{
			OrderID: orderID, Status: domain.StatusCancelled, ChangedBy: actorTag(managerID), ChangedAt: now,
		})
	})
	if err != nil {
		return domain.StatusResponse{}, fmt.Errorf("cancel order %d: %w", orderID, err)
	}

	s.lg.Info("order_cancelled", map[string]any{"order_id": orderID, "manager_id": managerID})
	s.emit(ctx, domain.EventOrderCancelled, order, managerID)
	return domain.StatusResponse{OrderID: orderID, Status: order.Status}, nil
}

func (s *OrderService) SweepExpiredOrders(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.store.ExpirePending(ctx, now.Add(-s.pendingTTL), now, SweeperActor)
	if err != nil {
		return 0, fmt.Errorf("sweep expired orders: %w", err)
	}
	if n > 0 {
		s.lg.Info("orders_expired", map[string]any{"count": n})
		s.publish(ctx, domain.OrderEvent{Type: domain.EventOrdersExpired, Status: domain.StatusExpired, Count: n})
	}
	return n, nil
}

func (s *OrderService) ListOrders(ctx context.Context, f domain.OrderFilter) ([]domain.OrderView, error) {
	if f.Status != "" {
		switch f.Status {
		case domain.StatusPending, domain.StatusComplete, domain.StatusCancelled, domain.StatusExpired:
		default:
			return nil, domain.ErrInvalidStatus
		}
	}
	if f.Limit < 0 || f.Offset < 0 {
		return nil, domain.Validationf("limit and offset must not be negative")
	}
	return s.store.ListOrders(ctx, f)
}

// GetOrder returns an order with its lines. Cashiers only see their own orders.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64, caller Actor) (domain.Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if caller.Role != domain.RoleManager && o.CashierID != caller.ID {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (s *OrderService) Timeline(ctx context.Context, orderID int64, caller Actor, limit, offset int) ([]domain.StatusLogEntry, error) {
	if _, err := s.GetOrder(ctx, orderID, caller); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.Timeline(ctx, orderID, limit, offset)
}

func (s *OrderService) emit(ctx context.Context, typ string, o domain.Order, actorID int64) {
	s.publish(ctx, domain.OrderEvent{
		Type:      typ,
		OrderID:   o.ID,
		Status:    o.Status,
		TotalCost: o.TotalCost,
		ActorID:   actorID,
	})
}

// publish runs after commit. A broker failure is logged and never fails the operation.
func (s *OrderService) publish(ctx context.Context, ev domain.OrderEvent) {
	ev.EventID = uuid.NewString()
	ev.OccurredAt = s.now().UTC()
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.publisher.Publish(pctx, ev); err != nil {
		s.lg.Error("event_publish_failed", err, map[string]any{"type": ev.Type, "order_id": ev.OrderID})
	}
}
