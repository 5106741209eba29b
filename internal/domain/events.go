package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated       = "order.created"
	EventOrderLineAdded     = "order.line_added"
	EventOrderLineRemoved   = "order.line_removed"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
	EventOrdersExpired      = "order.expired"
)

// OrderEvent is published after the transaction that produced it commits.
// Bulk events (expiry sweeps) leave OrderID zero and set Count.
type OrderEvent struct {
	EventID    string          `json:"event_id"`
	Type       string          `json:"type"`
	OrderID    int64           `json:"order_id,omitempty"`
	Status     OrderStatus     `json:"status,omitempty"`
	TotalCost  decimal.Decimal `json:"total_cost"`
	ActorID    int64           `json:"actor_id,omitempty"`
	Count      int64           `json:"count,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}
