package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Role string

const (
	RoleManager Role = "manager"
	RoleCashier Role = "cashier"
	RoleWaiter  Role = "waiter"
)

func (r Role) Valid() bool {
	switch r {
	case RoleManager, RoleCashier, RoleWaiter:
		return true
	}
	return false
}

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusComplete  OrderStatus = "complete"
	StatusCancelled OrderStatus = "cancelled"
	StatusExpired   OrderStatus = "expired"
)

// CashierTarget reports whether a cashier may request s through a status update.
// expired is reserved for the sweeper.
func (s OrderStatus) CashierTarget() bool {
	switch s {
	case StatusPending, StatusComplete, StatusCancelled:
		return true
	}
	return false
}

// PendingOrderTTL is how long an order may stay pending before the sweeper expires it.
const PendingOrderTTL = 4 * time.Hour

type Item struct {
	ID            int64           `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Category      string          `json:"category"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity"`
	ExpiryDate    time.Time       `json:"expiryDate"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// ExpiredAt reports whether the item is unusable at now. An expiry equal to now counts as expired.
func (i Item) ExpiredAt(now time.Time) bool {
	return !i.ExpiryDate.After(now)
}

type User struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	Role              Role       `json:"role"`
	IsVerified        bool       `json:"isVerified"`
	VerificationToken *string    `json:"-"`
	ResetToken        *string    `json:"-"`
	ResetTokenExpires *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"createdAt"`
}

type Order struct {
	ID        int64           `json:"id"`
	Status    OrderStatus     `json:"status"`
	TotalCost decimal.Decimal `json:"totalCost"`
	CashierID int64           `json:"cashierId"`
	WaiterID  int64           `json:"waiterId"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Lines     []OrderLine     `json:"items,omitempty"`
}

type OrderLine struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"orderId"`
	ItemID        int64           `json:"itemId"`
	ItemName      string          `json:"itemName,omitempty"`
	Quantity      int             `json:"quantity"`
	PriceSnapshot decimal.Decimal `json:"priceSnapshot"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Cost is quantity times the captured price.
func (l OrderLine) Cost() decimal.Decimal {
	return l.PriceSnapshot.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// SumLines re-adds every line cost from scratch.
func SumLines(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Cost())
	}
	return total
}

type StatusLogEntry struct {
	OrderID   int64       `json:"orderId"`
	Status    OrderStatus `json:"status"`
	ChangedBy string      `json:"changedBy"`
	ChangedAt time.Time   `json:"changedAt"`
}

type UserSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// OrderView is an order as listed to managers, with both staff members resolved.
type OrderView struct {
	Order
	Cashier UserSummary `json:"cashier"`
	Waiter  UserSummary `json:"waiter"`
}
