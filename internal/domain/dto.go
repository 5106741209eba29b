package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateOrderLine struct {
	ItemID   int64 `json:"itemId"`
	Quantity int   `json:"quantity"`
}

type CreateOrderRequest struct {
	WaiterID int64             `json:"waiterId"`
	Items    []CreateOrderLine `json:"items"`
}

type CreateOrderResponse struct {
	OrderID   int64           `json:"orderId"`
	Status    OrderStatus     `json:"status"`
	TotalCost decimal.Decimal `json:"totalCost"`
}

type AddLineRequest struct {
	ItemID   int64 `json:"itemId"`
	Quantity int   `json:"quantity"`
}

type AddLineResponse struct {
	OrderID  int64           `json:"orderId"`
	ItemName string          `json:"itemName"`
	NewTotal decimal.Decimal `json:"newTotal"`
}

type RemoveLineResponse struct {
	OrderID        int64           `json:"orderId"`
	NewTotal       decimal.Decimal `json:"newTotal"`
	RemainingItems int             `json:"remainingItems"`
}

type SetStatusRequest struct {
	NewStatus OrderStatus `json:"newStatus"`
}

type StatusResponse struct {
	OrderID int64       `json:"orderId"`
	Status  OrderStatus `json:"status"`
}

type OrderFilter struct {
	Status OrderStatus
	Limit  int
	Offset int
}

// ItemUpdate names every field a manager may change. Nil fields are left alone.
type ItemUpdate struct {
	Name          *string          `json:"name"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	Category      *string          `json:"category"`
	ExpiryDate    *time.Time       `json:"expiryDate"`
	StockQuantity *int             `json:"stockQuantity"`
}

func (u ItemUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil && u.Price == nil &&
		u.Category == nil && u.ExpiryDate == nil && u.StockQuantity == nil
}

// Apply copies the set fields onto it.
func (u ItemUpdate) Apply(it *Item) {
	if u.Name != nil {
		it.Name = *u.Name
	}
	if u.Description != nil {
		it.Description = *u.Description
	}
	if u.Price != nil {
		it.Price = *u.Price
	}
	if u.Category != nil {
		it.Category = *u.Category
	}
	if u.ExpiryDate != nil {
		it.ExpiryDate = *u.ExpiryDate
	}
	if u.StockQuantity != nil {
		it.StockQuantity = *u.StockQuantity
	}
}

type ItemSort string

const (
	SortNone            ItemSort = ""
	SortName            ItemSort = "name"
	SortPrice           ItemSort = "price"
	SortExpiryDate      ItemSort = "expiryDate"
	SortTotalStockValue ItemSort = "totalStockValue"
)

type ItemFilter struct {
	Category     string
	NotExpiredAt *time.Time
	SortBy       ItemSort
	Descending   bool
}

type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// UserUpdate names every field a manager may change on a staff account.
type UserUpdate struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Role  *Role   `json:"role"`
}

type CreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
