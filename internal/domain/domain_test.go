package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesOnCode(t *testing.T) {
	err := fmt.Errorf("complete order 7: %w", ErrInsufficientStock.Withf("insufficient stock for item: %s", "Milk"))

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.NotErrorIs(t, err, ErrItemExpired)
	assert.Equal(t, KindBusinessRule, KindOf(err))
	assert.Equal(t, "complete order 7: insufficient stock for item: Milk", err.Error())
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, "internal_error", KindOf(errors.New("boom")).String())
}

func TestItemExpiredAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, Item{ExpiryDate: now}.ExpiredAt(now), "expiry equal to now is expired")
	assert.True(t, Item{ExpiryDate: now.Add(-time.Second)}.ExpiredAt(now))
	assert.False(t, Item{ExpiryDate: now.Add(time.Second)}.ExpiredAt(now))
}

func TestSumLines(t *testing.T) {
	lines := []OrderLine{
		{Quantity: 3, PriceSnapshot: decimal.RequireFromString("10.00")},
		{Quantity: 2, PriceSnapshot: decimal.RequireFromString("2.25")},
	}
	assert.True(t, decimal.RequireFromString("34.50").Equal(SumLines(lines)))
	assert.True(t, decimal.Zero.Equal(SumLines(nil)))
}

func TestCashierTarget(t *testing.T) {
	assert.True(t, StatusPending.CashierTarget())
	assert.True(t, StatusComplete.CashierTarget())
	assert.True(t, StatusCancelled.CashierTarget())
	assert.False(t, StatusExpired.CashierTarget())
	assert.False(t, OrderStatus("shipped").CashierTarget())
}

func TestItemUpdateApply(t *testing.T) {
	name := "Oat milk"
	stock := 0
	it := Item{Name: "Milk", StockQuantity: 4, Category: "dairy"}
	u := ItemUpdate{Name: &name, StockQuantity: &stock}

	assert.False(t, u.Empty())
	u.Apply(&it)
	assert.Equal(t, "Oat milk", it.Name)
	assert.Equal(t, 0, it.StockQuantity)
	assert.Equal(t, "dairy", it.Category)
	assert.True(t, ItemUpdate{}.Empty())
}
