package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrderComputesTotal(t *testing.T) {
	items := []OrderItem{
		{ID: "i1", ProductID: "p1", Quantity: 2, UnitPrice: 10.5},
		{ID: "i2", ProductID: "p2", Quantity: 1, UnitPrice: 4},
	}

	order, err := NewOrder("order-1", "user-1", items)
	require.NoError(t, err)

	assert.Equal(t, 25.0, order.TotalAmount)
	assert.Equal(t, OrderStatusCreated, order.Status)
	assert.Len(t, order.Items, 2)
}

func TestNewOrderValidation(t *testing.T) {
	valid := []OrderItem{{ID: "i1", ProductID: "p1", Quantity: 1, UnitPrice: 10}}

	tests := []struct {
		name   string
		id     string
		userID string
		items  []OrderItem
	}{
		{name: "empty order id", id: "", userID: "user-1", items: valid},
		{name: "empty user id", id: "order-1", userID: "", items: valid},
		{name: "no items", id: "order-1", userID: "user-1", items: nil},
		{
			name: "zero quantity", id: "order-1", userID: "user-1",
			items: []OrderItem{{ID: "i1", ProductID: "p1", Quantity: 0, UnitPrice: 10}},
		},
		{
			name: "negative price", id: "order-1", userID: "user-1",
			items: []OrderItem{{ID: "i1", ProductID: "p1", Quantity: 1, UnitPrice: -1}},
		},
		{
			name: "missing product id", id: "order-1", userID: "user-1",
			items: []OrderItem{{ID: "i1", ProductID: "", Quantity: 1, UnitPrice: 10}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOrder(tt.id, tt.userID, tt.items)
			assert.Error(t, err)
		})
	}
}

func TestMarkPaidIdempotent(t *testing.T) {
	order, err := NewOrder("order-1", "user-1", []OrderItem{{ID: "i1", ProductID: "p1", Quantity: 1, UnitPrice: 10}})
	require.NoError(t, err)

	assert.True(t, order.MarkPaid())
	assert.Equal(t, OrderStatusPaid, order.Status)
	assert.False(t, order.MarkPaid())
	assert.Equal(t, OrderStatusPaid, order.Status)
}

func TestMarkFailedThenPaidOverrides(t *testing.T) {
	order, err := NewOrder("order-1", "user-1", []OrderItem{{ID: "i1", ProductID: "p1", Quantity: 1, UnitPrice: 10}})
	require.NoError(t, err)

	assert.True(t, order.MarkFailed())
	assert.Equal(t, OrderStatusFailed, order.Status)

	assert.True(t, order.MarkPaid())
	assert.Equal(t, OrderStatusPaid, order.Status)
}
