package domain

import (
	"errors"
	"time"
)

type OrderStatus string

const (
	OrderStatusCreated OrderStatus = "CREATED"
	OrderStatusPaid    OrderStatus = "PAID"
	OrderStatusFailed  OrderStatus = "FAILED"
)

type Product struct {
	ID    string
	Name  string
	Price float64
}

// OrderItem snapshots the product price at order creation time. Later price
// changes never affect an existing order's total.
type OrderItem struct {
	ID        string
	ProductID string
	Quantity  int
	UnitPrice float64
}

func (i OrderItem) Subtotal() float64 {
	return i.UnitPrice * float64(i.Quantity)
}

type Order struct {
	ID          string
	UserID      string
	Items       []OrderItem
	TotalAmount float64
	Status      OrderStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func NewOrder(id, userID string, items []OrderItem) (*Order, error) {
	if id == "" || userID == "" {
		return nil, errors.New("invalid order data")
	}
	if len(items) == 0 {
		return nil, errors.New("order must contain at least one item")
	}

	var total float64
	for _, item := range items {
		if item.ProductID == "" || item.Quantity <= 0 || item.UnitPrice < 0 {
			return nil, errors.New("invalid order item")
		}
		total += item.Subtotal()
	}

	now := time.Now()
	return &Order{
		ID:          id,
		UserID:      userID,
		Items:       items,
		TotalAmount: total,
		Status:      OrderStatusCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// MarkPaid reports whether the status actually changed. Payment outcome
// events may arrive more than once and may override an earlier FAILED; the
// same outcome applied twice is a no-op.
func (o *Order) MarkPaid() bool {
	if o.Status == OrderStatusPaid {
		return false
	}
	o.Status = OrderStatusPaid
	o.UpdatedAt = time.Now()
	return true
}

func (o *Order) MarkFailed() bool {
	if o.Status == OrderStatusFailed {
		return false
	}
	o.Status = OrderStatusFailed
	o.UpdatedAt = time.Now()
	return true
}
