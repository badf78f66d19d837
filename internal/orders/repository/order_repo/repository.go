package order_repo

import (
	"context"

	"github.com/seny03/HSE-Software-Design-sub000/internal/orders/domain"
	"github.com/seny03/HSE-Software-Design-sub000/internal/outbox"
)

type OrderRepository interface {
	// CreateOrderWithOutbox persists the order, its items and the outbox
	// message in one transaction. Either all of them become visible or none.
	CreateOrderWithOutbox(ctx context.Context, order *domain.Order, msg *outbox.Message) error
	GetOrderByID(ctx context.Context, id string) (*domain.Order, error)
	GetOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error)
	GetAllOrders(ctx context.Context) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, order *domain.Order) error
}
