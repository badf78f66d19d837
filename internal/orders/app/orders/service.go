package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seny03/HSE-Software-Design-sub000/internal/event"
	"github.com/seny03/HSE-Software-Design-sub000/internal/orders/domain"
	"github.com/seny03/HSE-Software-Design-sub000/internal/orders/paymentsclient"
	"github.com/seny03/HSE-Software-Design-sub000/internal/orders/repository/order_repo"
	"github.com/seny03/HSE-Software-Design-sub000/internal/orders/repository/product_repo"
	"github.com/seny03/HSE-Software-Design-sub000/internal/outbox"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidOrder    = errors.New("invalid order data")
)

type OrderService interface {
	CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error)
	GetOrder(ctx context.Context, orderID string) (*OrderResponse, error)
	GetOrdersByUserID(ctx context.Context, userID string) ([]*OrderResponse, error)
	GetAllOrders(ctx context.Context) ([]*OrderResponse, error)
	HandlePaymentCompleted(ctx context.Context, evt *event.PaymentCompleted) error
	HandlePaymentFailed(ctx context.Context, evt *event.PaymentFailed) error
}

type orderService struct {
	orderRepo   order_repo.OrderRepository
	productRepo product_repo.ProductRepository
	payments    paymentsclient.Client
	logger      *zap.Logger
}

func NewOrderService(
	orderRepo order_repo.OrderRepository,
	productRepo product_repo.ProductRepository,
	payments paymentsclient.Client,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		payments:    payments,
		logger:      logger,
	}
}

// CreateOrder resolves current product prices, attempts a synchronous
// withdrawal against the Payments service and persists the order together
// with its order_created outbox row in one transaction. A failed withdrawal
// is a recorded fact, not an error: the order is saved with status FAILED and
// the event is still enqueued so downstream consumers see every attempt.
func (s *orderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*OrderResponse, error) {
	productIDs := make([]string, len(req.Items))
	for i, item := range req.Items {
		productIDs[i] = item.ProductID
	}

	products, err := s.productRepo.GetProductsByIDs(ctx, productIDs)
	if err != nil {
		s.logger.Error("Failed to resolve products for order", zap.Error(err))
		return nil, errors.New("internal server error")
	}

	items := make([]domain.OrderItem, len(req.Items))
	for i, reqItem := range req.Items {
		product, ok := products[reqItem.ProductID]
		if !ok {
			s.logger.Warn("Unknown product in order request", zap.String("product_id", reqItem.ProductID))
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, reqItem.ProductID)
		}
		items[i] = domain.OrderItem{
			ID:        uuid.New().String(),
			ProductID: product.ID,
			Quantity:  reqItem.Quantity,
			UnitPrice: product.Price,
		}
	}

	order, err := domain.NewOrder(uuid.New().String(), req.UserID, items)
	if err != nil {
		s.logger.Error("Failed to create order domain object", zap.Error(err))
		return nil, ErrInvalidOrder
	}

	if err := s.payments.Withdraw(ctx, order.UserID, order.ID, order.TotalAmount); err != nil {
		s.logger.Warn("Synchronous withdrawal failed, recording order as failed",
			zap.String("order_id", order.ID),
			zap.Float64("amount", order.TotalAmount),
			zap.Error(err))
		order.MarkFailed()
	} else {
		order.MarkPaid()
	}

	msg, err := outbox.NewMessage(event.OrderCreated{
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount,
		Timestamp:   order.CreatedAt,
	})
	if err != nil {
		s.logger.Error("Failed to build outbox message for order", zap.String("order_id", order.ID), zap.Error(err))
		return nil, errors.New("internal server error")
	}

	if err := s.orderRepo.CreateOrderWithOutbox(ctx, order, msg); err != nil {
		s.logger.Error("Failed to save order and outbox message", zap.String("order_id", order.ID), zap.Error(err))
		return nil, errors.New("failed to create order")
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
		zap.Float64("total_amount", order.TotalAmount))

	return mapOrderToResponse(order), nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (*OrderResponse, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		s.logger.Error("Failed to get order from repository", zap.String("order_id", orderID), zap.Error(err))
		return nil, errors.New("internal server error")
	}
	return mapOrderToResponse(order), nil
}

func (s *orderService) GetOrdersByUserID(ctx context.Context, userID string) ([]*OrderResponse, error) {
	orders, err := s.orderRepo.GetOrdersByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to get orders for user", zap.String("user_id", userID), zap.Error(err))
		return nil, errors.New("internal server error")
	}
	return mapOrdersToResponse(orders), nil
}

func (s *orderService) GetAllOrders(ctx context.Context) ([]*OrderResponse, error) {
	orders, err := s.orderRepo.GetAllOrders(ctx)
	if err != nil {
		s.logger.Error("Failed to get all orders", zap.Error(err))
		return nil, errors.New("internal server error")
	}
	return mapOrdersToResponse(orders), nil
}

// HandlePaymentCompleted applies the asynchronous payment outcome. The async
// outcome is authoritative: it may override an earlier FAILED recorded by the
// synchronous path. Applying the same outcome twice changes nothing.
func (s *orderService) HandlePaymentCompleted(ctx context.Context, evt *event.PaymentCompleted) error {
	return s.applyPaymentOutcome(ctx, evt.OrderID, domain.OrderStatusPaid, "")
}

func (s *orderService) HandlePaymentFailed(ctx context.Context, evt *event.PaymentFailed) error {
	return s.applyPaymentOutcome(ctx, evt.OrderID, domain.OrderStatusFailed, evt.Reason)
}

func (s *orderService) applyPaymentOutcome(ctx context.Context, orderID string, status domain.OrderStatus, reason string) error {
	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Order not found for payment outcome, ignoring",
				zap.String("order_id", orderID),
				zap.String("outcome", string(status)))
			return nil
		}
		s.logger.Error("Failed to load order for payment outcome", zap.String("order_id", orderID), zap.Error(err))
		return fmt.Errorf("failed to load order %s: %w", orderID, err)
	}

	var changed bool
	switch status {
	case domain.OrderStatusPaid:
		changed = order.MarkPaid()
	case domain.OrderStatusFailed:
		changed = order.MarkFailed()
	default:
		return fmt.Errorf("unsupported payment outcome status: %s", status)
	}

	if !changed {
		s.logger.Info("Order already in outcome status, no update needed",
			zap.String("order_id", orderID),
			zap.String("status", string(status)))
		return nil
	}

	if err := s.orderRepo.UpdateOrderStatus(ctx, order); err != nil {
		s.logger.Error("Failed to persist payment outcome",
			zap.String("order_id", orderID),
			zap.String("new_status", string(status)),
			zap.Error(err))
		return fmt.Errorf("failed to update order %s status: %w", orderID, err)
	}

	s.logger.Info("Order status updated from payment outcome",
		zap.String("order_id", orderID),
		zap.String("new_status", string(status)),
		zap.String("reason", reason))
	return nil
}

func mapOrderToResponse(order *domain.Order) *OrderResponse {
	items := make([]OrderItemResponse, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemResponse{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return &OrderResponse{
		ID:          order.ID,
		UserID:      order.UserID,
		Items:       items,
		TotalAmount: order.TotalAmount,
		Status:      string(order.Status),
		CreatedAt:   order.CreatedAt,
	}
}

func mapOrdersToResponse(orders []*domain.Order) []*OrderResponse {
	responses := make([]*OrderResponse, len(orders))
	for i, order := range orders {
		responses[i] = mapOrderToResponse(order)
	}
	return responses
}
