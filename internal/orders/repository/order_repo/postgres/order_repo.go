package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/seny03/HSE-Software-Design-sub000/internal/orders/domain"
	"github.com/seny03/HSE-Software-Design-sub000/internal/orders/repository/order_repo"
	"github.com/seny03/HSE-Software-Design-sub000/internal/outbox"
)

type pgOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOrderRepository(db *sql.DB, l *zap.Logger) order_repo.OrderRepository {
	return &pgOrderRepository{db: db, logger: l}
}

func (r *pgOrderRepository) CreateOrderWithOutbox(ctx context.Context, order *domain.Order, msg *outbox.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("Failed to begin transaction for order creation", zap.String("order_id", order.ID), zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Panic during order creation transaction, rolling back", zap.String("order_id", order.ID))
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			r.logger.Warn("Rolling back order creation transaction", zap.String("order_id", order.ID), zap.Error(err))
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
			if err != nil {
				r.logger.Error("Failed to commit order creation transaction", zap.String("order_id", order.ID), zap.Error(err))
			}
		}
	}()

	orderQuery := `INSERT INTO orders (id, user_id, total_amount, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = tx.ExecContext(ctx, orderQuery, order.ID, order.UserID, order.TotalAmount, order.Status, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("tx failed to create order: %w", err)
	}

	itemQuery := `INSERT INTO order_items (id, order_id, product_id, quantity, unit_price) VALUES ($1, $2, $3, $4, $5)`
	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, itemQuery, item.ID, order.ID, item.ProductID, item.Quantity, item.UnitPrice)
		if err != nil {
			return fmt.Errorf("tx failed to create order item: %w", err)
		}
	}

	err = outbox.InsertTx(ctx, tx, msg)
	if err != nil {
		return err
	}
	r.logger.Debug("Order, items and outbox message inserted in transaction",
		zap.String("order_id", order.ID),
		zap.String("message_id", msg.ID))

	return err
}

func (r *pgOrderRepository) GetOrderByID(ctx context.Context, id string) (*domain.Order, error) {
	order := &domain.Order{}
	query := `SELECT id, user_id, total_amount, status, created_at, updated_at FROM orders WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(&order.ID, &order.UserID, &order.TotalAmount, &order.Status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		r.logger.Error("Failed to get order by ID", zap.String("order_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get order by ID %s: %w", id, err)
	}

	if err := r.loadItems(ctx, []*domain.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

func (r *pgOrderRepository) GetOrdersByUserID(ctx context.Context, userID string) ([]*domain.Order, error) {
	query := `SELECT id, user_id, total_amount, status, created_at, updated_at FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	return r.queryOrders(ctx, query, userID)
}

func (r *pgOrderRepository) GetAllOrders(ctx context.Context) ([]*domain.Order, error) {
	query := `SELECT id, user_id, total_amount, status, created_at, updated_at FROM orders ORDER BY created_at DESC`
	return r.queryOrders(ctx, query)
}

func (r *pgOrderRepository) queryOrders(ctx context.Context, query string, args ...interface{}) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query orders", zap.Error(err))
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order := &domain.Order{}
		if err := rows.Scan(&order.ID, &order.UserID, &order.TotalAmount, &order.Status, &order.CreatedAt, &order.UpdatedAt); err != nil {
			r.logger.Error("Failed to scan order row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("Rows error while querying orders", zap.Error(err))
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if err := r.loadItems(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *pgOrderRepository) loadItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]string, len(orders))
	byID := make(map[string]*domain.Order, len(orders))
	for i, order := range orders {
		ids[i] = order.ID
		byID[order.ID] = order
	}

	query := `SELECT id, order_id, product_id, quantity, unit_price FROM order_items WHERE order_id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		r.logger.Error("Failed to query order items", zap.Error(err))
		return fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orderID string
		item := domain.OrderItem{}
		if err := rows.Scan(&item.ID, &orderID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			r.logger.Error("Failed to scan order item row", zap.Error(err))
			return fmt.Errorf("failed to scan order item row: %w", err)
		}
		if order, ok := byID[orderID]; ok {
			order.Items = append(order.Items, item)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows error: %w", err)
	}
	return nil
}

func (r *pgOrderRepository) UpdateOrderStatus(ctx context.Context, order *domain.Order) error {
	query := `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, order.ID, order.Status, order.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update order status", zap.String("order_id", order.ID), zap.Error(err))
		return fmt.Errorf("failed to update order %s: %w", order.ID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rowsAffected == 0 {
		r.logger.Warn("No rows affected when updating order status", zap.String("order_id", order.ID))
		return sql.ErrNoRows
	}
	r.logger.Debug("Order status updated", zap.String("order_id", order.ID), zap.String("new_status", string(order.Status)))
	return nil
}
