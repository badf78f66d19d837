package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/seny03/HSE-Software-Design-sub000/internal/orders/domain"
	"github.com/seny03/HSE-Software-Design-sub000/internal/orders/repository/product_repo"
)

type pgProductRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewProductRepository(db *sql.DB, l *zap.Logger) product_repo.ProductRepository {
	return &pgProductRepository{db: db, logger: l}
}

func (r *pgProductRepository) GetProductsByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error) {
	query := `SELECT id, name, price FROM products WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		r.logger.Error("Failed to query products", zap.Error(err))
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := make(map[string]*domain.Product, len(ids))
	for rows.Next() {
		product := &domain.Product{}
		if err := rows.Scan(&product.ID, &product.Name, &product.Price); err != nil {
			r.logger.Error("Failed to scan product row", zap.Error(err))
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products[product.ID] = product
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return products, nil
}
