package product_repo

import (
	"context"

	"github.com/seny03/HSE-Software-Design-sub000/internal/orders/domain"
)

type ProductRepository interface {
	// GetProductsByIDs returns the products found, keyed by id. Missing ids
	// are simply absent from the map; the caller decides whether that is an
	// error.
	GetProductsByIDs(ctx context.Context, ids []string) (map[string]*domain.Product, error)
}
