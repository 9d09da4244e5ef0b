package cache

import (
	"context"
	"errors"

	"github.com/shopmesh/shopmesh/internal/product/domain"
)

// ProductCache is the read-through cache in front of the catalog.
// Consumers define this interface, not the Redis implementation.
type ProductCache interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	SetProduct(ctx context.Context, product *domain.Product) error
	GetList(ctx context.Context) ([]*domain.Product, error)
	SetList(ctx context.Context, products []*domain.Product) error
	Invalidate(ctx context.Context, id string) error
}

var ErrCacheMiss = errors.New("cache miss")
