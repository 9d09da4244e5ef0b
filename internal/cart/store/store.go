package store

import (
	"context"
	"errors"

	"github.com/shopmesh/shopmesh/internal/cart/domain"
)

// Store is the cart document store. Consumers define this interface,
// not the Redis implementation.
//
// Update runs fn inside an optimistic transaction on the user's key:
// fn receives the current cart (nil when no document exists) and
// returns the cart to persist. The write is retried on concurrent
// modification of the same key.
type Store interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	Update(ctx context.Context, userID string, fn func(*domain.Cart) (*domain.Cart, error)) (*domain.Cart, error)
	Delete(ctx context.Context, userID string) error
}

var (
	ErrCartNotFound = errors.New("cart not found")
	ErrItemNotFound = errors.New("item not found in cart")
)
