package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shopmesh/shopmesh/internal/cart/domain"
	"github.com/shopmesh/shopmesh/internal/cart/store"
	"github.com/shopmesh/shopmesh/pkg/telemetry"
)

type CartService struct {
	store  store.Store
	tracer trace.Tracer
	logger zerolog.Logger
}

func NewCartService(st store.Store, logger zerolog.Logger) *CartService {
	return &CartService{
		store:  st,
		tracer: otel.Tracer("cart-service"),
		logger: logger,
	}
}

// GetCart returns the stored cart, or a synthesized empty cart when the
// user has no document. The empty cart is not persisted and the read
// has no side effects.
func (s *CartService) GetCart(ctx context.Context, userID string) (cart *domain.Cart, err error) {
	ctx, end := telemetry.StartSpan(ctx, s.tracer, "cart.get",
		attribute.String("cart.user_id", userID))
	defer func() { end(err) }()

	cart, err = s.store.Get(ctx, userID)
	if errors.Is(err, store.ErrCartNotFound) {
		return domain.NewCart(userID), nil
	}
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("get cart failed")
		return nil, err
	}
	return cart, nil
}

// AddItem merges item into the user's cart, creating the document on
// first use.
func (s *CartService) AddItem(ctx context.Context, userID string, item domain.CartItem) (cart *domain.Cart, err error) {
	ctx, end := telemetry.StartSpan(ctx, s.tracer, "cart.add_item",
		attribute.String("cart.user_id", userID),
		attribute.String("cart.product_id", item.ProductID),
		attribute.Int("cart.quantity", item.Quantity))
	defer func() { end(err) }()

	cart, err = s.store.Update(ctx, userID, func(current *domain.Cart) (*domain.Cart, error) {
		if current == nil {
			current = domain.NewCart(userID)
		}
		current.AddItem(item)
		return current, nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("add item failed")
		return nil, err
	}
	return cart, nil
}

// UpdateQuantity sets the absolute quantity for productID. Quantity 0
// removes the item, identical to RemoveItem.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (cart *domain.Cart, err error) {
	ctx, end := telemetry.StartSpan(ctx, s.tracer, "cart.update_quantity",
		attribute.String("cart.user_id", userID),
		attribute.String("cart.product_id", productID),
		attribute.Int("cart.quantity", quantity))
	defer func() { end(err) }()

	cart, err = s.store.Update(ctx, userID, func(current *domain.Cart) (*domain.Cart, error) {
		if current == nil {
			return nil, store.ErrCartNotFound
		}
		if !current.SetQuantity(productID, quantity) {
			return nil, store.ErrItemNotFound
		}
		return current, nil
	})
	if err != nil {
		s.logFailure(err, userID, "update quantity failed")
		return nil, err
	}
	return cart, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID string) (cart *domain.Cart, err error) {
	ctx, end := telemetry.StartSpan(ctx, s.tracer, "cart.remove_item",
		attribute.String("cart.user_id", userID),
		attribute.String("cart.product_id", productID))
	defer func() { end(err) }()

	cart, err = s.store.Update(ctx, userID, func(current *domain.Cart) (*domain.Cart, error) {
		if current == nil {
			return nil, store.ErrCartNotFound
		}
		if !current.RemoveItem(productID) {
			return nil, store.ErrItemNotFound
		}
		return current, nil
	})
	if err != nil {
		s.logFailure(err, userID, "remove item failed")
		return nil, err
	}
	return cart, nil
}

// ClearCart deletes the document unconditionally and returns a fresh
// empty cart. Clearing an absent cart succeeds.
func (s *CartService) ClearCart(ctx context.Context, userID string) (cart *domain.Cart, err error) {
	ctx, end := telemetry.StartSpan(ctx, s.tracer, "cart.clear",
		attribute.String("cart.user_id", userID))
	defer func() { end(err) }()

	if err = s.store.Delete(ctx, userID); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("clear cart failed")
		return nil, err
	}
	return domain.NewCart(userID), nil
}

// Not-found outcomes are expected on update/remove and logged at debug,
// storage failures at error.
func (s *CartService) logFailure(err error, userID, msg string) {
	if errors.Is(err, store.ErrCartNotFound) || errors.Is(err, store.ErrItemNotFound) {
		s.logger.Debug().Err(err).Str("user_id", userID).Msg(msg)
		return
	}
	s.logger.Error().Err(err).Str("user_id", userID).Msg(msg)
}
