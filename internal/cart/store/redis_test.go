package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopmesh/shopmesh/internal/cart/domain"
)

const testTTL = 24 * time.Hour

func setupTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, testTTL, zerolog.Nop()), mr
}

func TestGet_Success(t *testing.T) {
	store, mr := setupTestStore(t)

	cart := domain.NewCart("user123")
	cart.AddItem(domain.CartItem{ProductID: "p1", Name: "Widget", Price: 9.99, Quantity: 2})
	payload, err := json.Marshal(cart)
	require.NoError(t, err)
	require.NoError(t, mr.Set(cartKey("user123"), string(payload)))

	got, err := store.Get(context.Background(), "user123")
	require.NoError(t, err)
	assert.Equal(t, "user123", got.UserID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "p1", got.Items[0].ProductID)
}

func TestGet_NotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	got, err := store.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, got)
}

func TestGet_InvalidJSON(t *testing.T) {
	store, mr := setupTestStore(t)
	require.NoError(t, mr.Set(cartKey("user123"), "{not json"))

	_, err := store.Get(context.Background(), "user123")
	require.ErrorContains(t, err, "unmarshal cart failed")
}

func TestUpdate_CreatesDocumentWithTTL(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	cart, err := store.Update(ctx, "user123", func(current *domain.Cart) (*domain.Cart, error) {
		require.Nil(t, current)
		c := domain.NewCart("user123")
		c.AddItem(domain.CartItem{ProductID: "p1", Name: "Widget", Price: 9.99, Quantity: 2})
		return c, nil
	})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	assert.True(t, mr.Exists(cartKey("user123")))
	assert.Equal(t, testTTL, mr.TTL(cartKey("user123")))
}

func TestUpdate_ResetsTTLOnEveryWrite(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Update(ctx, "user123", func(*domain.Cart) (*domain.Cart, error) {
		return domain.NewCart("user123"), nil
	})
	require.NoError(t, err)

	// Age the key, then write again.
	mr.FastForward(time.Hour)
	assert.Equal(t, testTTL-time.Hour, mr.TTL(cartKey("user123")))

	_, err = store.Update(ctx, "user123", func(current *domain.Cart) (*domain.Cart, error) {
		current.AddItem(domain.CartItem{ProductID: "p1", Quantity: 1})
		return current, nil
	})
	require.NoError(t, err)
	assert.Equal(t, testTTL, mr.TTL(cartKey("user123")))
}

func TestUpdate_PassesCurrentDocument(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Update(ctx, "user123", func(*domain.Cart) (*domain.Cart, error) {
		c := domain.NewCart("user123")
		c.AddItem(domain.CartItem{ProductID: "p1", Quantity: 2})
		return c, nil
	})
	require.NoError(t, err)

	cart, err := store.Update(ctx, "user123", func(current *domain.Cart) (*domain.Cart, error) {
		require.NotNil(t, current)
		current.AddItem(domain.CartItem{ProductID: "p1", Quantity: 3})
		return current, nil
	})
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
}

func TestUpdate_RetriesOnConcurrentWrite(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	seed := domain.NewCart("user123")
	seed.AddItem(domain.CartItem{ProductID: "p1", Name: "Widget", Price: 9.99, Quantity: 2})
	payload, err := json.Marshal(seed)
	require.NoError(t, err)
	require.NoError(t, mr.Set(cartKey("user123"), string(payload)))

	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { other.Close() })

	interleaved := domain.NewCart("user123")
	interleaved.AddItem(domain.CartItem{ProductID: "p1", Name: "Widget", Price: 9.99, Quantity: 12})
	interleavedPayload, err := json.Marshal(interleaved)
	require.NoError(t, err)

	attempts := 0
	cart, err := store.Update(ctx, "user123", func(current *domain.Cart) (*domain.Cart, error) {
		attempts++
		if attempts == 1 {
			// A second writer lands between this read and the EXEC,
			// which must abort the transaction.
			require.NoError(t, other.Set(ctx, cartKey("user123"), interleavedPayload, testTTL).Err())
		}
		current.AddItem(domain.CartItem{ProductID: "p1", Quantity: 1})
		return current, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	require.Len(t, cart.Items, 1)
	// The retry re-read the interleaved write, so neither update is lost.
	assert.Equal(t, 13, cart.Items[0].Quantity)
}

func TestUpdate_RetriesExhausted(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	other := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { other.Close() })

	attempts := 0
	_, err := store.Update(ctx, "user123", func(*domain.Cart) (*domain.Cart, error) {
		attempts++
		// Conflict on every attempt.
		require.NoError(t, other.Set(ctx, cartKey("user123"), "{}", testTTL).Err())
		return domain.NewCart("user123"), nil
	})
	require.ErrorContains(t, err, "retries exhausted")
	assert.Equal(t, maxTxRetries, attempts)
}

func TestUpdate_PropagatesMutationError(t *testing.T) {
	store, mr := setupTestStore(t)

	_, err := store.Update(context.Background(), "user123", func(*domain.Cart) (*domain.Cart, error) {
		return nil, ErrCartNotFound
	})
	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.False(t, mr.Exists(cartKey("user123")))
}

func TestDelete_Idempotent(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(cartKey("user123"), "{}"))
	require.NoError(t, store.Delete(ctx, "user123"))
	assert.False(t, mr.Exists(cartKey("user123")))

	// Absent key: still no error.
	require.NoError(t, store.Delete(ctx, "user123"))
}
