package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/shopmesh/shopmesh/internal/cart/domain"
)

// maxTxRetries bounds the optimistic-transaction retry loop on
// concurrent writes to the same user's key.
const maxTxRetries = 5

func NewRedisStore(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// RedisStore persists each cart as a single JSON value at cart:{userId}
// with a TTL that is reset on every write.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func (s *RedisStore) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	data, err := s.client.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}

	return &cart, nil
}

// Update applies fn to the stored cart under WATCH cart:{userId} and
// writes the result in a MULTI/EXEC transaction, resetting the TTL.
// A concurrent write to the same key aborts the transaction and the
// read-modify-write is retried from scratch.
func (s *RedisStore) Update(ctx context.Context, userID string, fn func(*domain.Cart) (*domain.Cart, error)) (*domain.Cart, error) {
	key := cartKey(userID)

	var updated *domain.Cart
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		var current *domain.Cart
		switch {
		case errors.Is(err, redis.Nil):
			current = nil
		case err != nil:
			return fmt.Errorf("redis get failed: %w", err)
		default:
			current = &domain.Cart{}
			if err := json.Unmarshal(data, current); err != nil {
				return fmt.Errorf("unmarshal cart failed: %w", err)
			}
		}

		updated, err = fn(current)
		if err != nil {
			return err
		}

		payload, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("marshal cart failed: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			s.logger.Debug().Str("user_id", userID).Int("attempt", i+1).Msg("cart write conflict, retrying")
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("cart update for user %s: retries exhausted", userID)
}

// Delete removes the document. Deleting an absent cart is not an
// error: clear is idempotent.
func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cartKey(userID string) string {
	return fmt.Sprintf("cart:%s", userID)
}
