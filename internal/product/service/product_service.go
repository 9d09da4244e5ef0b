package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/shopmesh/shopmesh/internal/product/cache"
	"github.com/shopmesh/shopmesh/internal/product/domain"
	"github.com/shopmesh/shopmesh/internal/product/repository"
	"github.com/shopmesh/shopmesh/pkg/telemetry"
)

// cacheFlag gates the read-through cache at runtime.
const cacheFlag = "product-cache"

// Repository is what the service needs from the catalog storage.
type Repository interface {
	List(ctx context.Context) ([]*domain.Product, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	Create(ctx context.Context, p *domain.Product) error
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id string) error
}

// FlagClient resolves feature flags, falling back to the default on
// any provider failure.
type FlagClient interface {
	BoolFlag(ctx context.Context, key string, defaultValue bool) bool
}

type ProductService struct {
	repo   Repository
	cache  cache.ProductCache
	flags  FlagClient
	sfg    singleflight.Group // Prevents cache stampede
	tracer trace.Tracer
	logger zerolog.Logger
}

func NewProductService(repo Repository, productCache cache.ProductCache, flagClient FlagClient, logger zerolog.Logger) *ProductService {
	return &ProductService{
		repo:   repo,
		cache:  productCache,
		flags:  flagClient,
		tracer: otel.Tracer("product-service"),
		logger: logger,
	}
}

func (s *ProductService) List(ctx context.Context) (products []*domain.Product, err error) {
	ctx, end := telemetry.StartSpan(ctx, s.tracer, "product.list")
	defer func() { end(err) }()

	if !s.cacheEnabled(ctx) {
		return s.repo.List(ctx)
	}

	v, err, _ := s.sfg.Do(cacheListKey, func() (interface{}, error) {
		cached, err := s.cache.GetList(ctx)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Msg("product list cache read failed")
		}

		fresh, err := s.repo.List(ctx)
		if err != nil {
			return nil, err
		}

		go func() {
			if err := s.cache.SetList(context.Background(), fresh); err != nil {
				s.logger.Warn().Err(err).Msg("product list cache write failed")
			}
		}()

		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*domain.Product), nil
}

func (s *ProductService) Get(ctx context.Context, id string) (product *domain.Product, err error) {
	ctx, end := telemetry.StartSpan(ctx, s.tracer, "product.get",
		attribute.String("product.id", id))
	defer func() { end(err) }()

	if !s.cacheEnabled(ctx) {
		return s.repo.Get(ctx, id)
	}

	v, err, _ := s.sfg.Do(id, func() (interface{}, error) {
		cached, err := s.cache.GetProduct(ctx, id)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("product_id", id).Msg("product cache read failed")
		}

		fresh, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		go func() {
			if err := s.cache.SetProduct(context.Background(), fresh); err != nil {
				s.logger.Warn().Err(err).Str("product_id", id).Msg("product cache write failed")
			}
		}()

		return fresh, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Product), nil
}

func (s *ProductService) Create(ctx context.Context, product *domain.Product) (err error) {
	ctx, end := telemetry.StartSpan(ctx, s.tracer, "product.create",
		attribute.String("product.name", product.Name))
	defer func() { end(err) }()

	if err = s.repo.Create(ctx, product); err != nil {
		s.logger.Error().Err(err).Msg("create product failed")
		return err
	}

	s.invalidate(product.ID)
	return nil
}

func (s *ProductService) Update(ctx context.Context, product *domain.Product) (err error) {
	ctx, end := telemetry.StartSpan(ctx, s.tracer, "product.update",
		attribute.String("product.id", product.ID))
	defer func() { end(err) }()

	if err = s.repo.Update(ctx, product); err != nil {
		s.logFailure(err, product.ID, "update product failed")
		return err
	}

	s.invalidate(product.ID)
	return nil
}

func (s *ProductService) Delete(ctx context.Context, id string) (err error) {
	ctx, end := telemetry.StartSpan(ctx, s.tracer, "product.delete",
		attribute.String("product.id", id))
	defer func() { end(err) }()

	if err = s.repo.Delete(ctx, id); err != nil {
		s.logFailure(err, id, "delete product failed")
		return err
	}

	s.invalidate(id)
	return nil
}

const cacheListKey = "products:all"

func (s *ProductService) cacheEnabled(ctx context.Context) bool {
	return s.flags.BoolFlag(ctx, cacheFlag, true)
}

// Cache invalidation is best-effort: a stale entry ages out via TTL.
func (s *ProductService) invalidate(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("product_id", id).Msg("cache invalidate failed")
	}
}

func (s *ProductService) logFailure(err error, id, msg string) {
	if errors.Is(err, repository.ErrProductNotFound) {
		s.logger.Debug().Err(err).Str("product_id", id).Msg(msg)
		return
	}
	s.logger.Error().Err(err).Str("product_id", id).Msg(msg)
}
