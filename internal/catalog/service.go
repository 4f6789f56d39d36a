package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-kasir/internal/common"
)

// ErrNotFound indicates the requested product code does not exist.
var ErrNotFound = common.NewAppError("NOT_FOUND", "product not found", http.StatusNotFound, nil)

type storeProvider interface {
	ListProducts(ctx context.Context, limit, offset int32) ([]Product, error)
	CountProducts(ctx context.Context) (int64, error)
	GetProductByCode(ctx context.Context, code string) (Product, error)
}

// Service orchestrates product queries and caching.
type Service struct {
	store        storeProvider
	cache        *Cache
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        storeProvider
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
}

// ListResult contains list data and pagination metadata.
type ListResult struct {
	Items []Product
	Total int64
	Page  int
	Limit int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &Service{
		store:        cfg.Store,
		cache:        cfg.Cache,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// List returns a page of products, served from cache when possible.
func (s *Service) List(ctx context.Context, page, limit int) (ListResult, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	key := fmt.Sprintf("catalog:products:p%d:l%d", page, limit)
	var cached ListResult
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	total, err := s.store.CountProducts(ctx)
	if err != nil {
		return ListResult{}, err
	}
	offset := int32((page - 1) * limit)
	items, err := s.store.ListProducts(ctx, int32(limit), offset)
	if err != nil {
		return ListResult{}, err
	}
	if items == nil {
		items = []Product{}
	}
	result := ListResult{Items: items, Total: total, Page: page, Limit: limit}
	_ = s.cache.SetJSON(ctx, key, result)
	return result, nil
}

// GetByCode returns a single product by its unique code.
func (s *Service) GetByCode(ctx context.Context, code string) (Product, error) {
	key := "catalog:product:" + code
	var cached Product
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}
	product, err := s.store.GetProductByCode(ctx, code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	_ = s.cache.SetJSON(ctx, key, product)
	return product, nil
}
