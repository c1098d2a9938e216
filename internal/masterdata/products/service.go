package products

import (
	"context"
	"fmt"
	"strconv"

	internalShared "github.com/stocktrail/stocktrail/internal/shared"

	"github.com/stocktrail/stocktrail/internal/masterdata/shared"
)

type Service struct {
	repo  Repository
	audit *internalShared.AuditLogger
	cache *shared.Cache
}

func NewService(repo Repository, audit *internalShared.AuditLogger, cache *shared.Cache) *Service {
	return &Service{repo: repo, audit: audit, cache: cache}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.ErrInvalidID
	}
	key, err := s.cache.BuildKey(ctx, "masterdata", "product", strconv.FormatInt(id, 10))
	if err != nil {
		return s.repo.Get(ctx, id)
	}
	var product Product
	err = s.cache.FetchJSON(ctx, key, &product, func(ctx context.Context) (interface{}, error) {
		found, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return found, nil
	})
	if err != nil {
		return Product{}, err
	}
	return product, nil
}

func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	created, err := s.repo.Create(ctx, product)
	if err != nil {
		return Product{}, err
	}
	_ = s.cache.Bump(ctx)
	s.record(ctx, internalShared.AuditActionCreate, created.ID, map[string]any{"sku": created.SKU, "name": created.Name})
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, product Product) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.validate(product); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, id, product); err != nil {
		return err
	}
	_ = s.cache.Bump(ctx)
	s.record(ctx, internalShared.AuditActionUpdate, id, map[string]any{"sku": product.SKU, "name": product.Name})
	return nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	_ = s.cache.Bump(ctx)
	s.record(ctx, internalShared.AuditActionDelete, id, nil)
	return nil
}

func (s *Service) record(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditEntry{
		ActorID:  internalShared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "product",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
	})
}
