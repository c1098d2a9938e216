package locations

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Location, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Location, error) {
	if id <= 0 {
		return Location{}, shared.ErrInvalidID
	}
	key, err := s.cache.BuildKey(ctx, "masterdata", "location", strconv.FormatInt(id, 10))
	if err != nil {
		return s.repo.Get(ctx, id)
	}
	var location Location
	err = s.cache.FetchJSON(ctx, key, &location, func(ctx context.Context) (interface{}, error) {
		found, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return found, nil
	})
	if err != nil {
		return Location{}, err
	}
	return location, nil
}

func (s *Service) Create(ctx context.Context, location Location) (Location, error) {
	if err := s.validate(location); err != nil {
		return Location{}, err
	}
	created, err := s.repo.Create(ctx, location)
	if err != nil {
		return Location{}, err
	}
	_ = s.cache.Bump(ctx)
	s.record(ctx, internalShared.AuditActionCreate, created.ID, map[string]any{"code": created.Code, "name": created.Name})
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, location Location) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	if err := s.validate(location); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, id, location); err != nil {
		return err
	}
	_ = s.cache.Bump(ctx)
	s.record(ctx, internalShared.AuditActionUpdate, id, map[string]any{"code": location.Code, "name": location.Name})
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
		Entity:   "location",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
	})
}
