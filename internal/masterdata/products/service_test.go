package products

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/stocktrail/stocktrail/internal/masterdata/shared"
)

type stubRepo struct {
	products map[int64]Product
	nextID   int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{products: make(map[int64]Product)}
}

func (s *stubRepo) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	out := []Product{}
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (s *stubRepo) Get(ctx context.Context, id int64) (Product, error) {
	p, ok := s.products[id]
	if !ok {
		return Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (s *stubRepo) Create(ctx context.Context, product Product) (Product, error) {
	for _, existing := range s.products {
		if existing.SKU == product.SKU {
			return Product{}, shared.ErrDuplicate
		}
	}
	s.nextID++
	product.ID = s.nextID
	s.products[product.ID] = product
	return product, nil
}

func (s *stubRepo) Update(ctx context.Context, id int64, product Product) error {
	if _, ok := s.products[id]; !ok {
		return shared.ErrNotFound
	}
	product.ID = id
	s.products[id] = product
	return nil
}

func (s *stubRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := s.products[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func TestCreateValidatesInput(t *testing.T) {
	svc := NewService(newStubRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, Product{Name: "Widget"})
	require.ErrorIs(t, err, shared.ErrRequiredField)

	_, err = svc.Create(ctx, Product{SKU: "W-1"})
	require.ErrorIs(t, err, shared.ErrRequiredField)

	_, err = svc.Create(ctx, Product{SKU: "W-1", Name: "Widget", MinimumStock: -5})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, Product{SKU: "W-1", Name: "Widget", Price: decimal.NewFromInt(-1)})
	require.ErrorIs(t, err, shared.ErrValidation)

	created, err := svc.Create(ctx, Product{SKU: "W-1", Name: "Widget", MinimumStock: 10, Active: true})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
}

func TestCreateRejectsDuplicateSKU(t *testing.T) {
	svc := NewService(newStubRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, Product{SKU: "W-1", Name: "Widget"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, Product{SKU: "W-1", Name: "Other"})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestGetAndDelete(t *testing.T) {
	repo := newStubRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.Get(ctx, 0)
	require.ErrorIs(t, err, shared.ErrInvalidID)

	created, err := svc.Create(ctx, Product{SKU: "W-1", Name: "Widget"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, "W-1", got.SKU)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}
