package products

import (
	"fmt"
	"strings"

	"github.com/stocktrail/stocktrail/internal/masterdata/shared"
)

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.SKU) == "" {
		return fmt.Errorf("%w: sku", shared.ErrRequiredField)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name", shared.ErrRequiredField)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", shared.ErrValidation)
	}
	if p.MinimumStock < 0 {
		return fmt.Errorf("%w: minimum_stock must not be negative", shared.ErrValidation)
	}
	return nil
}
