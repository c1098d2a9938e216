package locations

import (
	"fmt"
	"strings"

	"github.com/stocktrail/stocktrail/internal/masterdata/shared"
)

func (s *Service) validate(l Location) error {
	if strings.TrimSpace(l.Code) == "" {
		return fmt.Errorf("%w: code", shared.ErrRequiredField)
	}
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("%w: name", shared.ErrRequiredField)
	}
	return nil
}
