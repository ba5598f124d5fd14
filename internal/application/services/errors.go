package services

import (
	"errors"

	"github.com/AtRiskMedia/cartloop-go/internal/domain/tracking"
)

func isNotFound(err error) bool {
	return errors.Is(err, tracking.ErrNotFound)
}
