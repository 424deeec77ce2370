package builtins

import (
	"fmt"

	"schicchi/internal/domain"
)

func requirePeriods(periods ...int) error {
	for _, p := range periods {
		if p < 1 {
			return fmt.Errorf("%w: period must be >= 1, got %d", domain.ErrBadParameter, p)
		}
	}
	return nil
}

func requirePositive(key string, v float64) error {
	if v <= 0 {
		return fmt.Errorf("%w: %s must be > 0, got %v", domain.ErrBadParameter, key, v)
	}
	return nil
}
