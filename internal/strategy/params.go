package strategy

import (
	"fmt"

	"schicchi/internal/domain"
)

// Params is a flat key → value strategy configuration. Every strategy
// documents its keys; absent keys fall back to documented defaults.
type Params map[string]float64

// Get returns the value for key, or def when the key is absent.
func (p Params) Get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// GetInt returns the value for key as an int, or def when absent. Values
// with a fractional part are invalid for integer parameters.
func (p Params) GetInt(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	n := int(v)
	if float64(n) != v {
		return 0, fmt.Errorf("%w: %s=%v is not an integer", domain.ErrBadParameter, key, v)
	}
	return n, nil
}
