// Package strategy defines the Strategy interface for signal-generating
// trading strategies and provides a Registry for managing multiple strategy
// implementations.
package strategy

import (
	"fmt"
	"sort"

	"schicchi/internal/domain"
)

// Action is the discrete per-bar decision emitted by a strategy.
type Action int

const (
	// ActionNone leaves any open position untouched.
	ActionNone Action = iota
	// ActionEnterLong opens a long position at the bar close.
	ActionEnterLong
	// ActionExit closes an open position at the bar close.
	ActionExit
)

// Signal is one per-bar strategy decision. StopLoss and TakeProfit are only
// meaningful when Action is ActionEnterLong.
type Signal struct {
	Action     Action
	StopLoss   float64
	TakeProfit float64
}

// Strategy is the interface all trading strategies implement. Generate
// computes signals for the entire bar series in one batch pass, so rolling
// windows and indicator warm-up line up bar-for-bar with the input.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// Generate returns one Signal per input bar. It returns
	// domain.ErrNoData for an empty series and domain.ErrUnordered when
	// timestamps are not strictly increasing.
	Generate(bars []domain.Bar) ([]Signal, error)
}

// Factory constructs a strategy from a flat parameter map, applying
// documented defaults for absent keys. It returns an error wrapping
// domain.ErrBadParameter when a supplied value is invalid.
type Factory func(params Params) (Strategy, error)

// Registry holds named strategy factories for lookup and enumeration.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a strategy factory to the registry under the given name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// New constructs a strategy by name with the given parameters.
func (r *Registry) New(name string, params Params) (Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
	return f(params)
}

// Get retrieves a factory by name. The second return value indicates
// whether the strategy was found.
func (r *Registry) Get(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
