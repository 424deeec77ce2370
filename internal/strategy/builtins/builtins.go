package builtins

import "schicchi/internal/strategy"

// RegisterAll registers every built-in strategy into r.
func RegisterAll(r *strategy.Registry) {
	r.Register(NameRSIPullback, NewRSIPullback)
	r.Register(NameSqueezeBreakout, NewSqueezeBreakout)
}
