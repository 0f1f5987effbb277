// Package scripting evaluates small JavaScript expressions for scripted
// filters such as the tone curve.
package scripting

import (
	"context"
)

// Engine represents a scripting engine.
type Engine interface {
	// Execute runs a script and exports its completion value.
	Execute(ctx context.Context, script string) (interface{}, error)

	// RegisterOptions exposes an option set to scripts as option(path).
	RegisterOptions(opts OptionReader) error

	// Curve samples an expression of v over [0,1].
	Curve(ctx context.Context, expr string, size int) ([]float64, error)
}

// OptionReader is the read side of an option set seen by scripts.
type OptionReader interface {
	FindDouble(path string, pos int) (float64, error)
	FindString(path string, pos int) (string, error)
}
