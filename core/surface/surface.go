// Package surface defines the interactive surface the agent observes and
// acts on.
package surface

import (
	"context"
	"errors"
)

const (
	// IdentifierAttribute tags interactive elements with the identifier the
	// agent uses to refer to them.
	IdentifierAttribute = "data-ema-id"
	// InteractiveSelector matches the elements that receive identifiers, in
	// document order.
	InteractiveSelector = "a[href], button, input, select, textarea, summary, [role=button], [role=link], [role=checkbox], [role=tab], [contenteditable=true], [onclick]"
)

// ErrNoSurface is returned when an operation needs a live surface and none
// was configured.
var ErrNoSurface = errors.New("no interactive surface configured")

// Surface is a live, scriptable document.
type Surface interface {
	// HTML returns the current markup of the document.
	HTML(ctx context.Context) (string, error)
	// Text returns the rendered text of the document without markup. It is
	// used as an uncompressed fallback capture.
	Text(ctx context.Context) (string, error)
	// Evaluate runs script against the document and returns the value it
	// produced. A script that throws is reported as an error.
	Evaluate(ctx context.Context, script string) (any, error)
}

// EvaluationError reports a failure raised by a script inside the surface.
type EvaluationError struct {
	Message string
}

func (e *EvaluationError) Error() string {
	return "script evaluation failed: " + e.Message
}
