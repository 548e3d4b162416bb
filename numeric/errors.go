package numeric

import "errors"

// Failures surfaced by the numeric domain, the layers, and the losses.  Callers
// match them with errors.Is; the core always wraps them with context.
var (
	ErrShapeMismatch        = errors.New("shape mismatch")
	ErrUnsupportedOperation = errors.New("unsupported operation for discrete representation")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrNumericInstability   = errors.New("numeric instability")
)
