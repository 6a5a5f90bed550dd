package pipeline

import (
	"errors"
	"fmt"
)

// ErrEmptyFrame is returned when the pipeline is given a frame with no rows.
var ErrEmptyFrame = errors.New("pipeline: input frame is empty")

// StructuralDiscoveryError is fatal: without a usable date column and amount
// representation no further processing is meaningful.
type StructuralDiscoveryError struct {
	Reason string
	Err    error
}

func (e *StructuralDiscoveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("structural discovery failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("structural discovery failed: %s", e.Reason)
}

func (e *StructuralDiscoveryError) Unwrap() error { return e.Err }

// SchemaViolationError is fatal: the aggregate pipeline output cannot
// satisfy the storage contract. Raised before any persistence attempt.
type SchemaViolationError struct {
	Field  string
	Reason string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("schema violation on %q: %s", e.Field, e.Reason)
}
