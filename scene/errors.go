package scene

import (
	"errors"
	"fmt"
)

// errUnknownHandle is returned by surface implementations when a handle does
// not belong to them or was already destroyed.
var errUnknownHandle = errors.New("unknown handle")

// ValidationError reports a malformed mutation input. The triggering call is
// rejected synchronously and state is left unchanged.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SurfaceOperationError reports a single failed rendering-surface call. These
// are isolated per entity: the failed entity is skipped and logged, the rest
// of the batch continues.
type SurfaceOperationError struct {
	Op       string
	EntityID string
	Err      error
}

func (e *SurfaceOperationError) Error() string {
	if e.EntityID != "" {
		return fmt.Sprintf("surface %s for %q: %v", e.Op, e.EntityID, e.Err)
	}
	return fmt.Sprintf("surface %s: %v", e.Op, e.Err)
}

func (e *SurfaceOperationError) Unwrap() error { return e.Err }

// PreconditionError reports an operation invoked on a torn-down component.
// The Controller swallows these (late effects from an unmounted view must not
// crash the process); surface implementations return them so the condition
// stays observable in logs and tests.
type PreconditionError struct {
	Op string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s called after disposal", e.Op)
}
