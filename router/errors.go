package router

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for the failure kinds the service recovers from or rejects
// outright. Wrapped errors are matched with errors.Is.
var (
	// ErrModelUnavailable signals that the primary classifier is disabled
	// or its weights cannot be used. Recovered internally by degrading the
	// affected chunk to the fallback classifier.
	ErrModelUnavailable = errors.New("primary intent model unavailable")

	// ErrTimeout signals that the whole-call latency budget was exceeded.
	// At a chunk boundary it aborts the call; from inside the primary
	// classifier it degrades the chunk to the fallback classifier.
	ErrTimeout = errors.New("routing exceeded latency budget")

	// ErrMemoryBudget signals that a batch failed the pre-flight admission
	// check. No classification work happens for the rejected call.
	ErrMemoryBudget = errors.New("batch exceeds memory budget")
)

// ContentViolationError is a policy rejection from the primary classifier's
// guardrail. It is never treated as an availability failure: the service
// propagates it and aborts the whole call.
type ContentViolationError struct {
	Matched string
}

func (e *ContentViolationError) Error() string {
	return fmt.Sprintf("content violation: prompt matched guardrail pattern %q", e.Matched)
}

// SchemaError reports the first unmet requirement of the output contract.
// It is terminal: the call aborts and no output is returned.
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("router output schema violation: %s %s", e.Field, e.Reason)
}

// TypeMismatchError reports a batch element of an unsupported shape,
// surfaced during normalization before any routing work.
type TypeMismatchError struct {
	Index int
	Value any
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("unsupported routing payload type %T at index %d", e.Value, e.Index)
}

// recoverable reports whether a classification failure may be degraded to
// the fallback classifier. Only unavailability and timeout qualify; every
// other kind, content violations included, propagates to the caller.
func recoverable(err error) bool {
	return errors.Is(err, ErrModelUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}
