package mutation

import (
	"errors"
	"fmt"
)

// ErrSubmissionInFlight indicates Submit was called while a previous
// intent was still Submitting. The in-flight request is unaffected.
var ErrSubmissionInFlight = errors.New("a submission is already in flight")

// ValidationError is a local, pre-submission failure. It is always
// recoverable by correcting input and is never sent to the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InsufficientStockError blocks Remove and Sell submissions whose quantity
// exceeds the cached stock level. It is a specialization of ValidationError
// for errors.Is/As purposes.
type InsufficientStockError struct {
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("requested %d exceeds available stock %d", e.Requested, e.Available)
}

// As lets errors.As treat an InsufficientStockError as a ValidationError.
func (e *InsufficientStockError) As(target any) bool {
	if ve, ok := target.(**ValidationError); ok {
		*ve = &ValidationError{Field: "quantity", Reason: e.Error()}
		return true
	}
	return false
}

// RemoteError means the service explicitly rejected the mutation or the
// transport failed. It is never retried automatically; the operator must
// trigger a fresh submission.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("inventory service rejected mutation: %s", e.Message)
}

// AmbiguousError means the failure text matched a pattern known to fire
// after the write landed, so the mutation may have completed despite the
// error. The stock line is scheduled for a read-refresh rather than the
// outcome being asserted either way.
type AmbiguousError struct {
	Message string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("mutation outcome uncertain, refresh scheduled: %s", e.Message)
}
