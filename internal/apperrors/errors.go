package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrNoRate indicates that no conversion rate could be resolved for a day and currency pair.
// Resolution itself reports an absent rate; this sentinel is used by outer layers (HTTP, sweeps).
var ErrNoRate = errors.New("no conversion rate resolvable")

// ErrFeedFetch indicates a transport, status or parse failure of an external rate feed.
// Loaders recover from it locally and never return it to the resolution caller.
var ErrFeedFetch = errors.New("rate feed fetch failed")

// ErrIndexTimeout indicates that the indexed store could not publish an index update
// within its wall-clock bound. It is an invariant violation and must not be recovered.
var ErrIndexTimeout = errors.New("index update timed out")

// ErrIllegalConcurrentState indicates that a row was indexed but never became visible
// in the primary table within the timeout window.
var ErrIllegalConcurrentState = errors.New("illegal concurrent state")

// AppError carries an HTTP-ish status code together with a wrapped cause.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates an AppError wrapping err.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NewNotFoundError creates an AppError that matches ErrNotFound.
func NewNotFoundError(message string) *AppError {
	return &AppError{Code: http.StatusNotFound, Message: message, Err: ErrNotFound}
}

// NewValidationError creates an AppError that matches ErrValidation.
func NewValidationError(message string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Message: message, Err: ErrValidation}
}

// IsFatal reports whether err signals a broken store invariant.
func IsFatal(err error) bool {
	return errors.Is(err, ErrIndexTimeout) || errors.Is(err, ErrIllegalConcurrentState)
}
