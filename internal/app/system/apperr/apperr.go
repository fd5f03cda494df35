// Package apperr defines the error kinds surfaced by the opportunity stores
// and how each maps onto an HTTP status.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
)

// Kind classifies a failure.
type Kind int

const (
	// Internal is the zero value: an unexpected failure with no better class.
	Internal Kind = iota
	Validation
	NotFound
	DuplicateSave
	TransientStoreFailure
	Unauthorized
	Forbidden
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case DuplicateSave:
		return "duplicate_save"
	case TransientStoreFailure:
		return "transient_store_failure"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	}
	return "internal"
}

// FieldError names one violated field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the error type returned by stores and auth middleware.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError // set for Validation
	Err     error
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		if e.Err != nil && e.Message == "" {
			return e.Err.Error()
		}
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

func (e *Error) Unwrap() error { return e.Err }

// NewNotFound returns a NotFound error with msg.
func NewNotFound(msg string) *Error {
	return &Error{Kind: NotFound, Message: msg}
}

// NewDuplicateSave returns the error for a second save of the same pair.
func NewDuplicateSave() *Error {
	return &Error{Kind: DuplicateSave, Message: "Opportunity already saved."}
}

// NewUnauthorized returns an Unauthorized error with msg.
func NewUnauthorized(msg string) *Error {
	return &Error{Kind: Unauthorized, Message: msg}
}

// NewForbidden returns a Forbidden error with msg.
func NewForbidden(msg string) *Error {
	return &Error{Kind: Forbidden, Message: msg}
}

// Invalid builds a Validation error for a single field.
func Invalid(field, msg string) *Error {
	return &Error{Kind: Validation, Message: "validation failed", Fields: []FieldError{{Field: field, Message: msg}}}
}

// FieldErrors accumulates validation problems so callers can report every
// violated field at once instead of stopping at the first.
type FieldErrors []FieldError

// Add records a violation on field.
func (fe *FieldErrors) Add(field, format string, args ...any) {
	*fe = append(*fe, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Err returns nil when nothing was recorded, otherwise a Validation *Error.
func (fe FieldErrors) Err() error {
	if len(fe) == 0 {
		return nil
	}
	return &Error{Kind: Validation, Message: "validation failed", Fields: fe}
}

// Store wraps a driver error. Deadline, cancellation and network failures
// become TransientStoreFailure; everything else stays Internal.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	kind := Internal
	if IsTransient(err) {
		kind = TransientStoreFailure
	}
	return &Error{Kind: kind, Message: op + " failed", Err: fmt.Errorf("%s: %w", op, err)}
}

// IsTransient reports whether err is worth retrying by the caller.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return true
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorLabel("RetryableWriteError") || se.HasErrorLabel("TransientTransactionError")
	}
	return false
}

// KindOf returns the Kind of err, or Internal when err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// Is reports whether err carries kind k.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// HTTPStatus maps err to its response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case Validation, DuplicateSave:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// PublicMessage is the text safe to show a client. Internal and transient
// failures do not leak driver detail.
func PublicMessage(err error) string {
	var ae *Error
	if !errors.As(err, &ae) {
		return "Server error."
	}
	switch ae.Kind {
	case Internal:
		return "Server error."
	case TransientStoreFailure:
		return "The data store is temporarily unavailable; please retry."
	}
	return ae.Error()
}
