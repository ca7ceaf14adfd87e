// Package apperr defines the error taxonomy shared by the capture, ingestion
// and flashcard pipelines.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	// ErrAmbiguousResponse is returned when a backend payload claims success
	// but lacks the identifier that success requires.
	ErrAmbiguousResponse = errors.New("ambiguous backend response")
)

// ValidationError rejects a capture or request locally; no network call was made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// TransportError covers connectivity failures, unexpected status codes and
// undecodable bodies.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a well-formed backend response that signals a logical failure.
type APIError struct {
	Message string
}

func (e *APIError) Error() string { return e.Message }

// AuthError means no authenticated user was available at call time.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return "user not authenticated"
	}
	return "user not authenticated: " + e.Reason
}

// ConflictError reports a name clash detected on the client (for example a
// flashcard set title that already exists).
type ConflictError struct {
	Name string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("a set named %q already exists", e.Name)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// Validation builds a ValidationError.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var t *TransportError
	return errors.As(err, &t)
}

// IsAPI reports whether err is an APIError.
func IsAPI(err error) bool {
	var a *APIError
	return errors.As(err, &a)
}

// IsAuth reports whether err is an AuthError.
func IsAuth(err error) bool {
	var a *AuthError
	return errors.As(err, &a)
}
