// Package apperrors holds the error taxonomy shared by the server, the store
// and the API client.
package apperrors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUserNotFound is returned when no user matches the requested id.
var ErrUserNotFound = errors.New("user not found")

// ValidationError reports malformed input, keyed by field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ConflictError reports that one or more unique fields already belong to
// another user.
type ConflictError struct {
	Fields []string
}

func (e *ConflictError) Error() string {
	if len(e.Fields) == 0 {
		return "Duplicate value for: unique field"
	}
	return "Duplicate value for: " + strings.Join(e.Fields, ", ")
}

// TransportError is a network, server-side or decoding failure seen by the
// API client. It is always worth retrying.
type TransportError struct {
	Status  int
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("request failed (%d): %s", e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("request failed (%d)", e.Status)
	case e.Err != nil:
		return "request failed: " + e.Err.Error()
	default:
		return "request failed"
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsCanceled reports whether err is the result of a superseded or abandoned
// request.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// NewValidation is a shorthand for a single-field ValidationError.
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}
