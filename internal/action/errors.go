// Package action holds the error kinds and response envelopes shared by every
// HTTP action. Errors raised anywhere below a handler are classified here and
// converted into the uniform {success, error} shape or a degraded page.
package action

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUnauthorized        = errors.New("Unauthorized: sign in to continue")
	ErrValidation          = errors.New("validation failed")
	ErrNotFoundOrForbidden = errors.New("not found or access denied")
	ErrStore               = errors.New("store error")
	ErrRenderUnavailable   = errors.New("render unavailable")
	ErrInvalidInput        = errors.New("invalid input")
)

// FieldError is one failed constraint of a payload.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field that failed, in input order.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Merge copies the fields of other under prefix, e.g. "[2]." + "definition".
func (e *ValidationError) Merge(prefix string, other *ValidationError) {
	if other == nil {
		return
	}
	for _, f := range other.Fields {
		e.Fields = append(e.Fields, FieldError{Field: prefix + f.Field, Message: f.Message})
	}
}

// Err returns nil when nothing failed so callers can `return v.Err()`.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Validation builds a single-field ValidationError.
func Validation(field, format string, args ...any) error {
	v := &ValidationError{}
	v.Add(field, format, args...)
	return v
}

type notFoundError struct{ entity string }

func (e notFoundError) Error() string { return e.entity + " not found or access denied" }
func (e notFoundError) Is(target error) bool { return target == ErrNotFoundOrForbidden }

// NotFoundOrForbidden hides whether the target is missing or owned by someone else.
func NotFoundOrForbidden(entity string) error { return notFoundError{entity: entity} }

type storeError struct{ err error }

func (e storeError) Error() string { return e.err.Error() }
func (e storeError) Unwrap() error { return e.err }
func (e storeError) Is(target error) bool { return target == ErrStore }

// StoreError marks err as a persistence failure; its message is passed through.
func StoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStore) {
		return err
	}
	return storeError{err: err}
}

// Status maps an error kind to the HTTP status an action responds with.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFoundOrForbidden):
		return http.StatusNotFound
	case errors.Is(err, ErrRenderUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
