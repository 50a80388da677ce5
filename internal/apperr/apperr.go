// Package apperr defines the service error taxonomy with stable wire codes.
//
// Every error that can reach an API response carries a Kind (the failure
// class, which determines the HTTP status) and a Code (the stable string
// clients match on, e.g. INVALID_DOC_ID).
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind int

const (
	// InvalidInput covers malformed or out-of-range request fields. Never retried.
	InvalidInput Kind = iota
	// FileTooLarge is a decoded payload over the configured limit.
	FileTooLarge
	// ExtractionError is a failure of the PDF/text extraction collaborator.
	ExtractionError
	// EmbeddingError is a remote embedding failure after retries, or a
	// dimensional/value validation failure on returned vectors.
	EmbeddingError
	// InvalidPoint is a vector-store point that failed pre-send validation.
	InvalidPoint
	// StorageError is a vector store read/write failure.
	StorageError
	// GenerationError is an LLM call failure after retries.
	GenerationError
	// DocumentExists is an ingest conflict when overwrite is false.
	DocumentExists
)

// Error is a classified error with a stable wire code.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error with no cause.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Newf returns a classified error with a formatted message.
func Newf(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a classified error wrapping a cause.
func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// From extracts the classified error from err's chain, if any.
func From(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err's chain contains a classified error of the given kind.
func IsKind(err error, kind Kind) bool {
	e, ok := From(err)
	return ok && e.Kind == kind
}

// CodeOf returns the wire code for err, or INTERNAL_ERROR for unclassified errors.
func CodeOf(err error) string {
	if e, ok := From(err); ok {
		return e.Code
	}
	return "INTERNAL_ERROR"
}

// HTTPStatus maps err to an HTTP status. Validation and conflict errors are the
// caller's fault (400), oversized payloads are 413, everything else is 500.
func HTTPStatus(err error) int {
	e, ok := From(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case InvalidInput, DocumentExists, ExtractionError:
		return http.StatusBadRequest
	case FileTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
