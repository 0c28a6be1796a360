// Package apperrors implements the error taxonomy of spec.md §7: a closed
// set of Kind values that every component classifies errors into, a typed
// Error carrying structured detail, and a single central HTTP mapper so
// handlers never leak raw errors or stack traces to callers.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Kind is one of the closed taxonomy values from §7. It is a classification,
// not a Go type — every adapter and agent must map whatever it encounters
// onto one of these before returning.
type Kind string

const (
	KindValidation         Kind = "VALIDATION"
	KindAuth               Kind = "AUTH"
	KindQuota              Kind = "QUOTA"
	KindNotFound           Kind = "NOT_FOUND"
	KindConflict           Kind = "CONFLICT"
	KindTransient          Kind = "TRANSIENT"
	KindServiceUnavailable Kind = "SERVICE_UNAVAILABLE"
	KindDegradedOK         Kind = "DEGRADED_OK"
	KindInternal           Kind = "INTERNAL"
)

// Error is the typed error carried through the pipeline. Handlers map it to
// an HTTP response; background jobs persist Kind and Message verbatim into
// SearchRun.error_kind / error_message.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	ErrorID string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a classified error with a fresh error id.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, ErrorID: uuid.NewString()}
}

// Wrap classifies an existing error under kind, preserving it via Unwrap.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause, ErrorID: uuid.NewString()}
}

// WithDetails attaches structured per-field context (e.g. VALIDATION field
// errors) and returns the receiver for chaining.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Of extracts the classified *Error from err, or classifies it as INTERNAL
// if it was never tagged by a lower layer (§7: "anything else").
func Of(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Wrap(KindInternal, "unexpected error", err)
}

// IsRetryable reports whether C2 should retry this error kind (§4.2: retry
// policy inside CLOSED retries TRANSIENT only).
func IsRetryable(err error) bool {
	ae := Of(err)
	return ae != nil && ae.Kind == KindTransient
}

// HTTPStatus maps a Kind to the status code of §7's table.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindAuth:
		return http.StatusUnauthorized
	case KindQuota:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTransient, KindServiceUnavailable:
		return http.StatusServiceUnavailable
	case KindDegradedOK:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// Envelope is the §6 response envelope for error bodies.
type Envelope struct {
	Error     Kind           `json:"error"`
	ErrorID   string         `json:"error_id"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// ToEnvelope renders e as the §6 wire envelope.
func (e *Error) ToEnvelope() Envelope {
	return Envelope{
		Error:     e.Kind,
		ErrorID:   e.ErrorID,
		Message:   e.Message,
		Details:   e.Details,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
