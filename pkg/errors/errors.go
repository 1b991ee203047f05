// Package errors defines the coded error type shared by services and the HTTP
// layer. A Code decides the response status, whether clients may retry, and
// whether details are safe to expose.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeIdempotency  Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit    Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"

	// Order lifecycle kinds.
	CodeInvalidState              Code = "INVALID_STATE"
	CodeInvalidOperation          Code = "INVALID_OPERATION"
	CodeInvalidTransition         Code = "INVALID_TRANSITION"
	CodePaymentVerificationFailed Code = "PAYMENT_VERIFICATION_FAILED"
	CodeUpstreamFailure           Code = "UPSTREAM_FAILURE"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const (
	terminal  = false
	retryable = true
	hidden    = false
	exposed   = true
)

var registry = map[Code]Metadata{
	CodeValidation:                {http.StatusBadRequest, terminal, "validation failed", exposed},
	CodeUnauthorized:              {http.StatusUnauthorized, terminal, "authentication required", hidden},
	CodeForbidden:                 {http.StatusForbidden, terminal, "access denied", hidden},
	CodeNotFound:                  {http.StatusNotFound, terminal, "resource not found", hidden},
	CodeConflict:                  {http.StatusConflict, terminal, "conflict detected", hidden},
	CodeIdempotency:               {http.StatusConflict, terminal, "idempotency key reused", exposed},
	CodeRateLimit:                 {http.StatusTooManyRequests, terminal, "rate limit exceeded", hidden},
	CodeInternal:                  {http.StatusInternalServerError, retryable, "internal server error", hidden},
	CodeDependency:                {http.StatusServiceUnavailable, retryable, "dependency unavailable", exposed},
	CodeInvalidState:              {http.StatusConflict, terminal, "resource is not in a valid state for this request", exposed},
	CodeInvalidOperation:          {http.StatusUnprocessableEntity, terminal, "operation not permitted", exposed},
	CodeInvalidTransition:         {http.StatusUnprocessableEntity, terminal, "state transition disallowed", exposed},
	CodePaymentVerificationFailed: {http.StatusPaymentRequired, terminal, "payment verification failed", hidden},
	CodeUpstreamFailure:           {http.StatusBadGateway, retryable, "payment gateway unavailable", hidden},
}

// ClientFault reports whether the caller caused the failure. Only then is the
// error's own message safe to return.
func (m Metadata) ClientFault() bool {
	return m.HTTPStatus < http.StatusInternalServerError
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if meta, ok := registry[code]; ok {
		return meta
	}
	return registry[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap keeps err as the cause. A nil err yields the same value as New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return string(e.code) + ": " + e.message
	default:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches any *Error with the same code, so sentinel values built with New
// work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && e.code == t.code
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf reports the code of the outermost *Error, or CodeInternal.
func CodeOf(err error) Code {
	return As(err).Code()
}

// IsCode reports whether the outermost *Error in err's chain has code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}
