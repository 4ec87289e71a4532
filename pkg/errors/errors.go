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
	// CodePartialMerge reports a cart merge that stopped on one of its items.
	// The merge transaction is rolled back, so the local cart must be kept for a retry.
	CodePartialMerge Code = "PARTIAL_MERGE"
)

// Metadata is how a code surfaces over HTTP. ExposeMessage lets the caller's
// message replace PublicMessage; DetailsAllowed lets details reach the client.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	ExposeMessage  bool
	DetailsAllowed bool
}

type flag uint8

const (
	retryable flag = 1 << iota
	exposeMessage
	exposeDetails
)

func describe(status int, public string, flags flag) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		Retryable:      flags&retryable != 0,
		ExposeMessage:  flags&exposeMessage != 0,
		DetailsAllowed: flags&exposeDetails != 0,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:   describe(http.StatusBadRequest, "validation failed", exposeMessage|exposeDetails),
	CodeUnauthorized: describe(http.StatusUnauthorized, "authentication required", exposeMessage),
	CodeForbidden:    describe(http.StatusForbidden, "access denied", exposeMessage),
	CodeNotFound:     describe(http.StatusNotFound, "resource not found", exposeMessage),
	CodeConflict:     describe(http.StatusConflict, "conflict detected", exposeMessage),
	CodeIdempotency:  describe(http.StatusConflict, "idempotency key reused", exposeMessage|exposeDetails),
	CodeRateLimit:    describe(http.StatusTooManyRequests, "rate limit exceeded", exposeMessage),
	CodeInternal:     describe(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:   describe(http.StatusServiceUnavailable, "dependency unavailable", retryable|exposeDetails),
	// the failed item index is the only detail a merge retry needs
	CodePartialMerge: describe(http.StatusServiceUnavailable, "cart merge failed", retryable|exposeMessage|exposeDetails),
}

// MetadataFor returns the transport metadata for code, falling back to CodeInternal.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is the typed failure returned by services and repositories.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches code and message to err. A nil err behaves like New.
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

// PublicMessage is the text a client may see for this error.
func (e *Error) PublicMessage() string {
	meta := MetadataFor(e.Code())
	if meta.ExposeMessage && e.Message() != "" {
		return e.message
	}
	return meta.PublicMessage
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return fmt.Sprintf("%s: %s", e.code, e.message)
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

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether the outermost typed error in err's chain carries code.
func IsCode(err error, code Code) bool {
	return As(err).codeOrEmpty() == code
}

// CodeOf returns the code of err, CodeInternal for untyped errors.
func CodeOf(err error) Code {
	return As(err).Code()
}

func (e *Error) codeOrEmpty() Code {
	if e == nil {
		return ""
	}
	return e.code
}
