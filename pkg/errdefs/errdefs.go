package errdefs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for HTTP mapping and retry decisions.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalid
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindTooLarge
	KindRateLimited
	KindInternal
)

// Stable wire codes returned in error bodies.
const (
	CodeInvalidRequest         = "INVALID_REQUEST"
	CodeInvalidEvent           = "INVALID_EVENT"
	CodeInvalidInput           = "INVALID_INPUT"
	CodeInvalidDate            = "INVALID_DATE"
	CodeInvalidCallback        = "INVALID_CALLBACK"
	CodeTenantNotFound         = "TENANT_NOT_FOUND"
	CodeNamespaceNotFound      = "NAMESPACE_NOT_FOUND"
	CodeTopicNotFound          = "TOPIC_NOT_FOUND"
	CodeConsumerNotFound       = "CONSUMER_NOT_FOUND"
	CodeUserNotFound           = "USER_NOT_FOUND"
	CodeApiKeyNotFound         = "API_KEY_NOT_FOUND"
	CodeTenantExists           = "TENANT_EXISTS"
	CodeNamespaceExists        = "NAMESPACE_EXISTS"
	CodeTopicExists            = "TOPIC_ALREADY_EXISTS"
	CodeUserExists             = "USER_EXISTS"
	CodeApiKeyAlreadyRevoked   = "API_KEY_ALREADY_REVOKED"
	CodeSchemaRemoval          = "SCHEMA_REMOVAL_NOT_ALLOWED"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodePermissionDenied       = "PERMISSION_DENIED"
	CodeSchemaValidation       = "SCHEMA_VALIDATION"
	CodeSchemaNotFound         = "SCHEMA_NOT_FOUND"
	CodeEventPublishFailed     = "EVENT_PUBLISH_FAILED"
	CodePayloadTooLarge        = "PAYLOAD_TOO_LARGE"
	CodeRateLimited            = "RATE_LIMITED"
	CodeIOError                = "IO_ERROR"
	CodeInternal               = "INTERNAL_ERROR"
)

// Error is a typed failure carrying a kind, a stable code, and a message.
// Core services return *Error values; the HTTP layer maps them to statuses.
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a typed error.
func New(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds a typed error around an underlying cause.
func Wrap(err error, kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Convenience constructors for the common kinds.

func Invalid(code, format string, args ...any) *Error {
	return New(KindInvalid, code, format, args...)
}

func NotFound(code, format string, args ...any) *Error {
	return New(KindNotFound, code, format, args...)
}

func Conflict(code, format string, args ...any) *Error {
	return New(KindConflict, code, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return New(KindUnauthorized, CodeUnauthorized, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, CodePermissionDenied, format, args...)
}

func Internal(err error, format string, args ...any) *Error {
	return Wrap(err, KindInternal, CodeInternal, format, args...)
}

func IO(err error, format string, args ...any) *Error {
	return Wrap(err, KindInternal, CodeIOError, format, args...)
}

// KindOf extracts the kind from an error chain, KindUnknown if untyped.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// CodeOf extracts the wire code from an error chain, CodeInternal if untyped.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsCode reports whether the error chain carries the given wire code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}
