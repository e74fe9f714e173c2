package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the core can surface to a client.
type ErrorKind string

const (
	KindAuthentication   ErrorKind = "authentication_error"
	KindAccessDenied     ErrorKind = "access_denied"
	KindNotFound         ErrorKind = "not_found"
	KindAlreadyExists    ErrorKind = "already_exists"
	KindValidation       ErrorKind = "validation_error"
	KindTransientStorage ErrorKind = "transient_storage_error"
	KindFatal            ErrorKind = "fatal"
)

// Error is the taxonomy error carried back to the originating connection.
// Only Kind and Detail ever reach the wire; the wrapped cause stays in logs.
type Error struct {
	Kind   ErrorKind
	Detail string
	cause  error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.cause }

func NewError(kind ErrorKind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func WrapError(kind ErrorKind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, cause: cause}
}

func ErrAuthentication(detail string) *Error { return NewError(KindAuthentication, detail) }
func ErrAccessDenied(detail string) *Error   { return NewError(KindAccessDenied, detail) }
func ErrNotFound(detail string) *Error       { return NewError(KindNotFound, detail) }
func ErrAlreadyExists(detail string) *Error  { return NewError(KindAlreadyExists, detail) }
func ErrValidation(detail string) *Error     { return NewError(KindValidation, detail) }

func ErrTransientStorage(detail string, cause error) *Error {
	return WrapError(KindTransientStorage, detail, cause)
}

// KindOf extracts the taxonomy kind from any error chain.
// Unknown errors are treated as invariant violations.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFatal
}

// IsKind reports whether err carries the given taxonomy kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
