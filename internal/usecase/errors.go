package usecase

import (
	"errors"
	"fmt"
)

const (
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidArgument    = "INVALID_ARGUMENT"
	CodeTransactionAborted = "TRANSACTION_ABORTED"
	CodeUnavailable        = "UNAVAILABLE"
)

// DomainError is a business failure detected before any mutation.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// TechnicalError is an infrastructure failure: storage down or a transaction
// that had to be rolled back.
type TechnicalError struct {
	Code    string
	Message string
	Err     error
}

func (e *TechnicalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *TechnicalError) Unwrap() error {
	return e.Err
}

func IsTechnicalError(err error) bool {
	var te *TechnicalError
	return errors.As(err, &te)
}

// ErrorCode returns the taxonomy code carried by err, or "" for unclassified
// errors.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	var te *TechnicalError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

func invalidArgument(format string, args ...any) error {
	return &DomainError{Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func notFound(err error, format string, args ...any) error {
	return &DomainError{Code: CodeNotFound, Message: fmt.Sprintf(format, args...), Err: err}
}

func forbidden(leadID int64) error {
	return &DomainError{Code: CodeForbidden, Message: fmt.Sprintf("lead %d is outside the caller's scope", leadID)}
}

func unavailable(err error) error {
	return &TechnicalError{Code: CodeUnavailable, Message: "storage unavailable", Err: err}
}

func aborted(err error) error {
	return &TechnicalError{Code: CodeTransactionAborted, Message: "transaction rolled back", Err: err}
}
