package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error leaving the domain or service layer matches exactly
// one of these via errors.Is; anything unclassified is treated as ErrUnexpected.
var (
	ErrValidation            = errors.New("validation")
	ErrNotAuthenticated      = errors.New("not_authenticated")
	ErrEntityNotFound        = errors.New("entity_not_found")
	ErrEntityLocked          = errors.New("entity_locked")
	ErrPreconditionViolation = errors.New("precondition_violation")
	ErrForbiddenAccess       = errors.New("forbidden_access")
	ErrUnexpected            = errors.New("unexpected")
)

var kinds = []error{
	ErrValidation,
	ErrNotAuthenticated,
	ErrEntityNotFound,
	ErrEntityLocked,
	ErrPreconditionViolation,
	ErrForbiddenAccess,
	ErrUnexpected,
}

// Error is a classified failure. Data carries structured values the caller is
// allowed to see (for example the mfa_token of an MFA-required failure).
type Error struct {
	Kind   error
	Reason string
	Data   map[string]string
	cause  error
}

// NewError returns an error of the given kind.
func NewError(kind error, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// Errorf is NewError with a formatted reason.
func Errorf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Because records the underlying cause.
func (e *Error) Because(cause error) *Error {
	e.cause = cause
	return e
}

// WithData attaches a caller-visible value.
func (e *Error) WithData(key, value string) *Error {
	if e.Data == nil {
		e.Data = make(map[string]string, 1)
	}
	e.Data[key] = value
	return e
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.cause}
}

// KindOf classifies err. Errors that match no kind are ErrUnexpected.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrUnexpected
}

// ReasonOf returns the reason of the outermost *Error in err's chain.
func ReasonOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}

// DataOf returns the data of the outermost *Error in err's chain, or nil.
func DataOf(err error) map[string]string {
	var de *Error
	if errors.As(err, &de) {
		return de.Data
	}
	return nil
}

func validationError(reason string) *Error { return NewError(ErrValidation, reason) }
func notAuthenticatedError(reason string) *Error { return NewError(ErrNotAuthenticated, reason) }
func notFoundError(reason string) *Error { return NewError(ErrEntityNotFound, reason) }
func lockedError(reason string) *Error { return NewError(ErrEntityLocked, reason) }
func preconditionError(reason string) *Error { return NewError(ErrPreconditionViolation, reason) }
func forbiddenError(reason string) *Error { return NewError(ErrForbiddenAccess, reason) }
