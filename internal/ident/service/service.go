// Package service orchestrates the domain aggregates: it loads them from the
// store, invokes their operations inside a transaction, persists the result
// and records audit events and notifications once the transaction commits.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/internal/ident/notify"
	"github.com/aussiebroadwan/ident/internal/ident/store"
)

// OAuth2 protocol errors. Token endpoint handlers map them onto RFC 6749
// error codes; everything else is reported through domain error kinds.
var (
	ErrInvalidClient        = errors.New("invalid_client")
	ErrInvalidGrant         = errors.New("invalid_grant")
	ErrUnsupportedGrantType = errors.New("unsupported_grant_type")
	ErrInvalidScope         = errors.New("invalid_scope")
	ErrInvalidRequest       = errors.New("invalid_request")
)

// Notifier delivers the out-of-band messages the services produce.
// notify.Dispatcher satisfies it.
type Notifier interface {
	Verification(ctx context.Context, to, token string) error
	PasswordReset(ctx context.Context, to, token string) error
	MfaCode(ctx context.Context, channel notify.Channel, to, code string) error
}

var _ Notifier = (*notify.Dispatcher)(nil)

// Clock returns the current time. A nil Clock is time.Now.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}

// protocolError attaches a human readable description to one of the OAuth2
// sentinels above. errors.Is still matches the sentinel.
type protocolError struct {
	code        error
	description string
}

func (e *protocolError) Error() string {
	if e.description == "" {
		return e.code.Error()
	}
	return e.code.Error() + ": " + e.description
}

func (e *protocolError) Unwrap() error { return e.code }

// Description returns the error_description for err, if it carries one.
func Description(err error) string {
	var pe *protocolError
	if errors.As(err, &pe) {
		return pe.description
	}
	return ""
}

func protocolErr(code error, description string) error {
	return &protocolError{code: code, description: description}
}

// orNotFound replaces a store miss with e and passes other failures through.
func orNotFound(err error, e *domain.Error) error {
	if errors.Is(err, store.ErrNotFound) {
		return e
	}
	return err
}

func ptr[T any](v T) *T { return &v }

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
