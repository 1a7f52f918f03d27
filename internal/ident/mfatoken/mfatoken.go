// Package mfatoken holds the short-lived tokens that carry a login from a
// correct password to a completed MFA verification.
//
// Only the SHA-256 fingerprint of a token is used as the storage key, so a
// leaked cache dump cannot be replayed.
package mfatoken

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/ident/pkg/cryptox"
)

// DefaultMaxAttempts is how many failed verifications a token survives.
const DefaultMaxAttempts = 5

var (
	ErrNotFound  = errors.New("mfatoken: not found")
	ErrExhausted = errors.New("mfatoken: too many failed attempts")
)

// Session is what an MFA token stands for.
type Session struct {
	UserID       string
	CredentialID string
	Attempts     int
	ExpiresAt    time.Time
}

// Store issues and tracks MFA tokens. Implementations must be safe for
// concurrent use.
type Store interface {
	// Issue creates a token for s that expires after the store's TTL.
	Issue(ctx context.Context, s Session) (string, error)

	// Lookup returns the session behind token or ErrNotFound.
	Lookup(ctx context.Context, token string) (Session, error)

	// Fail records a failed verification. Once the attempts reach the
	// store's maximum the token is deleted and ErrExhausted returned.
	Fail(ctx context.Context, token string) (Session, error)

	// Delete consumes the token. Deleting an unknown token is not an error.
	Delete(ctx context.Context, token string) error
}

func newToken() (token, key string, err error) {
	token, err = cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", "", err
	}
	return token, keyFor(token), nil
}

func keyFor(token string) string {
	return "mfa:" + cryptox.FingerprintToken(token)
}
