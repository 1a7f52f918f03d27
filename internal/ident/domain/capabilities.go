package domain

import (
	"context"
	"time"
)

// PasswordHasher hashes and verifies user passwords and client secrets.
type PasswordHasher interface {
	HashPassword(ctx context.Context, password string) (string, error)
	// VerifyPassword reports whether password matches hash. A malformed hash is
	// an error; a mismatch is (false, nil).
	VerifyPassword(ctx context.Context, password, hash string) (bool, error)
}

// Cipher is symmetric authenticated encryption for values kept at rest.
type Cipher interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
	Decrypt(ctx context.Context, ciphertext string) (string, error)
}

// Digester produces the deterministic one-way fingerprint used as a lookup key
// for tokens and codes.
type Digester interface {
	Digest(value string) string
}

// SecretGenerator produces random values.
type SecretGenerator interface {
	// Token returns an opaque URL-safe token with at least 128 bits of entropy.
	Token() (string, error)
	// Numeric returns a code of the given number of decimal digits.
	Numeric(digits int) (string, error)
}

// TOTP generates and validates time-based one-time passwords.
type TOTP interface {
	// NewSecret returns a fresh shared secret and its otpauth:// URI.
	NewSecret(accountName string) (secret, uri string, err error)
	// Validate checks code against secret at time at, accepting up to
	// maxTimeSteps steps of drift either side. It returns the time-step counter
	// that matched.
	Validate(code, secret string, at time.Time, maxTimeSteps int) (counter int64, ok bool)
}

// TokenRequest describes the token set to mint.
type TokenRequest struct {
	Subject          string
	Audience         string
	Scopes           []string
	Nonce            *string
	AuthTime         time.Time
	AdditionalClaims map[string]any
}

// IssuedTokens is a freshly minted token set. Values are raw and must never be
// persisted as-is.
type IssuedTokens struct {
	AccessToken      string
	RefreshToken     string
	IDToken          string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
	IDExpiresAt      time.Time
	Scopes           []string
}

// TokenIssuer mints signed token sets.
type TokenIssuer interface {
	Issue(ctx context.Context, req TokenRequest) (IssuedTokens, error)
}

// TokenVault bundles what aggregates need to persist issued tokens.
type TokenVault struct {
	Cipher Cipher
	Digest Digester
}
