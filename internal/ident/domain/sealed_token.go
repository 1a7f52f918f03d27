package domain

import (
	"context"
	"crypto/subtle"
	"fmt"
	"slices"
	"strings"
	"time"
)

// SealedToken is the at-rest form of a token: its ciphertext, the digest used
// to look it up, and its expiry.
type SealedToken struct {
	Ciphertext string
	Digest     string
	ExpiresAt  time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t *SealedToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Matches compares the digest of raw with the stored digest in constant time.
func (t *SealedToken) Matches(d Digester, raw string) bool {
	if t == nil || raw == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(d.Digest(raw)), []byte(t.Digest)) == 1
}

// Seal encrypts and digests raw.
func (v TokenVault) Seal(ctx context.Context, raw string, expiresAt time.Time) (*SealedToken, error) {
	ct, err := v.Cipher.Encrypt(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("encrypt token: %w", err)
	}
	return &SealedToken{Ciphertext: ct, Digest: v.Digest.Digest(raw), ExpiresAt: expiresAt}, nil
}

// Open decrypts a sealed token.
func (v TokenVault) Open(ctx context.Context, t *SealedToken) (string, error) {
	if t == nil {
		return "", nil
	}
	return v.Cipher.Decrypt(ctx, t.Ciphertext)
}

// sealAll seals the three tokens of an issued set.
func (v TokenVault) sealAll(ctx context.Context, set IssuedTokens) (access, refresh, id *SealedToken, err error) {
	if access, err = v.Seal(ctx, set.AccessToken, set.AccessExpiresAt); err != nil {
		return nil, nil, nil, err
	}
	if refresh, err = v.Seal(ctx, set.RefreshToken, set.RefreshExpiresAt); err != nil {
		return nil, nil, nil, err
	}
	if id, err = v.Seal(ctx, set.IDToken, set.IDExpiresAt); err != nil {
		return nil, nil, nil, err
	}
	return access, refresh, id, nil
}

// ParseScopes splits a space-delimited scope string, dropping empties and
// duplicates while keeping order.
func ParseScopes(s string) []string {
	var out []string
	for _, f := range strings.Fields(s) {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// FormatScopes joins scopes with single spaces.
func FormatScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

// ScopesSubset reports whether every scope in want is in have.
func ScopesSubset(want, have []string) bool {
	for _, s := range want {
		if !slices.Contains(have, s) {
			return false
		}
	}
	return true
}
