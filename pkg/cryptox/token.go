package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
)

// Token size constants (in bytes before encoding).
const (
	// TokenSize128 provides 128 bits of entropy (22 chars base64url).
	TokenSize128 = 16
	// TokenSize256 provides 256 bits of entropy (43 chars base64url).
	TokenSize256 = 32
)

// GenerateToken returns size random bytes encoded as base64url without padding.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// FingerprintToken returns the base64url SHA-256 of token (43 chars). It is the
// lookup key for every token and code kept at rest.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// SHA256Digester digests with FingerprintToken.
type SHA256Digester struct{}

func (SHA256Digester) Digest(value string) string { return FingerprintToken(value) }

// RandomSecrets draws tokens and numeric codes from crypto/rand.
type RandomSecrets struct {
	// Size is the token length in bytes; zero means TokenSize256.
	Size int
}

func (r RandomSecrets) Token() (string, error) {
	size := r.Size
	if size == 0 {
		size = TokenSize256
	}
	return GenerateToken(size)
}

// Numeric returns a uniformly random code of exactly digits decimal digits,
// keeping leading zeros.
func (RandomSecrets) Numeric(digits int) (string, error) {
	if digits <= 0 || digits > 18 {
		return "", fmt.Errorf("numeric code length must be 1..18, got %d", digits)
	}
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("failed to generate numeric code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}

// PKCEChallengeS256 derives the S256 code challenge for verifier.
func PKCEChallengeS256(verifier string) string {
	return FingerprintToken(verifier)
}
