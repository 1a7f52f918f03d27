package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTLs. Services override them through configuration.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultIDTokenTTL      = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Claims are access-token claims (RFC 9068 profile).
type Claims struct {
	jwt.RegisteredClaims

	// Space-delimited granted scopes.
	Scope string `json:"scope,omitempty"`

	// ClientID is the client the token was issued to.
	ClientID string `json:"client_id,omitempty"`

	// Authentication Methods Reference, e.g. ["pwd","otp","mfa"].
	AMR []string `json:"amr,omitempty"`

	// Ext carries caller-supplied claims that are not part of the profile.
	Ext map[string]any `json:"ext,omitempty"`
}

// IDClaims are OpenID Connect ID token claims.
type IDClaims struct {
	jwt.RegisteredClaims

	Nonce    string           `json:"nonce,omitempty"`
	AuthTime *jwt.NumericDate `json:"auth_time,omitempty"`
	AZP      string           `json:"azp,omitempty"`
	AMR      []string         `json:"amr,omitempty"`
}

// NewAccessClaims builds minimally-correct access token claims.
func NewAccessClaims(
	subject, clientID string,
	scopes, amr []string,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: registered(subject, issuer, audience, ttl, now),
		Scope:            strings.Join(scopes, " "),
		ClientID:         clientID,
		AMR:              amr,
	}
}

// NewIDClaims builds ID token claims. authTime is when the end user actually
// authenticated, which survives refresh.
func NewIDClaims(
	subject, clientID, nonce string,
	amr []string,
	authTime time.Time,
	ttl time.Duration,
	issuer string,
	now time.Time,
) IDClaims {
	c := IDClaims{
		RegisteredClaims: registered(subject, issuer, []string{clientID}, ttl, now),
		Nonce:            nonce,
		AZP:              clientID,
		AMR:              amr,
	}
	if !authTime.IsZero() {
		c.AuthTime = jwt.NewNumericDate(authTime)
	}
	return c
}

func registered(subject, issuer string, audience []string, ttl time.Duration, now time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings(audience),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        NewJTI(),
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches expected value.
func ValidateIssuer(c jwt.RegisteredClaims, expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func ValidateAudience(c jwt.RegisteredClaims, expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't before nbf
// at now, allowing leeway either side for clock skew.
func ValidateExpiry(c jwt.RegisteredClaims, now time.Time, leeway time.Duration) error {
	if c.ExpiresAt != nil && !now.Before(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}
