package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrAudience    = errors.New("jwtx: audience mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

// VerifyOptions captures the expectations a Verifier enforces.
type VerifyOptions struct {
	// Issuer the token must have (claims.iss). Empty means "don't care".
	Issuer string

	// Audience values the token must contain (claims.aud). Empty means "don't care".
	Audience []string

	// Leeway allows small clock skew when validating exp/nbf.
	Leeway time.Duration

	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Verifier validates RS256 JWTs against a KeySet.
type Verifier struct {
	keys *KeySet
	opts VerifyOptions
}

// NewVerifier creates a verifier over keys.
func NewVerifier(keys *KeySet, opts VerifyOptions) *Verifier {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Verifier{keys: keys, opts: opts}
}

// Verify validates an access token and returns its claims.
func (v *Verifier) Verify(token string) (*Claims, error) {
	var c Claims
	if err := v.VerifyInto(token, &c, &c.RegisteredClaims); err != nil {
		return nil, err
	}
	return &c, nil
}

// VerifyID validates an ID token and returns its claims.
func (v *Verifier) VerifyID(token string) (*IDClaims, error) {
	var c IDClaims
	if err := v.VerifyInto(token, &c, &c.RegisteredClaims); err != nil {
		return nil, err
	}
	return &c, nil
}

// VerifyInto checks the signature of token, decodes it into claims and then
// validates reg, which must point into claims. Time checks use the verifier
// clock rather than jwt's so tests can pin it.
func (v *Verifier) VerifyInto(token string, claims jwt.Claims, reg *jwt.RegisteredClaims) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{AlgRS256}),
		jwt.WithoutClaimsValidation(),
	)

	_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: missing kid", ErrUnknownKID)
		}
		pub, err := v.keys.Get(kid)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrUnknownKID, kid, err)
		}
		return pub, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrUnknownKID):
		return err
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSig
	default:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if err := ValidateIssuer(*reg, v.opts.Issuer); err != nil {
		return err
	}
	if err := ValidateAudience(*reg, v.opts.Audience); err != nil {
		return err
	}
	return ValidateExpiry(*reg, v.opts.Now(), v.opts.Leeway)
}
