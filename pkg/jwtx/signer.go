package jwtx

import (
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/ident/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

// AlgRS256 is the only signing algorithm issued.
const AlgRS256 = "RS256"

// Signer signs JWTs with an RSA private key. Its kid is the RFC 7638
// thumbprint of the public half, so it is derivable from the key alone.
type Signer struct {
	kid string
	key *rsa.PrivateKey
}

// NewSigner loads an RSA private key from PEM (PKCS1 or PKCS8).
func NewSigner(pemKey []byte) (*Signer, error) {
	key, err := cryptox.ParseRSAPrivateKey(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: %w", err)
	}
	return NewSignerFromKey(key)
}

// NewSignerFromKey wraps an already parsed key.
func NewSignerFromKey(key *rsa.PrivateKey) (*Signer, error) {
	if key == nil {
		return nil, errors.New("jwtx: nil RSA key")
	}
	if key.N.BitLen() < cryptox.MinRSABits {
		return nil, fmt.Errorf("jwtx: RSA key is %d bits, need at least %d", key.N.BitLen(), cryptox.MinRSABits)
	}
	return &Signer{kid: Thumbprint(&key.PublicKey), key: key}, nil
}

func (s *Signer) Alg() string { return AlgRS256 }
func (s *Signer) KID() string { return s.kid }

// Sign turns claims into a compact JWS with the kid header set.
func (s *Signer) Sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	t.Header["kid"] = s.kid
	return t.SignedString(s.key)
}

// PublicJWK returns the JWK published in the JWKS.
func (s *Signer) PublicJWK() JWK {
	return NewRSAJWK(s.kid, "sig", AlgRS256, &s.key.PublicKey)
}
