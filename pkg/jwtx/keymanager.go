package jwtx

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/aussiebroadwan/ident/pkg/cryptox"
)

// DefaultRSABits is the modulus size used when none is configured.
const DefaultRSABits = 3072

// KeyManager owns the signing keys of an instance and the KeySet published
// from them. Several keys may be active at once; signing picks one at random.
// Retired keys stay in the KeySet so tokens they signed keep verifying.
type KeyManager struct {
	Verifier *Verifier
	KeySet   *KeySet

	mu      sync.RWMutex
	signers []*Signer
}

// KeyManagerOptions configures an ephemeral KeyManager.
type KeyManagerOptions struct {
	// Issuer is the issuer claim (iss) that will be validated in tokens.
	Issuer string

	// Audience values (aud) that will be validated. Empty disables the check.
	Audience []string

	// RSABits is the modulus size of generated keys. Defaults to
	// DefaultRSABits; anything below cryptox.MinRSABits is rejected.
	RSABits int

	// NumKeys is how many signing keys to generate, between 1 and 10.
	// Defaults to 1.
	NumKeys int

	// Leeway allows clock skew during verification.
	Leeway time.Duration
}

// NewEphemeralKeyManager creates a KeyManager whose keys live only in memory.
// Every token it signed stops verifying once the process restarts.
func NewEphemeralKeyManager(opts KeyManagerOptions) (*KeyManager, error) {
	if opts.Issuer == "" {
		return nil, errors.New("jwtx: Issuer is required")
	}

	km := newKeyManager(opts.Issuer, opts.Audience, opts.Leeway)
	for i := range clampKeys(opts.NumKeys) {
		signer, _, err := GenerateSigner(opts.RSABits)
		if err != nil {
			return nil, fmt.Errorf("jwtx: generate signer %d: %w", i+1, err)
		}
		if err := km.AddSigner(signer); err != nil {
			return nil, err
		}
	}
	return km, nil
}

func newKeyManager(issuer string, audience []string, leeway time.Duration) *KeyManager {
	keyset := NewKeySet()
	return &KeyManager{
		KeySet: keyset,
		Verifier: NewVerifier(keyset, VerifyOptions{
			Issuer:   issuer,
			Audience: audience,
			Leeway:   leeway,
		}),
	}
}

func clampKeys(n int) int {
	return min(max(n, 1), 10)
}

// GenerateSigner creates a fresh RSA key and returns its signer along with the
// PKCS1 PEM so callers can persist it.
func GenerateSigner(bits int) (*Signer, []byte, error) {
	if bits == 0 {
		bits = DefaultRSABits
	}
	pemData, err := cryptox.GenerateRSAKey(bits)
	if err != nil {
		return nil, nil, err
	}
	signer, err := NewSigner(pemData)
	if err != nil {
		return nil, nil, err
	}
	return signer, pemData, nil
}

// IsReady returns true if the KeyManager can sign.
func (km *KeyManager) IsReady() bool {
	return km.NumSigners() > 0 && km.KeySet.IsReady()
}

// GetSigner returns a randomly selected active signer, or nil if none.
func (km *KeyManager) GetSigner() *Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	switch len(km.signers) {
	case 0:
		return nil
	case 1:
		return km.signers[0]
	}
	return km.signers[rand.IntN(len(km.signers))]
}

// NumSigners returns the number of active signing keys.
func (km *KeyManager) NumSigners() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.signers)
}

// AddSigner makes signer active and publishes its public key.
func (km *KeyManager) AddSigner(signer *Signer) error {
	if signer == nil {
		return errors.New("jwtx: signer cannot be nil")
	}

	km.mu.Lock()
	defer km.mu.Unlock()

	if err := km.KeySet.AddSigner(signer); err != nil {
		return fmt.Errorf("jwtx: add signer to keyset: %w", err)
	}
	km.signers = append(km.signers, signer)
	return nil
}

// RetireSignerByKid stops signing with kid. The key stays in the KeySet for
// verification. The last active key cannot be retired.
func (km *KeyManager) RetireSignerByKid(kid string) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	if len(km.signers) <= 1 {
		return errors.New("jwtx: cannot retire the last signing key")
	}

	next := make([]*Signer, 0, len(km.signers)-1)
	for _, s := range km.signers {
		if s.KID() != kid {
			next = append(next, s)
		}
	}
	if len(next) == len(km.signers) {
		return fmt.Errorf("jwtx: signer with kid %q not found", kid)
	}
	km.signers = next
	return nil
}

// RemoveKey drops kid from the published KeySet. Active signers cannot be
// removed; retire them first.
func (km *KeyManager) RemoveKey(kid string) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	for _, s := range km.signers {
		if s.KID() == kid {
			return fmt.Errorf("jwtx: key %q is still active", kid)
		}
	}
	km.KeySet.Remove(kid)
	return nil
}

// GetSigners returns a copy of all active signing keys.
func (km *KeyManager) GetSigners() []*Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	signers := make([]*Signer, len(km.signers))
	copy(signers, km.signers)
	return signers
}
