package jwtx

import (
	"crypto/rsa"
	"errors"
	"slices"
	"sync"
)

var ErrNoKey = errors.New("jwtx: key not found")

type publishedKey struct {
	jwk JWK
	pub *rsa.PublicKey
}

// KeySet is the set of public keys tokens are verified against and the
// source of the JWKS document. Keys keep their insertion order.
type KeySet struct {
	mu   sync.RWMutex
	keys []publishedKey
}

func NewKeySet() *KeySet { return &KeySet{} }

// AddSigner publishes the public half of s.
func (k *KeySet) AddSigner(s *Signer) error {
	return k.AddJWK(s.PublicJWK())
}

// AddJWK publishes j. A kid that is already present is left alone.
func (k *KeySet) AddJWK(j JWK) error {
	pub, err := j.PublicKey()
	if err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.index(j.Kid) >= 0 {
		return nil
	}
	k.keys = append(k.keys, publishedKey{jwk: j, pub: pub})
	return nil
}

// Remove unpublishes kid. Tokens signed by it stop verifying.
func (k *KeySet) Remove(kid string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if i := k.index(kid); i >= 0 {
		k.keys = slices.Delete(slices.Clone(k.keys), i, i+1)
	}
}

func (k *KeySet) Get(kid string) (*rsa.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if i := k.index(kid); i >= 0 {
		return k.keys[i].pub, nil
	}
	return nil, ErrNoKey
}

// PublicJWKS returns a copy of the published keys.
func (k *KeySet) PublicJWKS() JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := JWKS{Keys: make([]JWK, len(k.keys))}
	for i, pk := range k.keys {
		out.Keys[i] = pk.jwk
	}
	return out
}

func (k *KeySet) IsReady() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys) > 0
}

// index must be called with mu held.
func (k *KeySet) index(kid string) int {
	return slices.IndexFunc(k.keys, func(pk publishedKey) bool { return pk.jwk.Kid == kid })
}
