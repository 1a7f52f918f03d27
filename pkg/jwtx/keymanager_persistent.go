package jwtx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/ident/pkg/idx"
)

// SigningKeyRecord is a signing key as persisted. The private key PEM is
// sealed; Kid is the thumbprint of its public half.
type SigningKeyRecord struct {
	ID                  string
	Kid                 string
	Algorithm           string
	PrivateKeyEncrypted []byte
	CreatedAt           time.Time
	RetiredAt           *time.Time
	ExpiresAt           time.Time
}

// KeyStore is the storage a persistent KeyManager needs. It is kept here
// rather than in the store package so jwtx has no internal dependencies.
type KeyStore interface {
	// ListAllSigningKeys returns every key that has not expired, retired or
	// not, for verification.
	ListAllSigningKeys(ctx context.Context) ([]SigningKeyRecord, error)

	// ListActiveSigningKeys returns keys that may still sign.
	ListActiveSigningKeys(ctx context.Context) ([]SigningKeyRecord, error)

	// CreateSigningKey stores a new key.
	CreateSigningKey(ctx context.Context, key SigningKeyRecord) error
}

// Sealer encrypts key material at rest. cryptox.AESCipher satisfies it.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// PersistentKeyManagerOptions configures a KeyManager backed by a KeyStore.
type PersistentKeyManagerOptions struct {
	Store  KeyStore
	Sealer Sealer

	Issuer   string
	Audience []string
	Leeway   time.Duration

	// RSABits is the modulus size of newly generated keys.
	RSABits int

	// NumKeys is the target number of active signing keys. Missing keys are
	// generated and stored on start. Defaults to 1.
	NumKeys int

	// Lifetime is how long a new key stays valid before it expires out of
	// the key set. Defaults to 90 days.
	Lifetime time.Duration

	// Now overrides the clock.
	Now func() time.Time
}

// DefaultKeyLifetime is used when PersistentKeyManagerOptions.Lifetime is unset.
const DefaultKeyLifetime = 90 * 24 * time.Hour

// NewPersistentKeyManager loads keys from opts.Store, publishes all of them and
// signs with the active ones, generating new keys until NumKeys are active.
func NewPersistentKeyManager(ctx context.Context, opts PersistentKeyManagerOptions) (*KeyManager, error) {
	if opts.Store == nil {
		return nil, errors.New("jwtx: Store is required for persistent key manager")
	}
	if opts.Sealer == nil {
		return nil, errors.New("jwtx: Sealer is required for persistent key manager")
	}
	if opts.Issuer == "" {
		return nil, errors.New("jwtx: Issuer is required")
	}
	if opts.Lifetime <= 0 {
		opts.Lifetime = DefaultKeyLifetime
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	all, err := opts.Store.ListAllSigningKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("jwtx: load keys: %w", err)
	}
	active, err := opts.Store.ListActiveSigningKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("jwtx: load active keys: %w", err)
	}

	km := newKeyManager(opts.Issuer, opts.Audience, opts.Leeway)

	signers := make(map[string]*Signer, len(all))
	for _, rec := range all {
		signer, err := OpenSigningKey(opts.Sealer, rec)
		if err != nil {
			return nil, err
		}
		if err := km.KeySet.AddSigner(signer); err != nil {
			return nil, fmt.Errorf("jwtx: add key %s to keyset: %w", rec.Kid, err)
		}
		signers[rec.Kid] = signer
	}

	for _, rec := range active {
		signer, ok := signers[rec.Kid]
		if !ok {
			if signer, err = OpenSigningKey(opts.Sealer, rec); err != nil {
				return nil, err
			}
		}
		if err := km.AddSigner(signer); err != nil {
			return nil, err
		}
	}

	for km.NumSigners() < clampKeys(opts.NumKeys) {
		rec, signer, err := NewSigningKeyRecord(opts.Sealer, opts.RSABits, opts.Lifetime, opts.Now())
		if err != nil {
			return nil, err
		}
		if err := opts.Store.CreateSigningKey(ctx, rec); err != nil {
			return nil, fmt.Errorf("jwtx: store new key: %w", err)
		}
		if err := km.AddSigner(signer); err != nil {
			return nil, err
		}
	}

	return km, nil
}

// NewSigningKeyRecord generates a key, seals it and returns the record to
// persist along with its signer.
func NewSigningKeyRecord(sealer Sealer, bits int, lifetime time.Duration, now time.Time) (SigningKeyRecord, *Signer, error) {
	signer, pemData, err := GenerateSigner(bits)
	if err != nil {
		return SigningKeyRecord{}, nil, fmt.Errorf("jwtx: generate key: %w", err)
	}
	sealed, err := sealer.Seal(pemData)
	if err != nil {
		return SigningKeyRecord{}, nil, fmt.Errorf("jwtx: seal key: %w", err)
	}
	return SigningKeyRecord{
		ID:                  idx.NewAt(now).String(),
		Kid:                 signer.KID(),
		Algorithm:           AlgRS256,
		PrivateKeyEncrypted: sealed,
		CreatedAt:           now,
		ExpiresAt:           now.Add(lifetime),
	}, signer, nil
}

// OpenSigningKey unseals rec and checks its kid against the key material.
func OpenSigningKey(sealer Sealer, rec SigningKeyRecord) (*Signer, error) {
	if rec.Algorithm != AlgRS256 {
		return nil, fmt.Errorf("jwtx: key %s: unsupported algorithm %q", rec.Kid, rec.Algorithm)
	}
	pemData, err := sealer.Open(rec.PrivateKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("jwtx: decrypt key %s: %w", rec.Kid, err)
	}
	signer, err := NewSigner(pemData)
	if err != nil {
		return nil, fmt.Errorf("jwtx: key %s: %w", rec.Kid, err)
	}
	if signer.KID() != rec.Kid {
		return nil, fmt.Errorf("jwtx: key %s: stored kid does not match key material", rec.Kid)
	}
	return signer, nil
}
