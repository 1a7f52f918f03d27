package store

import (
	"context"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/pkg/jwtx"
)

// KeyStoreAdapter lets a jwtx persistent KeyManager read and write signing
// keys through a Store without jwtx importing the domain package.
type KeyStoreAdapter struct {
	store Store
	now   func() time.Time
}

// NewKeyStoreAdapter returns an adapter over s. A nil now uses time.Now.
func NewKeyStoreAdapter(s Store, now func() time.Time) *KeyStoreAdapter {
	if now == nil {
		now = time.Now
	}
	return &KeyStoreAdapter{store: s, now: now}
}

func (a *KeyStoreAdapter) ListAllSigningKeys(ctx context.Context) ([]jwtx.SigningKeyRecord, error) {
	keys, err := a.store.SigningKeys().ListAllSigningKeys(ctx, a.now())
	if err != nil {
		return nil, err
	}
	return toRecords(keys), nil
}

func (a *KeyStoreAdapter) ListActiveSigningKeys(ctx context.Context) ([]jwtx.SigningKeyRecord, error) {
	keys, err := a.store.SigningKeys().ListActiveSigningKeys(ctx, a.now())
	if err != nil {
		return nil, err
	}
	return toRecords(keys), nil
}

func (a *KeyStoreAdapter) CreateSigningKey(ctx context.Context, rec jwtx.SigningKeyRecord) error {
	return a.store.SigningKeys().CreateSigningKey(ctx, SigningKeyFromRecord(rec))
}

func toRecords(keys []domain.SigningKey) []jwtx.SigningKeyRecord {
	out := make([]jwtx.SigningKeyRecord, len(keys))
	for i, k := range keys {
		out[i] = SigningKeyRecord(k)
	}
	return out
}

// SigningKeyRecord converts a stored key to its jwtx form.
func SigningKeyRecord(k domain.SigningKey) jwtx.SigningKeyRecord {
	return jwtx.SigningKeyRecord{
		ID:                  k.ID,
		Kid:                 k.Kid,
		Algorithm:           k.Algorithm,
		PrivateKeyEncrypted: k.PrivateKeyEncrypted,
		CreatedAt:           k.CreatedAt,
		RetiredAt:           k.RetiredAt,
		ExpiresAt:           k.ExpiresAt,
	}
}

// SigningKeyFromRecord converts a jwtx record to the stored form.
func SigningKeyFromRecord(r jwtx.SigningKeyRecord) domain.SigningKey {
	return domain.SigningKey{
		ID:                  r.ID,
		Kid:                 r.Kid,
		Algorithm:           r.Algorithm,
		PrivateKeyEncrypted: r.PrivateKeyEncrypted,
		CreatedAt:           r.CreatedAt,
		RetiredAt:           r.RetiredAt,
		ExpiresAt:           r.ExpiresAt,
	}
}
