package domain

import "time"

// SigningKey is an RS256 key used to sign access and ID tokens. The private
// key is encrypted at rest; Kid is the RFC 7638 thumbprint of the public key so
// it can be recomputed from the key material alone.
type SigningKey struct {
	ID                  string
	Kid                 string
	Algorithm           string
	PrivateKeyEncrypted []byte
	CreatedAt           time.Time
	RetiredAt           *time.Time // no longer signs, still published for verification
	ExpiresAt           time.Time
}

// IsActive reports whether the key may sign at now.
func (k *SigningKey) IsActive(now time.Time) bool {
	return k.RetiredAt == nil && now.Before(k.ExpiresAt)
}

// IsExpired reports whether the key should be dropped from the key set.
func (k *SigningKey) IsExpired(now time.Time) bool {
	return now.After(k.ExpiresAt)
}
