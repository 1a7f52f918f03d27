package cryptox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fastParams keeps the suite quick; the encoding is the same as production.
var fastParams = Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, KeyLength: 32, SaltLength: 16}

func testHasher() *Argon2Hasher {
	return &Argon2Hasher{Params: fastParams, Pepper: "test-pepper"}
}

func TestHashPasswordFormat(t *testing.T) {
	t.Parallel()
	h := testHasher()

	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "password123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"long password", strings.Repeat("a", 100)},
		{"empty password", ""},
		{"unicode password", "пароль🔒密码"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.HashPassword(t.Context(), tt.password)
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"), hash)
			require.Len(t, strings.Split(hash, "$"), 6)

			ok, err := h.VerifyPassword(t.Context(), tt.password, hash)
			require.NoError(t, err)
			require.True(t, ok)
		})
	}
}

func TestHashPasswordUniqueSalts(t *testing.T) {
	t.Parallel()
	h := testHasher()

	a, err := h.HashPassword(t.Context(), "samepassword")
	require.NoError(t, err)
	b, err := h.HashPassword(t.Context(), "samepassword")
	require.NoError(t, err)
	require.NotEqual(t, a, b, "hashes should differ due to unique salts")
}

func TestVerifyPasswordMismatch(t *testing.T) {
	t.Parallel()
	h := testHasher()
	hash, err := h.HashPassword(t.Context(), "correct-password")
	require.NoError(t, err)

	for _, wrong := range []string{"wrong-password", "Correct-Password", "correct-password ", "", "correct-passwor"} {
		ok, err := h.VerifyPassword(t.Context(), wrong, hash)
		require.NoError(t, err)
		require.False(t, ok, "%q should not verify", wrong)
	}
}

func TestVerifyPasswordPepperMatters(t *testing.T) {
	t.Parallel()
	hash, err := testHasher().HashPassword(t.Context(), "password123")
	require.NoError(t, err)

	other := &Argon2Hasher{Params: fastParams, Pepper: "other-pepper"}
	ok, err := other.VerifyPassword(t.Context(), "password123", hash)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestVerifyPasswordUsesParamsFromHash(t *testing.T) {
	t.Parallel()
	hash, err := testHasher().HashPassword(t.Context(), "password123")
	require.NoError(t, err)

	upgraded := &Argon2Hasher{Params: DefaultArgon2Params, Pepper: "test-pepper"}
	ok, err := upgraded.VerifyPassword(t.Context(), "password123", hash)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	t.Parallel()
	h := testHasher()

	tests := []struct {
		name string
		hash string
	}{
		{"empty hash", ""},
		{"wrong algorithm", "$bcrypt$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"missing parts", "$argon2id$v=19$m=19456"},
		{"malformed parameters", "$argon2id$v=19$invalid$c2FsdA$aGFzaA"},
		{"invalid base64 salt", "$argon2id$v=19$m=19456,t=2,p=1$!!!invalid!!!$aGFzaA"},
		{"invalid base64 hash", "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$!!!invalid!!!"},
		{"wrong version", "$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.VerifyPassword(t.Context(), "test-password", tt.hash)
			require.ErrorIs(t, err, ErrMalformedHash)
		})
	}
}

func TestHashPasswordHonoursCancellation(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := testHasher().HashPassword(ctx, "password123")
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoadOrCreatePepper(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "pepper")

	first, err := LoadOrCreatePepper(path)
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := LoadOrCreatePepper(path)
	require.NoError(t, err)
	require.Equal(t, first, second, "pepper must be stable across loads")

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
