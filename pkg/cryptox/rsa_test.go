package cryptox_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/aussiebroadwan/ident/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestGenerateRSAKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		bits    int
		wantErr bool
	}{
		{"2048 bits", 2048, false},
		{"3072 bits", 3072, false},
		{"1024 bits rejected", 1024, true},
		{"zero bits rejected", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pemData, err := cryptox.GenerateRSAKey(tt.bits)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			block, _ := pem.Decode(pemData)
			require.NotNil(t, block)
			require.Equal(t, "RSA PRIVATE KEY", block.Type)

			key, err := cryptox.ParseRSAPrivateKey(pemData)
			require.NoError(t, err)
			require.Equal(t, tt.bits, key.N.BitLen())
		})
	}
}

func TestParseRSAPrivateKeyPKCS8(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pemData := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	parsed, err := cryptox.ParseRSAPrivateKey(pemData)
	require.NoError(t, err)
	require.True(t, key.Equal(parsed))
}

func TestParseRSAPrivateKeyRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := cryptox.ParseRSAPrivateKey([]byte("not a pem"))
	require.Error(t, err)

	_, err = cryptox.ParseRSAPrivateKey(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: []byte{1}}))
	require.Error(t, err)
}
