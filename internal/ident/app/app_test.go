package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		HTTPAddr:             "127.0.0.1:0",
		Issuer:               "https://id.example.com",
		DatabaseFile:         filepath.Join(dir, "ident.db"),
		PepperFile:           filepath.Join(dir, "pepper"),
		MasterKey:            "app-test-master-key",
		KeyMode:              KeyModePersistent,
		NumKeys:              1,
		RSABits:              2048,
		KeyLifetime:          24 * time.Hour,
		LockoutThreshold:     5,
		LockoutDuration:      time.Minute,
		CodeTTL:              time.Minute,
		MfaTokenTTL:          time.Minute,
		MfaTokenMaxAttempts:  3,
		MetricsEnabled:       true,
		LogLevel:             "error",
		ShutdownGracePeriod:  time.Second,
		HousekeepingInterval: time.Hour,
	}
}

func TestApplicationWiring(t *testing.T) {
	t.Parallel()
	a, err := New(t.Context(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.close() })

	for _, path := range []string{"/readyz", "/.well-known/openid-configuration", "/.well-known/jwks.json", "/metrics"} {
		rr := httptest.NewRecorder()
		a.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rr.Code, path)
	}
}

func TestPersistentKeysSurviveRestart(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)

	first, err := New(t.Context(), cfg)
	require.NoError(t, err)
	kid := first.keys.GetSigner().KID()
	require.NoError(t, first.close())

	second, err := New(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.close() })
	require.Equal(t, kid, second.keys.GetSigner().KID())
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	a, err := New(t.Context(), testConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Issuer = "not a url"
	_, err := New(t.Context(), cfg)
	require.Error(t, err)
}
