package authsdk

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadinessReportsFailedChecks(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","version":"v1"}`))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable","checks":{"database":"unavailable","signer":"ok"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client := NewSDKClient(srv.URL)

	live, err := client.GetLiveness(t.Context())
	require.NoError(t, err)
	require.Equal(t, "v1", live.Version)

	ready, err := client.GetReadiness(t.Context())
	var oe *OAuth2Error
	require.ErrorAs(t, err, &oe)
	require.Equal(t, http.StatusServiceUnavailable, oe.StatusCode)
	require.Equal(t, "unavailable", ready.Status)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "unavailable", ready.Checks.Database)
}
