package ident_test

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/ident/pkg/authsdk"
)

// TestRateLimitAuthenticate checks the strict limit (5 per minute) on the
// password endpoint.
func TestRateLimitAuthenticate(t *testing.T) {
	s := startStack(t, withDefaultRateLimits())
	client := authsdk.NewSDKClient(s.baseURL)
	ctx := context.Background()

	for i := range 5 {
		_, err := client.Authenticate(ctx, "ghost@example.com", "wrong password")
		oe := assertOAuthError(t, err, authsdk.ErrorCodeNotAuthenticated)
		require.NotEqual(t, http.StatusTooManyRequests, oe.StatusCode, "request %d", i+1)
	}

	_, err := client.Authenticate(ctx, "ghost@example.com", "wrong password")
	var oe *authsdk.OAuth2Error
	require.ErrorAs(t, err, &oe)
	require.Equal(t, http.StatusTooManyRequests, oe.StatusCode)
}

// TestRateLimitTokenEndpoint checks the strict limit on /oauth2/token.
func TestRateLimitTokenEndpoint(t *testing.T) {
	s := startStack(t, withDefaultRateLimits())

	post := func() *http.Response {
		form := url.Values{"grant_type": {"authorization_code"}, "code": {"bogus"}, "client_id": {"bogus"}}
		resp, err := http.Post(s.baseURL+"/oauth2/token", "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	for i := range 5 {
		require.NotEqual(t, http.StatusTooManyRequests, post().StatusCode, "request %d", i+1)
	}
	resp := post()
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))
}

// TestRateLimitCanBeDisabled runs the same burst with limiting switched off.
func TestRateLimitCanBeDisabled(t *testing.T) {
	s := startStack(t, withDefaultRateLimits(), withEnv("IDENT_RATE_LIMIT_ENABLED", "false"))
	client := authsdk.NewSDKClient(s.baseURL)

	for range 10 {
		_, err := client.Authenticate(context.Background(), "ghost@example.com", "wrong password")
		assertOAuthError(t, err, authsdk.ErrorCodeNotAuthenticated)
	}
}
