package ident_test

import (
	"context"
	"testing"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/ident/pkg/authsdk"
)

// authorizeCode consents for creds and walks the authorize endpoint as session.
func authorizeCode(t *testing.T, session *authsdk.Session, creds authsdk.ClientCredentials, pkce *authsdk.PKCEChallenge) string {
	t.Helper()
	ctx := context.Background()

	_, err := session.ChangeConsent(ctx, creds.ID, true, "openid", "profile", "email")
	require.NoError(t, err)

	res, err := session.Authorize(ctx, authsdk.AuthorizeParams{
		ClientID:    creds.ID,
		RedirectURI: testRedirect,
		Scopes:      []string{"openid", "profile", "email"},
		State:       "e2e-state",
		Nonce:       "e2e-nonce",
		PKCE:        pkce,
	})
	require.NoError(t, err)
	require.Equal(t, "e2e-state", res.State)
	require.NotEmpty(t, res.Code)
	return res.Code
}

func TestAuthorizationCodeFlow(t *testing.T) {
	tests := []struct {
		name         string
		confidential bool
	}{
		{"public client", false},
		{"confidential client", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := startStack(t, withMail())
			client := authsdk.NewSDKClient(s.baseURL)
			ctx := context.Background()

			creds := s.createClient(t, tt.confidential)
			signUp(t, s, client, "alice@example.com")
			session, err := client.Login(ctx, "alice@example.com", testPassword)
			require.NoError(t, err)

			pkce, err := authsdk.GeneratePKCEChallenge()
			require.NoError(t, err)
			code := authorizeCode(t, session, creds, pkce)

			tokens, err := client.ExchangeCode(ctx, creds, code, testRedirect, pkce.Verifier)
			require.NoError(t, err)
			assertTokenResponse(t, tokens)
			require.NotEmpty(t, tokens.IDToken)

			// The issuer is not reachable from here, so verify against the
			// published keys directly.
			keySet := oidc.NewRemoteKeySet(ctx, s.baseURL+"/.well-known/jwks.json")
			idToken, err := oidc.NewVerifier(testIssuer, keySet, &oidc.Config{ClientID: creds.ID}).Verify(ctx, tokens.IDToken)
			require.NoError(t, err)
			require.Equal(t, "e2e-nonce", idToken.Nonce)

			info, err := client.UserInfo(ctx, tokens.AccessToken)
			require.NoError(t, err)
			require.Equal(t, idToken.Subject, info.Subject)
			require.NotNil(t, info.Email)
			require.Equal(t, "alice@example.com", *info.Email)

			_, err = client.ExchangeCode(ctx, creds, code, testRedirect, pkce.Verifier)
			assertOAuthError(t, err, authsdk.ErrorCodeInvalidGrant)

			refreshed, err := client.RefreshGrant(ctx, creds, tokens.RefreshToken, "openid", "email")
			require.NoError(t, err)
			require.Equal(t, "openid email", refreshed.Scope)

			require.NoError(t, client.RevokeToken(ctx, creds, refreshed.RefreshToken, "refresh_token"))
			_, err = client.UserInfo(ctx, refreshed.AccessToken)
			assertOAuthError(t, err, authsdk.ErrorCodeInvalidToken)
		})
	}
}

func TestAuthorizeWithoutSessionRedirectsToLogin(t *testing.T) {
	s := startStack(t)
	client := authsdk.NewSDKClient(s.baseURL)
	creds := s.createClient(t, false)

	pkce, err := authsdk.GeneratePKCEChallenge()
	require.NoError(t, err)
	res, err := client.Authorize(context.Background(), "", authsdk.AuthorizeParams{
		ClientID:    creds.ID,
		RedirectURI: testRedirect,
		Scopes:      []string{"openid"},
		State:       "s",
		PKCE:        pkce,
	})
	require.NoError(t, err)
	require.Equal(t, "/login", res.Location.Path)
	require.NotEmpty(t, res.Location.Query().Get("return_to"))
}

func TestClientSecretRotationAndDeletion(t *testing.T) {
	s := startStack(t, withMail())
	client := authsdk.NewSDKClient(s.baseURL)
	ctx := context.Background()

	creds := s.createClient(t, true)
	signUp(t, s, client, "bob@example.com")
	session, err := client.Login(ctx, "bob@example.com", testPassword)
	require.NoError(t, err)

	// A second secret works next to the first.
	out := s.ident(t, "client", "secret", creds.ID)
	second := creds
	for _, line := range splitLines(out) {
		if v, ok := cutField(line, "client_secret:"); ok {
			second.Secret = v
		}
	}
	require.NotEqual(t, creds.Secret, second.Secret)

	for _, c := range []authsdk.ClientCredentials{creds, second} {
		pkce, err := authsdk.GeneratePKCEChallenge()
		require.NoError(t, err)
		_, err = client.ExchangeCode(ctx, c, authorizeCode(t, session, c, pkce), testRedirect, pkce.Verifier)
		require.NoError(t, err)
	}

	s.ident(t, "client", "delete", creds.ID)
	pkce, err := authsdk.GeneratePKCEChallenge()
	require.NoError(t, err)
	_, err = session.Authorize(ctx, authsdk.AuthorizeParams{
		ClientID:    creds.ID,
		RedirectURI: testRedirect,
		Scopes:      []string{"openid"},
		PKCE:        pkce,
	})
	assertOAuthError(t, err, authsdk.ErrorCodeInvalidClient)
}
