package service_test

import (
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/internal/ident/domain/domaintest"
	"github.com/aussiebroadwan/ident/internal/ident/service"
	"github.com/stretchr/testify/require"
)

const verifier = "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"

func (h *harness) publicClient(t *testing.T) domain.OAuth2ClientState {
	t.Helper()
	st, secret, err := h.clients.Create(t.Context(), service.CreateClientParams{
		Name:        "spa",
		RedirectURI: "https://spa.example.com/callback",
	})
	require.NoError(t, err)
	require.Empty(t, secret)
	return st
}

func (h *harness) authorizeRequest(clientID string) service.AuthorizeRequest {
	return service.AuthorizeRequest{
		ResponseType:        "code",
		ClientID:            clientID,
		RedirectURI:         "https://spa.example.com/callback",
		Scope:               "openid profile email",
		State:               "xyz",
		Nonce:               "n-0S6",
		CodeChallenge:       domaintest.S256Challenge(verifier),
		CodeChallengeMethod: "S256",
		ReturnTo:            "https://id.example.com/oauth2/authorize?client_id=" + clientID,
	}
}

// authorizeCode consents and runs the authorization request, returning the
// issued code.
func (h *harness) authorizeCode(t *testing.T, userID, clientID string) string {
	t.Helper()
	ctx := t.Context()
	_, err := h.consents.Change(ctx, userID, clientID, true, []string{"openid", "profile", "email"})
	require.NoError(t, err)

	res, err := h.authorize.Authorize(ctx, userID, h.authorizeRequest(clientID))
	require.NoError(t, err)
	require.Equal(t, service.DecisionCode, res.Decision)

	loc, err := url.Parse(res.Location)
	require.NoError(t, err)
	require.Equal(t, "spa.example.com", loc.Host)
	require.Equal(t, "xyz", loc.Query().Get("state"))
	code := loc.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

func TestAuthorizationCodeFlow(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := t.Context()
	cred := h.registerVerified(t, "alice@example.com")
	client := h.publicClient(t)
	creds := service.ClientCredentials{ID: client.ID}

	code := h.authorizeCode(t, cred.UserID, client.ID)

	set, err := h.tokens.Token(ctx, creds, service.TokenRequest{
		GrantType:    service.GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  "https://spa.example.com/callback",
		CodeVerifier: verifier,
	})
	require.NoError(t, err)
	require.NotEmpty(t, set.AccessToken)
	require.NotEmpty(t, set.IDToken)

	req := h.issuer.Requests[len(h.issuer.Requests)-1]
	require.Equal(t, client.ID, req.Audience)
	require.Equal(t, "n-0S6", *req.Nonce)

	info, err := h.tokens.UserInfo(ctx, client.ID, set.AccessToken)
	require.NoError(t, err)
	require.Equal(t, cred.UserID, info.Subject)
	require.Equal(t, "alice@example.com", *info.Email)

	// Codes are single use.
	_, err = h.tokens.Token(ctx, creds, service.TokenRequest{
		GrantType:    service.GrantAuthorizationCode,
		Code:         code,
		RedirectURI:  "https://spa.example.com/callback",
		CodeVerifier: verifier,
	})
	require.ErrorIs(t, err, service.ErrInvalidGrant)

	refreshed, err := h.tokens.Token(ctx, creds, service.TokenRequest{
		GrantType:    service.GrantRefreshToken,
		RefreshToken: set.RefreshToken,
		Scope:        "openid profile",
	})
	require.NoError(t, err)
	require.NotEqual(t, set.AccessToken, refreshed.AccessToken)

	// The rotated refresh token replaces the old one.
	_, err = h.tokens.Refresh(ctx, creds, service.TokenRequest{RefreshToken: set.RefreshToken})
	require.ErrorIs(t, err, service.ErrInvalidGrant)

	_, err = h.tokens.Refresh(ctx, creds, service.TokenRequest{
		RefreshToken: refreshed.RefreshToken,
		Scope:        "openid phone",
	})
	require.ErrorIs(t, err, service.ErrInvalidScope)

	require.NoError(t, h.tokens.Revoke(ctx, creds, refreshed.RefreshToken, service.HintRefreshToken))
	require.True(t, h.audits.has(domain.AuditTokensRevoked))
	_, err = h.tokens.UserInfo(ctx, client.ID, refreshed.AccessToken)
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)

	// Unknown tokens revoke silently.
	require.NoError(t, h.tokens.Revoke(ctx, creds, "never-issued", ""))
}

func TestTokenExchangeFailures(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	cred := h.registerVerified(t, "bob@example.com")
	client := h.publicClient(t)

	tests := []struct {
		name  string
		creds service.ClientCredentials
		req   func(code string) service.TokenRequest
		want  error
	}{
		{
			name:  "wrong verifier",
			creds: service.ClientCredentials{ID: client.ID},
			req: func(code string) service.TokenRequest {
				return service.TokenRequest{GrantType: service.GrantAuthorizationCode, Code: code, RedirectURI: "https://spa.example.com/callback", CodeVerifier: "wrong-verifier-wrong-verifier-wrong-verifier"}
			},
			want: service.ErrInvalidGrant,
		},
		{
			name:  "redirect mismatch",
			creds: service.ClientCredentials{ID: client.ID},
			req: func(code string) service.TokenRequest {
				return service.TokenRequest{GrantType: service.GrantAuthorizationCode, Code: code, RedirectURI: "https://evil.example.com/", CodeVerifier: verifier}
			},
			want: service.ErrInvalidGrant,
		},
		{
			name:  "public client with secret",
			creds: service.ClientCredentials{ID: client.ID, Secret: "nope"},
			req: func(code string) service.TokenRequest {
				return service.TokenRequest{GrantType: service.GrantAuthorizationCode, Code: code, RedirectURI: "https://spa.example.com/callback", CodeVerifier: verifier}
			},
			want: service.ErrInvalidClient,
		},
		{
			name:  "unsupported grant",
			creds: service.ClientCredentials{ID: client.ID},
			req: func(string) service.TokenRequest {
				return service.TokenRequest{GrantType: "password"}
			},
			want: service.ErrUnsupportedGrantType,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := h.authorizeCode(t, cred.UserID, client.ID)
			_, err := h.tokens.Token(t.Context(), tt.creds, tt.req(code))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestConfidentialClientAuthentication(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := t.Context()
	cred := h.registerVerified(t, "carol@example.com")

	client, secret, err := h.clients.Create(ctx, service.CreateClientParams{
		Name:         "backend",
		RedirectURI:  "https://spa.example.com/callback",
		Confidential: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, secret)

	req := h.authorizeRequest(client.ID)
	req.CodeChallenge, req.CodeChallengeMethod = "", ""
	_, err = h.consents.Change(ctx, cred.UserID, client.ID, true, []string{"openid", "profile", "email"})
	require.NoError(t, err)
	res, err := h.authorize.Authorize(ctx, cred.UserID, req)
	require.NoError(t, err)
	loc, err := url.Parse(res.Location)
	require.NoError(t, err)
	code := loc.Query().Get("code")

	exchange := service.TokenRequest{
		GrantType:   service.GrantAuthorizationCode,
		Code:        code,
		RedirectURI: "https://spa.example.com/callback",
	}
	_, err = h.tokens.Token(ctx, service.ClientCredentials{ID: client.ID, Secret: "wrong"}, exchange)
	require.ErrorIs(t, err, service.ErrInvalidClient)
	require.Equal(t, "client authentication failed", service.Description(err))

	_, err = h.tokens.Token(ctx, service.ClientCredentials{ID: client.ID, Secret: secret}, exchange)
	require.NoError(t, err)
}

func TestConfidentialClientStaysConfidentialAfterPrune(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := t.Context()
	cred := h.registerVerified(t, "dana@example.com")

	expiry := h.clock.Now().Add(time.Hour)
	client, secret, err := h.clients.Create(ctx, service.CreateClientParams{
		Name:            "backend",
		RedirectURI:     "https://spa.example.com/callback",
		Confidential:    true,
		SecretExpiresAt: &expiry,
	})
	require.NoError(t, err)

	set, err := h.tokens.Token(ctx, service.ClientCredentials{ID: client.ID, Secret: secret}, service.TokenRequest{
		GrantType:    service.GrantAuthorizationCode,
		Code:         h.authorizeCode(t, cred.UserID, client.ID),
		RedirectURI:  "https://spa.example.com/callback",
		CodeVerifier: verifier,
	})
	require.NoError(t, err)

	h.clock.Advance(2 * time.Hour)
	hk := service.NewHousekeepingService(h.store, slog.New(slog.DiscardHandler), time.Minute)
	hk.Now = h.clock.Now
	require.EqualValues(t, 1, hk.RunOnce(ctx)[service.TaskClientSecrets])

	st, err := h.clients.Get(ctx, client.ID)
	require.NoError(t, err)
	require.Empty(t, st.Secrets)
	require.True(t, st.Confidential)

	// Without a secret the client is not let through as a public one.
	refresh := service.TokenRequest{GrantType: service.GrantRefreshToken, RefreshToken: set.RefreshToken}
	_, err = h.tokens.Token(ctx, service.ClientCredentials{ID: client.ID}, refresh)
	require.ErrorIs(t, err, service.ErrInvalidClient)
	_, err = h.tokens.Token(ctx, service.ClientCredentials{ID: client.ID, Secret: secret}, refresh)
	require.ErrorIs(t, err, service.ErrInvalidClient)
}

func TestAuthorizeInteractions(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := t.Context()
	cred := h.registerVerified(t, "dave@example.com")
	client := h.publicClient(t)

	t.Run("no session goes to login", func(t *testing.T) {
		res, err := h.authorize.Authorize(ctx, "", h.authorizeRequest(client.ID))
		require.NoError(t, err)
		require.Equal(t, service.DecisionLogin, res.Decision)
		loc, err := url.Parse(res.Location)
		require.NoError(t, err)
		require.Equal(t, "/login", loc.Path)
		require.Contains(t, loc.Query().Get("return_to"), client.ID)
	})

	t.Run("no consent goes to consent", func(t *testing.T) {
		res, err := h.authorize.Authorize(ctx, cred.UserID, h.authorizeRequest(client.ID))
		require.NoError(t, err)
		require.Equal(t, service.DecisionConsent, res.Decision)
		loc, err := url.Parse(res.Location)
		require.NoError(t, err)
		require.Equal(t, "/consent", loc.Path)
		require.Equal(t, "spa", loc.Query().Get("client_name"))
		require.Equal(t, "openid profile email", loc.Query().Get("scope"))
	})

	t.Run("unknown client is shown inline", func(t *testing.T) {
		_, err := h.authorize.Authorize(ctx, cred.UserID, h.authorizeRequest("missing"))
		require.ErrorIs(t, err, service.ErrInvalidClient)
		var redirect *service.RedirectError
		require.NotErrorAs(t, err, &redirect)
	})

	t.Run("unregistered redirect is shown inline", func(t *testing.T) {
		req := h.authorizeRequest(client.ID)
		req.RedirectURI = "https://evil.example.com/callback"
		_, err := h.authorize.Authorize(ctx, cred.UserID, req)
		require.ErrorIs(t, err, service.ErrInvalidRequest)
		var redirect *service.RedirectError
		require.NotErrorAs(t, err, &redirect)
	})

	redirected := []struct {
		name   string
		mutate func(*service.AuthorizeRequest)
		want   error
	}{
		{"missing openid", func(r *service.AuthorizeRequest) { r.Scope = "profile" }, service.ErrInvalidScope},
		{"unknown scope", func(r *service.AuthorizeRequest) { r.Scope = "openid admin" }, service.ErrInvalidScope},
		{"token response type", func(r *service.AuthorizeRequest) { r.ResponseType = "token" }, service.ErrUnsupportedResponseType},
		{"public client without pkce", func(r *service.AuthorizeRequest) { r.CodeChallenge = "" }, service.ErrInvalidRequest},
	}
	for _, tt := range redirected {
		t.Run(tt.name, func(t *testing.T) {
			req := h.authorizeRequest(client.ID)
			tt.mutate(&req)
			_, err := h.authorize.Authorize(ctx, cred.UserID, req)
			var redirect *service.RedirectError
			require.ErrorAs(t, err, &redirect)
			require.ErrorIs(t, err, tt.want)

			loc, err := url.Parse(redirect.Location())
			require.NoError(t, err)
			require.Equal(t, "spa.example.com", loc.Host)
			require.Equal(t, tt.want.Error(), loc.Query().Get("error"))
			require.Equal(t, "xyz", loc.Query().Get("state"))
		})
	}
}

func TestConsentNarrowingRevokesTokens(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := t.Context()
	cred := h.registerVerified(t, "erin@example.com")
	client := h.publicClient(t)
	creds := service.ClientCredentials{ID: client.ID}

	code := h.authorizeCode(t, cred.UserID, client.ID)
	set, err := h.tokens.ExchangeCode(ctx, creds, service.TokenRequest{
		Code:         code,
		RedirectURI:  "https://spa.example.com/callback",
		CodeVerifier: verifier,
	})
	require.NoError(t, err)

	// Broadening keeps existing tokens.
	_, err = h.consents.Change(ctx, cred.UserID, client.ID, true, []string{"openid", "profile", "email", "phone"})
	require.NoError(t, err)
	_, err = h.tokens.UserInfo(ctx, client.ID, set.AccessToken)
	require.NoError(t, err)

	consent, err := h.consents.Change(ctx, cred.UserID, client.ID, true, []string{"openid"})
	require.NoError(t, err)
	require.Equal(t, []string{"openid"}, consent.Scopes)
	_, err = h.tokens.UserInfo(ctx, client.ID, set.AccessToken)
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)

	// Revoking twice, or revoking a consent never given, is fine.
	require.NoError(t, h.consents.Revoke(ctx, cred.UserID, client.ID))
	require.NoError(t, h.consents.Revoke(ctx, cred.UserID, client.ID))
	require.NoError(t, h.consents.Revoke(ctx, "stranger", client.ID))

	_, err = h.consents.Change(ctx, cred.UserID, "missing", true, []string{"openid"})
	require.ErrorIs(t, err, domain.ErrEntityNotFound)
}

func TestClientAdministration(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := t.Context()
	client := h.publicClient(t)

	name := "renamed"
	updated, err := h.clients.Update(ctx, client.ID, &name, nil)
	require.NoError(t, err)
	require.Equal(t, "renamed", updated.Name)

	expires := h.clock.Now().Add(time.Hour)
	secret, err := h.clients.GenerateSecret(ctx, client.ID, &expires)
	require.NoError(t, err)
	require.NotEmpty(t, secret)

	list, err := h.clients.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, h.clients.Delete(ctx, client.ID))
	_, err = h.clients.Get(ctx, client.ID)
	require.ErrorIs(t, err, domain.ErrEntityNotFound)
	require.ErrorIs(t, h.clients.Delete(ctx, client.ID), domain.ErrEntityNotFound)
	require.True(t, h.audits.has(domain.AuditClientDeleted))
}
