package service_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/internal/ident/domain/domaintest"
	"github.com/aussiebroadwan/ident/internal/ident/service"
	"github.com/aussiebroadwan/ident/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestJWTIssuer(t *testing.T) {
	t.Parallel()
	km := newKeyManager(t)
	now := time.Now().UTC().Truncate(time.Second)
	issuer := &service.JWTIssuer{
		Keys:   km,
		Issuer: "https://id.example.com",
		Now:    func() time.Time { return now },
	}

	t.Run("platform tokens are audienced to the issuer", func(t *testing.T) {
		set, err := issuer.Issue(t.Context(), domain.TokenRequest{
			Subject:          "user-1",
			Scopes:           []string{"openid", "profile"},
			AdditionalClaims: map[string]any{service.ClaimAMR: []string{"pwd", "mfa", "totp"}},
		})
		require.NoError(t, err)
		require.NotEmpty(t, set.RefreshToken)
		require.Equal(t, now.Add(jwtx.DefaultAccessTokenTTL), set.AccessExpiresAt)

		claims, err := km.Verifier.Verify(set.AccessToken)
		require.NoError(t, err)
		require.Equal(t, "user-1", claims.Subject)
		require.Equal(t, []string{"https://id.example.com"}, []string(claims.Audience))
		require.Empty(t, claims.ClientID)
		require.Equal(t, "openid profile", claims.Scope)
		require.Equal(t, []string{"pwd", "mfa", "totp"}, claims.AMR)
	})

	t.Run("client tokens carry the client and nonce", func(t *testing.T) {
		nonce := "n-0S6"
		set, err := issuer.Issue(t.Context(), domain.TokenRequest{
			Subject:  "user-1",
			Audience: "client-1",
			Scopes:   []string{"openid"},
			Nonce:    &nonce,
			AuthTime: now.Add(-time.Hour),
		})
		require.NoError(t, err)

		claims, err := km.Verifier.Verify(set.AccessToken)
		require.NoError(t, err)
		require.Equal(t, "client-1", claims.ClientID)
		require.Equal(t, []string{"pwd"}, claims.AMR)

		id, err := km.Verifier.VerifyID(set.IDToken)
		require.NoError(t, err)
		require.Equal(t, []string{"client-1"}, []string(id.Audience))
		require.Equal(t, "n-0S6", id.Nonce)
		require.Equal(t, now.Add(-time.Hour).Unix(), id.AuthTime.Unix())
	})
}

func TestPlatformTokens(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := t.Context()
	h.registerVerified(t, "alice@example.com")

	set, err := h.credentials.Authenticate(ctx, "alice@example.com", domaintest.DefaultPassword)
	require.NoError(t, err)

	refreshed, err := h.platform.Refresh(ctx, set.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, set.RefreshToken, refreshed.RefreshToken)
	require.True(t, h.audits.has(domain.AuditTokensRefreshed))

	_, err = h.platform.Refresh(ctx, set.RefreshToken)
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)

	require.NoError(t, h.platform.Revoke(ctx, refreshed.RefreshToken))
	_, err = h.platform.Refresh(ctx, refreshed.RefreshToken)
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)

	// Unknown tokens revoke silently.
	require.NoError(t, h.platform.Revoke(ctx, "never-issued"))
}
