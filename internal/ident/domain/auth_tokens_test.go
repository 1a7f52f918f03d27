package domain_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/internal/ident/domain/domaintest"
	"github.com/stretchr/testify/require"
)

func TestAuthTokensLifecycle(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	issuer := &domaintest.Issuer{}
	vault := domaintest.Vault()

	tokens := domain.NewAuthTokens("tokens-1", "user-1", now)
	require.True(t, tokens.Revoked())

	first, err := tokens.IssueTokens(ctx, issuer, vault, []string{"openid"}, map[string]any{"amr": []string{"pwd", "otp"}}, now)
	require.NoError(t, err)
	require.NotEmpty(t, first.AccessToken)
	require.NotEmpty(t, first.RefreshToken)
	require.NotEmpty(t, first.IDToken)
	require.Equal(t, map[string]any{"amr": []string{"pwd", "otp"}}, issuer.Requests[0].AdditionalClaims)

	// Raw values never reach the persisted state.
	st := tokens.State()
	for _, sealed := range []*domain.SealedToken{st.AccessToken, st.RefreshToken, st.IDToken} {
		require.NotNil(t, sealed)
		require.NotContains(t, []string{first.AccessToken, first.RefreshToken, first.IDToken}, sealed.Ciphertext)
	}
	require.Equal(t, domaintest.Digest.Digest(first.RefreshToken), st.RefreshToken.Digest)

	second, err := tokens.RefreshTokens(ctx, issuer, vault, first.RefreshToken, now.Add(time.Minute))
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	require.Equal(t, now, issuer.Requests[1].AuthTime, "auth time survives rotation")

	_, err = tokens.RefreshTokens(ctx, issuer, vault, first.RefreshToken, now.Add(time.Minute))
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)

	_, err = tokens.RefreshTokens(ctx, issuer, vault, second.RefreshToken, second.RefreshExpiresAt)
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)
	require.True(t, tokens.Expired(second.RefreshExpiresAt))

	require.True(t, tokens.RevokeRefreshToken(now))
	require.False(t, tokens.RevokeRefreshToken(now))
	st = tokens.State()
	require.Nil(t, st.AccessToken)
	require.Nil(t, st.RefreshToken)
	require.Nil(t, st.IDToken)
	require.True(t, tokens.Revoked())

	_, err = tokens.RefreshTokens(ctx, issuer, vault, second.RefreshToken, now)
	require.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestSealedTokenMatches(t *testing.T) {
	t.Parallel()
	sealed, err := domaintest.Vault().Seal(t.Context(), "raw-token", now.Add(time.Minute))
	require.NoError(t, err)

	require.True(t, sealed.Matches(domaintest.Digest, "raw-token"))
	require.False(t, sealed.Matches(domaintest.Digest, "raw-token2"))
	require.False(t, sealed.Matches(domaintest.Digest, ""))

	var missing *domain.SealedToken
	require.False(t, missing.Matches(domaintest.Digest, "raw-token"))

	require.False(t, sealed.Expired(now))
	require.True(t, sealed.Expired(now.Add(time.Minute)))
}

func TestScopes(t *testing.T) {
	t.Parallel()
	require.Equal(t, []string{"openid", "email"}, domain.ParseScopes("  openid email openid "))
	require.Nil(t, domain.ParseScopes(""))
	require.Equal(t, "openid email", domain.FormatScopes([]string{"openid", "email"}))
	require.True(t, domain.ScopesSubset([]string{"openid"}, []string{"openid", "email"}))
	require.True(t, domain.ScopesSubset(nil, nil))
	require.False(t, domain.ScopesSubset([]string{"phone"}, []string{"openid"}))
}

func TestUserInfoClaims(t *testing.T) {
	t.Parallel()
	email := "alice@example.com"
	phone := "+61400000000"
	profile := domain.UserProfile{
		UserID:        "user-1",
		Name:          ptr("Alice Liddell"),
		GivenName:     ptr("Alice"),
		FamilyName:    ptr("Liddell"),
		Locale:        ptr("en-AU"),
		Email:         &email,
		EmailVerified: true,
		PhoneNumber:   &phone,
		Address:       &domain.PostalAddress{Locality: "Oxford", Country: "GB"},
	}

	t.Run("openid only", func(t *testing.T) {
		info := domain.UserInfoClaims(profile, []string{"openid"})
		require.Equal(t, domain.UserInfo{Subject: "user-1"}, info)
	})

	t.Run("profile", func(t *testing.T) {
		info := domain.UserInfoClaims(profile, []string{"openid", "profile"})
		require.Equal(t, "Alice Liddell", *info.Name)
		require.Equal(t, "en-AU", *info.Locale)
		require.Nil(t, info.Picture)
		require.Nil(t, info.Email)
	})

	t.Run("email and phone", func(t *testing.T) {
		info := domain.UserInfoClaims(profile, []string{"openid", "email", "phone"})
		require.Equal(t, email, *info.Email)
		require.True(t, *info.EmailVerified)
		require.Equal(t, phone, *info.PhoneNumber)
		require.False(t, *info.PhoneNumberVerified)
		require.Nil(t, info.Name)
		require.Nil(t, info.Address)
	})

	t.Run("address", func(t *testing.T) {
		info := domain.UserInfoClaims(profile, []string{"openid", "address"})
		require.Equal(t, "Oxford", info.Address.Locality)
	})
}
