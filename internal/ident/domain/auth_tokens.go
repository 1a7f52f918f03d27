package domain

import (
	"context"
	"slices"
	"time"
)

// AuthTokensState is the persisted form of AuthTokens.
type AuthTokensState struct {
	ID           string
	UserID       string
	AccessToken  *SealedToken
	RefreshToken *SealedToken
	IDToken      *SealedToken
	Scopes       []string
	IssuedAt     *time.Time
	Version      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AuthTokens is the platform's own session token set for one authenticated
// subject. Raw values are never kept: only ciphertexts and the refresh digest.
type AuthTokens struct {
	st AuthTokensState
}

// NewAuthTokens returns an empty token set for userID.
func NewAuthTokens(id, userID string, now time.Time) *AuthTokens {
	return &AuthTokens{st: AuthTokensState{ID: id, UserID: userID, CreatedAt: now, UpdatedAt: now}}
}

// AuthTokensFromPersisted rehydrates a token set from storage.
func AuthTokensFromPersisted(st AuthTokensState) *AuthTokens {
	st.Scopes = slices.Clone(st.Scopes)
	return &AuthTokens{st: st}
}

// State returns a copy of the token set for persistence.
func (t *AuthTokens) State() AuthTokensState {
	st := t.st
	st.Scopes = slices.Clone(t.st.Scopes)
	return st
}

func (t *AuthTokens) ID() string { return t.st.ID }
func (t *AuthTokens) UserID() string { return t.st.UserID }

// Revoked reports whether the set currently holds no tokens.
func (t *AuthTokens) Revoked() bool { return t.st.RefreshToken == nil }

// IssueTokens mints a complete new token set, replacing whatever was held.
func (t *AuthTokens) IssueTokens(ctx context.Context, issuer TokenIssuer, vault TokenVault, scopes []string, additionalClaims map[string]any, now time.Time) (IssuedTokens, error) {
	set, err := issuer.Issue(ctx, TokenRequest{
		Subject:          t.st.UserID,
		Scopes:           scopes,
		AuthTime:         now,
		AdditionalClaims: additionalClaims,
	})
	if err != nil {
		return IssuedTokens{}, NewError(ErrUnexpected, "issue tokens").Because(err)
	}
	if err := t.store(ctx, vault, set, now); err != nil {
		return IssuedTokens{}, err
	}
	t.st.IssuedAt = &now
	return set, nil
}

// RefreshTokens rotates all three tokens when refreshToken is the current one.
func (t *AuthTokens) RefreshTokens(ctx context.Context, issuer TokenIssuer, vault TokenVault, refreshToken string, now time.Time) (IssuedTokens, error) {
	if !t.st.RefreshToken.Matches(vault.Digest, refreshToken) {
		return IssuedTokens{}, notAuthenticatedError("unknown refresh token")
	}
	if t.st.RefreshToken.Expired(now) {
		return IssuedTokens{}, notAuthenticatedError("refresh token expired")
	}
	authTime := now
	if t.st.IssuedAt != nil {
		authTime = *t.st.IssuedAt
	}
	set, err := issuer.Issue(ctx, TokenRequest{
		Subject:  t.st.UserID,
		Scopes:   t.st.Scopes,
		AuthTime: authTime,
	})
	if err != nil {
		return IssuedTokens{}, NewError(ErrUnexpected, "issue tokens").Because(err)
	}
	if err := t.store(ctx, vault, set, now); err != nil {
		return IssuedTokens{}, err
	}
	return set, nil
}

// RevokeRefreshToken clears every token field at once. It is idempotent and
// reports whether anything was cleared.
func (t *AuthTokens) RevokeRefreshToken(now time.Time) bool {
	if t.st.AccessToken == nil && t.st.RefreshToken == nil && t.st.IDToken == nil {
		return false
	}
	t.st.AccessToken = nil
	t.st.RefreshToken = nil
	t.st.IDToken = nil
	t.st.UpdatedAt = now
	return true
}

// Expired reports whether the refresh token has lapsed at now.
func (t *AuthTokens) Expired(now time.Time) bool {
	return t.st.RefreshToken != nil && t.st.RefreshToken.Expired(now)
}

func (t *AuthTokens) store(ctx context.Context, vault TokenVault, set IssuedTokens, now time.Time) error {
	access, refresh, id, err := vault.sealAll(ctx, set)
	if err != nil {
		return NewError(ErrUnexpected, "seal tokens").Because(err)
	}
	t.st.AccessToken = access
	t.st.RefreshToken = refresh
	t.st.IDToken = id
	t.st.Scopes = slices.Clone(set.Scopes)
	t.st.UpdatedAt = now
	return nil
}
