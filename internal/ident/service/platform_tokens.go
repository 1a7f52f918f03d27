package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/ident/internal/ident/audit"
	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/internal/ident/store"
	"github.com/aussiebroadwan/ident/pkg/idx"
	"github.com/aussiebroadwan/ident/pkg/slogx"
)

// DefaultPlatformScopes are granted to tokens issued by a direct login.
var DefaultPlatformScopes = []string{domain.ScopeOpenID, domain.ScopeProfile, domain.ScopeEmail}

// PlatformTokenService manages the token sets a user gets from logging in to
// the identity service itself, as opposed to tokens issued to OAuth2 clients.
type PlatformTokenService struct {
	Store  store.Store
	Issuer domain.TokenIssuer
	Vault  domain.TokenVault
	Audit  *audit.Recorder
	Scopes []string
	Now    Clock
}

func (s *PlatformTokenService) scopes() []string {
	if len(s.Scopes) == 0 {
		return DefaultPlatformScopes
	}
	return s.Scopes
}

// issue mints a fresh token set for userID inside tx. amr lists the
// authentication methods the user went through.
func (s *PlatformTokenService) issue(ctx context.Context, tx store.Tx, userID string, amr []string) (domain.IssuedTokens, error) {
	now := s.Now.now()
	tokens := domain.NewAuthTokens(idx.NewAt(now).String(), userID, now)
	set, err := tokens.IssueTokens(ctx, s.Issuer, s.Vault, s.scopes(), map[string]any{ClaimAMR: amr}, now)
	if err != nil {
		return domain.IssuedTokens{}, err
	}
	if err := tx.AuthTokens().CreateAuthTokens(ctx, tokens.State()); err != nil {
		return domain.IssuedTokens{}, fmt.Errorf("create auth tokens: %w", err)
	}
	return set, nil
}

// Refresh rotates the token set refreshToken belongs to.
func (s *PlatformTokenService) Refresh(ctx context.Context, refreshToken string) (domain.IssuedTokens, error) {
	l := slogx.FromContext(ctx)
	now := s.Now.now()

	var (
		set    domain.IssuedTokens
		userID string
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		st, err := tx.AuthTokens().GetAuthTokensByRefreshDigest(ctx, s.Vault.Digest.Digest(refreshToken))
		if err != nil {
			return orNotFound(err, domain.NewError(domain.ErrNotAuthenticated, "unknown refresh token"))
		}
		tokens := domain.AuthTokensFromPersisted(st)
		set, err = tokens.RefreshTokens(ctx, s.Issuer, s.Vault, refreshToken, now)
		if err != nil {
			return err
		}
		userID = tokens.UserID()
		return tx.AuthTokens().UpdateAuthTokens(ctx, tokens.State())
	})
	if err != nil {
		return domain.IssuedTokens{}, err
	}

	l.Debug("platform tokens refreshed", "user_id", userID)
	s.Audit.Record(ctx, audit.Event{Code: domain.AuditTokensRefreshed, UserID: userID})
	return set, nil
}

// Revoke invalidates the token set refreshToken belongs to. Unknown tokens
// are ignored so the call is safe to repeat.
func (s *PlatformTokenService) Revoke(ctx context.Context, refreshToken string) error {
	now := s.Now.now()

	var userID string
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		st, err := tx.AuthTokens().GetAuthTokensByRefreshDigest(ctx, s.Vault.Digest.Digest(refreshToken))
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		tokens := domain.AuthTokensFromPersisted(st)
		if !tokens.RevokeRefreshToken(now) {
			return nil
		}
		userID = tokens.UserID()
		return tx.AuthTokens().UpdateAuthTokens(ctx, tokens.State())
	})
	if err != nil {
		return err
	}
	if userID != "" {
		s.Audit.Record(ctx, audit.Event{Code: domain.AuditTokensRevoked, UserID: userID})
	}
	return nil
}
