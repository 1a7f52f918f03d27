package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/ident/internal/ident/audit"
	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/internal/ident/store"
	"github.com/aussiebroadwan/ident/pkg/slogx"
)

// OAuth2 grant types accepted by the token endpoint.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
)

// Token type hints of RFC 7009.
const (
	HintAccessToken  = "access_token"
	HintRefreshToken = "refresh_token"
)

// TokenService implements the token, revocation and userinfo endpoints for
// OAuth2 clients.
type TokenService struct {
	Store  store.Store
	Hasher domain.PasswordHasher
	Issuer domain.TokenIssuer
	Vault  domain.TokenVault
	Audit  *audit.Recorder
	Now    Clock
}

// ClientCredentials are the client authentication parameters of a token
// endpoint request, from either the form body or HTTP Basic.
type ClientCredentials struct {
	ID     string
	Secret string
}

// TokenRequest is a token endpoint request.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	CodeVerifier string
	RefreshToken string
	Scope        string
}

// authenticateClient resolves the calling client. Confidential clients must
// present a valid secret; public clients must present none.
func (s *TokenService) authenticateClient(ctx context.Context, creds ClientCredentials) (*domain.OAuth2Client, error) {
	if creds.ID == "" {
		return nil, protocolErr(ErrInvalidClient, "client authentication is required")
	}
	st, err := s.Store.Clients().GetClient(ctx, creds.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, protocolErr(ErrInvalidClient, "client authentication failed")
	}
	if err != nil {
		return nil, fmt.Errorf("load client: %w", err)
	}
	client := domain.OAuth2ClientFromPersisted(st)
	if client.Deleted() {
		return nil, protocolErr(ErrInvalidClient, "client authentication failed")
	}
	if client.Public() {
		if creds.Secret != "" {
			return nil, protocolErr(ErrInvalidClient, "public clients must not send a secret")
		}
		return client, nil
	}
	if err := client.VerifySecret(ctx, s.Hasher, creds.Secret, s.Now.now()); err != nil {
		if errors.Is(err, domain.ErrUnexpected) {
			return nil, err
		}
		return nil, protocolErr(ErrInvalidClient, "client authentication failed")
	}
	return client, nil
}

// Token dispatches a token request on its grant type.
func (s *TokenService) Token(ctx context.Context, creds ClientCredentials, req TokenRequest) (domain.IssuedTokens, error) {
	switch req.GrantType {
	case GrantAuthorizationCode:
		return s.ExchangeCode(ctx, creds, req)
	case GrantRefreshToken:
		return s.Refresh(ctx, creds, req)
	case "":
		return domain.IssuedTokens{}, protocolErr(ErrInvalidRequest, "grant_type is required")
	}
	return domain.IssuedTokens{}, protocolErr(ErrUnsupportedGrantType, req.GrantType)
}

// ExchangeCode redeems an authorization code.
func (s *TokenService) ExchangeCode(ctx context.Context, creds ClientCredentials, req TokenRequest) (domain.IssuedTokens, error) {
	l := slogx.FromContext(ctx)
	now := s.Now.now()

	client, err := s.authenticateClient(ctx, creds)
	if err != nil {
		return domain.IssuedTokens{}, err
	}
	if req.Code == "" {
		return domain.IssuedTokens{}, protocolErr(ErrInvalidRequest, "code is required")
	}
	if req.RedirectURI == "" {
		return domain.IssuedTokens{}, protocolErr(ErrInvalidRequest, "redirect_uri is required")
	}

	var (
		set    domain.IssuedTokens
		userID string
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		st, err := tx.Authorizations().GetAuthorizationByCode(ctx, client.ID(), s.Vault.Digest.Digest(req.Code))
		if errors.Is(err, store.ErrNotFound) {
			return protocolErr(ErrInvalidGrant, "unknown authorization code")
		}
		if err != nil {
			return err
		}
		authz := domain.OpenIdConnectAuthorizationFromPersisted(st)
		set, err = authz.ExchangeCode(ctx, s.Issuer, s.Vault, domain.ExchangeCodeRequest{
			Code:         req.Code,
			RedirectURI:  req.RedirectURI,
			CodeVerifier: nonEmpty(req.CodeVerifier),
		}, now)
		if errors.Is(err, domain.ErrValidation) {
			return protocolErr(ErrInvalidGrant, domain.ReasonOf(err))
		}
		if err != nil {
			return err
		}
		userID = authz.UserID()
		return tx.Authorizations().UpdateAuthorization(ctx, authz.State())
	})
	if err != nil {
		return domain.IssuedTokens{}, err
	}

	l.Info("authorization code exchanged", "client_id", client.ID(), "user_id", userID)
	s.Audit.RecordAll(ctx, audit.Event{UserID: userID, ClientID: client.ID()},
		domain.AuditAuthorizationCodeExchanged, domain.AuditTokensIssued)
	return set, nil
}

// Refresh rotates the token set of the grant the refresh token belongs to.
func (s *TokenService) Refresh(ctx context.Context, creds ClientCredentials, req TokenRequest) (domain.IssuedTokens, error) {
	now := s.Now.now()

	client, err := s.authenticateClient(ctx, creds)
	if err != nil {
		return domain.IssuedTokens{}, err
	}
	if req.RefreshToken == "" {
		return domain.IssuedTokens{}, protocolErr(ErrInvalidRequest, "refresh_token is required")
	}

	var (
		set    domain.IssuedTokens
		userID string
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		st, err := tx.Authorizations().GetAuthorizationByRefreshDigest(ctx, s.Vault.Digest.Digest(req.RefreshToken))
		if errors.Is(err, store.ErrNotFound) {
			return protocolErr(ErrInvalidGrant, "unknown refresh token")
		}
		if err != nil {
			return err
		}
		authz := domain.OpenIdConnectAuthorizationFromPersisted(st)
		if authz.ClientID() != client.ID() {
			return protocolErr(ErrInvalidGrant, "refresh token was issued to another client")
		}
		set, err = authz.RefreshTokens(ctx, s.Issuer, s.Vault, req.RefreshToken, domain.ParseScopes(req.Scope), now)
		switch {
		case errors.Is(err, domain.ErrNotAuthenticated):
			return protocolErr(ErrInvalidGrant, domain.ReasonOf(err))
		case errors.Is(err, domain.ErrValidation):
			return protocolErr(ErrInvalidScope, domain.ReasonOf(err))
		case err != nil:
			return err
		}
		userID = authz.UserID()
		return tx.Authorizations().UpdateAuthorization(ctx, authz.State())
	})
	if err != nil {
		return domain.IssuedTokens{}, err
	}

	s.Audit.Record(ctx, audit.Event{Code: domain.AuditTokensRefreshed, UserID: userID, ClientID: client.ID()})
	return set, nil
}

// Revoke implements RFC 7009. Tokens that are unknown, already revoked or
// belong to another client are silently accepted.
func (s *TokenService) Revoke(ctx context.Context, creds ClientCredentials, token, hint string) error {
	now := s.Now.now()

	client, err := s.authenticateClient(ctx, creds)
	if err != nil {
		return err
	}
	if token == "" {
		return protocolErr(ErrInvalidRequest, "token is required")
	}

	digest := s.Vault.Digest.Digest(token)
	lookups := []func(tx store.Tx) (domain.OpenIdConnectAuthorizationState, error){
		func(tx store.Tx) (domain.OpenIdConnectAuthorizationState, error) {
			return tx.Authorizations().GetAuthorizationByRefreshDigest(ctx, digest)
		},
		func(tx store.Tx) (domain.OpenIdConnectAuthorizationState, error) {
			return tx.Authorizations().GetAuthorizationByAccessDigest(ctx, client.ID(), digest)
		},
	}
	if hint == HintAccessToken {
		lookups[0], lookups[1] = lookups[1], lookups[0]
	}

	var userID string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		for _, lookup := range lookups {
			st, err := lookup(tx)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			authz := domain.OpenIdConnectAuthorizationFromPersisted(st)
			if authz.ClientID() != client.ID() || !authz.RevokeTokens(now) {
				return nil
			}
			userID = authz.UserID()
			return tx.Authorizations().UpdateAuthorization(ctx, authz.State())
		}
		return nil
	})
	if err != nil {
		return err
	}
	if userID != "" {
		s.Audit.Record(ctx, audit.Event{Code: domain.AuditTokensRevoked, UserID: userID, ClientID: client.ID()})
	}
	return nil
}

// UserInfo returns the claims the access token's scopes allow. clientID is
// the audience of the already verified token.
func (s *TokenService) UserInfo(ctx context.Context, clientID, accessToken string) (domain.UserInfo, error) {
	now := s.Now.now()
	invalid := domain.NewError(domain.ErrNotAuthenticated, "invalid access token")

	st, err := s.Store.Authorizations().GetAuthorizationByAccessDigest(ctx, clientID, s.Vault.Digest.Digest(accessToken))
	if err != nil {
		return domain.UserInfo{}, orNotFound(err, invalid)
	}
	authz := domain.OpenIdConnectAuthorizationFromPersisted(st)
	if !authz.AccessTokenValid(s.Vault.Digest, accessToken, now) {
		return domain.UserInfo{}, invalid
	}

	profile, err := s.Store.Profiles().GetProfile(ctx, authz.UserID())
	switch {
	case errors.Is(err, store.ErrNotFound):
		profile = domain.UserProfile{UserID: authz.UserID()}
	case err != nil:
		return domain.UserInfo{}, fmt.Errorf("load profile: %w", err)
	}
	return domain.UserInfoClaims(profile, authz.TokenScopes()), nil
}
