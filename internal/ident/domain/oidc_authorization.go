package domain

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"slices"
	"time"
)

// PKCE code challenge methods.
const (
	PKCEPlain = "plain"
	PKCES256  = "S256"
)

// DefaultCodeTTL is how long an authorization code stays exchangeable.
const DefaultCodeTTL = 5 * time.Minute

// AuthorizationStatus is the position in the authorization-code state machine.
type AuthorizationStatus string

const (
	AuthorizationCreated    AuthorizationStatus = "created"
	AuthorizationCodeIssued AuthorizationStatus = "code_issued"
	AuthorizationExchanged  AuthorizationStatus = "exchanged"
	AuthorizationRefreshed  AuthorizationStatus = "refreshed"
)

// OpenIdConnectAuthorizationState is the persisted form of an
// OpenIdConnectAuthorization.
type OpenIdConnectAuthorizationState struct {
	ID          string
	ClientID    string
	UserID      string
	RedirectURI string
	Scopes      []string
	Nonce       *string

	CodeChallenge       *string
	CodeChallengeMethod *string
	CodeDigest          *string
	CodeExpiresAt       *time.Time
	CodeExchangedAt     *time.Time
	AuthTime            *time.Time

	AccessToken     *SealedToken
	RefreshToken    *SealedToken
	IDToken         *SealedToken
	TokenScopes     []string
	LastRefreshedAt *time.Time

	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OpenIdConnectAuthorization is one client's grant for one user.
type OpenIdConnectAuthorization struct {
	st OpenIdConnectAuthorizationState
}

// NewOpenIdConnectAuthorization returns a grant with no code issued yet.
func NewOpenIdConnectAuthorization(id, clientID, userID string, now time.Time) *OpenIdConnectAuthorization {
	return &OpenIdConnectAuthorization{st: OpenIdConnectAuthorizationState{
		ID:        id,
		ClientID:  clientID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}}
}

// OpenIdConnectAuthorizationFromPersisted rehydrates a grant from storage.
func OpenIdConnectAuthorizationFromPersisted(st OpenIdConnectAuthorizationState) *OpenIdConnectAuthorization {
	st.Scopes = slices.Clone(st.Scopes)
	st.TokenScopes = slices.Clone(st.TokenScopes)
	return &OpenIdConnectAuthorization{st: st}
}

// State returns a copy of the grant for persistence.
func (a *OpenIdConnectAuthorization) State() OpenIdConnectAuthorizationState {
	st := a.st
	st.Scopes = slices.Clone(a.st.Scopes)
	st.TokenScopes = slices.Clone(a.st.TokenScopes)
	return st
}

func (a *OpenIdConnectAuthorization) ID() string { return a.st.ID }
func (a *OpenIdConnectAuthorization) ClientID() string { return a.st.ClientID }
func (a *OpenIdConnectAuthorization) UserID() string { return a.st.UserID }
func (a *OpenIdConnectAuthorization) Scopes() []string { return slices.Clone(a.st.Scopes) }

// TokenScopes are the scopes of the currently issued token set.
func (a *OpenIdConnectAuthorization) TokenScopes() []string { return slices.Clone(a.st.TokenScopes) }

// Status derives the state machine position from the recorded timestamps.
func (a *OpenIdConnectAuthorization) Status() AuthorizationStatus {
	switch {
	case a.st.CodeDigest != nil:
		return AuthorizationCodeIssued
	case a.st.LastRefreshedAt != nil && a.st.RefreshToken != nil:
		return AuthorizationRefreshed
	case a.st.CodeExchangedAt != nil:
		return AuthorizationExchanged
	}
	return AuthorizationCreated
}

// AuthorizeCodeRequest carries the validated parameters of an authorize call.
type AuthorizeCodeRequest struct {
	RedirectURI         string
	Scopes              []string
	Nonce               *string
	CodeChallenge       *string
	CodeChallengeMethod *string
	TTL                 time.Duration
}

// AuthorizeCode issues a fresh single-use code, replacing any pending one, and
// returns it raw. Only its digest is kept.
func (a *OpenIdConnectAuthorization) AuthorizeCode(gen SecretGenerator, d Digester, req AuthorizeCodeRequest, now time.Time) (string, error) {
	if req.RedirectURI == "" {
		return "", validationError("redirect_uri is required")
	}
	if len(req.Scopes) == 0 {
		return "", validationError("scope is required")
	}
	challenge, method, err := normalizePKCE(req.CodeChallenge, req.CodeChallengeMethod)
	if err != nil {
		return "", err
	}
	code, err := gen.Token()
	if err != nil {
		return "", fmt.Errorf("generate authorization code: %w", err)
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	digest := d.Digest(code)
	expires := now.Add(ttl)

	a.st.RedirectURI = req.RedirectURI
	a.st.Scopes = slices.Clone(req.Scopes)
	a.st.Nonce = req.Nonce
	a.st.CodeChallenge = challenge
	a.st.CodeChallengeMethod = method
	a.st.CodeDigest = &digest
	a.st.CodeExpiresAt = &expires
	a.st.AuthTime = &now
	a.st.UpdatedAt = now
	return code, nil
}

// ExchangeCodeRequest carries the token-endpoint parameters of a code exchange.
type ExchangeCodeRequest struct {
	Code         string
	RedirectURI  string
	CodeVerifier *string
}

// ExchangeCode redeems the pending code for a token set. The code is cleared on
// success, so a second exchange of the same code fails.
func (a *OpenIdConnectAuthorization) ExchangeCode(ctx context.Context, issuer TokenIssuer, vault TokenVault, req ExchangeCodeRequest, now time.Time) (IssuedTokens, error) {
	if a.st.CodeDigest == nil || req.Code == "" ||
		subtle.ConstantTimeCompare([]byte(vault.Digest.Digest(req.Code)), []byte(*a.st.CodeDigest)) != 1 {
		return IssuedTokens{}, validationError("unknown authorization code")
	}
	if a.st.CodeExpiresAt == nil || !now.Before(*a.st.CodeExpiresAt) {
		return IssuedTokens{}, validationError("authorization code expired")
	}
	if req.RedirectURI != a.st.RedirectURI {
		return IssuedTokens{}, validationError("redirect_uri does not match the authorization request")
	}
	if a.st.CodeChallenge != nil {
		if req.CodeVerifier == nil || *req.CodeVerifier == "" {
			return IssuedTokens{}, validationError("code_verifier is required")
		}
		if !VerifyCodeVerifier(*a.st.CodeChallenge, deref(a.st.CodeChallengeMethod), *req.CodeVerifier) {
			return IssuedTokens{}, validationError("code_verifier does not match the code challenge")
		}
	}

	set, err := issuer.Issue(ctx, TokenRequest{
		Subject:  a.st.UserID,
		Audience: a.st.ClientID,
		Scopes:   a.st.Scopes,
		Nonce:    a.st.Nonce,
		AuthTime: *a.authTime(),
	})
	if err != nil {
		return IssuedTokens{}, NewError(ErrUnexpected, "issue tokens").Because(err)
	}
	if err := a.storeTokens(ctx, vault, set); err != nil {
		return IssuedTokens{}, err
	}

	a.st.CodeDigest = nil
	a.st.CodeExpiresAt = nil
	a.st.CodeChallenge = nil
	a.st.CodeChallengeMethod = nil
	a.st.CodeExchangedAt = &now
	a.st.LastRefreshedAt = nil
	a.st.UpdatedAt = now
	return set, nil
}

// RefreshTokens rotates the whole token set. The presented refresh token stops
// resolving immediately. A non-empty scope must narrow the granted scopes.
func (a *OpenIdConnectAuthorization) RefreshTokens(ctx context.Context, issuer TokenIssuer, vault TokenVault, refreshToken string, scope []string, now time.Time) (IssuedTokens, error) {
	if !a.st.RefreshToken.Matches(vault.Digest, refreshToken) {
		return IssuedTokens{}, notAuthenticatedError("unknown refresh token")
	}
	if a.st.RefreshToken.Expired(now) {
		return IssuedTokens{}, notAuthenticatedError("refresh token expired")
	}
	scopes := a.st.Scopes
	if len(scope) > 0 {
		if !ScopesSubset(scope, a.st.Scopes) {
			return IssuedTokens{}, validationError("requested scope exceeds the original grant")
		}
		scopes = scope
	}
	set, err := issuer.Issue(ctx, TokenRequest{
		Subject:  a.st.UserID,
		Audience: a.st.ClientID,
		Scopes:   scopes,
		AuthTime: *a.authTime(),
	})
	if err != nil {
		return IssuedTokens{}, NewError(ErrUnexpected, "issue tokens").Because(err)
	}
	if err := a.storeTokens(ctx, vault, set); err != nil {
		return IssuedTokens{}, err
	}
	a.st.LastRefreshedAt = &now
	a.st.UpdatedAt = now
	return set, nil
}

// AccessTokenValid reports whether raw is the current, unexpired access token.
func (a *OpenIdConnectAuthorization) AccessTokenValid(d Digester, raw string, now time.Time) bool {
	return a.st.AccessToken.Matches(d, raw) && !a.st.AccessToken.Expired(now)
}

// RevokeTokens drops the token set. Revoking twice is a no-op.
func (a *OpenIdConnectAuthorization) RevokeTokens(now time.Time) bool {
	if a.st.AccessToken == nil && a.st.RefreshToken == nil && a.st.IDToken == nil {
		return false
	}
	a.st.AccessToken = nil
	a.st.RefreshToken = nil
	a.st.IDToken = nil
	a.st.TokenScopes = nil
	a.st.UpdatedAt = now
	return true
}

// ExpireCode clears a pending code that has outlived its TTL.
func (a *OpenIdConnectAuthorization) ExpireCode(now time.Time) bool {
	if a.st.CodeDigest == nil || a.st.CodeExpiresAt == nil || now.Before(*a.st.CodeExpiresAt) {
		return false
	}
	a.st.CodeDigest = nil
	a.st.CodeExpiresAt = nil
	a.st.CodeChallenge = nil
	a.st.CodeChallengeMethod = nil
	a.st.UpdatedAt = now
	return true
}

func (a *OpenIdConnectAuthorization) storeTokens(ctx context.Context, vault TokenVault, set IssuedTokens) error {
	access, refresh, id, err := vault.sealAll(ctx, set)
	if err != nil {
		return NewError(ErrUnexpected, "seal tokens").Because(err)
	}
	a.st.AccessToken = access
	a.st.RefreshToken = refresh
	a.st.IDToken = id
	a.st.TokenScopes = slices.Clone(set.Scopes)
	return nil
}

func (a *OpenIdConnectAuthorization) authTime() *time.Time {
	if a.st.AuthTime != nil {
		return a.st.AuthTime
	}
	return &a.st.CreatedAt
}

// VerifyCodeVerifier checks a PKCE verifier against a stored challenge.
// plain compares directly; S256 compares base64url(SHA-256(verifier)).
func VerifyCodeVerifier(challenge, method, verifier string) bool {
	if challenge == "" || verifier == "" {
		return false
	}
	switch method {
	case PKCEPlain:
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(verifier)) == 1
	case PKCES256:
		sum := sha256.Sum256([]byte(verifier))
		expected := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(expected)) == 1
	}
	return false
}

func normalizePKCE(challenge, method *string) (*string, *string, error) {
	if challenge == nil || *challenge == "" {
		if method != nil && *method != "" {
			return nil, nil, validationError("code_challenge_method given without code_challenge")
		}
		return nil, nil, nil
	}
	if method == nil || *method == "" {
		return nil, nil, validationError("code_challenge_method is required with code_challenge")
	}
	switch *method {
	case PKCEPlain, PKCES256:
	default:
		return nil, nil, Errorf(ErrValidation, "unsupported code_challenge_method %q", *method)
	}
	c, m := *challenge, *method
	return &c, &m, nil
}
