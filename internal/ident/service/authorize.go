package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/audit"
	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/internal/ident/store"
	"github.com/aussiebroadwan/ident/pkg/idx"
	"github.com/aussiebroadwan/ident/pkg/slogx"
)

// Authorization endpoint errors that are reported back to the client through
// its redirect URI.
var (
	ErrUnsupportedResponseType = errors.New("unsupported_response_type")
	ErrAccessDenied            = errors.New("access_denied")
	ErrServerError             = errors.New("server_error")
)

// AuthorizeService validates authorization requests and issues PKCE-bound
// authorization codes.
type AuthorizeService struct {
	Store   store.Store
	Secrets domain.SecretGenerator
	Digest  domain.Digester
	Audit   *audit.Recorder

	// LoginURL and ConsentURL are where users without a session, or without
	// consent for the requested scopes, are sent. Both receive a return_to
	// parameter pointing back at the original authorize request.
	LoginURL   string
	ConsentURL string

	CodeTTL time.Duration
	Now     Clock
}

// AuthorizeRequest is an authorization request as received, before any
// validation.
type AuthorizeRequest struct {
	ResponseType        string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string

	// ReturnTo is the absolute URL of the request itself, used to come back
	// after login or consent.
	ReturnTo string
}

// AuthorizeDecision says what the authorization endpoint should do next.
type AuthorizeDecision int

const (
	// DecisionCode means a code was issued and Location is the client's
	// redirect URI carrying it.
	DecisionCode AuthorizeDecision = iota
	// DecisionLogin sends the user to sign in first.
	DecisionLogin
	// DecisionConsent sends the user to grant the requested scopes.
	DecisionConsent
)

// AuthorizeResult is the outcome of Authorize. Every decision is a redirect
// to Location.
type AuthorizeResult struct {
	Decision AuthorizeDecision
	Location string
}

// RedirectError is an error that must be reported to the client by
// redirecting to its redirect URI with error and error_description
// parameters. Errors of any other type mean the redirect URI itself cannot be
// trusted and the error is shown to the user instead.
type RedirectError struct {
	RedirectURI string
	State       string
	Err         error
	Description string
}

func (e *RedirectError) Error() string { return e.Err.Error() + ": " + e.Description }
func (e *RedirectError) Unwrap() error { return e.Err }

// Location returns the redirect URI with the error parameters appended.
func (e *RedirectError) Location() string {
	q := url.Values{}
	q.Set("error", e.Err.Error())
	if e.Description != "" {
		q.Set("error_description", e.Description)
	}
	if e.State != "" {
		q.Set("state", e.State)
	}
	return appendQuery(e.RedirectURI, q)
}

// Authorize handles one authorization request for userID. An empty userID
// means the request carries no valid session.
func (s *AuthorizeService) Authorize(ctx context.Context, userID string, req AuthorizeRequest) (AuthorizeResult, error) {
	l := slogx.FromContext(ctx)
	now := s.Now.now()

	if req.ClientID == "" {
		return AuthorizeResult{}, protocolErr(ErrInvalidRequest, "client_id is required")
	}
	cst, err := s.Store.Clients().GetClient(ctx, req.ClientID)
	if errors.Is(err, store.ErrNotFound) {
		return AuthorizeResult{}, protocolErr(ErrInvalidClient, "unknown client")
	}
	if err != nil {
		return AuthorizeResult{}, fmt.Errorf("load client: %w", err)
	}
	client := domain.OAuth2ClientFromPersisted(cst)
	if client.Deleted() {
		return AuthorizeResult{}, protocolErr(ErrInvalidClient, "unknown client")
	}

	redirectURI := req.RedirectURI
	if redirectURI == "" {
		redirectURI = client.RedirectURI()
	}
	if redirectURI != client.RedirectURI() {
		return AuthorizeResult{}, protocolErr(ErrInvalidRequest, "redirect_uri is not registered for this client")
	}

	fail := func(code error, desc string) (AuthorizeResult, error) {
		return AuthorizeResult{}, &RedirectError{RedirectURI: redirectURI, State: req.State, Err: code, Description: desc}
	}

	if req.ResponseType != "code" {
		return fail(ErrUnsupportedResponseType, "only response_type=code is supported")
	}
	scopes := domain.ParseScopes(req.Scope)
	if !slices.Contains(scopes, domain.ScopeOpenID) {
		return fail(ErrInvalidScope, "scope must include openid")
	}
	if !domain.ScopesSubset(scopes, domain.SupportedScopes) {
		return fail(ErrInvalidScope, "unsupported scope requested")
	}
	if client.Public() && req.CodeChallenge == "" {
		return fail(ErrInvalidRequest, "code_challenge is required for public clients")
	}

	if userID == "" {
		return AuthorizeResult{Decision: DecisionLogin, Location: s.interaction(s.LoginURL, req, nil)}, nil
	}

	consent, err := s.Store.Consents().GetConsent(ctx, client.ID(), userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return s.needConsent(client, scopes, req), nil
	case err != nil:
		return fail(ErrServerError, "")
	}
	if !domain.OAuth2ClientConsentFromPersisted(consent).HasConsented(scopes...) {
		return s.needConsent(client, scopes, req), nil
	}

	var code string
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		var (
			authz  *domain.OpenIdConnectAuthorization
			exists = true
		)
		st, err := tx.Authorizations().GetAuthorizationByClientUser(ctx, client.ID(), userID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			authz = domain.NewOpenIdConnectAuthorization(idx.NewAt(now).String(), client.ID(), userID, now)
			exists = false
		case err != nil:
			return err
		default:
			authz = domain.OpenIdConnectAuthorizationFromPersisted(st)
		}

		code, err = authz.AuthorizeCode(s.Secrets, s.Digest, domain.AuthorizeCodeRequest{
			RedirectURI:         redirectURI,
			Scopes:              scopes,
			Nonce:               nonEmpty(req.Nonce),
			CodeChallenge:       nonEmpty(req.CodeChallenge),
			CodeChallengeMethod: nonEmpty(req.CodeChallengeMethod),
			TTL:                 s.CodeTTL,
		}, now)
		if err != nil {
			return err
		}
		if exists {
			return tx.Authorizations().UpdateAuthorization(ctx, authz.State())
		}
		return tx.Authorizations().CreateAuthorization(ctx, authz.State())
	})
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			return fail(ErrInvalidRequest, domain.ReasonOf(err))
		}
		l.Error("issue authorization code", "client_id", client.ID(), "error", err)
		return fail(ErrServerError, "")
	}

	l.Info("authorization code issued", "client_id", client.ID(), "user_id", userID)
	s.Audit.Record(ctx, audit.Event{Code: domain.AuditAuthorizationCodeIssued, UserID: userID, ClientID: client.ID()})

	q := url.Values{"code": {code}}
	if req.State != "" {
		q.Set("state", req.State)
	}
	return AuthorizeResult{Decision: DecisionCode, Location: appendQuery(redirectURI, q)}, nil
}

func (s *AuthorizeService) needConsent(client *domain.OAuth2Client, scopes []string, req AuthorizeRequest) AuthorizeResult {
	extra := url.Values{
		"client_id":   {client.ID()},
		"client_name": {client.Name()},
		"scope":       {domain.FormatScopes(scopes)},
	}
	return AuthorizeResult{Decision: DecisionConsent, Location: s.interaction(s.ConsentURL, req, extra)}
}

func (s *AuthorizeService) interaction(base string, req AuthorizeRequest, extra url.Values) string {
	q := url.Values{}
	if req.ReturnTo != "" {
		q.Set("return_to", req.ReturnTo)
	}
	for k, v := range extra {
		q[k] = v
	}
	return appendQuery(base, q)
}

func appendQuery(raw string, q url.Values) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	existing := u.Query()
	for k, v := range q {
		existing[k] = v
	}
	u.RawQuery = existing.Encode()
	return u.String()
}
