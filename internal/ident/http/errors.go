package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/internal/ident/service"
	"github.com/aussiebroadwan/ident/pkg/authsdk"
	"github.com/aussiebroadwan/ident/pkg/httpx"
	"github.com/aussiebroadwan/ident/pkg/idx"
	"github.com/aussiebroadwan/ident/pkg/slogx"
)

// kindStatus maps a domain error kind onto the /v1 status code and error
// code.
func kindStatus(kind error) (int, string) {
	switch kind {
	case domain.ErrValidation:
		return http.StatusBadRequest, authsdk.ErrorCodeValidation
	case domain.ErrNotAuthenticated:
		return http.StatusUnauthorized, authsdk.ErrorCodeNotAuthenticated
	case domain.ErrForbiddenAccess:
		return http.StatusForbidden, authsdk.ErrorCodeForbiddenAccess
	case domain.ErrEntityNotFound:
		return http.StatusNotFound, authsdk.ErrorCodeEntityNotFound
	case domain.ErrEntityLocked:
		return http.StatusLocked, authsdk.ErrorCodeEntityLocked
	case domain.ErrPreconditionViolation:
		return http.StatusPreconditionFailed, authsdk.ErrorCodePreconditionViolation
	default:
		return http.StatusInternalServerError, authsdk.ErrorCodeUnexpected
	}
}

// writeError reports err on a /v1 route. Unexpected failures are logged and
// their detail withheld from the caller.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status, code := kindStatus(kind)

	desc := domain.ReasonOf(err)
	if kind == domain.ErrUnexpected {
		slogx.FromContext(r.Context()).Error("request failed", "err", err)
		desc = "internal error"
	}

	out := authsdk.NewOAuth2Error(status, code, desc)
	out.Data = domain.DataOf(err)
	out.WriteError(w)
}

// invalidBody reports a request body that could not be decoded.
func invalidBody(w http.ResponseWriter, err error) {
	authsdk.NewOAuth2Error(http.StatusBadRequest, authsdk.ErrorCodeValidation, "invalid request body: "+err.Error()).WriteError(w)
}

// decode reads a JSON body into dst and reports failures itself.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(w, r, dst); err != nil {
		invalidBody(w, err)
		return false
	}
	return true
}

// oauthError translates a token or revocation endpoint failure into its
// RFC 6749 error response.
func oauthError(r *http.Request, err error) *authsdk.OAuth2Error {
	var out *authsdk.OAuth2Error
	switch {
	case errors.Is(err, service.ErrInvalidClient):
		out = authsdk.ErrInvalidClient
	case errors.Is(err, service.ErrInvalidGrant):
		out = authsdk.ErrInvalidGrant
	case errors.Is(err, service.ErrUnsupportedGrantType):
		out = authsdk.ErrUnsupportedGrantType
	case errors.Is(err, service.ErrInvalidScope):
		out = authsdk.ErrInvalidScope
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, domain.ErrValidation):
		out = authsdk.ErrInvalidRequest
	case errors.Is(err, domain.ErrNotAuthenticated), errors.Is(err, domain.ErrEntityNotFound):
		out = authsdk.ErrInvalidGrant
	default:
		slogx.FromContext(r.Context()).Error("oauth2 request failed", "err", err)
		return authsdk.ErrServerError
	}

	if desc := service.Description(err); desc != "" {
		return out.WithDescription(desc)
	}
	if reason := domain.ReasonOf(err); reason != "" {
		return out.WithDescription(reason)
	}
	return out
}

// tokenResponse renders an issued token set. expires_in counts from now.
func tokenResponse(set domain.IssuedTokens, now time.Time) authsdk.TokenResponse {
	expiresIn := int(set.AccessExpiresAt.Sub(now).Round(time.Second).Seconds())
	return authsdk.TokenResponse{
		AccessToken:  set.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: set.RefreshToken,
		IDToken:      set.IDToken,
		ExpiresIn:    max(expiresIn, 0),
		Scope:        joinScopes(set.Scopes),
	}
}

// pathID reads an entity id from the path. A malformed id names nothing, so
// it is reported as not found without reaching the store.
func pathID(r *http.Request, name string) (string, error) {
	id, err := idx.Parse(r.PathValue(name))
	if err != nil {
		return "", domain.NewError(domain.ErrEntityNotFound, name+" not found")
	}
	return id.String(), nil
}
