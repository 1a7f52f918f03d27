package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/ident/internal/ident/service"
	"github.com/aussiebroadwan/ident/pkg/authsdk"
	"github.com/aussiebroadwan/ident/pkg/httpx"
	"github.com/aussiebroadwan/ident/pkg/slogx"
)

// AuthorizeHandler serves GET /oauth2/authorize. The user's session is the
// platform access token of a direct login, when present.
type AuthorizeHandler struct {
	AuthorizeService *service.AuthorizeService

	// Issuer is prefixed to the request URI to build the return_to link.
	Issuer string
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Authorization Endpoint
//	@Description	Starts the authorization code flow. Users without a session are redirected to login, users who have not
//	@Description	consented to the requested scopes are redirected to consent, and everyone else is redirected back to the
//	@Description	client with a code. An unknown client or unregistered redirect_uri is reported inline.
//	@Tags			OAuth2
//	@Produce		json
//	@Param			response_type			query		string	true	"Must be code"
//	@Param			client_id				query		string	true	"Client identifier"
//	@Param			redirect_uri			query		string	false	"Registered redirect URI"
//	@Param			scope					query		string	true	"Space-delimited scopes, must include openid"
//	@Param			state					query		string	false	"Opaque value echoed back to the client"
//	@Param			nonce					query		string	false	"Bound into the ID token"
//	@Param			code_challenge			query		string	false	"PKCE challenge (required for public clients)"
//	@Param			code_challenge_method	query		string	false	"PKCE method"	Enums(S256, plain)
//	@Success		302						"Redirect to login, consent, or the client"
//	@Failure		400						{object}	authsdk.ErrorResponse	"error, error_description"
//	@Security		BearerAuth
//	@Router			/oauth2/authorize [get].
func (h *AuthorizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := service.AuthorizeRequest{
		ResponseType:        q.Get("response_type"),
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scope:               q.Get("scope"),
		State:               q.Get("state"),
		Nonce:               q.Get("nonce"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
		ReturnTo:            h.Issuer + r.URL.RequestURI(),
	}

	var userID string
	if p, ok := httpx.PrincipalFrom(r.Context()); ok {
		userID = p.UserID
	}

	res, err := h.AuthorizeService.Authorize(r.Context(), userID, req)
	if err != nil {
		var redirect *service.RedirectError
		if errors.As(err, &redirect) {
			httpx.NoCache(w)
			http.Redirect(w, r, redirect.Location(), http.StatusFound)
			return
		}

		// The redirect URI cannot be trusted; tell the user instead.
		switch {
		case errors.Is(err, service.ErrInvalidClient):
			authsdk.NewOAuth2Error(http.StatusBadRequest, authsdk.ErrorCodeInvalidClient, service.Description(err)).WriteError(w)
		case errors.Is(err, service.ErrInvalidRequest):
			authsdk.ErrInvalidRequest.WithDescription(service.Description(err)).WriteError(w)
		default:
			slogx.FromContext(r.Context()).Error("authorize failed", "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	httpx.NoCache(w)
	http.Redirect(w, r, res.Location, http.StatusFound)
}
