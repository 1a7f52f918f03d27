package http

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/service"
	"github.com/aussiebroadwan/ident/pkg/authsdk"
	"github.com/aussiebroadwan/ident/pkg/httpx"
)

// TokenHandler serves POST /oauth2/token
// Accepts application/x-www-form-urlencoded per the RFC 6749 framework.
type TokenHandler struct {
	TokenService *service.TokenService
	Now          func() time.Time
}

// ServeHTTP godoc
//
//	@Summary		OAuth2 Token Endpoint
//	@Description	Exchanges an authorization code (with its PKCE verifier) or a refresh token for a token set.
//	@Description	Clients authenticate with HTTP Basic or client_id/client_secret form fields; public clients send client_id only.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type		formData	string					true	"Grant type"	Enums(authorization_code, refresh_token)
//	@Param			code			formData	string					false	"Authorization code (authorization_code grant)"
//	@Param			redirect_uri	formData	string					false	"Redirect URI used in the authorization request"
//	@Param			code_verifier	formData	string					false	"PKCE code_verifier"
//	@Param			refresh_token	formData	string					false	"Refresh token (refresh_token grant)"
//	@Param			client_id		formData	string					false	"Client identifier when not using HTTP Basic"
//	@Param			client_secret	formData	string					false	"Client secret when not using HTTP Basic"
//	@Param			scope			formData	string					false	"Space-delimited subset of the granted scope"
//	@Success		200				{object}	authsdk.TokenResponse	"access_token, refresh_token, id_token, token_type, expires_in, scope"
//	@Failure		400				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		401				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Failure		500				{object}	authsdk.ErrorResponse	"error, error_description"
//	@Header			200				{string}	Cache-Control			"no-store"
//	@Header			200				{string}	Pragma					"no-cache"
//	@Router			/oauth2/token [post].
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	creds, oerr := clientForm(r)
	if oerr != nil {
		oerr.WriteError(w)
		return
	}

	req := service.TokenRequest{
		GrantType:    r.PostForm.Get("grant_type"),
		Code:         strings.TrimSpace(r.PostForm.Get("code")),
		RedirectURI:  strings.TrimSpace(r.PostForm.Get("redirect_uri")),
		CodeVerifier: strings.TrimSpace(r.PostForm.Get("code_verifier")),
		RefreshToken: r.PostForm.Get("refresh_token"),
		Scope:        strings.TrimSpace(r.PostForm.Get("scope")),
	}
	set, err := h.TokenService.Token(r.Context(), creds, req)
	if err != nil {
		oauthError(r, err).WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(set, h.Now()))
}

// clientForm parses a form-encoded client request and resolves how the
// client authenticates.
func clientForm(r *http.Request) (service.ClientCredentials, *authsdk.OAuth2Error) {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		return service.ClientCredentials{}, authsdk.ErrInvalidContentType
	}
	if err := r.ParseForm(); err != nil {
		return service.ClientCredentials{}, authsdk.ErrInvalidFormBody
	}
	return clientCredentials(r)
}

// clientCredentials reads client authentication from HTTP Basic or the form
// body. Using both at once is rejected (RFC 6749 section 2.3).
func clientCredentials(r *http.Request) (service.ClientCredentials, *authsdk.OAuth2Error) {
	formID := r.PostForm.Get("client_id")
	formSecret := r.PostForm.Get("client_secret")

	user, pass, ok := r.BasicAuth()
	if !ok {
		return service.ClientCredentials{ID: formID, Secret: formSecret}, nil
	}
	if formSecret != "" {
		return service.ClientCredentials{}, authsdk.ErrInvalidRequest.WithDescription("use either HTTP Basic or client_secret, not both")
	}

	// Basic credentials are form-encoded before base64 (RFC 6749 section 2.3.1).
	id, err := url.QueryUnescape(user)
	if err != nil {
		return service.ClientCredentials{}, authsdk.ErrInvalidClient
	}
	secret, err := url.QueryUnescape(pass)
	if err != nil {
		return service.ClientCredentials{}, authsdk.ErrInvalidClient
	}
	if formID != "" && formID != id {
		return service.ClientCredentials{}, authsdk.ErrInvalidRequest.WithDescription("client_id does not match HTTP Basic credentials")
	}
	return service.ClientCredentials{ID: id, Secret: secret}, nil
}
