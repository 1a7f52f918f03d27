package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/internal/ident/service"
	"github.com/aussiebroadwan/ident/pkg/authsdk"
	"github.com/aussiebroadwan/ident/pkg/httpx"
	"github.com/aussiebroadwan/ident/pkg/slogx"
)

// UserInfoHandler serves the OIDC userinfo endpoint for client access tokens.
type UserInfoHandler struct {
	TokenService *service.TokenService
}

// ServeHTTP godoc
//
//	@Summary		OpenID Connect UserInfo
//	@Description	Returns the claims the access token's scopes release. Claims outside those scopes are null.
//	@Tags			OAuth2
//	@Produce		json
//	@Success		200	{object}	authsdk.UserInfoResponse	"Claims about the authenticated user"
//	@Failure		401	{object}	authsdk.ErrorResponse		"invalid_token"
//	@Failure		403	{object}	authsdk.ErrorResponse		"insufficient_scope"
//	@Security		BearerAuth
//	@Router			/oauth2/userinfo [get]
//	@Router			/oauth2/userinfo [post].
func (h *UserInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFrom(r.Context())
	if !ok || p.ClientID == "" {
		httpx.WriteBearerError(w, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken, "token was not issued to a client")
		return
	}

	info, err := h.TokenService.UserInfo(r.Context(), p.ClientID, p.Token)
	if err != nil {
		if errors.Is(err, domain.ErrNotAuthenticated) {
			httpx.WriteBearerError(w, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken, domain.ReasonOf(err))
			return
		}
		slogx.FromContext(r.Context()).Error("userinfo failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, info)
}
