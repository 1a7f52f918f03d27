package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/service"
	"github.com/aussiebroadwan/ident/pkg/authsdk"
	"github.com/aussiebroadwan/ident/pkg/httpx"
)

// PlatformTokensHandler refreshes and revokes the token sets of direct
// logins.
type PlatformTokensHandler struct {
	Platform *service.PlatformTokenService
	Now      func() time.Time
}

// HandleRefresh godoc
//
//	@Summary		Refresh platform tokens
//	@Description	Rotates the refresh token. The presented token stops working.
//	@Tags			Tokens
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.RefreshRequest	true	"refresh_token"
//	@Success		200		{object}	authsdk.TokenResponse
//	@Failure		401		{object}	authsdk.ErrorResponse	"unknown, used or expired refresh token"
//	@Router			/v1/tokens/refresh [post].
func (h *PlatformTokensHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if !decode(w, r, &req) {
		return
	}
	set, err := h.Platform.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(set, h.Now()))
}

// HandleRevoke godoc
//
//	@Summary		Revoke platform tokens
//	@Description	Ends the session behind the refresh token. Unknown tokens are accepted.
//	@Tags			Tokens
//	@Accept			json
//	@Param			request	body	authsdk.RevokeRequest	true	"refresh_token"
//	@Success		204
//	@Router			/v1/tokens/revoke [post].
func (h *PlatformTokensHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RevokeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Platform.Revoke(r.Context(), req.RefreshToken); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
