package http

import (
	"net/http"

	"github.com/aussiebroadwan/ident/internal/ident/service"
	"github.com/aussiebroadwan/ident/pkg/authsdk"
	"github.com/aussiebroadwan/ident/pkg/httpx"
)

// ConsentsHandler records what the signed-in user lets each client see.
type ConsentsHandler struct {
	Consents *service.ConsentService
}

// HandleChange godoc
//
//	@Summary		Change consent for a client
//	@Description	Replaces the consented scopes. Narrowing them, or withdrawing consent, revokes the client's tokens.
//	@Tags			Consents
//	@Accept			json
//	@Produce		json
//	@Param			client_id	path		string					true	"Client ID"
//	@Param			request		body		authsdk.ConsentRequest	true	"consented, scope"
//	@Success		200			{object}	authsdk.ConsentResponse
//	@Failure		404			{object}	authsdk.ErrorResponse	"unknown client"
//	@Security		BearerAuth
//	@Router			/v1/consents/{client_id} [put].
func (h *ConsentsHandler) HandleChange(w http.ResponseWriter, r *http.Request) {
	p, _ := httpx.PrincipalFrom(r.Context())
	var req authsdk.ConsentRequest
	if !decode(w, r, &req) {
		return
	}

	clientID, err := pathID(r, "client_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := h.Consents.Change(r.Context(), p.UserID, clientID, req.Consented, httpx.ParseSpaceDelimitedFields(req.Scope))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.ConsentResponse{
		ClientID:  st.ClientID,
		Consented: st.Consented,
		Scope:     joinScopes(st.Scopes),
	})
}

// HandleRevoke godoc
//
//	@Summary		Revoke consent for a client
//	@Tags			Consents
//	@Param			client_id	path	string	true	"Client ID"
//	@Success		204
//	@Security		BearerAuth
//	@Router			/v1/consents/{client_id} [delete].
func (h *ConsentsHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	p, _ := httpx.PrincipalFrom(r.Context())
	clientID, err := pathID(r, "client_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Consents.Revoke(r.Context(), p.UserID, clientID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
