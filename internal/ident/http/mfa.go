package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/internal/ident/service"
	"github.com/aussiebroadwan/ident/pkg/authsdk"
	"github.com/aussiebroadwan/ident/pkg/httpx"
)

// MfaHandler serves the /v1/mfa routes. A platform bearer token may use
// every route except verify. The mfa_token of a login waiting on its second
// factor lists, challenges and verifies; it enrolls only a credential with
// no active factor and never disassociates. It is read from the body where
// the request type has the field and from the mfa_token query parameter
// otherwise.
type MfaHandler struct {
	Mfa *service.MfaService
	Now func() time.Time
}

var (
	errNoCaller    = domain.NewError(domain.ErrNotAuthenticated, "bearer token or mfa_token required")
	errNoBearer    = domain.NewError(domain.ErrNotAuthenticated, "bearer token required")
	errBearerOnly  = domain.NewError(domain.ErrForbiddenAccess, "mfa_token cannot remove a factor")
	errFullyAuthed = domain.NewError(domain.ErrForbiddenAccess, "already fully authenticated")
)

// caller resolves the user a request acts for.
func (h *MfaHandler) caller(r *http.Request, mfaToken string) (string, error) {
	if p, ok := httpx.PrincipalFrom(r.Context()); ok {
		return p.UserID, nil
	}
	mfaToken = h.mfaToken(r, mfaToken)
	if mfaToken == "" {
		return "", errNoCaller
	}
	return h.Mfa.ResolveMfaToken(r.Context(), mfaToken)
}

// mfaToken returns the body token, falling back to the query parameter.
func (h *MfaHandler) mfaToken(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return r.URL.Query().Get(authsdk.DataMfaToken)
}

// HandleList godoc
//
//	@Summary		List MFA factors
//	@Tags			MFA
//	@Produce		json
//	@Param			mfa_token	query		string	false	"mfa_token instead of a bearer token"
//	@Success		200			{object}	authsdk.ListAuthenticatorsResponse
//	@Failure		401			{object}	authsdk.ErrorResponse	"not_authenticated"
//	@Security		BearerAuth
//	@Router			/v1/mfa/authenticators [get].
func (h *MfaHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, err := h.caller(r, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	status, err := h.Mfa.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := authsdk.ListAuthenticatorsResponse{
		MfaEnabled:     status.Enabled,
		Authenticators: make([]authsdk.MfaAuthenticator, 0, len(status.Authenticators)),
	}
	for _, a := range status.Authenticators {
		out.Authenticators = append(out.Authenticators, authenticatorResponse(a))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleAssociate godoc
//
//	@Summary		Associate an MFA factor
//	@Description	Adds a pending factor. TOTP returns the secret and barcode URI; OOB factors send a code and return
//	@Description	its oob_code handle. The first association also returns the recovery codes, once.
//	@Tags			MFA
//	@Accept			json
//	@Produce		json
//	@Param			request		body		authsdk.AssociateRequest	true	"type, phone_number, email"
//	@Param			mfa_token	query		string						false	"mfa_token, only before the first factor is active"
//	@Success		201			{object}	authsdk.AssociateResponse
//	@Failure		400			{object}	authsdk.ErrorResponse	"validation"
//	@Failure		403			{object}	authsdk.ErrorResponse	"mfa_token on a credential with an active factor"
//	@Security		BearerAuth
//	@Router			/v1/mfa/associate [post].
func (h *MfaHandler) HandleAssociate(w http.ResponseWriter, r *http.Request) {
	var req authsdk.AssociateRequest
	if !decode(w, r, &req) {
		return
	}
	typ, err := domain.ParseMfaType(req.Type)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var assoc domain.MfaAssociation
	switch p, ok := httpx.PrincipalFrom(r.Context()); {
	case ok:
		assoc, err = h.Mfa.Associate(r.Context(), p.UserID, typ, req.PhoneNumber, req.Email)
	case h.mfaToken(r, "") != "":
		assoc, err = h.Mfa.AssociateForLogin(r.Context(), h.mfaToken(r, ""), typ, req.PhoneNumber, req.Email)
	default:
		err = errNoCaller
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := authsdk.AssociateResponse{
		AuthenticatorID: assoc.Authenticator.ID,
		Type:            string(assoc.Authenticator.Type),
		Secret:          assoc.Secret,
		BarcodeURI:      assoc.BarCodeURI,
		RecoveryCodes:   assoc.RecoveryCodes,
	}
	if assoc.Oob != nil {
		out.OobCode = assoc.Oob.OobCode
	}
	httpx.WriteJSON(w, http.StatusCreated, out)
}

// HandleConfirm godoc
//
//	@Summary		Confirm an MFA factor
//	@Tags			MFA
//	@Accept			json
//	@Produce		json
//	@Param			request		body		authsdk.ConfirmRequest	true	"type, oob_code, code"
//	@Param			mfa_token	query		string					false	"mfa_token, only before the first factor is active"
//	@Success		200			{object}	authsdk.MfaAuthenticator
//	@Failure		401			{object}	authsdk.ErrorResponse	"wrong code"
//	@Failure		403			{object}	authsdk.ErrorResponse	"mfa_token on a credential with an active factor"
//	@Security		BearerAuth
//	@Router			/v1/mfa/confirm [post].
func (h *MfaHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ConfirmRequest
	if !decode(w, r, &req) {
		return
	}
	params, err := verifyParams(req.Type, req.OobCode, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var a domain.MfaAuthenticator
	switch p, ok := httpx.PrincipalFrom(r.Context()); {
	case ok:
		a, err = h.Mfa.Confirm(r.Context(), p.UserID, params)
	case h.mfaToken(r, "") != "":
		a, err = h.Mfa.ConfirmForLogin(r.Context(), h.mfaToken(r, ""), params)
	default:
		err = errNoCaller
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authenticatorResponse(a))
}

// HandleChallenge godoc
//
//	@Summary		Challenge an MFA factor
//	@Description	Sends a fresh code for OOB factors. TOTP needs no challenge and returns no oob_code.
//	@Tags			MFA
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.ChallengeRequest	true	"authenticator_id, mfa_token"
//	@Success		200		{object}	authsdk.ChallengeResponse
//	@Failure		404		{object}	authsdk.ErrorResponse	"unknown authenticator"
//	@Security		BearerAuth
//	@Router			/v1/mfa/challenge [post].
func (h *MfaHandler) HandleChallenge(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ChallengeRequest
	if !decode(w, r, &req) {
		return
	}
	userID, err := h.caller(r, req.MfaToken)
	if err != nil {
		writeError(w, r, err)
		return
	}

	d, err := h.Mfa.Challenge(r.Context(), userID, req.AuthenticatorID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := authsdk.ChallengeResponse{AuthenticatorID: req.AuthenticatorID, Type: string(domain.MfaTotp)}
	if d != nil {
		out.Type = string(d.Type)
		out.OobCode = d.OobCode
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// HandleVerify godoc
//
//	@Summary		Verify an MFA code
//	@Description	Completes an MFA-gated login and returns the token set. A bearer token is refused: its holder is
//	@Description	already fully authenticated.
//	@Tags			MFA
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.VerifyRequest	true	"type, oob_code, code, mfa_token"
//	@Success		200		{object}	authsdk.TokenResponse	"login completed"
//	@Failure		401		{object}	authsdk.ErrorResponse	"wrong code or exhausted mfa_token"
//	@Failure		403		{object}	authsdk.ErrorResponse	"called with a bearer token"
//	@Router			/v1/mfa/verify [post].
func (h *MfaHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyRequest
	if !decode(w, r, &req) {
		return
	}
	params, err := verifyParams(req.Type, req.OobCode, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if _, ok := httpx.PrincipalFrom(r.Context()); ok {
		writeError(w, r, errFullyAuthed)
		return
	}

	if req.MfaToken == "" {
		writeError(w, r, errNoCaller)
		return
	}
	set, err := h.Mfa.VerifyLogin(r.Context(), req.MfaToken, params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(set, h.Now()))
}

// HandleDisassociate godoc
//
//	@Summary		Remove an MFA factor
//	@Tags			MFA
//	@Param			id	path	string	true	"Authenticator ID"
//	@Success		204
//	@Failure		403	{object}	authsdk.ErrorResponse	"called with an mfa_token"
//	@Failure		404	{object}	authsdk.ErrorResponse	"unknown authenticator"
//	@Security		BearerAuth
//	@Router			/v1/mfa/authenticators/{id} [delete].
func (h *MfaHandler) HandleDisassociate(w http.ResponseWriter, r *http.Request) {
	p, ok := httpx.PrincipalFrom(r.Context())
	if !ok {
		if h.mfaToken(r, "") != "" {
			writeError(w, r, errBearerOnly)
			return
		}
		writeError(w, r, errNoBearer)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.Mfa.Disassociate(r.Context(), p.UserID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func verifyParams(typ string, oobCode *string, code string) (service.VerifyParams, error) {
	t, err := domain.ParseMfaType(typ)
	if err != nil {
		return service.VerifyParams{}, err
	}
	return service.VerifyParams{Type: t, OobCode: oobCode, Code: code}, nil
}

func authenticatorResponse(a domain.MfaAuthenticator) authsdk.MfaAuthenticator {
	out := authsdk.MfaAuthenticator{
		ID:          a.ID,
		Type:        string(a.Type),
		Active:      a.Active,
		CreatedAt:   a.CreatedAt,
		ConfirmedAt: a.ConfirmedAt,
		LastUsedAt:  a.LastUsedAt,
	}
	if a.OobDestination != nil {
		out.Destination = *a.OobDestination
	}
	if a.Type == domain.MfaRecoveryCodes {
		out.Remaining = a.RemainingRecoveryCodes()
	}
	return out
}
