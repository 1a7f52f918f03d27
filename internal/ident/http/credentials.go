package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/service"
	"github.com/aussiebroadwan/ident/pkg/authsdk"
	"github.com/aussiebroadwan/ident/pkg/httpx"
)

// CredentialsHandler serves the /v1/credentials routes: registration,
// password login, password reset and the MFA switch.
type CredentialsHandler struct {
	Credentials *service.CredentialService
	Now         func() time.Time
}

// HandleRegister godoc
//
//	@Summary		Register a credential
//	@Description	Creates a password credential and emails a verification link. Registering an address that already
//	@Description	has a verified account is accepted without effect.
//	@Tags			Credentials
//	@Accept			json
//	@Produce		json
//	@Param			request	body	authsdk.RegisterRequest	true	"email, password, display_name"
//	@Success		202		"Verification link sent"
//	@Failure		400		{object}	authsdk.ErrorResponse	"validation"
//	@Router			/v1/credentials/register [post].
func (h *CredentialsHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	err := h.Credentials.Register(r.Context(), service.RegisterParams{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleConfirm godoc
//
//	@Summary		Confirm a registration
//	@Tags			Credentials
//	@Accept			json
//	@Produce		json
//	@Param			request	body	authsdk.ConfirmRegistrationRequest	true	"token from the verification link"
//	@Success		204
//	@Failure		404	{object}	authsdk.ErrorResponse	"unknown or used token"
//	@Router			/v1/credentials/register/confirm [post].
func (h *CredentialsHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	var req authsdk.ConfirmRegistrationRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Credentials.ConfirmRegistration(r.Context(), req.Token); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleResend godoc
//
//	@Summary		Resend the verification link
//	@Tags			Credentials
//	@Accept			json
//	@Param			request	body	authsdk.EmailRequest	true	"email"
//	@Success		202
//	@Router			/v1/credentials/register/resend [post].
func (h *CredentialsHandler) HandleResend(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Credentials.ResendVerification(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleAuthenticate godoc
//
//	@Summary		Password login
//	@Description	Checks the password and returns a platform token set. When MFA is enabled the response is a 403
//	@Description	forbidden_access error whose data carries an mfa_token for /v1/mfa/verify.
//	@Tags			Credentials
//	@Accept			json
//	@Produce		json
//	@Param			request	body		authsdk.AuthenticateRequest	true	"username, password"
//	@Success		200		{object}	authsdk.TokenResponse
//	@Failure		401		{object}	authsdk.ErrorResponse	"not_authenticated"
//	@Failure		403		{object}	authsdk.ErrorResponse	"forbidden_access with data.mfa_token"
//	@Failure		412		{object}	authsdk.ErrorResponse	"registration not verified"
//	@Failure		423		{object}	authsdk.ErrorResponse	"locked or suspended"
//	@Router			/v1/credentials/authenticate [post].
func (h *CredentialsHandler) HandleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req authsdk.AuthenticateRequest
	if !decode(w, r, &req) {
		return
	}
	set, err := h.Credentials.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tokenResponse(set, h.Now()))
}

// HandleInitiateReset godoc
//
//	@Summary		Start a password reset
//	@Description	Emails a reset link. Unknown addresses are accepted without effect.
//	@Tags			Credentials
//	@Accept			json
//	@Param			request	body	authsdk.EmailRequest	true	"email"
//	@Success		202
//	@Router			/v1/credentials/password-reset [post].
func (h *CredentialsHandler) HandleInitiateReset(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Credentials.InitiatePasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleResendReset godoc
//
//	@Summary		Resend a pending password reset
//	@Tags			Credentials
//	@Accept			json
//	@Param			request	body	authsdk.EmailRequest	true	"email"
//	@Success		202
//	@Router			/v1/credentials/password-reset/resend [post].
func (h *CredentialsHandler) HandleResendReset(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Credentials.ResendPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleVerifyReset godoc
//
//	@Summary		Check a password reset token
//	@Tags			Credentials
//	@Accept			json
//	@Param			request	body	authsdk.VerifyPasswordResetRequest	true	"token"
//	@Success		204
//	@Failure		404	{object}	authsdk.ErrorResponse	"unknown or expired token"
//	@Router			/v1/credentials/password-reset/verify [post].
func (h *CredentialsHandler) HandleVerifyReset(w http.ResponseWriter, r *http.Request) {
	var req authsdk.VerifyPasswordResetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Credentials.VerifyPasswordReset(r.Context(), req.Token); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleCompleteReset godoc
//
//	@Summary		Set a new password
//	@Tags			Credentials
//	@Accept			json
//	@Param			request	body	authsdk.CompletePasswordResetRequest	true	"token, new_password"
//	@Success		204
//	@Failure		400	{object}	authsdk.ErrorResponse	"password too weak"
//	@Failure		404	{object}	authsdk.ErrorResponse	"unknown or expired token"
//	@Router			/v1/credentials/password-reset/complete [post].
func (h *CredentialsHandler) HandleCompleteReset(w http.ResponseWriter, r *http.Request) {
	var req authsdk.CompletePasswordResetRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Credentials.CompletePasswordReset(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleChangeMfa godoc
//
//	@Summary		Enable or disable MFA
//	@Description	Enabling requires an active factor.
//	@Tags			Credentials
//	@Accept			json
//	@Param			request	body	authsdk.ChangeMfaRequest	true	"enabled"
//	@Success		204
//	@Failure		412	{object}	authsdk.ErrorResponse	"no active factor"
//	@Security		BearerAuth
//	@Router			/v1/credentials/mfa [put].
func (h *CredentialsHandler) HandleChangeMfa(w http.ResponseWriter, r *http.Request) {
	p, _ := httpx.PrincipalFrom(r.Context())
	var req authsdk.ChangeMfaRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Credentials.ChangeMfa(r.Context(), p.UserID, p.UserID, req.Enabled); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// usernameKey reads the username of an authenticate request for rate
// limiting, leaving the body in place for the handler.
func usernameKey(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, httpx.MaxJSONBody))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var req authsdk.AuthenticateRequest
	if json.Unmarshal(body, &req) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(req.Username))
}
