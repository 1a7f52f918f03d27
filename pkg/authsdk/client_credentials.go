package authsdk

import (
	"context"
	"net/http"
)

// Register creates a credential and sends a verification email. The call
// succeeds for an address that is already registered so account existence
// does not leak.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/credentials/register", "", req)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusAccepted)
}

// ConfirmRegistration verifies the email address with the token that was
// mailed to it.
func (c *SDKClient) ConfirmRegistration(ctx context.Context, token string) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/credentials/register/confirm", "", ConfirmRegistrationRequest{Token: token})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

// ResendVerification issues a fresh verification token for a pending
// registration.
func (c *SDKClient) ResendVerification(ctx context.Context, email string) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/credentials/register/resend", "", EmailRequest{Email: email})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusAccepted)
}

// Authenticate exchanges a username and password for platform tokens. When
// MFA is required the error carries an mfa_token; see MfaToken.
func (c *SDKClient) Authenticate(ctx context.Context, username, password string) (*TokenResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/credentials/authenticate", "", AuthenticateRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, err
	}

	var tokens TokenResponse
	if err := decodeJSON(resp, &tokens, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// Login is Authenticate wrapped into a Session.
func (c *SDKClient) Login(ctx context.Context, username, password string) (*Session, error) {
	tokens, err := c.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return newSession(c, tokens), nil
}

// InitiatePasswordReset mails a reset token. Unknown addresses are accepted
// silently.
func (c *SDKClient) InitiatePasswordReset(ctx context.Context, email string) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/credentials/password-reset", "", EmailRequest{Email: email})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusAccepted)
}

// ResendPasswordReset mails a new reset token for a pending reset.
func (c *SDKClient) ResendPasswordReset(ctx context.Context, email string) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/credentials/password-reset/resend", "", EmailRequest{Email: email})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusAccepted)
}

// VerifyPasswordReset checks a reset token without consuming it.
func (c *SDKClient) VerifyPasswordReset(ctx context.Context, token string) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/credentials/password-reset/verify", "", VerifyPasswordResetRequest{Token: token})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

// CompletePasswordReset consumes the token and sets a new password.
func (c *SDKClient) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/credentials/password-reset/complete", "", CompletePasswordResetRequest{
		Token:       token,
		NewPassword: newPassword,
	})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}
