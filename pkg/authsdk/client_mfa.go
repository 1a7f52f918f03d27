package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// The methods below continue an MFA-gated login with the mfa_token from
// Authenticate. Enrollment needs a Session; see the Session methods.

// ListMfaAuthenticators lists the factors available to finish the login.
func (c *SDKClient) ListMfaAuthenticators(ctx context.Context, mfaToken string) (*ListAuthenticatorsResponse, error) {
	path := "/v1/mfa/authenticators?" + url.Values{"mfa_token": {mfaToken}}.Encode()
	resp, err := c.doJSON(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return nil, err
	}

	var out ListAuthenticatorsResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChallengeMfa sends a fresh out-of-band code for authenticatorID.
func (c *SDKClient) ChallengeMfa(ctx context.Context, mfaToken, authenticatorID string) (*ChallengeResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/mfa/challenge", "", ChallengeRequest{
		AuthenticatorID: authenticatorID,
		MfaToken:        mfaToken,
	})
	if err != nil {
		return nil, err
	}

	var out ChallengeResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyMfa completes an MFA-gated login and returns the platform tokens.
func (c *SDKClient) VerifyMfa(ctx context.Context, mfaToken string, req VerifyRequest) (*TokenResponse, error) {
	req.MfaToken = mfaToken
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/mfa/verify", "", req)
	if err != nil {
		return nil, err
	}

	var tokens TokenResponse
	if err := decodeJSON(resp, &tokens, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokens, nil
}
