package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// ListMfaAuthenticators lists the user's factors.
func (s *Session) ListMfaAuthenticators(ctx context.Context) (*ListAuthenticatorsResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/mfa/authenticators", nil)
	if err != nil {
		return nil, err
	}

	var out ListAuthenticatorsResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// AssociateMfa starts enrolling a factor. The factor stays pending until
// ConfirmMfa.
func (s *Session) AssociateMfa(ctx context.Context, req AssociateRequest) (*AssociateResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/mfa/associate", req)
	if err != nil {
		return nil, err
	}

	var out AssociateResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmMfa activates a pending factor with a code it produced.
func (s *Session) ConfirmMfa(ctx context.Context, req ConfirmRequest) (*MfaAuthenticator, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/mfa/confirm", req)
	if err != nil {
		return nil, err
	}

	var out MfaAuthenticator
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChallengeMfa sends a fresh out-of-band code.
func (s *Session) ChallengeMfa(ctx context.Context, authenticatorID string) (*ChallengeResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/mfa/challenge", ChallengeRequest{AuthenticatorID: authenticatorID})
	if err != nil {
		return nil, err
	}

	var out ChallengeResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// DisassociateMfa removes a factor.
func (s *Session) DisassociateMfa(ctx context.Context, authenticatorID string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/v1/mfa/authenticators/"+url.PathEscape(authenticatorID), nil)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}
