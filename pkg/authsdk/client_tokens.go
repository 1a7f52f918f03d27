package authsdk

import (
	"context"
	"net/http"
)

// RefreshPlatformTokens rotates a platform token set. The old refresh token
// stops working immediately.
func (c *SDKClient) RefreshPlatformTokens(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/tokens/refresh", "", RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}

	var tokens TokenResponse
	if err := decodeJSON(resp, &tokens, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// RevokePlatformTokens ends the platform session owning refreshToken.
// Revoking an unknown or already revoked token succeeds.
func (c *SDKClient) RevokePlatformTokens(ctx context.Context, refreshToken string) error {
	resp, err := c.doJSON(ctx, http.MethodPost, "/v1/tokens/revoke", "", RevokeRequest{RefreshToken: refreshToken})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}
