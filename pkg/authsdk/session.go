package authsdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// refreshSkew is how long before expiry a Session refreshes its access token.
const refreshSkew = 30 * time.Second

// Session holds a platform token set and refreshes it when the access token is
// about to expire. It is safe for concurrent use.
type Session struct {
	client *SDKClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
	scopes       map[string]bool
}

// NewSession wraps tokens obtained elsewhere, for example from VerifyMfa.
func (c *SDKClient) NewSession(tokens *TokenResponse) *Session {
	return newSession(c, tokens)
}

func newSession(client *SDKClient, tokens *TokenResponse) *Session {
	s := &Session{client: client}
	s.apply(tokens)
	return s
}

func (s *Session) apply(tokens *TokenResponse) {
	s.accessToken = tokens.AccessToken
	s.refreshToken = tokens.RefreshToken
	s.expiresAt = time.Now().Add(time.Duration(tokens.ExpiresIn)*time.Second - refreshSkew)
	s.scopes = parseScopes(tokens.Scope)
}

// parseScopes parses a space-delimited scope string into a set.
func parseScopes(scopeStr string) map[string]bool {
	parts := strings.Fields(scopeStr)
	scopes := make(map[string]bool, len(parts))
	for _, scope := range parts {
		scopes[scope] = true
	}
	return scopes
}

// Revoke ends the platform session. The Session is unusable afterwards.
func (s *Session) Revoke(ctx context.Context) error {
	s.mu.Lock()
	refreshToken := s.refreshToken
	s.refreshToken = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	if refreshToken == "" {
		return errors.New("no refresh token to revoke")
	}
	return s.client.RevokePlatformTokens(ctx, refreshToken)
}

// Refresh rotates the token set now.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) error {
	if s.refreshToken == "" {
		return errors.New("access token expired and no refresh token available")
	}
	tokens, err := s.client.RefreshPlatformTokens(ctx, s.refreshToken)
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	s.apply(tokens)
	return nil
}

// getValidToken returns a valid access token, automatically refreshing if expired.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have refreshed while we waited for the lock.
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}
	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.accessToken, nil
}

// doAuthRequest sends in as JSON with the session's access token.
func (s *Session) doAuthRequest(ctx context.Context, method, path string, in any) (*http.Response, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.doJSON(ctx, method, path, token, in)
}

// AccessToken returns the current access token without checking expiration.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the current refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// HasScope returns true if the session has the specified scope.
func (s *Session) HasScope(scope string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scopes[scope]
}

// Authorize runs the authorize endpoint as the session's user.
func (s *Session) Authorize(ctx context.Context, p AuthorizeParams) (*AuthorizeResult, error) {
	token, err := s.getValidToken(ctx)
	if err != nil {
		return nil, err
	}
	return s.client.Authorize(ctx, token, p)
}

// ChangeMfa enables or disables MFA on the user's credential.
func (s *Session) ChangeMfa(ctx context.Context, enabled bool) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPut, "/v1/credentials/mfa", ChangeMfaRequest{Enabled: enabled})
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

// ChangeConsent records the user's consent for clientID.
func (s *Session) ChangeConsent(ctx context.Context, clientID string, consented bool, scopes ...string) (*ConsentResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPut, "/v1/consents/"+url.PathEscape(clientID), ConsentRequest{
		Consented: consented,
		Scope:     strings.Join(scopes, " "),
	})
	if err != nil {
		return nil, err
	}

	var out ConsentResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// RevokeConsent withdraws the user's consent for clientID and revokes the
// tokens the client holds.
func (s *Session) RevokeConsent(ctx context.Context, clientID string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/v1/consents/"+url.PathEscape(clientID), nil)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}
