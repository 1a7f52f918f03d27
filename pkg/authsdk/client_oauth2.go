package authsdk

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/ident/pkg/cryptox"
)

// PKCEChallenge holds the PKCE verifier and challenge pair.
// The verifier is kept secret by the client, and the challenge is sent to the authorization endpoint.
type PKCEChallenge struct {
	// Verifier is the high-entropy cryptographic random string (kept secret)
	Verifier string

	// Challenge is the base64url-encoded SHA256 hash of the verifier (sent to server)
	Challenge string

	// Method is "S256" unless built by hand.
	Method string
}

// GeneratePKCEChallenge creates a new S256 PKCE pair per RFC 7636.
func GeneratePKCEChallenge() (*PKCEChallenge, error) {
	verifier, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PKCE verifier: %w", err)
	}

	return &PKCEChallenge{
		Verifier:  verifier,
		Challenge: cryptox.PKCEChallengeS256(verifier),
		Method:    "S256",
	}, nil
}

// AuthorizeParams are the query parameters of an authorization request.
type AuthorizeParams struct {
	ClientID    string
	RedirectURI string
	Scopes      []string
	State       string
	Nonce       string
	PKCE        *PKCEChallenge
}

func (p AuthorizeParams) values() url.Values {
	v := url.Values{}
	v.Set("response_type", "code")
	v.Set("client_id", p.ClientID)
	v.Set("redirect_uri", p.RedirectURI)
	if len(p.Scopes) > 0 {
		v.Set("scope", strings.Join(p.Scopes, " "))
	}
	if p.State != "" {
		v.Set("state", p.State)
	}
	if p.Nonce != "" {
		v.Set("nonce", p.Nonce)
	}
	if p.PKCE != nil {
		v.Set("code_challenge", p.PKCE.Challenge)
		v.Set("code_challenge_method", p.PKCE.Method)
	}
	return v
}

// BuildAuthorizeURL constructs the URL to send the user's browser to.
func (c *SDKClient) BuildAuthorizeURL(p AuthorizeParams) string {
	return c.url("/oauth2/authorize?" + p.values().Encode())
}

// AuthorizeResult is where the authorize endpoint redirected to. Code and
// State are set when the redirect went back to the client with a code; a
// redirect to the login or consent page only sets Location.
type AuthorizeResult struct {
	Location *url.URL
	Code     string
	State    string
}

// Authorize calls the authorize endpoint with the end user's platform access
// token and reports the redirect without following it. A redirect that
// carries an error parameter is returned as an *OAuth2Error alongside the
// result.
func (c *SDKClient) Authorize(ctx context.Context, accessToken string, p AuthorizeParams) (*AuthorizeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BuildAuthorizeURL(p), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.noRedirect().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusFound {
		if err := parseErrorResponse(resp, body); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("authorize: unexpected status %d", resp.StatusCode)
	}

	loc, err := resp.Location()
	if err != nil {
		return nil, fmt.Errorf("authorize: %w", err)
	}
	q := loc.Query()
	res := &AuthorizeResult{Location: loc, Code: q.Get("code"), State: q.Get("state")}
	if code := q.Get("error"); code != "" {
		return res, &OAuth2Error{StatusCode: http.StatusFound, Code: code, Description: q.Get("error_description")}
	}
	return res, nil
}

// ExchangeCode redeems an authorization code at the token endpoint.
func (c *SDKClient) ExchangeCode(ctx context.Context, creds ClientCredentials, code, redirectURI, codeVerifier string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {redirectURI},
	}
	if codeVerifier != "" {
		data.Set("code_verifier", codeVerifier)
	}
	return c.requestToken(ctx, data, creds)
}

// RefreshGrant rotates an OAuth2 token set. A non-empty scope narrows the
// new access token.
func (c *SDKClient) RefreshGrant(ctx context.Context, creds ClientCredentials, refreshToken string, scopes ...string) (*TokenResponse, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	if len(scopes) > 0 {
		data.Set("scope", strings.Join(scopes, " "))
	}
	return c.requestToken(ctx, data, creds)
}

func (c *SDKClient) requestToken(ctx context.Context, data url.Values, creds ClientCredentials) (*TokenResponse, error) {
	resp, err := c.doForm(ctx, "/oauth2/token", data, &creds)
	if err != nil {
		return nil, err
	}

	var tokens TokenResponse
	if err := decodeJSON(resp, &tokens, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokens, nil
}

// RevokeToken revokes an access or refresh token per RFC 7009. hint may be
// empty, "access_token" or "refresh_token".
func (c *SDKClient) RevokeToken(ctx context.Context, creds ClientCredentials, token, hint string) error {
	data := url.Values{"token": {token}}
	if hint != "" {
		data.Set("token_type_hint", hint)
	}
	resp, err := c.doForm(ctx, "/oauth2/revoke", data, &creds)
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusOK)
}

// UserInfo returns the claims released to the holder of accessToken.
func (c *SDKClient) UserInfo(ctx context.Context, accessToken string) (*UserInfoResponse, error) {
	resp, err := c.doJSON(ctx, http.MethodGet, "/oauth2/userinfo", accessToken, nil)
	if err != nil {
		return nil, err
	}

	var info UserInfoResponse
	if err := decodeJSON(resp, &info, http.StatusOK); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetJWKS fetches the public signing keys.
func (c *SDKClient) GetJWKS(ctx context.Context) (*JWKSResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/.well-known/jwks.json", nil, nil)
	if err != nil {
		return nil, err
	}

	var jwks JWKSResponse
	if err := decodeJSON(resp, &jwks, http.StatusOK); err != nil {
		return nil, err
	}
	return &jwks, nil
}

// GetDiscovery fetches the OpenID Provider metadata.
func (c *SDKClient) GetDiscovery(ctx context.Context) (*Discovery, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/.well-known/openid-configuration", nil, nil)
	if err != nil {
		return nil, err
	}

	var d Discovery
	if err := decodeJSON(resp, &d, http.StatusOK); err != nil {
		return nil, err
	}
	return &d, nil
}

// ParseAuthorizationCallback extracts the code and state from the URL the
// authorize endpoint redirected to.
func ParseAuthorizationCallback(callbackURL string) (code, state string, err error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse callback URL: %w", err)
	}

	query := u.Query()
	if errorCode := query.Get("error"); errorCode != "" {
		return "", "", &OAuth2Error{StatusCode: http.StatusFound, Code: errorCode, Description: query.Get("error_description")}
	}

	code = query.Get("code")
	if code == "" {
		return "", "", fmt.Errorf("callback missing authorization code")
	}
	return code, query.Get("state"), nil
}
