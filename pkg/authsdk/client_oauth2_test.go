package authsdk

import (
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeneratePKCEChallenge(t *testing.T) {
	t.Parallel()

	pkce, err := GeneratePKCEChallenge()
	require.NoError(t, err)
	require.NotEmpty(t, pkce.Verifier)
	require.Equal(t, "S256", pkce.Method)

	hash := sha256.Sum256([]byte(pkce.Verifier))
	require.Equal(t, base64.RawURLEncoding.EncodeToString(hash[:]), pkce.Challenge)

	other, err := GeneratePKCEChallenge()
	require.NoError(t, err)
	require.NotEqual(t, pkce.Verifier, other.Verifier)
}

func TestBuildAuthorizeURL(t *testing.T) {
	t.Parallel()

	client := NewSDKClient("https://id.example.com/")

	t.Run("minimal parameters", func(t *testing.T) {
		raw := client.BuildAuthorizeURL(AuthorizeParams{ClientID: "app", RedirectURI: "https://app.example.com/cb"})
		u, err := url.Parse(raw)
		require.NoError(t, err)
		require.Equal(t, "/oauth2/authorize", u.Path)
		q := u.Query()
		require.Equal(t, "code", q.Get("response_type"))
		require.Equal(t, "app", q.Get("client_id"))
		require.Equal(t, "https://app.example.com/cb", q.Get("redirect_uri"))
		require.False(t, q.Has("state"))
		require.False(t, q.Has("code_challenge"))
	})

	t.Run("all parameters", func(t *testing.T) {
		pkce := &PKCEChallenge{Verifier: "v", Challenge: "c", Method: "S256"}
		raw := client.BuildAuthorizeURL(AuthorizeParams{
			ClientID:    "app",
			RedirectURI: "https://app.example.com/cb",
			Scopes:      []string{"openid", "email"},
			State:       "xyz",
			Nonce:       "n-1",
			PKCE:        pkce,
		})
		u, err := url.Parse(raw)
		require.NoError(t, err)
		q := u.Query()
		require.Equal(t, "openid email", q.Get("scope"))
		require.Equal(t, "xyz", q.Get("state"))
		require.Equal(t, "n-1", q.Get("nonce"))
		require.Equal(t, "c", q.Get("code_challenge"))
		require.Equal(t, "S256", q.Get("code_challenge_method"))
	})
}

func TestAuthorize(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "Bearer good":
			http.Redirect(w, r, "https://app.example.com/cb?code=abc&state="+r.URL.Query().Get("state"), http.StatusFound)
		case "Bearer scope":
			http.Redirect(w, r, "https://app.example.com/cb?error=invalid_scope&error_description=nope", http.StatusFound)
		default:
			http.Redirect(w, r, "https://login.example.com/?return_to=x", http.StatusFound)
		}
	}))
	t.Cleanup(srv.Close)

	client := NewSDKClient(srv.URL)
	params := AuthorizeParams{ClientID: "app", RedirectURI: "https://app.example.com/cb", State: "s1"}

	res, err := client.Authorize(t.Context(), "good", params)
	require.NoError(t, err)
	require.Equal(t, "abc", res.Code)
	require.Equal(t, "s1", res.State)

	res, err = client.Authorize(t.Context(), "", params)
	require.NoError(t, err)
	require.Empty(t, res.Code)
	require.Equal(t, "login.example.com", res.Location.Host)

	res, err = client.Authorize(t.Context(), "scope", params)
	require.ErrorIs(t, err, ErrInvalidScope)
	require.NotNil(t, res)
}

func TestRequestTokenClientAuth(t *testing.T) {
	t.Parallel()

	var got url.Values
	var basicUser, basicPass string
	var basicOK bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = r.PostForm
		basicUser, basicPass, basicOK = r.BasicAuth()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a","token_type":"Bearer","refresh_token":"r","expires_in":900}`))
	}))
	t.Cleanup(srv.Close)

	client := NewSDKClient(srv.URL)

	tokens, err := client.ExchangeCode(t.Context(), ClientCredentials{ID: "app", Secret: "s3cret"}, "code", "https://app.example.com/cb", "verifier")
	require.NoError(t, err)
	require.Equal(t, "a", tokens.AccessToken)
	require.Equal(t, "authorization_code", got.Get("grant_type"))
	require.Equal(t, "app", got.Get("client_id"))
	require.Equal(t, "s3cret", got.Get("client_secret"))
	require.Equal(t, "verifier", got.Get("code_verifier"))
	require.False(t, basicOK)

	_, err = client.RefreshGrant(t.Context(), ClientCredentials{ID: "app", Secret: "s3cret", Basic: true}, "r", "openid")
	require.NoError(t, err)
	require.True(t, basicOK)
	require.Equal(t, "app", basicUser)
	require.Equal(t, "s3cret", basicPass)
	require.False(t, got.Has("client_secret"))
	require.Equal(t, "openid", got.Get("scope"))
}

func TestParseAuthorizationCallback(t *testing.T) {
	t.Parallel()

	code, state, err := ParseAuthorizationCallback("https://app.example.com/cb?code=abc&state=xyz")
	require.NoError(t, err)
	require.Equal(t, "abc", code)
	require.Equal(t, "xyz", state)

	_, _, err = ParseAuthorizationCallback("https://app.example.com/cb?error=access_denied")
	require.ErrorIs(t, err, ErrAccessDenied)

	_, _, err = ParseAuthorizationCallback("https://app.example.com/cb")
	require.Error(t, err)
}
