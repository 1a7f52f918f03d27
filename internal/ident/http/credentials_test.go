package http_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/domain/domaintest"
	identhttp "github.com/aussiebroadwan/ident/internal/ident/http"
	"github.com/aussiebroadwan/ident/pkg/authsdk"
	"github.com/aussiebroadwan/ident/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestRegisterConfirmAuthenticate(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	w := s.do(t, request{method: http.MethodPost, path: "/v1/credentials/register", body: authsdk.RegisterRequest{
		Email:    "alice@example.com",
		Password: domaintest.DefaultPassword,
	}})
	require.Equal(t, http.StatusAccepted, w.Code)

	// Not verified yet.
	w = s.do(t, request{method: http.MethodPost, path: "/v1/credentials/authenticate", body: authsdk.AuthenticateRequest{
		Username: "alice@example.com",
		Password: domaintest.DefaultPassword,
	}})
	requireError(t, w, http.StatusPreconditionFailed, authsdk.ErrorCodePreconditionViolation)

	w = s.do(t, request{method: http.MethodPost, path: "/v1/credentials/register/confirm", body: authsdk.ConfirmRegistrationRequest{
		Token: s.mail.token(t, "alice@example.com"),
	}})
	require.Equal(t, http.StatusNoContent, w.Code)

	tokens := s.login(t, "alice@example.com")
	require.Equal(t, "Bearer", tokens.TokenType)
	require.NotEmpty(t, tokens.AccessToken)
	require.NotEmpty(t, tokens.RefreshToken)
	require.Positive(t, tokens.ExpiresIn)
	require.Equal(t, "openid profile email", tokens.Scope)
}

func TestPlatformTokenRefreshAndRevoke(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	s.signUp(t, "bob@example.com")
	tokens := s.login(t, "bob@example.com")

	w := s.do(t, request{method: http.MethodPost, path: "/v1/tokens/refresh", body: authsdk.RefreshRequest{RefreshToken: tokens.RefreshToken}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	refreshed := decodeBody[authsdk.TokenResponse](t, w)
	require.NotEqual(t, tokens.RefreshToken, refreshed.RefreshToken)

	// The old refresh token was rotated out.
	w = s.do(t, request{method: http.MethodPost, path: "/v1/tokens/refresh", body: authsdk.RefreshRequest{RefreshToken: tokens.RefreshToken}})
	requireError(t, w, http.StatusUnauthorized, authsdk.ErrorCodeNotAuthenticated)

	w = s.do(t, request{method: http.MethodPost, path: "/v1/tokens/revoke", body: authsdk.RevokeRequest{RefreshToken: refreshed.RefreshToken}})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, request{method: http.MethodPost, path: "/v1/tokens/refresh", body: authsdk.RefreshRequest{RefreshToken: refreshed.RefreshToken}})
	requireError(t, w, http.StatusUnauthorized, authsdk.ErrorCodeNotAuthenticated)
}

func TestCredentialErrors(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	s.signUp(t, "carol@example.com")

	tests := []struct {
		name   string
		req    request
		status int
		code   string
	}{
		{
			name:   "unknown field",
			req:    request{method: http.MethodPost, path: "/v1/credentials/register", body: map[string]string{"email": "x@example.com", "role": "admin"}},
			status: http.StatusBadRequest,
			code:   authsdk.ErrorCodeValidation,
		},
		{
			name:   "short password",
			req:    request{method: http.MethodPost, path: "/v1/credentials/register", body: authsdk.RegisterRequest{Email: "dan@example.com", Password: "short"}},
			status: http.StatusBadRequest,
			code:   authsdk.ErrorCodeValidation,
		},
		{
			name:   "wrong password",
			req:    request{method: http.MethodPost, path: "/v1/credentials/authenticate", body: authsdk.AuthenticateRequest{Username: "carol@example.com", Password: "not the password"}},
			status: http.StatusUnauthorized,
			code:   authsdk.ErrorCodeNotAuthenticated,
		},
		{
			name:   "unknown user",
			req:    request{method: http.MethodPost, path: "/v1/credentials/authenticate", body: authsdk.AuthenticateRequest{Username: "nobody@example.com", Password: domaintest.DefaultPassword}},
			status: http.StatusUnauthorized,
			code:   authsdk.ErrorCodeNotAuthenticated,
		},
		{
			name:   "unknown confirmation token",
			req:    request{method: http.MethodPost, path: "/v1/credentials/register/confirm", body: authsdk.ConfirmRegistrationRequest{Token: "never-issued"}},
			status: http.StatusNotFound,
			code:   authsdk.ErrorCodeEntityNotFound,
		},
		{
			name:   "mfa switch without a session",
			req:    request{method: http.MethodPut, path: "/v1/credentials/mfa", body: authsdk.ChangeMfaRequest{Enabled: true}},
			status: http.StatusUnauthorized,
			code:   authsdk.ErrorCodeInvalidToken,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requireError(t, s.do(t, tt.req), tt.status, tt.code)
		})
	}
}

func TestEnableMfaWithoutFactor(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	s.signUp(t, "erin@example.com")
	tokens := s.login(t, "erin@example.com")

	w := s.do(t, request{method: http.MethodPut, path: "/v1/credentials/mfa", body: authsdk.ChangeMfaRequest{Enabled: true}, bearer: tokens.AccessToken})
	requireError(t, w, http.StatusPreconditionFailed, authsdk.ErrorCodePreconditionViolation)
}

func TestPasswordResetOverHTTP(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	s.signUp(t, "frank@example.com")

	w := s.do(t, request{method: http.MethodPost, path: "/v1/credentials/password-reset", body: authsdk.EmailRequest{Email: "frank@example.com"}})
	require.Equal(t, http.StatusAccepted, w.Code)
	token := s.mail.token(t, "frank@example.com")

	w = s.do(t, request{method: http.MethodPost, path: "/v1/credentials/password-reset/verify", body: authsdk.VerifyPasswordResetRequest{Token: token}})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = s.do(t, request{method: http.MethodPost, path: "/v1/credentials/password-reset/complete", body: authsdk.CompletePasswordResetRequest{
		Token:       token,
		NewPassword: "a much better passphrase",
	}})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = s.do(t, request{method: http.MethodPost, path: "/v1/credentials/authenticate", body: authsdk.AuthenticateRequest{
		Username: "frank@example.com",
		Password: "a much better passphrase",
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Unknown addresses are accepted without effect.
	w = s.do(t, request{method: http.MethodPost, path: "/v1/credentials/password-reset", body: authsdk.EmailRequest{Email: "ghost@example.com"}})
	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestAuthenticateIsRateLimited(t *testing.T) {
	t.Parallel()
	limit := httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Hour, Burst: 2}
	s := newServer(t, func(r *identhttp.Router) {
		r.Limits.Strict = limit
	})

	attempt := func(username string) int {
		return s.do(t, request{method: http.MethodPost, path: "/v1/credentials/authenticate", body: authsdk.AuthenticateRequest{
			Username: username,
			Password: "not the password",
		}}).Code
	}

	require.Equal(t, http.StatusUnauthorized, attempt("grace@example.com"))
	require.Equal(t, http.StatusUnauthorized, attempt("grace@example.com"))
	require.Equal(t, http.StatusTooManyRequests, attempt("grace@example.com"))
}
