package http_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/aussiebroadwan/ident/internal/ident/domain/domaintest"
	"github.com/aussiebroadwan/ident/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// enrollEmailFactor associates and confirms an oob_email factor for the
// signed-in user and turns MFA on. It returns the factor id.
func (s *testServer) enrollEmailFactor(t *testing.T, email, bearer string) string {
	t.Helper()
	w := s.do(t, request{method: http.MethodPost, path: "/v1/mfa/associate", bearer: bearer, body: authsdk.AssociateRequest{
		Type: authsdk.MfaTypeOobEmail,
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assoc := decodeBody[authsdk.AssociateResponse](t, w)
	require.NotEmpty(t, assoc.OobCode)
	require.Len(t, assoc.RecoveryCodes, 10)

	w = s.do(t, request{method: http.MethodPost, path: "/v1/mfa/confirm", bearer: bearer, body: authsdk.ConfirmRequest{
		Type:    authsdk.MfaTypeOobEmail,
		OobCode: &assoc.OobCode,
		Code:    s.mail.code(t, email),
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	confirmed := decodeBody[authsdk.MfaAuthenticator](t, w)
	require.True(t, confirmed.Active)
	require.Equal(t, email, confirmed.Destination)

	w = s.do(t, request{method: http.MethodPut, path: "/v1/credentials/mfa", bearer: bearer, body: authsdk.ChangeMfaRequest{Enabled: true}})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	return confirmed.ID
}

func TestMfaGatedLoginOverHTTP(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	s.signUp(t, "alice@example.com")
	session := s.login(t, "alice@example.com")
	factorID := s.enrollEmailFactor(t, "alice@example.com", session.AccessToken)

	// The password step now stops short of tokens.
	w := s.do(t, request{method: http.MethodPost, path: "/v1/credentials/authenticate", body: authsdk.AuthenticateRequest{
		Username: "alice@example.com",
		Password: domaintest.DefaultPassword,
	}})
	errBody := requireError(t, w, http.StatusForbidden, authsdk.ErrorCodeForbiddenAccess)
	mfaToken := errBody.Data[authsdk.DataMfaToken]
	require.NotEmpty(t, mfaToken)

	w = s.do(t, request{method: http.MethodGet, path: "/v1/mfa/authenticators?" + url.Values{"mfa_token": {mfaToken}}.Encode()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	list := decodeBody[authsdk.ListAuthenticatorsResponse](t, w)
	require.True(t, list.MfaEnabled)
	require.Len(t, list.Authenticators, 2)
	for _, a := range list.Authenticators {
		if a.Type == authsdk.MfaTypeRecoveryCodes {
			require.Equal(t, 10, a.Remaining)
		}
	}

	w = s.do(t, request{method: http.MethodPost, path: "/v1/mfa/challenge", body: authsdk.ChallengeRequest{
		AuthenticatorID: factorID,
		MfaToken:        mfaToken,
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	challenge := decodeBody[authsdk.ChallengeResponse](t, w)
	require.Equal(t, authsdk.MfaTypeOobEmail, challenge.Type)
	require.NotEmpty(t, challenge.OobCode)

	w = s.do(t, request{method: http.MethodPost, path: "/v1/mfa/verify", body: authsdk.VerifyRequest{
		Type:     authsdk.MfaTypeOobEmail,
		OobCode:  &challenge.OobCode,
		Code:     s.mail.code(t, "alice@example.com"),
		MfaToken: mfaToken,
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tokens := decodeBody[authsdk.TokenResponse](t, w)
	require.NotEmpty(t, tokens.AccessToken)

	// The mfa_token was spent.
	w = s.do(t, request{method: http.MethodGet, path: "/v1/mfa/authenticators?" + url.Values{"mfa_token": {mfaToken}}.Encode()})
	requireError(t, w, http.StatusUnauthorized, authsdk.ErrorCodeNotAuthenticated)
}

func TestMfaVerifyRefusesBearer(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	s.signUp(t, "bob@example.com")
	session := s.login(t, "bob@example.com")
	factorID := s.enrollEmailFactor(t, "bob@example.com", session.AccessToken)

	w := s.do(t, request{method: http.MethodPost, path: "/v1/mfa/challenge", bearer: session.AccessToken, body: authsdk.ChallengeRequest{
		AuthenticatorID: factorID,
	}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	challenge := decodeBody[authsdk.ChallengeResponse](t, w)

	// A fully authenticated caller has nothing left to verify.
	w = s.do(t, request{method: http.MethodPost, path: "/v1/mfa/verify", bearer: session.AccessToken, body: authsdk.VerifyRequest{
		Type:    authsdk.MfaTypeOobEmail,
		OobCode: &challenge.OobCode,
		Code:    s.mail.code(t, "bob@example.com"),
	}})
	requireError(t, w, http.StatusForbidden, authsdk.ErrorCodeForbiddenAccess)
}

func TestMfaTokenScope(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	s.signUp(t, "dora@example.com")
	session := s.login(t, "dora@example.com")
	factorID := s.enrollEmailFactor(t, "dora@example.com", session.AccessToken)

	w := s.do(t, request{method: http.MethodPost, path: "/v1/credentials/authenticate", body: authsdk.AuthenticateRequest{
		Username: "dora@example.com",
		Password: domaintest.DefaultPassword,
	}})
	mfaToken := requireError(t, w, http.StatusForbidden, authsdk.ErrorCodeForbiddenAccess).Data[authsdk.DataMfaToken]
	require.NotEmpty(t, mfaToken)
	query := "?" + url.Values{"mfa_token": {mfaToken}}.Encode()

	tests := []struct {
		name     string
		req      request
		wantCode int
		wantErr  string
	}{
		{"associate", request{method: http.MethodPost, path: "/v1/mfa/associate" + query, body: authsdk.AssociateRequest{
			Type: authsdk.MfaTypeTotp,
		}}, http.StatusForbidden, authsdk.ErrorCodeForbiddenAccess},
		{"confirm", request{method: http.MethodPost, path: "/v1/mfa/confirm" + query, body: authsdk.ConfirmRequest{
			Type: authsdk.MfaTypeTotp,
			Code: "123456",
		}}, http.StatusForbidden, authsdk.ErrorCodeForbiddenAccess},
		{"disassociate", request{method: http.MethodDelete, path: "/v1/mfa/authenticators/" + factorID + query},
			http.StatusForbidden, authsdk.ErrorCodeForbiddenAccess},
		{"disassociate without caller", request{method: http.MethodDelete, path: "/v1/mfa/authenticators/" + factorID},
			http.StatusUnauthorized, authsdk.ErrorCodeNotAuthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, tt.req)
			requireError(t, w, tt.wantCode, tt.wantErr)
		})
	}

	// The factor survived and the token still finishes the login.
	w = s.do(t, request{method: http.MethodGet, path: "/v1/mfa/authenticators" + query})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, decodeBody[authsdk.ListAuthenticatorsResponse](t, w).Authenticators, 2)
}

func TestMfaRequiresCaller(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	w := s.do(t, request{method: http.MethodGet, path: "/v1/mfa/authenticators"})
	requireError(t, w, http.StatusUnauthorized, authsdk.ErrorCodeNotAuthenticated)

	w = s.do(t, request{method: http.MethodPost, path: "/v1/mfa/verify", body: authsdk.VerifyRequest{Type: authsdk.MfaTypeTotp, Code: "123456"}})
	requireError(t, w, http.StatusUnauthorized, authsdk.ErrorCodeNotAuthenticated)

	w = s.do(t, request{method: http.MethodPost, path: "/v1/mfa/verify", body: authsdk.VerifyRequest{Type: authsdk.MfaTypeTotp, Code: "123456", MfaToken: "forged"}})
	requireError(t, w, http.StatusUnauthorized, authsdk.ErrorCodeNotAuthenticated)

	w = s.do(t, request{method: http.MethodGet, path: "/v1/mfa/authenticators", bearer: "not-a-jwt"})
	requireError(t, w, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken)
}

func TestMfaDisassociateOverHTTP(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	s.signUp(t, "carol@example.com")
	session := s.login(t, "carol@example.com")
	factorID := s.enrollEmailFactor(t, "carol@example.com", session.AccessToken)

	w := s.do(t, request{method: http.MethodPost, path: "/v1/mfa/associate", bearer: session.AccessToken, body: authsdk.AssociateRequest{Type: "sms"}})
	requireError(t, w, http.StatusBadRequest, authsdk.ErrorCodeValidation)

	w = s.do(t, request{method: http.MethodDelete, path: "/v1/mfa/authenticators/" + factorID, bearer: session.AccessToken})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = s.do(t, request{method: http.MethodDelete, path: "/v1/mfa/authenticators/" + factorID, bearer: session.AccessToken})
	requireError(t, w, http.StatusNotFound, authsdk.ErrorCodeEntityNotFound)
}
