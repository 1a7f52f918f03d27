package http_test

import (
	"net/http"
	"strings"
	"testing"

	identhttp "github.com/aussiebroadwan/ident/internal/ident/http"
	"github.com/aussiebroadwan/ident/internal/ident/metrics"
	"github.com/aussiebroadwan/ident/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func TestDiscoveryDocument(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	w := s.do(t, request{method: http.MethodGet, path: "/.well-known/openid-configuration"})
	require.Equal(t, http.StatusOK, w.Code)
	doc := decodeBody[authsdk.Discovery](t, w)

	require.Equal(t, testIssuer, doc.Issuer)
	require.Equal(t, testIssuer+"/oauth2/authorize", doc.AuthorizationEndpoint)
	require.Equal(t, testIssuer+"/oauth2/token", doc.TokenEndpoint)
	require.Equal(t, testIssuer+"/.well-known/jwks.json", doc.JwksURI)
	require.Equal(t, []string{"code"}, doc.ResponseTypesSupported)
	require.Contains(t, doc.ScopesSupported, "openid")
	require.Contains(t, doc.CodeChallengeMethodsSupported, "S256")
	require.Contains(t, doc.TokenEndpointAuthMethodsSupported, "none")
}

func TestJWKSListsSigningKey(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	w := s.do(t, request{method: http.MethodGet, path: "/.well-known/jwks.json"})
	require.Equal(t, http.StatusOK, w.Code)
	set := decodeBody[authsdk.JWKSResponse](t, w)
	require.Len(t, set.Keys, 1)
	require.Equal(t, "RSA", set.Keys[0].Kty)
	require.Equal(t, "RS256", set.Keys[0].Alg)
	require.NotEmpty(t, set.Keys[0].Kid)
}

func TestHealthProbes(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	w := s.do(t, request{method: http.MethodGet, path: "/livez"})
	require.Equal(t, http.StatusOK, w.Code)
	live := decodeBody[authsdk.HealthResponse](t, w)
	require.Equal(t, "ok", live.Status)
	require.Equal(t, "test", live.Version)
	require.Nil(t, live.Checks)

	w = s.do(t, request{method: http.MethodGet, path: "/readyz"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ready := decodeBody[authsdk.HealthResponse](t, w)
	require.Equal(t, "ok", ready.Status)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Signer)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	s := newServer(t, func(r *identhttp.Router) {
		r.Metrics = metrics.New()
	})

	s.do(t, request{method: http.MethodGet, path: "/livez"})
	w := s.do(t, request{method: http.MethodGet, path: "/metrics"})
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	require.Contains(t, body, "ident_http_requests_total")
	require.True(t, strings.Contains(body, `route="GET /livez"`), body)
}

func TestSwaggerIsServed(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	w := s.do(t, request{method: http.MethodGet, path: "/swagger/doc.json"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "/oauth2/token")
}
