package http

import (
	"net/http"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/internal/ident/service"
	"github.com/aussiebroadwan/ident/pkg/authsdk"
	"github.com/aussiebroadwan/ident/pkg/httpx"
	"github.com/aussiebroadwan/ident/pkg/jwtx"
)

// JWKSHandler exposes the JSON Web Key Set for public key discovery.
//
//	@Summary		Get JWKS
//	@Description	Returns the JSON Web Key Set used to verify JWTs. Retired keys stay listed until they expire.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.JWKSResponse	"The JSON Web Key Set"
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.JWKSResponse(keys.PublicJWKS()))
	}
}

// DiscoveryHandler serves the OpenID Provider metadata.
//
//	@Summary		OpenID Provider Configuration
//	@Description	OpenID Connect Discovery 1.0 metadata for this issuer.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	authsdk.Discovery	"Provider metadata"
//	@Router			/.well-known/openid-configuration [get].
func DiscoveryHandler(issuer string) http.HandlerFunc {
	doc := authsdk.Discovery{
		Issuer:                            issuer,
		AuthorizationEndpoint:             issuer + "/oauth2/authorize",
		TokenEndpoint:                     issuer + "/oauth2/token",
		UserinfoEndpoint:                  issuer + "/oauth2/userinfo",
		RevocationEndpoint:                issuer + "/oauth2/revoke",
		JwksURI:                           issuer + "/.well-known/jwks.json",
		ResponseTypesSupported:            []string{"code"},
		SubjectTypesSupported:             []string{"public"},
		IDTokenSigningAlgValuesSupported:  []string{"RS256"},
		ScopesSupported:                   domain.SupportedScopes,
		ClaimsSupported:                   domain.SupportedClaims,
		GrantTypesSupported:               []string{service.GrantAuthorizationCode, service.GrantRefreshToken},
		CodeChallengeMethodsSupported:     []string{domain.PKCES256, domain.PKCEPlain},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_basic", "client_secret_post", "none"},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, doc)
	}
}
