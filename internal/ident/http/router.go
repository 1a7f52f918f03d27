package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/metrics"
	"github.com/aussiebroadwan/ident/internal/ident/service"
	"github.com/aussiebroadwan/ident/internal/ident/store"
	"github.com/aussiebroadwan/ident/pkg/httpx"
	"github.com/aussiebroadwan/ident/pkg/jwtx"
	"github.com/aussiebroadwan/ident/pkg/slogx"

	_ "github.com/aussiebroadwan/ident/api/docs" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Limits are the rate limit profiles applied to the routes.
type Limits struct {
	Strict   httpx.RateLimitConfig
	Moderate httpx.RateLimitConfig
	Public   httpx.RateLimitConfig
}

// DefaultLimits returns the httpx default profiles.
func DefaultLimits() Limits {
	return Limits{Strict: httpx.StrictLimit, Moderate: httpx.ModerateLimit, Public: httpx.PublicLimit}
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeyManager
	issuer       string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	// platform only accepts tokens issued by a direct login; tokens accepts
	// any token this service signed.
	platform httpx.TokenVerifier
	tokens   httpx.TokenVerifier

	Credentials *service.CredentialService
	Mfa         *service.MfaService
	Platform    *service.PlatformTokenService
	Authorize   *service.AuthorizeService
	Tokens      *service.TokenService
	Consents    *service.ConsentService

	Metrics  *metrics.Metrics // optional
	Limits   Limits
	ClientIP httpx.KeyExtractor
	Now      func() time.Time
}

func NewRouter(
	keys *jwtx.KeyManager,
	issuer, buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		issuer:       strings.TrimSuffix(issuer, "/"),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		platform: jwtx.NewVerifier(keys.KeySet, jwtx.VerifyOptions{
			Issuer:   issuer,
			Audience: []string{issuer},
		}),
		tokens:   jwtx.NewVerifier(keys.KeySet, jwtx.VerifyOptions{Issuer: issuer}),
		Limits:   DefaultLimits(),
		ClientIP: httpx.IPKeyExtractor,
		Now:      time.Now,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	if r.Metrics != nil {
		r.middlewares = append(r.middlewares, r.Metrics.Middleware)
		r.Mux.Handle("GET /metrics", r.Metrics.Handler())
	}

	r.registerOAuth2()
	r.registerWellKnown()
	r.registerCredentials()
	r.registerMfa()
	r.registerTokens()
	r.registerConsents()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			ident API
//	@version		0.1.0
//	@description	Credential and token authority: OAuth2 authorization code with PKCE, OpenID Connect, and a JSON API for registration, login and MFA.
//	@description
//	@description				All tokens are signed using RS256 (RSA-SHA256) and can be verified using the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/ident
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) now() time.Time { return r.Now() }

func (r *Router) byIP(c httpx.RateLimitConfig) httpx.Middleware {
	return httpx.RateLimitByIP(c, r.ClientIP)
}

func (r *Router) byUser(c httpx.RateLimitConfig) httpx.Middleware {
	return httpx.RateLimitByUser(c, r.ClientIP)
}

func (r *Router) registerOAuth2() {
	// GET /authorize - a session is optional, its absence sends the user to login
	authorize := &AuthorizeHandler{AuthorizeService: r.Authorize, Issuer: r.issuer}
	r.Mux.Handle("GET /oauth2/authorize",
		httpx.Chain(authorize,
			httpx.OptionalAuthn(r.platform),
			r.byIP(r.Limits.Moderate),
		),
	)

	// POST /token - strict rate limit by IP (covers all grant types)
	token := &TokenHandler{TokenService: r.Tokens, Now: r.now}
	r.Mux.Handle("POST /oauth2/token",
		httpx.Chain(token,
			r.byIP(r.Limits.Strict),
		),
	)

	revoke := &RevokeHandler{TokenService: r.Tokens}
	r.Mux.Handle("POST /oauth2/revoke",
		httpx.Chain(revoke,
			r.byIP(r.Limits.Moderate),
		),
	)

	userinfo := &UserInfoHandler{TokenService: r.Tokens}
	secured := httpx.Chain(userinfo,
		httpx.AuthnMiddleware(r.tokens),
		httpx.RequireAnyScope("openid"),
		r.byUser(r.Limits.Moderate),
	)
	r.Mux.Handle("GET /oauth2/userinfo", secured)
	r.Mux.Handle("POST /oauth2/userinfo", secured)
}

func (r *Router) registerWellKnown() {
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys.KeySet),
			r.byIP(r.Limits.Public),
		),
	)
	r.Mux.Handle("GET /.well-known/openid-configuration",
		httpx.Chain(DiscoveryHandler(r.issuer),
			r.byIP(r.Limits.Public),
		),
	)
}

func (r *Router) registerCredentials() {
	h := &CredentialsHandler{Credentials: r.Credentials, Now: r.now}

	public := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn, r.byIP(r.Limits.Moderate))
	}

	r.Mux.Handle("POST /v1/credentials/register", public(h.HandleRegister))
	r.Mux.Handle("POST /v1/credentials/register/confirm", public(h.HandleConfirm))
	r.Mux.Handle("POST /v1/credentials/register/resend", public(h.HandleResend))
	r.Mux.Handle("POST /v1/credentials/password-reset", public(h.HandleInitiateReset))
	r.Mux.Handle("POST /v1/credentials/password-reset/resend", public(h.HandleResendReset))
	r.Mux.Handle("POST /v1/credentials/password-reset/verify", public(h.HandleVerifyReset))
	r.Mux.Handle("POST /v1/credentials/password-reset/complete", public(h.HandleCompleteReset))

	// Brute force protection: per address and per address+username.
	r.Mux.Handle("POST /v1/credentials/authenticate",
		httpx.Chain(http.HandlerFunc(h.HandleAuthenticate),
			r.byIP(r.Limits.Strict),
			httpx.RateLimitMiddleware(r.Limits.Strict, httpx.CompositeKeyExtractor(":", r.ClientIP, usernameKey)),
		),
	)

	r.Mux.Handle("PUT /v1/credentials/mfa",
		httpx.Chain(http.HandlerFunc(h.HandleChangeMfa),
			httpx.AuthnMiddleware(r.platform),
			r.byUser(r.Limits.Moderate),
		),
	)
}

func (r *Router) registerMfa() {
	h := &MfaHandler{Mfa: r.Mfa, Now: r.now}

	// The caller is either signed in or half way through an MFA-gated login;
	// the handler resolves which.
	chain := func(fn http.HandlerFunc, limit httpx.RateLimitConfig) http.Handler {
		return httpx.Chain(fn,
			httpx.OptionalAuthn(r.platform),
			r.byUser(limit),
		)
	}

	r.Mux.Handle("GET /v1/mfa/authenticators", chain(h.HandleList, r.Limits.Moderate))
	r.Mux.Handle("POST /v1/mfa/associate", chain(h.HandleAssociate, r.Limits.Moderate))
	r.Mux.Handle("POST /v1/mfa/confirm", chain(h.HandleConfirm, r.Limits.Strict))
	r.Mux.Handle("POST /v1/mfa/challenge", chain(h.HandleChallenge, r.Limits.Moderate))
	r.Mux.Handle("POST /v1/mfa/verify", chain(h.HandleVerify, r.Limits.Strict))
	r.Mux.Handle("DELETE /v1/mfa/authenticators/{id}", chain(h.HandleDisassociate, r.Limits.Moderate))
}

func (r *Router) registerTokens() {
	h := &PlatformTokensHandler{Platform: r.Platform, Now: r.now}

	r.Mux.Handle("POST /v1/tokens/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			r.byIP(r.Limits.Strict),
		),
	)
	r.Mux.Handle("POST /v1/tokens/revoke",
		httpx.Chain(http.HandlerFunc(h.HandleRevoke),
			r.byIP(r.Limits.Moderate),
		),
	)
}

func (r *Router) registerConsents() {
	h := &ConsentsHandler{Consents: r.Consents}

	secured := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.platform),
			r.byUser(r.Limits.Moderate),
		)
	}

	r.Mux.Handle("PUT /v1/consents/{client_id}", secured(h.HandleChange))
	r.Mux.Handle("DELETE /v1/consents/{client_id}", secured(h.HandleRevoke))
}

func (r *Router) registerSystem() {
	h := &HealthHandler{Started: r.startTime, Version: r.buildVersion, Store: r.store, Keys: r.keys.KeySet}

	// Probes are polled often; they share the public limit.
	r.Mux.Handle("GET /livez", httpx.Chain(http.HandlerFunc(h.HandleLive), r.byIP(r.Limits.Public)))
	r.Mux.Handle("GET /readyz", httpx.Chain(http.HandlerFunc(h.HandleReady), r.byIP(r.Limits.Public)))
}

func joinScopes(scopes []string) string { return strings.Join(scopes, " ") }
