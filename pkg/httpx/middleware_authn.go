package httpx

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/ident/pkg/jwtx"
	"github.com/aussiebroadwan/ident/pkg/slogx"
)

// TokenVerifier verifies access tokens. *jwtx.Verifier satisfies it.
type TokenVerifier interface {
	Verify(token string) (*jwtx.Claims, error)
}

// BearerToken extracts an RFC 6750 bearer token from the Authorization header,
// falling back to the access_token form field on POST.
func BearerToken(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); authz != "" {
		scheme, token, ok := strings.Cut(authz, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if r.Method == http.MethodPost && strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		return r.PostFormValue("access_token")
	}
	return ""
}

// AuthnMiddleware rejects requests without a valid bearer token and stores
// the Principal in the request context.
func AuthnMiddleware(v TokenVerifier) Middleware {
	return authn(v, true)
}

// OptionalAuthn is AuthnMiddleware that lets anonymous requests through.
// A token that is present but invalid is still rejected.
func OptionalAuthn(v TokenVerifier) Middleware {
	return authn(v, false)
}

func authn(v TokenVerifier, required bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" {
				if required {
					WriteBearerError(w, http.StatusUnauthorized, "invalid_token", "missing bearer token")
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				slogx.FromContext(r.Context()).Warn("bearer token rejected", "err", err)
				WriteBearerError(w, http.StatusUnauthorized, "invalid_token", "token verification failed")
				return
			}

			ctx := slogx.With(r.Context(), "user_id", claims.Subject)
			if claims.ClientID != "" {
				ctx = slogx.With(ctx, "client_id", claims.ClientID)
			}
			ctx = WithPrincipal(ctx, Principal{
				UserID:   claims.Subject,
				ClientID: claims.ClientID,
				Scopes:   ParseSpaceDelimitedFields(claims.Scope),
				AMR:      claims.AMR,
				Token:    raw,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAnyScope the caller must have at least one of the provided scopes.
func RequireAnyScope(required ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := PrincipalFrom(r.Context())
			for _, s := range required {
				if p.HasScope(s) {
					next.ServeHTTP(w, r)
					return
				}
			}
			WriteBearerError(w, http.StatusForbidden, "insufficient_scope", "scope "+strings.Join(required, " ")+" required")
		})
	}
}

// WriteBearerError writes an RFC 6750 error with its WWW-Authenticate header.
func WriteBearerError(w http.ResponseWriter, status int, code, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	WriteJSON(w, status, map[string]string{
		"error":             code,
		"error_description": desc,
	})
}
