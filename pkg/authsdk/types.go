package authsdk

import (
	"time"

	"github.com/aussiebroadwan/ident/pkg/jwtx"
)

// ============================================================================
// Error Body
// ============================================================================

// ErrorResponse is the body of every error the service returns. OAuth2
// endpoints use RFC 6749 codes; the /v1 API uses the error kind
// ("validation", "entity_locked", ...). Data carries caller-visible values,
// for example the mfa_token of an MFA-gated login.
type ErrorResponse struct {
	Error            string            `json:"error"`
	ErrorDescription string            `json:"error_description,omitempty"`
	Data             map[string]string `json:"data,omitempty"`
}

// ============================================================================
// Token Types
// ============================================================================

// TokenResponse is the token set returned by POST /oauth2/token and by the
// platform token endpoints.
type TokenResponse struct {
	// AccessToken is an RS256 JWT.
	AccessToken string `json:"access_token"`

	// TokenType is always "Bearer".
	TokenType string `json:"token_type"`

	// RefreshToken is opaque and single use; every refresh rotates it.
	RefreshToken string `json:"refresh_token,omitempty"`

	// IDToken is the OpenID Connect ID token.
	IDToken string `json:"id_token,omitempty"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expires_in"`

	// Scope is the space-delimited granted scope.
	Scope string `json:"scope,omitempty"`
}

// RefreshRequest is the body of POST /v1/tokens/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RevokeRequest is the body of POST /v1/tokens/revoke.
type RevokeRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ============================================================================
// Credential Types
// ============================================================================

// RegisterRequest is the body of POST /v1/credentials/register.
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// EmailRequest names an account by email. Used by the resend and reset
// initiation endpoints, which answer the same way whether or not the account
// exists.
type EmailRequest struct {
	Email string `json:"email"`
}

// ConfirmRegistrationRequest is the body of POST /v1/credentials/register/confirm.
type ConfirmRegistrationRequest struct {
	Token string `json:"token"`
}

// AuthenticateRequest is the body of POST /v1/credentials/authenticate.
type AuthenticateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// VerifyPasswordResetRequest is the body of POST /v1/credentials/password-reset/verify.
type VerifyPasswordResetRequest struct {
	Token string `json:"token"`
}

// CompletePasswordResetRequest is the body of POST /v1/credentials/password-reset/complete.
type CompletePasswordResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ChangeMfaRequest is the body of PUT /v1/credentials/mfa.
type ChangeMfaRequest struct {
	Enabled bool `json:"enabled"`
}

// ============================================================================
// MFA Types
// ============================================================================

// MFA factor types.
const (
	MfaTypeTotp          = "totp"
	MfaTypeOobSms        = "oob_sms"
	MfaTypeOobEmail      = "oob_email"
	MfaTypeRecoveryCodes = "recovery_codes"
)

// MfaAuthenticator describes one enrolled factor. Secrets never appear here.
type MfaAuthenticator struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Active      bool       `json:"active"`
	Destination string     `json:"destination,omitempty"`
	Remaining   int        `json:"remaining_codes,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
}

// ListAuthenticatorsResponse is returned by GET /v1/mfa/authenticators.
type ListAuthenticatorsResponse struct {
	MfaEnabled     bool               `json:"mfa_enabled"`
	Authenticators []MfaAuthenticator `json:"authenticators"`
}

// AssociateRequest is the body of POST /v1/mfa/associate. PhoneNumber is
// required for oob_sms; Email defaults to the registration email for
// oob_email.
type AssociateRequest struct {
	Type        string  `json:"type"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	Email       *string `json:"email,omitempty"`
}

// AssociateResponse carries what the user needs to confirm the factor. For
// TOTP that is Secret and BarcodeURI; for OOB factors OobCode is the handle to
// send back with the delivered code. RecoveryCodes is only present on the
// first association and is never shown again.
type AssociateResponse struct {
	AuthenticatorID string   `json:"authenticator_id"`
	Type            string   `json:"type"`
	Secret          string   `json:"secret,omitempty"`
	BarcodeURI      string   `json:"barcode_uri,omitempty"`
	OobCode         string   `json:"oob_code,omitempty"`
	RecoveryCodes   []string `json:"recovery_codes,omitempty"`
}

// ConfirmRequest is the body of POST /v1/mfa/confirm.
type ConfirmRequest struct {
	Type    string  `json:"type"`
	OobCode *string `json:"oob_code,omitempty"`
	Code    string  `json:"code"`
}

// ChallengeRequest is the body of POST /v1/mfa/challenge. MfaToken is set
// during an MFA-gated login instead of a bearer token.
type ChallengeRequest struct {
	AuthenticatorID string `json:"authenticator_id"`
	MfaToken        string `json:"mfa_token,omitempty"`
}

// ChallengeResponse returns the handle of a freshly sent OOB code. It is empty
// for TOTP.
type ChallengeResponse struct {
	AuthenticatorID string `json:"authenticator_id"`
	Type            string `json:"type"`
	OobCode         string `json:"oob_code,omitempty"`
}

// VerifyRequest is the body of POST /v1/mfa/verify. With MfaToken set a
// successful verification completes the login and returns a TokenResponse.
type VerifyRequest struct {
	Type     string  `json:"type"`
	OobCode  *string `json:"oob_code,omitempty"`
	Code     string  `json:"code"`
	MfaToken string  `json:"mfa_token,omitempty"`
}

// ============================================================================
// Consent Types
// ============================================================================

// ConsentRequest is the body of PUT /v1/consents/{client_id}.
type ConsentRequest struct {
	Consented bool   `json:"consented"`
	Scope     string `json:"scope"`
}

// ConsentResponse reflects the stored consent.
type ConsentResponse struct {
	ClientID  string `json:"client_id"`
	Consented bool   `json:"consented"`
	Scope     string `json:"scope"`
}

// ============================================================================
// OpenID Connect Types
// ============================================================================

// PostalAddress is the OIDC address claim.
type PostalAddress struct {
	Formatted     string `json:"formatted,omitempty"`
	StreetAddress string `json:"street_address,omitempty"`
	Locality      string `json:"locality,omitempty"`
	Region        string `json:"region,omitempty"`
	PostalCode    string `json:"postal_code,omitempty"`
	Country       string `json:"country,omitempty"`
}

// UserInfoResponse is returned by /oauth2/userinfo. Claims the granted scopes
// do not cover are null.
type UserInfoResponse struct {
	Subject             string         `json:"sub"`
	Name                *string        `json:"name"`
	GivenName           *string        `json:"given_name"`
	FamilyName          *string        `json:"family_name"`
	Picture             *string        `json:"picture"`
	Zoneinfo            *string        `json:"zoneinfo"`
	Locale              *string        `json:"locale"`
	Email               *string        `json:"email"`
	EmailVerified       *bool          `json:"email_verified"`
	PhoneNumber         *string        `json:"phone_number"`
	PhoneNumberVerified *bool          `json:"phone_number_verified"`
	Address             *PostalAddress `json:"address"`
}

// Discovery is the OpenID Provider metadata served at
// /.well-known/openid-configuration.
type Discovery struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	UserinfoEndpoint                  string   `json:"userinfo_endpoint"`
	RevocationEndpoint                string   `json:"revocation_endpoint"`
	JwksURI                           string   `json:"jwks_uri"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	SubjectTypesSupported             []string `json:"subject_types_supported"`
	IDTokenSigningAlgValuesSupported  []string `json:"id_token_signing_alg_values_supported"`
	ScopesSupported                   []string `json:"scopes_supported"`
	ClaimsSupported                   []string `json:"claims_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
}

// JWKSResponse contains the JSON Web Key Set served at
// /.well-known/jwks.json.
type JWKSResponse jwtx.JWKS

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status is "ok" or "unavailable".
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}
