/*
Package authsdk is a client for the ident credential and token authority, and
the home of the wire types its HTTP handlers share with clients.

# SDKClient and Session

SDKClient covers the public endpoints: registration, authentication,
password reset, the OAuth2/OIDC endpoints, discovery and health. Session wraps
a platform token set and refreshes it before it expires; account operations
such as MFA enrollment and consent live on Session.

	client := authsdk.NewSDKClient("https://id.example.com")

	session, err := client.Login(ctx, "alice@example.com", password)
	if tok, ok := authsdk.MfaToken(err); ok {
		tokens, err := client.VerifyMfa(ctx, tok, authsdk.VerifyRequest{
			Type: authsdk.MfaTypeTotp,
			Code: code,
		})
		...
		session = client.NewSession(tokens)
	}

# Authorization Code Flow

	pkce, _ := authsdk.GeneratePKCEChallenge()
	res, err := session.Authorize(ctx, authsdk.AuthorizeParams{
		ClientID:    "01J...",
		RedirectURI: "https://app.example.com/callback",
		Scopes:      []string{"openid", "profile"},
		State:       state,
		PKCE:        pkce,
	})
	tokens, err := client.ExchangeCode(ctx, authsdk.ClientCredentials{ID: "01J..."},
		res.Code, "https://app.example.com/callback", pkce.Verifier)

Authorize never follows redirects. When the user has not consented yet the
result points at the consent page and Code is empty.

# Errors

Every failure from the service is an *OAuth2Error. OAuth2 endpoints use RFC
6749 codes; the /v1 API uses error kinds such as "entity_locked". Use
errors.Is against the predefined errors, or MfaToken to detect an MFA-gated
login.
*/
package authsdk
