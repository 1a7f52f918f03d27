package ident_test

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/ident/pkg/authsdk"
)

func TestTotpGatedLogin(t *testing.T) {
	s := startStack(t, withMail())
	client := authsdk.NewSDKClient(s.baseURL)
	ctx := context.Background()
	signUp(t, s, client, "alice@example.com")

	session, err := client.Login(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)

	assoc, err := session.AssociateMfa(ctx, authsdk.AssociateRequest{Type: authsdk.MfaTypeTotp})
	require.NoError(t, err)
	require.NotEmpty(t, assoc.Secret)
	require.Contains(t, assoc.BarcodeURI, "otpauth://totp/")
	require.Len(t, assoc.RecoveryCodes, 10)

	code, err := totp.GenerateCode(assoc.Secret, time.Now())
	require.NoError(t, err)
	confirmed, err := session.ConfirmMfa(ctx, authsdk.ConfirmRequest{Type: authsdk.MfaTypeTotp, Code: code})
	require.NoError(t, err)
	require.True(t, confirmed.Active)
	require.NoError(t, session.ChangeMfa(ctx, true))

	// The password alone no longer yields tokens.
	_, err = client.Authenticate(ctx, "alice@example.com", testPassword)
	assertOAuthError(t, err, authsdk.ErrorCodeForbiddenAccess)
	mfaToken, ok := authsdk.MfaToken(err)
	require.True(t, ok)

	list, err := client.ListMfaAuthenticators(ctx, mfaToken)
	require.NoError(t, err)
	require.True(t, list.MfaEnabled)
	require.Len(t, list.Authenticators, 2)

	// A recovery code finishes the login and is used up.
	tokens, err := client.VerifyMfa(ctx, mfaToken, authsdk.VerifyRequest{
		Type: authsdk.MfaTypeRecoveryCodes,
		Code: assoc.RecoveryCodes[0],
	})
	require.NoError(t, err)
	assertTokenResponse(t, tokens)

	_, err = client.Authenticate(ctx, "alice@example.com", testPassword)
	mfaToken, ok = authsdk.MfaToken(err)
	require.True(t, ok)
	_, err = client.VerifyMfa(ctx, mfaToken, authsdk.VerifyRequest{
		Type: authsdk.MfaTypeRecoveryCodes,
		Code: assoc.RecoveryCodes[0],
	})
	require.Error(t, err)
}

func TestEmailChallengeOverSMTP(t *testing.T) {
	s := startStack(t, withMail())
	client := authsdk.NewSDKClient(s.baseURL)
	ctx := context.Background()
	signUp(t, s, client, "bob@example.com")

	session, err := client.Login(ctx, "bob@example.com", testPassword)
	require.NoError(t, err)

	assoc, err := session.AssociateMfa(ctx, authsdk.AssociateRequest{Type: authsdk.MfaTypeOobEmail})
	require.NoError(t, err)
	require.NotEmpty(t, assoc.OobCode)

	confirmed, err := session.ConfirmMfa(ctx, authsdk.ConfirmRequest{
		Type:    authsdk.MfaTypeOobEmail,
		OobCode: &assoc.OobCode,
		Code:    s.mail.code(t, "bob@example.com"),
	})
	require.NoError(t, err)
	require.NoError(t, session.ChangeMfa(ctx, true))

	_, err = client.Authenticate(ctx, "bob@example.com", testPassword)
	mfaToken, ok := authsdk.MfaToken(err)
	require.True(t, ok)

	challenge, err := client.ChallengeMfa(ctx, mfaToken, confirmed.ID)
	require.NoError(t, err)
	require.Equal(t, authsdk.MfaTypeOobEmail, challenge.Type)

	tokens, err := client.VerifyMfa(ctx, mfaToken, authsdk.VerifyRequest{
		Type:    authsdk.MfaTypeOobEmail,
		OobCode: &challenge.OobCode,
		Code:    s.mail.code(t, "bob@example.com"),
	})
	require.NoError(t, err)
	assertTokenResponse(t, tokens)
}
