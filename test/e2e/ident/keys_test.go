package ident_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/ident/pkg/authsdk"
)

func signingKid(t *testing.T, token string) string {
	t.Helper()
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	require.NoError(t, err)
	kid, _ := parsed.Header["kid"].(string)
	return kid
}

// TestKeyRotationFromCLI rotates keys with the CLI while the server runs and
// waits for housekeeping to pick the change up.
func TestKeyRotationFromCLI(t *testing.T) {
	s := startStack(t, withMail(), withEnv("IDENT_HOUSEKEEPING_INTERVAL", "1s"))
	client := authsdk.NewSDKClient(s.baseURL)
	ctx := context.Background()
	signUp(t, s, client, "alice@example.com")

	before, err := client.Authenticate(ctx, "alice@example.com", testPassword)
	require.NoError(t, err)
	oldKid := signingKid(t, before.AccessToken)

	out := s.ident(t, "keys", "rotate", "--retire-existing")
	var newKid string
	for _, line := range splitLines(out) {
		if rest, ok := strings.CutPrefix(line, "new key "); ok {
			newKid, _, _ = strings.Cut(rest, ",")
		}
	}
	require.NotEmpty(t, newKid, out)
	require.Contains(t, out, "retired "+oldKid)

	require.Eventually(t, func() bool {
		tokens, err := client.Authenticate(ctx, "alice@example.com", testPassword)
		return err == nil && signingKid(t, tokens.AccessToken) == newKid
	}, 15*time.Second, 500*time.Millisecond)

	// The retired key stays published so earlier tokens keep verifying.
	jwks, err := client.GetJWKS(ctx)
	require.NoError(t, err)
	kids := make([]string, 0, len(jwks.Keys))
	for _, k := range jwks.Keys {
		kids = append(kids, k.Kid)
	}
	require.ElementsMatch(t, []string{oldKid, newKid}, kids)

	session := client.NewSession(before)
	_, err = session.ListMfaAuthenticators(ctx)
	require.NoError(t, err)

	list := s.ident(t, "keys", "list")
	require.Contains(t, list, newKid)
	require.Contains(t, list, oldKid)
}

// TestPersistentKeysSurviveRestart checks tokens issued before a restart are
// still accepted after it.
func TestPersistentKeysSurviveRestart(t *testing.T) {
	s := startStack(t, withMail())
	client := authsdk.NewSDKClient(s.baseURL)
	ctx := context.Background()
	signUp(t, s, client, "bob@example.com")

	tokens, err := client.Authenticate(ctx, "bob@example.com", testPassword)
	require.NoError(t, err)

	timeout := 10 * time.Second
	require.NoError(t, s.container.Stop(ctx, &timeout))
	require.NoError(t, s.container.Start(ctx))
	client = authsdk.NewSDKClient(endpoint(t, s.container, "8080"))

	require.Eventually(t, func() bool {
		h, err := client.GetReadiness(ctx)
		return err == nil && h.Status == "ok"
	}, 30*time.Second, 500*time.Millisecond)

	session := client.NewSession(tokens)
	_, err = session.ListMfaAuthenticators(ctx)
	require.NoError(t, err)

	refreshed, err := client.RefreshPlatformTokens(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, signingKid(t, tokens.AccessToken), signingKid(t, refreshed.AccessToken))
}
