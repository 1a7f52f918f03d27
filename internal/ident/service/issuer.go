package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/pkg/cryptox"
	"github.com/aussiebroadwan/ident/pkg/jwtx"
)

// ClaimAMR is the additional claim carrying the authentication methods
// reference of a token request.
const ClaimAMR = "amr"

var ErrNoSigner = errors.New("no active signing key")

// JWTIssuer mints RS256 access and ID tokens and opaque refresh tokens.
//
// A request without an Audience is a platform token: its audience is the
// issuer itself and it carries no client_id. Otherwise the audience is the
// OAuth2 client the tokens are issued to.
type JWTIssuer struct {
	Keys   *jwtx.KeyManager
	Issuer string

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	IDTTL      time.Duration

	Now Clock
}

func (i *JWTIssuer) Issue(_ context.Context, req domain.TokenRequest) (domain.IssuedTokens, error) {
	signer := i.Keys.GetSigner()
	if signer == nil {
		return domain.IssuedTokens{}, ErrNoSigner
	}
	now := i.Now.now()

	accessTTL := orDuration(i.AccessTTL, jwtx.DefaultAccessTokenTTL)
	refreshTTL := orDuration(i.RefreshTTL, jwtx.DefaultRefreshTokenTTL)
	idTTL := orDuration(i.IDTTL, jwtx.DefaultIDTokenTTL)

	audience, clientID := i.Issuer, req.Audience
	if clientID != "" {
		audience = clientID
	}

	amr := []string{"pwd"}
	ext := map[string]any{}
	for k, v := range req.AdditionalClaims {
		if k == ClaimAMR {
			if methods, ok := v.([]string); ok && len(methods) > 0 {
				amr = methods
			}
			continue
		}
		ext[k] = v
	}

	access := jwtx.NewAccessClaims(req.Subject, clientID, req.Scopes, amr, accessTTL, i.Issuer, []string{audience}, now)
	if len(ext) > 0 {
		access.Ext = ext
	}
	accessToken, err := signer.Sign(access)
	if err != nil {
		return domain.IssuedTokens{}, fmt.Errorf("sign access token: %w", err)
	}

	var nonce string
	if req.Nonce != nil {
		nonce = *req.Nonce
	}
	authTime := req.AuthTime
	if authTime.IsZero() {
		authTime = now
	}
	id := jwtx.NewIDClaims(req.Subject, audience, nonce, amr, authTime, idTTL, i.Issuer, now)
	idToken, err := signer.Sign(id)
	if err != nil {
		return domain.IssuedTokens{}, fmt.Errorf("sign id token: %w", err)
	}

	refresh, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.IssuedTokens{}, fmt.Errorf("generate refresh token: %w", err)
	}

	return domain.IssuedTokens{
		AccessToken:      accessToken,
		RefreshToken:     refresh,
		IDToken:          idToken,
		AccessExpiresAt:  now.Add(accessTTL),
		RefreshExpiresAt: now.Add(refreshTTL),
		IDExpiresAt:      now.Add(idTTL),
		Scopes:           req.Scopes,
	}, nil
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
