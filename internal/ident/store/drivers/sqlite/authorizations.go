package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
)

type authorizationsRepo struct {
	q querier
}

const authorizationColumns = `
	id, client_id, user_id, redirect_uri, scopes, nonce,
	code_challenge, code_challenge_method, code_digest, code_expires_at, code_exchanged_at, auth_time,
	access_ciphertext, access_digest, access_expires_at,
	refresh_ciphertext, refresh_digest, refresh_expires_at,
	id_ciphertext, id_digest, id_expires_at,
	token_scopes, last_refreshed_at, version, created_at, updated_at`

func (r *authorizationsRepo) get(ctx context.Context, where string, args ...any) (domain.OpenIdConnectAuthorizationState, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+authorizationColumns+` FROM oidc_authorizations WHERE `+where, args...)
	st, err := scanAuthorization(row)
	if err != nil {
		return domain.OpenIdConnectAuthorizationState{}, mapNotFound(err)
	}
	return st, nil
}

func (r *authorizationsRepo) GetAuthorizationByClientUser(ctx context.Context, clientID, userID string) (domain.OpenIdConnectAuthorizationState, error) {
	return r.get(ctx, `client_id = ? AND user_id = ?`, clientID, userID)
}

func (r *authorizationsRepo) GetAuthorizationByCode(ctx context.Context, clientID, codeDigest string) (domain.OpenIdConnectAuthorizationState, error) {
	return r.get(ctx, `client_id = ? AND code_digest = ?`, clientID, codeDigest)
}

func (r *authorizationsRepo) GetAuthorizationByRefreshDigest(ctx context.Context, digest string) (domain.OpenIdConnectAuthorizationState, error) {
	return r.get(ctx, `refresh_digest = ?`, digest)
}

func (r *authorizationsRepo) GetAuthorizationByAccessDigest(ctx context.Context, clientID, digest string) (domain.OpenIdConnectAuthorizationState, error) {
	return r.get(ctx, `client_id = ? AND access_digest = ?`, clientID, digest)
}

func (r *authorizationsRepo) ListAuthorizationsWithExpiredCode(ctx context.Context, now time.Time) ([]domain.OpenIdConnectAuthorizationState, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+authorizationColumns+`
FROM oidc_authorizations
WHERE code_digest IS NOT NULL AND code_expires_at <= ?`, toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("list authorizations: %w", err)
	}
	defer rows.Close()

	var out []domain.OpenIdConnectAuthorizationState
	for rows.Next() {
		st, err := scanAuthorization(rows)
		if err != nil {
			return nil, fmt.Errorf("scan authorization: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (r *authorizationsRepo) CreateAuthorization(ctx context.Context, st domain.OpenIdConnectAuthorizationState) error {
	access, refresh, id := sealedToColumns(st.AccessToken), sealedToColumns(st.RefreshToken), sealedToColumns(st.IDToken)
	_, err := r.q.ExecContext(ctx, `
INSERT INTO oidc_authorizations (`+authorizationColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.ClientID, st.UserID, st.RedirectURI, domain.FormatScopes(st.Scopes), mapOptionalString(st.Nonce),
		mapOptionalString(st.CodeChallenge), mapOptionalString(st.CodeChallengeMethod), mapOptionalString(st.CodeDigest),
		mapOptionalTime(st.CodeExpiresAt), mapOptionalTime(st.CodeExchangedAt), mapOptionalTime(st.AuthTime),
		access.Ciphertext, access.Digest, access.ExpiresAt,
		refresh.Ciphertext, refresh.Digest, refresh.ExpiresAt,
		id.Ciphertext, id.Digest, id.ExpiresAt,
		domain.FormatScopes(st.TokenScopes), mapOptionalTime(st.LastRefreshedAt),
		st.Version, toMillis(st.CreatedAt), toMillis(st.UpdatedAt),
	)
	return mapWriteErr("create authorization", err)
}

func (r *authorizationsRepo) UpdateAuthorization(ctx context.Context, st domain.OpenIdConnectAuthorizationState) error {
	access, refresh, id := sealedToColumns(st.AccessToken), sealedToColumns(st.RefreshToken), sealedToColumns(st.IDToken)
	res, err := r.q.ExecContext(ctx, `
UPDATE oidc_authorizations SET
	redirect_uri = ?, scopes = ?, nonce = ?,
	code_challenge = ?, code_challenge_method = ?, code_digest = ?, code_expires_at = ?, code_exchanged_at = ?, auth_time = ?,
	access_ciphertext = ?, access_digest = ?, access_expires_at = ?,
	refresh_ciphertext = ?, refresh_digest = ?, refresh_expires_at = ?,
	id_ciphertext = ?, id_digest = ?, id_expires_at = ?,
	token_scopes = ?, last_refreshed_at = ?,
	version = version + 1, updated_at = ?
WHERE id = ? AND version = ?`,
		st.RedirectURI, domain.FormatScopes(st.Scopes), mapOptionalString(st.Nonce),
		mapOptionalString(st.CodeChallenge), mapOptionalString(st.CodeChallengeMethod), mapOptionalString(st.CodeDigest),
		mapOptionalTime(st.CodeExpiresAt), mapOptionalTime(st.CodeExchangedAt), mapOptionalTime(st.AuthTime),
		access.Ciphertext, access.Digest, access.ExpiresAt,
		refresh.Ciphertext, refresh.Digest, refresh.ExpiresAt,
		id.Ciphertext, id.Digest, id.ExpiresAt,
		domain.FormatScopes(st.TokenScopes), mapOptionalTime(st.LastRefreshedAt),
		toMillis(st.UpdatedAt),
		st.ID, st.Version,
	)
	return checkVersioned("update authorization", res, err)
}

func scanAuthorization(row scanner) (domain.OpenIdConnectAuthorizationState, error) {
	var st domain.OpenIdConnectAuthorizationState
	var scopes, tokenScopes string
	var nonce, challenge, method, codeDigest sql.NullString
	var codeExpires, codeExchanged, authTime, lastRefreshed sql.NullInt64
	var access, refresh, id sealedColumns
	var createdAt, updatedAt int64

	dest := []any{
		&st.ID, &st.ClientID, &st.UserID, &st.RedirectURI, &scopes, &nonce,
		&challenge, &method, &codeDigest, &codeExpires, &codeExchanged, &authTime,
	}
	dest = append(dest, access.dest()...)
	dest = append(dest, refresh.dest()...)
	dest = append(dest, id.dest()...)
	dest = append(dest, &tokenScopes, &lastRefreshed, &st.Version, &createdAt, &updatedAt)
	if err := row.Scan(dest...); err != nil {
		return domain.OpenIdConnectAuthorizationState{}, err
	}

	st.Scopes = domain.ParseScopes(scopes)
	st.Nonce = mapNullStringPtr(nonce)
	st.CodeChallenge = mapNullStringPtr(challenge)
	st.CodeChallengeMethod = mapNullStringPtr(method)
	st.CodeDigest = mapNullStringPtr(codeDigest)
	st.CodeExpiresAt = mapNullTimePtr(codeExpires)
	st.CodeExchangedAt = mapNullTimePtr(codeExchanged)
	st.AuthTime = mapNullTimePtr(authTime)
	st.AccessToken = access.token()
	st.RefreshToken = refresh.token()
	st.IDToken = id.token()
	st.TokenScopes = domain.ParseScopes(tokenScopes)
	st.LastRefreshedAt = mapNullTimePtr(lastRefreshed)
	st.CreatedAt = fromMillis(createdAt)
	st.UpdatedAt = fromMillis(updatedAt)
	return st, nil
}
