package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
)

type authTokensRepo struct {
	q querier
}

const authTokensColumns = `
	id, user_id,
	access_ciphertext, access_digest, access_expires_at,
	refresh_ciphertext, refresh_digest, refresh_expires_at,
	id_ciphertext, id_digest, id_expires_at,
	scopes, issued_at, version, created_at, updated_at`

func (r *authTokensRepo) GetAuthTokensByRefreshDigest(ctx context.Context, digest string) (domain.AuthTokensState, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+authTokensColumns+` FROM auth_tokens WHERE refresh_digest = ?`, digest)

	var st domain.AuthTokensState
	var access, refresh, id sealedColumns
	var scopes string
	var issuedAt sql.NullInt64
	var createdAt, updatedAt int64

	dest := []any{&st.ID, &st.UserID}
	dest = append(dest, access.dest()...)
	dest = append(dest, refresh.dest()...)
	dest = append(dest, id.dest()...)
	dest = append(dest, &scopes, &issuedAt, &st.Version, &createdAt, &updatedAt)
	if err := row.Scan(dest...); err != nil {
		return domain.AuthTokensState{}, mapNotFound(err)
	}

	st.AccessToken = access.token()
	st.RefreshToken = refresh.token()
	st.IDToken = id.token()
	st.Scopes = domain.ParseScopes(scopes)
	st.IssuedAt = mapNullTimePtr(issuedAt)
	st.CreatedAt = fromMillis(createdAt)
	st.UpdatedAt = fromMillis(updatedAt)
	return st, nil
}

func (r *authTokensRepo) CreateAuthTokens(ctx context.Context, st domain.AuthTokensState) error {
	access, refresh, id := sealedToColumns(st.AccessToken), sealedToColumns(st.RefreshToken), sealedToColumns(st.IDToken)
	_, err := r.q.ExecContext(ctx, `
INSERT INTO auth_tokens (`+authTokensColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.UserID,
		access.Ciphertext, access.Digest, access.ExpiresAt,
		refresh.Ciphertext, refresh.Digest, refresh.ExpiresAt,
		id.Ciphertext, id.Digest, id.ExpiresAt,
		domain.FormatScopes(st.Scopes), mapOptionalTime(st.IssuedAt),
		st.Version, toMillis(st.CreatedAt), toMillis(st.UpdatedAt),
	)
	return mapWriteErr("create auth tokens", err)
}

func (r *authTokensRepo) UpdateAuthTokens(ctx context.Context, st domain.AuthTokensState) error {
	access, refresh, id := sealedToColumns(st.AccessToken), sealedToColumns(st.RefreshToken), sealedToColumns(st.IDToken)
	res, err := r.q.ExecContext(ctx, `
UPDATE auth_tokens SET
	access_ciphertext = ?, access_digest = ?, access_expires_at = ?,
	refresh_ciphertext = ?, refresh_digest = ?, refresh_expires_at = ?,
	id_ciphertext = ?, id_digest = ?, id_expires_at = ?,
	scopes = ?, issued_at = ?, version = version + 1, updated_at = ?
WHERE id = ? AND version = ?`,
		access.Ciphertext, access.Digest, access.ExpiresAt,
		refresh.Ciphertext, refresh.Digest, refresh.ExpiresAt,
		id.Ciphertext, id.Digest, id.ExpiresAt,
		domain.FormatScopes(st.Scopes), mapOptionalTime(st.IssuedAt), toMillis(st.UpdatedAt),
		st.ID, st.Version,
	)
	return checkVersioned("update auth tokens", res, err)
}

func (r *authTokensRepo) DeleteExpiredAuthTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `
DELETE FROM auth_tokens
WHERE refresh_digest IS NULL OR refresh_expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired auth tokens: %w", err)
	}
	return res.RowsAffected()
}
