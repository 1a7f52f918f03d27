package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/internal/ident/store"
)

type signingKeysRepo struct {
	q querier
}

const signingKeyColumns = `id, kid, algorithm, private_key_encrypted, created_at, retired_at, expires_at`

func (r *signingKeysRepo) CreateSigningKey(ctx context.Context, key domain.SigningKey) error {
	_, err := r.q.ExecContext(ctx, `
INSERT INTO signing_keys (`+signingKeyColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		key.ID, key.Kid, key.Algorithm, key.PrivateKeyEncrypted,
		toMillis(key.CreatedAt), mapOptionalTime(key.RetiredAt), toMillis(key.ExpiresAt),
	)
	return mapWriteErr("create signing key", err)
}

func (r *signingKeysRepo) GetSigningKeyByKid(ctx context.Context, kid string) (domain.SigningKey, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+signingKeyColumns+` FROM signing_keys WHERE kid = ?`, kid)
	key, err := scanSigningKey(row)
	if err != nil {
		return domain.SigningKey{}, mapNotFound(err)
	}
	return key, nil
}

func (r *signingKeysRepo) ListActiveSigningKeys(ctx context.Context, now time.Time) ([]domain.SigningKey, error) {
	return r.list(ctx, `SELECT `+signingKeyColumns+`
FROM signing_keys
WHERE retired_at IS NULL AND expires_at > ?
ORDER BY created_at DESC`, toMillis(now))
}

func (r *signingKeysRepo) ListAllSigningKeys(ctx context.Context, now time.Time) ([]domain.SigningKey, error) {
	return r.list(ctx, `SELECT `+signingKeyColumns+`
FROM signing_keys
WHERE expires_at > ?
ORDER BY created_at DESC`, toMillis(now))
}

func (r *signingKeysRepo) list(ctx context.Context, query string, args ...any) ([]domain.SigningKey, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list signing keys: %w", err)
	}
	defer rows.Close()

	var keys []domain.SigningKey
	for rows.Next() {
		key, err := scanSigningKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signing key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *signingKeysRepo) RetireSigningKey(ctx context.Context, kid string, now time.Time) error {
	res, err := r.q.ExecContext(ctx, `
UPDATE signing_keys SET retired_at = ?
WHERE kid = ? AND retired_at IS NULL`, toMillis(now), kid)
	if err != nil {
		return fmt.Errorf("retire signing key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Already retired is fine; unknown is not.
		if _, err := r.GetSigningKeyByKid(ctx, kid); err != nil {
			return err
		}
	}
	return nil
}

func (r *signingKeysRepo) DeleteExpiredSigningKeys(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM signing_keys WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("delete expired signing keys: %w", err)
	}
	return res.RowsAffected()
}

func scanSigningKey(row scanner) (domain.SigningKey, error) {
	var key domain.SigningKey
	var retiredAt sql.NullInt64
	var createdAt, expiresAt int64
	if err := row.Scan(&key.ID, &key.Kid, &key.Algorithm, &key.PrivateKeyEncrypted, &createdAt, &retiredAt, &expiresAt); err != nil {
		return domain.SigningKey{}, err
	}
	key.CreatedAt = fromMillis(createdAt)
	key.RetiredAt = mapNullTimePtr(retiredAt)
	key.ExpiresAt = fromMillis(expiresAt)
	return key, nil
}

var _ store.SigningKeys = (*signingKeysRepo)(nil)
