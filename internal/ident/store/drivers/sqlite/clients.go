package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
)

type clientsRepo struct {
	q querier
}

func (r *clientsRepo) GetClient(ctx context.Context, id string) (domain.OAuth2ClientState, error) {
	row := r.q.QueryRowContext(ctx, `
SELECT id, name, redirect_uri, confidential, deleted, version, created_at, updated_at
FROM oauth2_clients
WHERE id = ?`, id)
	st, err := scanClient(row)
	if err != nil {
		return domain.OAuth2ClientState{}, mapNotFound(err)
	}
	if st.Secrets, err = r.secrets(ctx, st.ID); err != nil {
		return domain.OAuth2ClientState{}, err
	}
	return st, nil
}

func (r *clientsRepo) ListClients(ctx context.Context) ([]domain.OAuth2ClientState, error) {
	return r.list(ctx, `
SELECT id, name, redirect_uri, confidential, deleted, version, created_at, updated_at
FROM oauth2_clients
WHERE deleted = 0
ORDER BY created_at DESC`)
}

func (r *clientsRepo) ListClientsWithExpiredSecrets(ctx context.Context, now time.Time) ([]domain.OAuth2ClientState, error) {
	return r.list(ctx, `
SELECT id, name, redirect_uri, confidential, deleted, version, created_at, updated_at
FROM oauth2_clients c
WHERE EXISTS (
	SELECT 1 FROM oauth2_client_secrets s
	WHERE s.client_id = c.id AND s.expires_at IS NOT NULL AND s.expires_at <= ?
)`, toMillis(now))
}

func (r *clientsRepo) list(ctx context.Context, query string, args ...any) ([]domain.OAuth2ClientState, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	var out []domain.OAuth2ClientState
	for rows.Next() {
		st, err := scanClient(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan client: %w", err)
		}
		out = append(out, st)
	}
	// Close before querying secrets; the pool holds a single connection.
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Secrets, err = r.secrets(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *clientsRepo) secrets(ctx context.Context, clientID string) ([]domain.ClientSecret, error) {
	rows, err := r.q.QueryContext(ctx, `
SELECT id, hash, expires_at, created_at
FROM oauth2_client_secrets
WHERE client_id = ?
ORDER BY created_at, id`, clientID)
	if err != nil {
		return nil, fmt.Errorf("list client secrets: %w", err)
	}
	defer rows.Close()

	var out []domain.ClientSecret
	for rows.Next() {
		var s domain.ClientSecret
		var expiresAt sql.NullInt64
		var createdAt int64
		if err := rows.Scan(&s.ID, &s.Hash, &expiresAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scan client secret: %w", err)
		}
		s.ExpiresAt = mapNullTimePtr(expiresAt)
		s.CreatedAt = fromMillis(createdAt)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *clientsRepo) CreateClient(ctx context.Context, st domain.OAuth2ClientState) error {
	_, err := r.q.ExecContext(ctx, `
INSERT INTO oauth2_clients (id, name, redirect_uri, confidential, deleted, version, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.Name, st.RedirectURI, st.Confidential, st.Deleted, st.Version, toMillis(st.CreatedAt), toMillis(st.UpdatedAt),
	)
	if err != nil {
		return mapWriteErr("create client", err)
	}
	return r.writeSecrets(ctx, st)
}

func (r *clientsRepo) UpdateClient(ctx context.Context, st domain.OAuth2ClientState) error {
	res, err := r.q.ExecContext(ctx, `
UPDATE oauth2_clients SET
	name = ?, redirect_uri = ?, confidential = ?, deleted = ?, version = version + 1, updated_at = ?
WHERE id = ? AND version = ?`,
		st.Name, st.RedirectURI, st.Confidential, st.Deleted, toMillis(st.UpdatedAt), st.ID, st.Version,
	)
	if err := checkVersioned("update client", res, err); err != nil {
		return err
	}

	if _, err := r.q.ExecContext(ctx, `DELETE FROM oauth2_client_secrets WHERE client_id = ?`, st.ID); err != nil {
		return fmt.Errorf("clear client secrets: %w", err)
	}
	return r.writeSecrets(ctx, st)
}

func (r *clientsRepo) writeSecrets(ctx context.Context, st domain.OAuth2ClientState) error {
	for _, s := range st.Secrets {
		_, err := r.q.ExecContext(ctx, `
INSERT INTO oauth2_client_secrets (id, client_id, hash, expires_at, created_at)
VALUES (?, ?, ?, ?, ?)`,
			s.ID, st.ID, s.Hash, mapOptionalTime(s.ExpiresAt), toMillis(s.CreatedAt),
		)
		if err != nil {
			return mapWriteErr("create client secret", err)
		}
	}
	return nil
}

func scanClient(row scanner) (domain.OAuth2ClientState, error) {
	var st domain.OAuth2ClientState
	var createdAt, updatedAt int64
	if err := row.Scan(&st.ID, &st.Name, &st.RedirectURI, &st.Confidential, &st.Deleted, &st.Version, &createdAt, &updatedAt); err != nil {
		return domain.OAuth2ClientState{}, err
	}
	st.CreatedAt = fromMillis(createdAt)
	st.UpdatedAt = fromMillis(updatedAt)
	return st, nil
}
