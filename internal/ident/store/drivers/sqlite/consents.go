package sqlite

import (
	"context"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
)

type consentsRepo struct {
	q querier
}

func (r *consentsRepo) GetConsent(ctx context.Context, clientID, userID string) (domain.OAuth2ClientConsentState, error) {
	row := r.q.QueryRowContext(ctx, `
SELECT id, client_id, user_id, consented, scopes, version, created_at, updated_at
FROM oauth2_consents
WHERE client_id = ? AND user_id = ?`, clientID, userID)

	var st domain.OAuth2ClientConsentState
	var scopes string
	var createdAt, updatedAt int64
	err := row.Scan(&st.ID, &st.ClientID, &st.UserID, &st.Consented, &scopes, &st.Version, &createdAt, &updatedAt)
	if err != nil {
		return domain.OAuth2ClientConsentState{}, mapNotFound(err)
	}
	st.Scopes = domain.ParseScopes(scopes)
	st.CreatedAt = fromMillis(createdAt)
	st.UpdatedAt = fromMillis(updatedAt)
	return st, nil
}

func (r *consentsRepo) CreateConsent(ctx context.Context, st domain.OAuth2ClientConsentState) error {
	_, err := r.q.ExecContext(ctx, `
INSERT INTO oauth2_consents (id, client_id, user_id, consented, scopes, version, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.ClientID, st.UserID, st.Consented, domain.FormatScopes(st.Scopes),
		st.Version, toMillis(st.CreatedAt), toMillis(st.UpdatedAt),
	)
	return mapWriteErr("create consent", err)
}

func (r *consentsRepo) UpdateConsent(ctx context.Context, st domain.OAuth2ClientConsentState) error {
	res, err := r.q.ExecContext(ctx, `
UPDATE oauth2_consents SET
	consented = ?, scopes = ?, version = version + 1, updated_at = ?
WHERE id = ? AND version = ?`,
		st.Consented, domain.FormatScopes(st.Scopes), toMillis(st.UpdatedAt), st.ID, st.Version,
	)
	return checkVersioned("update consent", res, err)
}
