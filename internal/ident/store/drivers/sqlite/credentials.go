package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
)

type credentialsRepo struct {
	q querier
}

const credentialColumns = `
	id, user_id, username, password_hash,
	email, display_name, verification_digest, registration_initiated_at, verified, verified_at,
	reset_digest, reset_initiated_at,
	failed_attempts, locked_until, suspended, last_login_at,
	mfa_enabled, mfa_can_be_disabled, authenticators,
	version, created_at, updated_at`

func (r *credentialsRepo) get(ctx context.Context, where string, args ...any) (domain.PasswordCredentialState, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+credentialColumns+` FROM password_credentials WHERE `+where, args...)
	st, err := scanCredential(row)
	if err != nil {
		return domain.PasswordCredentialState{}, mapNotFound(err)
	}
	return st, nil
}

func (r *credentialsRepo) GetCredentialByID(ctx context.Context, id string) (domain.PasswordCredentialState, error) {
	return r.get(ctx, `id = ?`, id)
}

func (r *credentialsRepo) GetCredentialByUsername(ctx context.Context, username string) (domain.PasswordCredentialState, error) {
	return r.get(ctx, `username = ?`, username)
}

func (r *credentialsRepo) GetCredentialByUserID(ctx context.Context, userID string) (domain.PasswordCredentialState, error) {
	return r.get(ctx, `user_id = ?`, userID)
}

func (r *credentialsRepo) GetCredentialByVerificationDigest(ctx context.Context, digest string) (domain.PasswordCredentialState, error) {
	return r.get(ctx, `verification_digest = ?`, digest)
}

func (r *credentialsRepo) GetCredentialByResetDigest(ctx context.Context, digest string) (domain.PasswordCredentialState, error) {
	return r.get(ctx, `reset_digest = ?`, digest)
}

func (r *credentialsRepo) CreateCredential(ctx context.Context, st domain.PasswordCredentialState) error {
	auths, err := encodeAuthenticators(st.Authenticators)
	if err != nil {
		return err
	}
	_, err = r.q.ExecContext(ctx, `
INSERT INTO password_credentials (`+credentialColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.UserID, st.Username, st.PasswordHash,
		st.Registration.Email, st.Registration.DisplayName,
		mapOptionalString(st.Registration.VerificationDigest), mapOptionalTime(st.Registration.InitiatedAt),
		st.Registration.Verified, mapOptionalTime(st.Registration.VerifiedAt),
		mapOptionalString(st.PasswordReset.TokenDigest), mapOptionalTime(st.PasswordReset.InitiatedAt),
		st.Login.FailedAttempts, mapOptionalTime(st.Login.LockedUntil), st.Login.Suspended, mapOptionalTime(st.Login.LastLoginAt),
		st.Mfa.Enabled, st.Mfa.CanBeDisabled, auths,
		st.Version, toMillis(st.CreatedAt), toMillis(st.UpdatedAt),
	)
	return mapWriteErr("create credential", err)
}

func (r *credentialsRepo) UpdateCredential(ctx context.Context, st domain.PasswordCredentialState) error {
	auths, err := encodeAuthenticators(st.Authenticators)
	if err != nil {
		return err
	}
	res, err := r.q.ExecContext(ctx, `
UPDATE password_credentials SET
	username = ?, password_hash = ?,
	email = ?, display_name = ?, verification_digest = ?, registration_initiated_at = ?, verified = ?, verified_at = ?,
	reset_digest = ?, reset_initiated_at = ?,
	failed_attempts = ?, locked_until = ?, suspended = ?, last_login_at = ?,
	mfa_enabled = ?, mfa_can_be_disabled = ?, authenticators = ?,
	version = version + 1, updated_at = ?
WHERE id = ? AND version = ?`,
		st.Username, st.PasswordHash,
		st.Registration.Email, st.Registration.DisplayName,
		mapOptionalString(st.Registration.VerificationDigest), mapOptionalTime(st.Registration.InitiatedAt),
		st.Registration.Verified, mapOptionalTime(st.Registration.VerifiedAt),
		mapOptionalString(st.PasswordReset.TokenDigest), mapOptionalTime(st.PasswordReset.InitiatedAt),
		st.Login.FailedAttempts, mapOptionalTime(st.Login.LockedUntil), st.Login.Suspended, mapOptionalTime(st.Login.LastLoginAt),
		st.Mfa.Enabled, st.Mfa.CanBeDisabled, auths,
		toMillis(st.UpdatedAt),
		st.ID, st.Version,
	)
	return checkVersioned("update credential", res, err)
}

func scanCredential(row scanner) (domain.PasswordCredentialState, error) {
	var st domain.PasswordCredentialState
	var verificationDigest, resetDigest sql.NullString
	var regInitiated, verifiedAt, resetInitiated, lockedUntil, lastLogin sql.NullInt64
	var auths string
	var createdAt, updatedAt int64
	err := row.Scan(
		&st.ID, &st.UserID, &st.Username, &st.PasswordHash,
		&st.Registration.Email, &st.Registration.DisplayName, &verificationDigest, &regInitiated,
		&st.Registration.Verified, &verifiedAt,
		&resetDigest, &resetInitiated,
		&st.Login.FailedAttempts, &lockedUntil, &st.Login.Suspended, &lastLogin,
		&st.Mfa.Enabled, &st.Mfa.CanBeDisabled, &auths,
		&st.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.PasswordCredentialState{}, err
	}

	st.Registration.VerificationDigest = mapNullStringPtr(verificationDigest)
	st.Registration.InitiatedAt = mapNullTimePtr(regInitiated)
	st.Registration.VerifiedAt = mapNullTimePtr(verifiedAt)
	st.PasswordReset.TokenDigest = mapNullStringPtr(resetDigest)
	st.PasswordReset.InitiatedAt = mapNullTimePtr(resetInitiated)
	st.Login.LockedUntil = mapNullTimePtr(lockedUntil)
	st.Login.LastLoginAt = mapNullTimePtr(lastLogin)
	st.CreatedAt = fromMillis(createdAt)
	st.UpdatedAt = fromMillis(updatedAt)

	st.Authenticators, err = decodeAuthenticators(auths)
	if err != nil {
		return domain.PasswordCredentialState{}, err
	}
	return st, nil
}

// authenticatorRow is the JSON form of an MfaAuthenticator inside the
// authenticators column.
type authenticatorRow struct {
	ID              string                `json:"id"`
	Type            string                `json:"type"`
	Active          bool                  `json:"active"`
	VerifiedState   *string               `json:"verified_state,omitempty"`
	OobCode         *string               `json:"oob_code,omitempty"`
	OobSecretDigest *string               `json:"oob_secret_digest,omitempty"`
	OobDestination  *string               `json:"oob_destination,omitempty"`
	TotpSecret      *string               `json:"totp_secret,omitempty"`
	BarCodeURI      *string               `json:"barcode_uri,omitempty"`
	RecoveryCodes   []domain.RecoveryCode `json:"recovery_codes,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	ConfirmedAt     *time.Time            `json:"confirmed_at,omitempty"`
	LastUsedAt      *time.Time            `json:"last_used_at,omitempty"`
}

func encodeAuthenticators(in []domain.MfaAuthenticator) (string, error) {
	rows := make([]authenticatorRow, len(in))
	for i, a := range in {
		rows[i] = authenticatorRow{
			ID:              a.ID,
			Type:            string(a.Type),
			Active:          a.Active,
			VerifiedState:   a.VerifiedState,
			OobCode:         a.OobCode,
			OobSecretDigest: a.OobSecretDigest,
			OobDestination:  a.OobDestination,
			TotpSecret:      a.TotpSecret,
			BarCodeURI:      a.BarCodeURI,
			RecoveryCodes:   a.RecoveryCodes,
			CreatedAt:       a.CreatedAt,
			ConfirmedAt:     a.ConfirmedAt,
			LastUsedAt:      a.LastUsedAt,
		}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("encode authenticators: %w", err)
	}
	return string(b), nil
}

func decodeAuthenticators(raw string) ([]domain.MfaAuthenticator, error) {
	var rows []authenticatorRow
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, fmt.Errorf("decode authenticators: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	out := make([]domain.MfaAuthenticator, len(rows))
	for i, r := range rows {
		out[i] = domain.MfaAuthenticator{
			ID:              r.ID,
			Type:            domain.MfaType(r.Type),
			Active:          r.Active,
			VerifiedState:   r.VerifiedState,
			OobCode:         r.OobCode,
			OobSecretDigest: r.OobSecretDigest,
			OobDestination:  r.OobDestination,
			TotpSecret:      r.TotpSecret,
			BarCodeURI:      r.BarCodeURI,
			RecoveryCodes:   r.RecoveryCodes,
			CreatedAt:       r.CreatedAt,
			ConfirmedAt:     r.ConfirmedAt,
			LastUsedAt:      r.LastUsedAt,
		}
	}
	return out, nil
}
