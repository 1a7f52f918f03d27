package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
)

type profilesRepo struct {
	q querier
}

func (r *profilesRepo) GetProfile(ctx context.Context, userID string) (domain.UserProfile, error) {
	row := r.q.QueryRowContext(ctx, `
SELECT user_id, name, given_name, family_name, picture, zoneinfo, locale,
	email, email_verified, phone_number, phone_verified, address, created_at, updated_at
FROM user_profiles
WHERE user_id = ?`, userID)

	var p domain.UserProfile
	var name, given, family, picture, zone, locale, email, phone, address sql.NullString
	var createdAt, updatedAt int64
	err := row.Scan(&p.UserID, &name, &given, &family, &picture, &zone, &locale,
		&email, &p.EmailVerified, &phone, &p.PhoneVerified, &address, &createdAt, &updatedAt)
	if err != nil {
		return domain.UserProfile{}, mapNotFound(err)
	}

	p.Name = mapNullStringPtr(name)
	p.GivenName = mapNullStringPtr(given)
	p.FamilyName = mapNullStringPtr(family)
	p.Picture = mapNullStringPtr(picture)
	p.Zoneinfo = mapNullStringPtr(zone)
	p.Locale = mapNullStringPtr(locale)
	p.Email = mapNullStringPtr(email)
	p.PhoneNumber = mapNullStringPtr(phone)
	p.CreatedAt = fromMillis(createdAt)
	p.UpdatedAt = fromMillis(updatedAt)
	if address.Valid {
		p.Address = &domain.PostalAddress{}
		if err := json.Unmarshal([]byte(address.String), p.Address); err != nil {
			return domain.UserProfile{}, fmt.Errorf("decode address: %w", err)
		}
	}
	return p, nil
}

func (r *profilesRepo) UpsertProfile(ctx context.Context, p domain.UserProfile) error {
	var address sql.NullString
	if p.Address != nil {
		b, err := json.Marshal(p.Address)
		if err != nil {
			return fmt.Errorf("encode address: %w", err)
		}
		address = sql.NullString{String: string(b), Valid: true}
	}

	_, err := r.q.ExecContext(ctx, `
INSERT INTO user_profiles (
	user_id, name, given_name, family_name, picture, zoneinfo, locale,
	email, email_verified, phone_number, phone_verified, address, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
	name = excluded.name,
	given_name = excluded.given_name,
	family_name = excluded.family_name,
	picture = excluded.picture,
	zoneinfo = excluded.zoneinfo,
	locale = excluded.locale,
	email = excluded.email,
	email_verified = excluded.email_verified,
	phone_number = excluded.phone_number,
	phone_verified = excluded.phone_verified,
	address = excluded.address,
	updated_at = excluded.updated_at`,
		p.UserID,
		mapOptionalString(p.Name), mapOptionalString(p.GivenName), mapOptionalString(p.FamilyName),
		mapOptionalString(p.Picture), mapOptionalString(p.Zoneinfo), mapOptionalString(p.Locale),
		mapOptionalString(p.Email), p.EmailVerified,
		mapOptionalString(p.PhoneNumber), p.PhoneVerified,
		address, toMillis(p.CreatedAt), toMillis(p.UpdatedAt),
	)
	return mapWriteErr("upsert profile", err)
}
