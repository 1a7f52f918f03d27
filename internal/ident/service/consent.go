package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/audit"
	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/internal/ident/store"
	"github.com/aussiebroadwan/ident/pkg/idx"
)

// ConsentService records which scopes a user granted to which client.
type ConsentService struct {
	Store store.Store
	Audit *audit.Recorder
	Now   Clock
}

// Change replaces the consent userID gave clientID. Withdrawing consent, or
// narrowing it, revokes the tokens already issued under the broader grant.
func (s *ConsentService) Change(ctx context.Context, userID, clientID string, consented bool, scopes []string) (domain.OAuth2ClientConsentState, error) {
	now := s.Now.now()

	var (
		consent *domain.OAuth2ClientConsent
		revoked bool
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		client, err := tx.Clients().GetClient(ctx, clientID)
		if err != nil {
			return orNotFound(err, domain.NewError(domain.ErrEntityNotFound, "unknown client"))
		}
		if client.Deleted {
			return domain.NewError(domain.ErrEntityNotFound, "unknown client")
		}

		exists := true
		st, err := tx.Consents().GetConsent(ctx, clientID, userID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			consent = domain.NewOAuth2ClientConsent(idx.NewAt(now).String(), clientID, userID, now)
			exists = false
		case err != nil:
			return err
		default:
			consent = domain.OAuth2ClientConsentFromPersisted(st)
		}
		previous := consent.Scopes()

		if err := consent.ChangeConsent(userID, consented, scopes, now); err != nil {
			return err
		}
		if exists {
			err = tx.Consents().UpdateConsent(ctx, consent.State())
		} else {
			err = tx.Consents().CreateConsent(ctx, consent.State())
		}
		if err != nil {
			return err
		}

		if !domain.ScopesSubset(previous, consent.Scopes()) {
			revoked, err = revokeGrant(ctx, tx, clientID, userID, now)
		}
		return err
	})
	if err != nil {
		return domain.OAuth2ClientConsentState{}, err
	}

	s.Audit.Record(ctx, audit.Event{
		Code:     domain.AuditConsentChanged,
		UserID:   userID,
		ClientID: clientID,
		Detail:   domain.FormatScopes(consent.Scopes()),
	})
	if revoked {
		s.Audit.Record(ctx, audit.Event{Code: domain.AuditTokensRevoked, UserID: userID, ClientID: clientID})
	}
	return consent.State(), nil
}

// Revoke withdraws consent entirely and revokes the client's tokens. Revoking
// a consent that was never given is not an error.
func (s *ConsentService) Revoke(ctx context.Context, userID, clientID string) error {
	now := s.Now.now()

	var found, revoked bool
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		st, err := tx.Consents().GetConsent(ctx, clientID, userID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		consent := domain.OAuth2ClientConsentFromPersisted(st)
		consent.RevokeConsent(now)
		if err := tx.Consents().UpdateConsent(ctx, consent.State()); err != nil {
			return err
		}
		revoked, err = revokeGrant(ctx, tx, clientID, userID, now)
		return err
	})
	if err != nil || !found {
		return err
	}

	s.Audit.Record(ctx, audit.Event{Code: domain.AuditConsentRevoked, UserID: userID, ClientID: clientID})
	if revoked {
		s.Audit.Record(ctx, audit.Event{Code: domain.AuditTokensRevoked, UserID: userID, ClientID: clientID})
	}
	return nil
}

// revokeGrant drops the tokens of the user's grant to the client, if any.
func revokeGrant(ctx context.Context, tx store.Tx, clientID, userID string, now time.Time) (bool, error) {
	st, err := tx.Authorizations().GetAuthorizationByClientUser(ctx, clientID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	authz := domain.OpenIdConnectAuthorizationFromPersisted(st)
	if !authz.RevokeTokens(now) {
		return false, nil
	}
	return true, tx.Authorizations().UpdateAuthorization(ctx, authz.State())
}
