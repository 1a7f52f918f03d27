package domain

import (
	"slices"
	"time"
)

// OAuth2ClientConsentState is the persisted form of an OAuth2ClientConsent.
type OAuth2ClientConsentState struct {
	ID        string
	ClientID  string
	UserID    string
	Consented bool
	Scopes    []string
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OAuth2ClientConsent records which scopes a user granted a client.
type OAuth2ClientConsent struct {
	st OAuth2ClientConsentState
}

// NewOAuth2ClientConsent returns an empty, not-consented record.
func NewOAuth2ClientConsent(id, clientID, userID string, now time.Time) *OAuth2ClientConsent {
	return &OAuth2ClientConsent{st: OAuth2ClientConsentState{
		ID:        id,
		ClientID:  clientID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}}
}

// OAuth2ClientConsentFromPersisted rehydrates a consent from storage.
func OAuth2ClientConsentFromPersisted(st OAuth2ClientConsentState) *OAuth2ClientConsent {
	st.Scopes = slices.Clone(st.Scopes)
	return &OAuth2ClientConsent{st: st}
}

// State returns a copy of the consent for persistence.
func (c *OAuth2ClientConsent) State() OAuth2ClientConsentState {
	st := c.st
	st.Scopes = slices.Clone(c.st.Scopes)
	return st
}

func (c *OAuth2ClientConsent) ClientID() string { return c.st.ClientID }
func (c *OAuth2ClientConsent) UserID() string { return c.st.UserID }
func (c *OAuth2ClientConsent) Consented() bool { return c.st.Consented }
func (c *OAuth2ClientConsent) Scopes() []string { return slices.Clone(c.st.Scopes) }

// ChangeConsent replaces the granted scope set. Granting fewer scopes than
// before revokes the difference. Withdrawing consent clears every scope.
func (c *OAuth2ClientConsent) ChangeConsent(actorID string, consented bool, scopes []string, now time.Time) error {
	if actorID != c.st.UserID {
		return forbiddenError("only the owner can change consent")
	}
	if !consented {
		c.RevokeConsent(now)
		return nil
	}
	if len(scopes) == 0 {
		return validationError("at least one scope must be granted")
	}
	c.st.Consented = true
	c.st.Scopes = ParseScopes(FormatScopes(scopes))
	c.st.UpdatedAt = now
	return nil
}

// RevokeConsent withdraws consent entirely.
func (c *OAuth2ClientConsent) RevokeConsent(now time.Time) {
	c.st.Consented = false
	c.st.Scopes = nil
	c.st.UpdatedAt = now
}

// HasConsented reports whether every scope in scopes is currently granted.
func (c *OAuth2ClientConsent) HasConsented(scopes ...string) bool {
	return c.st.Consented && ScopesSubset(scopes, c.st.Scopes)
}
