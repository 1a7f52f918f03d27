package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConflict is returned by an update whose Version no longer matches the
	// stored row. Someone else saved the aggregate in between.
	ErrConflict = errors.New("store: version conflict")
)

// Store is the root data access interface. Concrete drivers implement it and
// expose one repository per aggregate. Transactions are started from the root
// only; a Tx cannot start another.
type Store interface {
	Credentials() Credentials
	Profiles() Profiles
	Clients() Clients
	Consents() Consents
	Authorizations() Authorizations
	AuthTokens() AuthTokens
	SigningKeys() SigningKeys

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Updates on every aggregate repository are optimistic: the row is written
// only when its stored version equals State.Version, and the stored version
// is bumped by one. A mismatch returns ErrConflict.

type Credentials interface {
	GetCredentialByID(ctx context.Context, id string) (domain.PasswordCredentialState, error)

	// GetCredentialByUsername looks up by the normalized login email.
	GetCredentialByUsername(ctx context.Context, username string) (domain.PasswordCredentialState, error)
	GetCredentialByUserID(ctx context.Context, userID string) (domain.PasswordCredentialState, error)

	// GetCredentialByVerificationDigest finds the pending registration a
	// verification token was issued for.
	GetCredentialByVerificationDigest(ctx context.Context, digest string) (domain.PasswordCredentialState, error)
	GetCredentialByResetDigest(ctx context.Context, digest string) (domain.PasswordCredentialState, error)

	// CreateCredential fails with ErrAlreadyExists when the username is taken.
	CreateCredential(ctx context.Context, st domain.PasswordCredentialState) error
	UpdateCredential(ctx context.Context, st domain.PasswordCredentialState) error
}

type Profiles interface {
	GetProfile(ctx context.Context, userID string) (domain.UserProfile, error)
	UpsertProfile(ctx context.Context, p domain.UserProfile) error
}

type Clients interface {
	GetClient(ctx context.Context, id string) (domain.OAuth2ClientState, error)

	// ListClients returns every client that is not deleted, newest first.
	ListClients(ctx context.Context) ([]domain.OAuth2ClientState, error)
	CreateClient(ctx context.Context, st domain.OAuth2ClientState) error

	// UpdateClient replaces the stored secret list with st.Secrets.
	UpdateClient(ctx context.Context, st domain.OAuth2ClientState) error

	// ListClientsWithExpiredSecrets returns clients holding at least one
	// secret that expired before now.
	ListClientsWithExpiredSecrets(ctx context.Context, now time.Time) ([]domain.OAuth2ClientState, error)
}

type Consents interface {
	GetConsent(ctx context.Context, clientID, userID string) (domain.OAuth2ClientConsentState, error)
	CreateConsent(ctx context.Context, st domain.OAuth2ClientConsentState) error
	UpdateConsent(ctx context.Context, st domain.OAuth2ClientConsentState) error
}

type Authorizations interface {
	// GetAuthorizationByClientUser returns the single grant of a user to a
	// client.
	GetAuthorizationByClientUser(ctx context.Context, clientID, userID string) (domain.OpenIdConnectAuthorizationState, error)
	GetAuthorizationByCode(ctx context.Context, clientID, codeDigest string) (domain.OpenIdConnectAuthorizationState, error)
	GetAuthorizationByRefreshDigest(ctx context.Context, digest string) (domain.OpenIdConnectAuthorizationState, error)
	GetAuthorizationByAccessDigest(ctx context.Context, clientID, digest string) (domain.OpenIdConnectAuthorizationState, error)

	CreateAuthorization(ctx context.Context, st domain.OpenIdConnectAuthorizationState) error
	UpdateAuthorization(ctx context.Context, st domain.OpenIdConnectAuthorizationState) error

	// ListAuthorizationsWithExpiredCode returns grants holding an unexchanged
	// code that expired before now.
	ListAuthorizationsWithExpiredCode(ctx context.Context, now time.Time) ([]domain.OpenIdConnectAuthorizationState, error)
}

type AuthTokens interface {
	GetAuthTokensByRefreshDigest(ctx context.Context, digest string) (domain.AuthTokensState, error)
	CreateAuthTokens(ctx context.Context, st domain.AuthTokensState) error
	UpdateAuthTokens(ctx context.Context, st domain.AuthTokensState) error

	// DeleteExpiredAuthTokens removes token sets whose refresh token expired
	// before now or that were revoked. It returns the number of rows removed.
	DeleteExpiredAuthTokens(ctx context.Context, now time.Time) (int64, error)
}

type SigningKeys interface {
	// CreateSigningKey stores a new signing key with encrypted private key material.
	CreateSigningKey(ctx context.Context, key domain.SigningKey) error

	GetSigningKeyByKid(ctx context.Context, kid string) (domain.SigningKey, error)

	// ListActiveSigningKeys returns keys that are neither retired nor expired
	// at now, newest first.
	ListActiveSigningKeys(ctx context.Context, now time.Time) ([]domain.SigningKey, error)

	// ListAllSigningKeys returns every key that has not expired at now,
	// retired ones included, newest first. Retired keys stay published so
	// tokens they signed keep verifying.
	ListAllSigningKeys(ctx context.Context, now time.Time) ([]domain.SigningKey, error)

	// RetireSigningKey stops a key from signing. Retiring an unknown kid
	// returns ErrNotFound.
	RetireSigningKey(ctx context.Context, kid string, now time.Time) error

	DeleteExpiredSigningKeys(ctx context.Context, now time.Time) (int64, error)
}
