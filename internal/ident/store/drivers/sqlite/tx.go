package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/ident/internal/ident/store"
)

type txStore struct {
	tx *sql.Tx
}

func (t *txStore) Commit() error { return t.tx.Commit() }

func (t *txStore) Rollback() error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return err
	}
	return nil
}

// Close is a no-op; the outer Store owns the database handle.
func (t *txStore) Close() error { return nil }

func (t *txStore) Ping(ctx context.Context) error { return nil }

// Nested transactions are not supported.
func (t *txStore) Tx(ctx context.Context) (store.Tx, error) { return nil, sql.ErrTxDone }

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

// ApplyMigrations is a no-op inside a transaction; migrate before serving.
func (t *txStore) ApplyMigrations() error { return nil }

func (t *txStore) Credentials() store.Credentials       { return &credentialsRepo{q: t.tx} }
func (t *txStore) Profiles() store.Profiles             { return &profilesRepo{q: t.tx} }
func (t *txStore) Clients() store.Clients               { return &clientsRepo{q: t.tx} }
func (t *txStore) Consents() store.Consents             { return &consentsRepo{q: t.tx} }
func (t *txStore) Authorizations() store.Authorizations { return &authorizationsRepo{q: t.tx} }
func (t *txStore) AuthTokens() store.AuthTokens         { return &authTokensRepo{q: t.tx} }
func (t *txStore) SigningKeys() store.SigningKeys       { return &signingKeysRepo{q: t.tx} }

var _ store.Tx = (*txStore)(nil)
