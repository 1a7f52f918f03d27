package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/ident/internal/ident/domain"
	"github.com/aussiebroadwan/ident/internal/ident/store"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// querier is what the repositories run SQL through. Both *sql.DB and *sql.Tx
// satisfy it.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

type Store struct {
	db  *sql.DB
	dsn string
}

// NewStore opens the database at dsn. The pool holds a single connection:
// sqlite has one writer anyway, and ":memory:" databases are per connection.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	// Enforce FKs
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, dsn: dsn}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &txStore{tx: tx}, nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) Credentials() store.Credentials       { return &credentialsRepo{q: s.db} }
func (s *Store) Profiles() store.Profiles             { return &profilesRepo{q: s.db} }
func (s *Store) Clients() store.Clients               { return &clientsRepo{q: s.db} }
func (s *Store) Consents() store.Consents             { return &consentsRepo{q: s.db} }
func (s *Store) Authorizations() store.Authorizations { return &authorizationsRepo{q: s.db} }
func (s *Store) AuthTokens() store.AuthTokens         { return &authTokensRepo{q: s.db} }
func (s *Store) SigningKeys() store.SigningKeys       { return &signingKeysRepo{q: s.db} }

var _ store.Store = (*Store)(nil)

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// mapWriteErr turns unique and primary key violations into ErrAlreadyExists.
func mapWriteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *msqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return fmt.Errorf("%s: %w", op, store.ErrAlreadyExists)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// checkVersioned reports ErrConflict when an optimistic update matched no row.
func checkVersioned(op string, res sql.Result, err error) error {
	if err != nil {
		return mapWriteErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, store.ErrConflict)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func mapOptionalTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func mapNullTimePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func mapOptionalString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func mapNullStringPtr(ns sql.NullString) *string {
	if ns.Valid {
		val := ns.String
		return &val
	}
	return nil
}

// sealedColumns holds the three columns a domain.SealedToken is stored in.
type sealedColumns struct {
	Ciphertext sql.NullString
	Digest     sql.NullString
	ExpiresAt  sql.NullInt64
}

func sealedToColumns(t *domain.SealedToken) sealedColumns {
	if t == nil {
		return sealedColumns{}
	}
	return sealedColumns{
		Ciphertext: sql.NullString{String: t.Ciphertext, Valid: true},
		Digest:     sql.NullString{String: t.Digest, Valid: true},
		ExpiresAt:  sql.NullInt64{Int64: toMillis(t.ExpiresAt), Valid: true},
	}
}

func (c sealedColumns) token() *domain.SealedToken {
	if !c.Digest.Valid {
		return nil
	}
	return &domain.SealedToken{
		Ciphertext: c.Ciphertext.String,
		Digest:     c.Digest.String,
		ExpiresAt:  fromMillis(c.ExpiresAt.Int64),
	}
}

func (c *sealedColumns) dest() []any {
	return []any{&c.Ciphertext, &c.Digest, &c.ExpiresAt}
}
