package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// SQLCredentialStore is a sqlx-backed credential store.
type SQLCredentialStore struct {
	db *sqlx.DB
}

// NewSQLCredentialStore constructs SQLCredentialStore. The credentials table
// is created by db.Connect.
func NewSQLCredentialStore(db *sqlx.DB) *SQLCredentialStore {
	return &SQLCredentialStore{db: db}
}

// Get returns the stored value for key.
func (r *SQLCredentialStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.GetContext(ctx, &value, r.db.Rebind(`SELECT value FROM credentials WHERE name=?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set inserts or replaces the value for key.
func (r *SQLCredentialStore) Set(ctx context.Context, key, value string) error {
	query := r.db.Rebind(`INSERT INTO credentials (name, value, updated_at) VALUES (?, ?, ?)
        ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	_, err := r.db.ExecContext(ctx, query, key, value, time.Now().UTC())
	return err
}

// Clear removes every credential entry in one transaction.
func (r *SQLCredentialStore) Clear(ctx context.Context) error {
	query, args, err := sqlx.In(`DELETE FROM credentials WHERE name IN (?)`, CredentialKeys)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close closes the underlying database.
func (r *SQLCredentialStore) Close() error {
	return r.db.Close()
}
