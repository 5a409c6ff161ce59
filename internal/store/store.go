// Package store provides the local SQLite store behind a single Adapter
// interface. Two flavours exist: a plain embedded database (OpenSQLite) and an
// embedded replica of a remote libSQL primary (OpenReplica). Callers pick one
// at startup; nothing downstream inspects which one it got.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNoReplica is returned by Push and Pull on adapters without a remote.
var ErrNoReplica = errors.New("store has no remote replica")

// Querier is the statement surface shared by adapters and transactions.
//
// QueryContext corresponds to "all", QueryRowContext to "get" and
// ExecContext to "run"/"exec".
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Adapter is the local store used by every other package.
type Adapter interface {
	Querier

	// BeginTx starts a transaction.
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)

	// HasReplica reports whether Push and Pull talk to a remote.
	HasReplica() bool

	// Push sends local changes to the remote.
	Push(ctx context.Context) error

	// Pull fetches remote changes into the local database.
	Pull(ctx context.Context) error

	Close() error
}

// Replicator moves changes between the local database and a remote primary.
type Replicator interface {
	Push(ctx context.Context) error
	Pull(ctx context.Context) error
	Close() error
}

// SQLAdapter implements Adapter over a *sql.DB and an optional Replicator.
type SQLAdapter struct {
	db      *sql.DB
	replica Replicator
	onClose func(*sql.DB) error
}

// NewSQLAdapter wraps an already opened database. replica may be nil.
func NewSQLAdapter(db *sql.DB, replica Replicator) *SQLAdapter {
	return &SQLAdapter{db: db, replica: replica}
}

// RawDB returns the underlying sql.DB connection.
func (a *SQLAdapter) RawDB() *sql.DB {
	return a.db
}

func (a *SQLAdapter) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return a.db.ExecContext(ctx, query, args...)
}

func (a *SQLAdapter) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return a.db.QueryContext(ctx, query, args...)
}

func (a *SQLAdapter) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return a.db.QueryRowContext(ctx, query, args...)
}

func (a *SQLAdapter) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return a.db.PrepareContext(ctx, query)
}

func (a *SQLAdapter) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return a.db.BeginTx(ctx, opts)
}

func (a *SQLAdapter) HasReplica() bool {
	return a.replica != nil
}

func (a *SQLAdapter) Push(ctx context.Context) error {
	if a.replica == nil {
		return ErrNoReplica
	}
	return a.replica.Push(ctx)
}

func (a *SQLAdapter) Pull(ctx context.Context) error {
	if a.replica == nil {
		return ErrNoReplica
	}
	return a.replica.Pull(ctx)
}

// Close releases the database and the replica connector.
func (a *SQLAdapter) Close() error {
	if a.db == nil {
		return nil
	}

	var errs []error
	if a.onClose != nil {
		if err := a.onClose(a.db); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	if a.replica != nil {
		if err := a.replica.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close replica: %w", err))
		}
	}
	a.db = nil
	return errors.Join(errs...)
}

// WithTx runs fn inside a transaction, committing on success and rolling back
// on error or panic.
func WithTx(ctx context.Context, a Adapter, fn func(tx *sql.Tx) error) (err error) {
	tx, err := a.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
