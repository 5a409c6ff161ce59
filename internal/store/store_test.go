package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReplica struct {
	pushes, pulls int
	err           error
	closed        bool
}

func (f *fakeReplica) Push(context.Context) error { f.pushes++; return f.err }
func (f *fakeReplica) Pull(context.Context) error { f.pulls++; return f.err }
func (f *fakeReplica) Close() error               { f.closed = true; return nil }

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bahar.db")

	a, err := OpenSQLite(path)
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()

	var fk int
	require.NoError(t, a.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	var mode string
	require.NoError(t, a.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	assert.False(t, a.HasReplica())
	assert.ErrorIs(t, a.Push(ctx), ErrNoReplica)
	assert.ErrorIs(t, a.Pull(ctx), ErrNoReplica)
}

func TestSQLAdapterDelegatesToReplica(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	rep := &fakeReplica{}
	a := NewSQLAdapter(db, rep)
	ctx := context.Background()

	assert.True(t, a.HasReplica())
	require.NoError(t, a.Pull(ctx))
	require.NoError(t, a.Push(ctx))
	assert.Equal(t, 1, rep.pulls)
	assert.Equal(t, 1, rep.pushes)

	require.NoError(t, a.Close())
	assert.True(t, rep.closed)
	assert.NoError(t, mock.ExpectationsWereMet())

	// Closing twice is a no-op.
	assert.NoError(t, a.Close())
}

func TestWithTx(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO t").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err = WithTx(context.Background(), NewSQLAdapter(db, nil), func(tx *sql.Tx) error {
			_, err := tx.Exec("INSERT INTO t VALUES (1)")
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		boom := errors.New("boom")
		mock.ExpectBegin()
		mock.ExpectRollback()

		err = WithTx(context.Background(), NewSQLAdapter(db, nil), func(*sql.Tx) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.Panics(t, func() {
			_ = WithTx(context.Background(), NewSQLAdapter(db, nil), func(*sql.Tx) error {
				panic("boom")
			})
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
