// Package storetest opens migrated throwaway databases for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Shunseii/bahar-sub001/internal/store"
	"github.com/Shunseii/bahar-sub001/internal/store/migrations"
)

// Open creates a fully migrated SQLite database under t.TempDir().
// It is closed when the test ends.
func Open(t testing.TB) *store.SQLAdapter {
	t.Helper()

	a, err := store.OpenSQLite(filepath.Join(t.TempDir(), "bahar.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	if _, err := migrations.NewRunner(a, nil).Up(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return a
}
