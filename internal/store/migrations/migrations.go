// Package migrations applies the embedded schema migrations and records each
// one in the migrations table.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Shunseii/bahar-sub001/internal/store"
)

//go:embed sql/*.sql
var files embed.FS

// Status values stored in migrations.status.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

const createTable = `CREATE TABLE IF NOT EXISTS migrations (
	version INTEGER PRIMARY KEY,
	description TEXT NOT NULL,
	applied_at_ms INTEGER NOT NULL,
	status TEXT NOT NULL
)`

// Migration is one versioned schema change.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Record is a row of the migrations table.
type Record struct {
	Version     int
	Description string
	AppliedAtMs int64
	Status      string
}

// Load returns the embedded migrations ordered by version.
// File names follow NNNN_some_description.sql.
func Load() ([]Migration, error) {
	return loadFrom(files, "sql")
}

func loadFrom(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var out []Migration
	seen := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".sql")
		num, desc, ok := strings.Cut(name, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: expected NNNN_description.sql", e.Name())
		}
		version, err := strconv.Atoi(num)
		if err != nil {
			return nil, fmt.Errorf("migration %s: invalid version: %w", e.Name(), err)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("migration version %d used by both %s and %s", version, prev, e.Name())
		}
		seen[version] = e.Name()

		body, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", e.Name(), err)
		}
		out = append(out, Migration{
			Version:     version,
			Description: strings.ReplaceAll(desc, "_", " "),
			SQL:         string(body),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Runner applies migrations against an adapter.
type Runner struct {
	db     store.Adapter
	logger *zap.Logger
	now    func() time.Time
}

// NewRunner creates a Runner. logger may be nil.
func NewRunner(db store.Adapter, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{db: db, logger: logger.Named("migrations"), now: time.Now}
}

// Up applies every embedded migration that has not yet succeeded.
func (r *Runner) Up(ctx context.Context) (int, error) {
	ms, err := Load()
	if err != nil {
		return 0, err
	}
	return r.Apply(ctx, ms)
}

// Apply runs the given migrations in version order. Each migration runs in its
// own transaction and is recorded with status success. A failing migration is
// recorded with status failed and stops the run.
func (r *Runner) Apply(ctx context.Context, ms []Migration) (int, error) {
	if _, err := r.db.ExecContext(ctx, createTable); err != nil {
		return 0, fmt.Errorf("failed to create migrations table: %w", err)
	}

	done, err := r.applied(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range ms {
		if done[m.Version] {
			continue
		}

		err := store.WithTx(ctx, r.db, func(tx *sql.Tx) error {
			for _, stmt := range splitStatements(m.SQL) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			return r.record(ctx, tx, m, StatusSuccess)
		})
		if err != nil {
			if recErr := r.record(ctx, r.db, m, StatusFailed); recErr != nil {
				r.logger.Error("failed to record migration failure",
					zap.Int("version", m.Version), zap.Error(recErr))
			}
			return applied, fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}

		r.logger.Info("applied migration",
			zap.Int("version", m.Version), zap.String("description", m.Description))
		applied++
	}

	return applied, nil
}

// History returns every row of the migrations table ordered by version.
func (r *Runner) History(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT version, description, applied_at_ms, status FROM migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Version, &rec.Description, &rec.AppliedAtMs, &rec.Status); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *Runner) applied(ctx context.Context) (map[int]bool, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT version FROM migrations WHERE status = ?`, StatusSuccess)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	done := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		done[v] = true
	}
	return done, rows.Err()
}

func (r *Runner) record(ctx context.Context, q store.Querier, m Migration, status string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO migrations (version, description, applied_at_ms, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(version) DO UPDATE SET
			description = excluded.description,
			applied_at_ms = excluded.applied_at_ms,
			status = excluded.status
	`, m.Version, m.Description, r.now().UnixMilli(), status)
	return err
}

// splitStatements splits a migration file on statement-terminating semicolons.
// Line comments are dropped first.
func splitStatements(src string) []string {
	var b strings.Builder
	for _, line := range strings.Split(src, "\n") {
		if i := strings.Index(line, "--"); i >= 0 {
			line = line[:i]
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	var out []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}
