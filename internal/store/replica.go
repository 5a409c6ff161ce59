package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tursodatabase/go-libsql"
)

// ReplicaConfig configures an embedded replica.
type ReplicaConfig struct {
	// Path of the local replica file.
	Path string
	// PrimaryURL is the libsql:// or https:// URL of the remote primary.
	PrimaryURL string
	// AuthToken authenticates against the primary.
	AuthToken string
}

// OpenReplica opens an embedded replica that keeps a local copy of a remote
// libSQL database. Reads are served locally; Pull and Push synchronize frames
// with the primary.
func OpenReplica(cfg ReplicaConfig) (*SQLAdapter, error) {
	if cfg.PrimaryURL == "" {
		return nil, fmt.Errorf("replica primary url is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	var opts []libsql.Option
	if cfg.AuthToken != "" {
		opts = append(opts, libsql.WithAuthToken(cfg.AuthToken))
	}

	connector, err := libsql.NewEmbeddedReplicaConnector(cfg.Path, cfg.PrimaryURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create replica connector: %w", err)
	}

	db := sql.OpenDB(connector)
	// A single connection keeps the per-connection foreign_keys pragma in force.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		_ = connector.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return NewSQLAdapter(db, &libsqlReplicator{connector: connector}), nil
}

type libsqlReplicator struct {
	connector *libsql.Connector
}

// Pull fetches frames from the primary.
func (r *libsqlReplicator) Pull(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := r.connector.Sync(); err != nil {
		return fmt.Errorf("failed to pull from primary: %w", err)
	}
	return nil
}

// Push reconciles with the primary. Writes on an embedded replica are
// forwarded to the primary as they happen, so a sync is all that remains.
func (r *libsqlReplicator) Push(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := r.connector.Sync(); err != nil {
		return fmt.Errorf("failed to push to primary: %w", err)
	}
	return nil
}

func (r *libsqlReplicator) Close() error {
	return r.connector.Close()
}
