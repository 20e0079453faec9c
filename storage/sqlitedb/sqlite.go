// Package sqlitedb is an embedded, single-process storage.Backend backed
// by modernc.org/sqlite (pure Go, no cgo). It is suitable for
// single-node deployments that need persistence across restarts without
// standing up a separate database server.
package sqlitedb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"goa.design/refcache/storage"
)

// Store is a sqlite-backed storage.Backend. A single connection is used
// (SetMaxOpenConns(1)) because sqlite serializes writers regardless; this
// avoids SQLITE_BUSY churn under WAL mode.
type Store struct {
	db *sql.DB
}

var _ storage.Backend = (*Store)(nil)

// Open creates or opens the sqlite database at path, running migrations
// if needed. path's parent directory is created if absent.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlitedb: path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlitedb: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS entries (
			key TEXT PRIMARY KEY,
			value_json TEXT NOT NULL,
			namespace TEXT NOT NULL,
			policy_json TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER,
			metadata_json TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_entries_namespace ON entries(namespace);`,
		`CREATE INDEX IF NOT EXISTS idx_entries_expires_at ON entries(expires_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlitedb: migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (storage.Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value_json, namespace, policy_json, created_at, expires_at, metadata_json FROM entries WHERE key = ?`, key)

	var (
		valueJSON, policyJSON string
		namespace             string
		createdAtUnix         int64
		expiresAtUnix         sql.NullInt64
		metadataJSON          sql.NullString
	)
	if err := row.Scan(&valueJSON, &namespace, &policyJSON, &createdAtUnix, &expiresAtUnix, &metadataJSON); err != nil {
		if err == sql.ErrNoRows {
			return storage.Entry{}, false, nil
		}
		return storage.Entry{}, false, fmt.Errorf("sqlitedb: get: %w", err)
	}

	entry := storage.Entry{
		Key:       key,
		Namespace: namespace,
		CreatedAt: time.Unix(createdAtUnix, 0).UTC(),
	}
	if err := json.Unmarshal([]byte(valueJSON), &entry.Value); err != nil {
		return storage.Entry{}, false, fmt.Errorf("sqlitedb: decode value: %w", err)
	}
	if err := json.Unmarshal([]byte(policyJSON), &entry.Policy); err != nil {
		return storage.Entry{}, false, fmt.Errorf("sqlitedb: decode policy: %w", err)
	}
	if expiresAtUnix.Valid {
		t := time.Unix(expiresAtUnix.Int64, 0).UTC()
		entry.ExpiresAt = &t
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &entry.Metadata); err != nil {
			return storage.Entry{}, false, fmt.Errorf("sqlitedb: decode metadata: %w", err)
		}
	}

	if entry.Expired(time.Now()) {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key)
		return storage.Entry{}, false, nil
	}
	return entry, true, nil
}

func (s *Store) Set(ctx context.Context, key string, entry storage.Entry) error {
	valueJSON, err := json.Marshal(entry.Value)
	if err != nil {
		return fmt.Errorf("sqlitedb: encode value: %w", err)
	}
	policyJSON, err := json.Marshal(entry.Policy)
	if err != nil {
		return fmt.Errorf("sqlitedb: encode policy: %w", err)
	}
	var metadataJSON []byte
	if entry.Metadata != nil {
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("sqlitedb: encode metadata: %w", err)
		}
	}
	var expiresAtUnix any
	if entry.ExpiresAt != nil {
		expiresAtUnix = entry.ExpiresAt.Unix()
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entries (key, value_json, namespace, policy_json, created_at, expires_at, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value_json = excluded.value_json,
			namespace = excluded.namespace,
			policy_json = excluded.policy_json,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			metadata_json = excluded.metadata_json`,
		key, string(valueJSON), entry.Namespace, string(policyJSON), createdAt.Unix(), expiresAtUnix, string(metadataJSON))
	if err != nil {
		return fmt.Errorf("sqlitedb: set: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlitedb: delete: %w", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	var expiresAtUnix sql.NullInt64
	row := s.db.QueryRowContext(ctx, `SELECT expires_at FROM entries WHERE key = ?`, key)
	if err := row.Scan(&expiresAtUnix); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("sqlitedb: exists: %w", err)
	}
	if expiresAtUnix.Valid && time.Unix(expiresAtUnix.Int64, 0).Before(time.Now()) {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key)
		return false, nil
	}
	return true, nil
}

func (s *Store) Clear(ctx context.Context, namespace string) error {
	var err error
	if namespace == "" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM entries`)
	} else {
		_, err = s.db.ExecContext(ctx, `DELETE FROM entries WHERE namespace = ? OR namespace LIKE ?`, namespace, namespace+":%")
	}
	if err != nil {
		return fmt.Errorf("sqlitedb: clear: %w", err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context, namespace string) ([]string, error) {
	var (
		rows *sql.Rows
		err  error
	)
	now := time.Now().Unix()
	if namespace == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT key FROM entries WHERE expires_at IS NULL OR expires_at > ?`, now)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT key FROM entries WHERE (namespace = ? OR namespace LIKE ?) AND (expires_at IS NULL OR expires_at > ?)`, namespace, namespace+":%", now)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitedb: keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("sqlitedb: keys scan: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *Store) Close() error { return s.db.Close() }
