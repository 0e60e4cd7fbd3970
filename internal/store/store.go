// Package store provides a SQLite-backed result cache: connection and
// pragma setup plus an upsert-keyed get/set, persisting opaque serialized
// payloads (the cache plugin stores candidate sets) keyed by an input
// content digest and checked against a config fingerprint.
package store

import (
	"database/sql"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists serialized payloads for reuse across calls with
// identical input and config.
type Store struct {
	db *sql.DB
}

// Open initializes the SQLite database at path (":memory:" is valid for
// tests) and ensures the cache schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			slog.Warn("store: pragma failed", "pragma", p, "error", err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS parse_cache (
	digest     TEXT PRIMARY KEY,
	config_key TEXT NOT NULL,
	payload    BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
`

// Get retrieves a cached payload for the given input digest and config key.
// Returns nil, false on a miss or a config-key mismatch.
func (s *Store) Get(digest, configKey string) ([]byte, bool) {
	var payload []byte
	var storedKey string
	err := s.db.QueryRow(
		`SELECT payload, config_key FROM parse_cache WHERE digest = ?`, digest,
	).Scan(&payload, &storedKey)
	if err != nil || storedKey != configKey {
		return nil, false
	}
	return payload, true
}

// Set stores payload under digest/configKey, overwriting any prior entry.
func (s *Store) Set(digest, configKey string, payload []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO parse_cache (digest, config_key, payload, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(digest) DO UPDATE SET config_key = excluded.config_key,
		   payload = excluded.payload, created_at = excluded.created_at`,
		digest, configKey, payload, time.Now().Unix(),
	)
	return err
}

// Evict removes entries older than maxAge, returning the count removed.
func (s *Store) Evict(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := s.db.Exec(`DELETE FROM parse_cache WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
