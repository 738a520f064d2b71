package infra

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Ensure the sqlite driver is registered.
	_ "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/spacepal/spacepal/internal/domain"
)

const prefsDBName = "spacepal.db"

// SQLitePrefStore implements domain.PrefStore on a small key-value table.
// Aggregates are stored as whole JSON blobs under fixed keys; a Set fully
// replaces the previous blob.
type SQLitePrefStore struct {
	db     *sql.DB
	dbPath string
}

// NewPrefStore opens (or creates) the preference database under dataDir.
func NewPrefStore(dataDir string) (*SQLitePrefStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return NewPrefStoreAtPath(filepath.Join(dataDir, prefsDBName))
}

// NewPrefStoreAtPath opens a preference database at a specific path (tests).
func NewPrefStoreAtPath(dbPath string) (*SQLitePrefStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open preference database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to preference database: %w", err)
	}

	store := &SQLitePrefStore{db: db, dbPath: dbPath}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return store, nil
}

func (s *SQLitePrefStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS prefs (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns the blob stored under key. ok is false for unknown keys.
func (s *SQLitePrefStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM prefs WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set replaces the blob stored under key.
func (s *SQLitePrefStore) Set(key string, data []byte) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO prefs (key, value, updated_at)
		VALUES (?, ?, ?)`,
		key, data, time.Now().Unix(),
	)
	return err
}

// Close releases the database connection.
func (s *SQLitePrefStore) Close() error {
	return s.db.Close()
}

// DBPath returns the backing database path (for status output).
func (s *SQLitePrefStore) DBPath() string {
	return s.dbPath
}

// Ensure SQLitePrefStore implements domain.PrefStore.
var _ domain.PrefStore = (*SQLitePrefStore)(nil)
