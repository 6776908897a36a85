// Package store persists built items in SQLite and serves cached reads.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/zjrosen/suiteloader/internal/cachemanager"
	"github.com/zjrosen/suiteloader/internal/log"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS items (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	source      TEXT NOT NULL,
	label       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	refs        TEXT,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_items_kind ON items(kind);
CREATE INDEX IF NOT EXISTS idx_items_source ON items(source);
`

// DB is an open item database.
type DB struct {
	conn *sql.DB
	path string
}

// NewDB opens the database at path, creating its directory and schema.
func NewDB(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows a single writer
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, path: path}
	if err := db.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	log.Debug(log.CatStore, "Opened database", "path", path)
	return db, nil
}

func (db *DB) migrate() error {
	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.conn.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	var version int
	if err := db.conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, schemaVersion)
	}
	if version == schemaVersion {
		return nil
	}

	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	if _, err := db.conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}
	log.Info(log.CatStore, "Applied schema", "path", db.path, "version", schemaVersion)
	return nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file.
func (db *DB) Path() string {
	return db.path
}

// Items returns the item store with reads cached for cacheTTL. A zero TTL
// disables caching.
func (db *DB) Items(cacheTTL time.Duration) *Items {
	repo := newItemRepository(db.conn)
	cache := cachemanager.NewInMemoryCacheManager[string, *Record]("items", cacheTTL, cachemanager.DefaultCleanupInterval)
	return &Items{
		repo: repo,
		ttl:  cacheTTL,
		reader: cachemanager.NewReadThroughCache[string, *Record, string](
			cache, repo.findByID, cacheTTL <= 0,
		),
	}
}
