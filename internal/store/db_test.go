package store

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDB_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "items.db")

	db, err := NewDB(dbPath)
	require.NoError(t, err, "NewDB should succeed even with nested non-existent directories")
	defer db.Close()

	info, err := os.Stat(filepath.Dir(dbPath))
	require.NoError(t, err)
	require.True(t, info.IsDir())
	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0700), info.Mode().Perm(), "Directory should have 0700 permissions")
	}
	require.Equal(t, dbPath, db.Path())
}

func TestNewDB_AppliesSchema(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "items.db"))
	require.NoError(t, err)
	defer db.Close()

	var tableName string
	err = db.conn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='items'").Scan(&tableName)
	require.NoError(t, err, "items table should exist")

	var version int
	require.NoError(t, db.conn.QueryRow("PRAGMA user_version").Scan(&version))
	require.Equal(t, schemaVersion, version)
}

func TestNewDB_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "items.db")
	db, err := NewDB(dbPath)
	require.NoError(t, err)
	_, err = db.conn.Exec(`INSERT INTO items (id, kind, source, created_at, updated_at) VALUES ('a', 'Tag', '/p/a', 1, 1)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewDB(dbPath)
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.conn.QueryRow(`SELECT COUNT(*) FROM items`).Scan(&n))
	require.Equal(t, 1, n)
}

func TestNewDB_RejectsNewerSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "items.db")
	db, err := NewDB(dbPath)
	require.NoError(t, err)
	_, err = db.conn.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = NewDB(dbPath)
	require.Error(t, err)
	require.Contains(t, err.Error(), "newer than supported")
}
