package testutil

import (
	"path/filepath"
	"testing"

	"github.com/xxxsen/notemate/internal/config"
	"github.com/xxxsen/notemate/internal/db"
)

// OpenTestDB opens a migrated sqlite database in a per-test temp dir.
func OpenTestDB(t *testing.T) *db.DB {
	t.Helper()
	conn, err := db.Open(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn
}
