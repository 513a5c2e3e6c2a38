package database

import (
	"path/filepath"
	"testing"
)

// NewTestDB creates a migrated database in a temporary directory and
// returns it with a cleanup function. Exported for other packages' tests.
func NewTestDB(t *testing.T) (*DB, func()) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	cleanup := func() {
		if err := db.Close(); err != nil {
			t.Errorf("Failed to close test database: %v", err)
		}
	}

	return db, cleanup
}
