package testutil

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"

	"efficio-backend/internal/db"
)

// NewTestDB opens an in-memory SQLite database with all migrations applied.
// It is closed when the test completes.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dbx, err := db.Connect("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("creating test db: %v", err)
	}
	if err := db.Migrate(context.Background(), dbx); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}

	t.Cleanup(func() {
		if err := dbx.Close(); err != nil {
			t.Errorf("closing test db: %v", err)
		}
	})

	return dbx
}
