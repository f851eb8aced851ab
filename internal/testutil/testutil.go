// Package testutil provides shared test helpers for setting up stores and indexes.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/notesight/internal/search"
	"github.com/starford/notesight/internal/store"
)

// TestStore creates a temporary SQLite Record Store that is automatically cleaned up.
func TestStore(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "notesight-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestEngine creates an in-memory Bleve engine that is closed on cleanup.
func TestEngine(t *testing.T) *search.Bleve {
	t.Helper()
	eng := search.NewBleve("")
	t.Cleanup(func() { eng.Close() })
	return eng
}
