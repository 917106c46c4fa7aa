// Package testutil provides shared test helpers for setting up
// repositories and databases.
package testutil

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/repo"
	"github.com/starford/othala/internal/storage"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "othala-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRepo creates an unscoped notebook repository over an in-memory tree.
func TestRepo(t *testing.T) *repo.TreeRepo {
	t.Helper()
	nr, err := repo.NewTreeRepo(context.Background(), storage.NewMem(), "", DiscardLogger())
	if err != nil {
		t.Fatal(err)
	}
	return nr
}

// TestFSRepo creates a notebook repository over a temporary directory and
// returns the directory root alongside it.
func TestFSRepo(t *testing.T) (string, *repo.TreeRepo) {
	t.Helper()
	root := t.TempDir()
	tree, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	nr, err := repo.NewTreeRepo(context.Background(), tree, "", DiscardLogger())
	if err != nil {
		t.Fatal(err)
	}
	return root, nr
}
