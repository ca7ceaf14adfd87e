// Package testutil provides shared test helpers for setting up document
// stores, inbox folders and polling assertions.
package testutil

import (
	"os"
	"testing"
	"time"

	"github.com/starford/studyai/internal/docstore"
	"github.com/starford/studyai/internal/storage"
)

// TestDB creates a temporary SQLite document store that is automatically
// cleaned up.
func TestDB(t *testing.T) *docstore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "studyai-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := docstore.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestInbox creates a temporary inbox directory with its provider.
func TestInbox(t *testing.T) (string, *storage.FS) {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return fs.Root(), fs
}

// Eventually polls cond every tick until it holds or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(tick)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
