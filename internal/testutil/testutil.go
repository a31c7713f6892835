// Package testutil provides shared test utilities.
package testutil

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/LynnGuo666/Gitea-TLDR/internal/storage"
)

// OpenTestStore creates a sqlite store in a temporary directory. The store is
// automatically closed when the test completes.
func OpenTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := storage.Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// AssertStatusCode checks that the response has the expected HTTP status code.
// On failure, it reports the response body for debugging.
func AssertStatusCode(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()

	if w.Code != expected {
		t.Errorf("Expected status %d, got %d: %s", expected, w.Code, w.Body.String())
	}
}

// FakeCommand writes an executable shell script into a temp directory and
// returns its path. Used to stand in for provider CLIs in tests.
func FakeCommand(t *testing.T, script string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake shell commands require a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "fake-cli")
	content := "#!/bin/sh\n" + script + "\n"
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("write fake command: %v", err)
	}
	return path
}
