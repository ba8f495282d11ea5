// Package storetest opens throwaway stores for tests.
package storetest

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/reviewcash/backend/internal/store/sqlitestore"
)

// Open returns a SQLite store in a temporary directory. It is closed when
// the test finishes.
func Open(t testing.TB) *sqlitestore.Store {
	t.Helper()
	return OpenAt(t, filepath.Join(t.TempDir(), "reviewcash.db"))
}

// OpenAt opens (or reopens) the store at path.
func OpenAt(t testing.TB, path string) *sqlitestore.Store {
	t.Helper()
	st, err := sqlitestore.Open(context.Background(), sqlitestore.Config{
		Path:     path,
		PoolSize: 4,
		Logger:   slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}
