// Package storagetest opens throwaway databases for tests.
package storagetest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"NewsIngestor/internal/infrastructure/storage"
)

// SQLite opens a schema-initialised sqlite database in a temp dir, closed on cleanup.
func SQLite(t *testing.T) *storage.DB {
	t.Helper()

	ctx := context.Background()
	db, err := storage.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.EnsureSchema(ctx))
	return db
}
