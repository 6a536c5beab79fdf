package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/fieldsales/ledgersync/internal/infrastructure/config"
	"github.com/stretchr/testify/require"
)

// newTestDatabase opens a throwaway SQLite database and migrates the schema
func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 1,
	}

	db, err := NewDatabase(cfg)
	require.NoError(t, err)
	require.NoError(t, db.Migrate())

	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}
