// Package storagetest opens throwaway SQLite stores for tests.
package storagetest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/treespora/planner/config"
	"github.com/treespora/planner/storage"
)

// Open creates a migrated SQLite store in a temp dir, closed on cleanup.
// target 0 applies every migration. A zero now keeps the real clock.
func Open(t testing.TB, target int, now time.Time) *storage.Store {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "treespora.db") + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	var opts []storage.Option
	if !now.IsZero() {
		opts = append(opts, storage.WithClock(func() time.Time { return now }))
	}
	s, err := storage.Open(context.Background(), config.DatabaseConfig{Driver: config.DriverSQLite, URL: dsn}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Migrate(context.Background(), target)
	require.NoError(t, err)
	return s
}
