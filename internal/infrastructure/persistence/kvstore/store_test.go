package kvstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/crop-guard/internal/application/port"
	"github.com/garyjia/crop-guard/migrations"
	"github.com/garyjia/crop-guard/pkg/database"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	logger := zap.NewNop()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "kv.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(context.Background(), migrations.FS))
	return NewSQLiteStore(db.DB, logger)
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) port.KeyValueStore{
		"sqlite": func(t *testing.T) port.KeyValueStore { return newSQLiteStore(t) },
		"memory": func(t *testing.T) port.KeyValueStore { return NewMemoryStore() },
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)

			_, found, err := s.Get(ctx, "scanHistory")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, s.Set(ctx, "scanHistory", `[{"id":"1"}]`))
			require.NoError(t, s.Set(ctx, "scanHistory", `[{"id":"2"}]`))

			value, found, err := s.Get(ctx, "scanHistory")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, `[{"id":"2"}]`, value)

			require.NoError(t, s.Delete(ctx, "scanHistory"))
			require.NoError(t, s.Delete(ctx, "scanHistory"))

			_, found, err = s.Get(ctx, "scanHistory")
			require.NoError(t, err)
			assert.False(t, found)
		})
	}
}

func TestSQLiteStore_ClosedDatabase(t *testing.T) {
	logger := zap.NewNop()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "kv.db")}, logger)
	require.NoError(t, err)
	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(context.Background(), migrations.FS))
	s := NewSQLiteStore(db.DB, logger)
	require.NoError(t, db.Close())

	ctx := context.Background()
	_, _, err = s.Get(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, s.Set(ctx, "k", "v"))
	assert.Error(t, s.Delete(ctx, "k"))
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewMemoryStore()
	assert.ErrorIs(t, s.Set(ctx, "k", "v"), context.Canceled)
}
