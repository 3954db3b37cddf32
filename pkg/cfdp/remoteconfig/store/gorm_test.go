package store_test

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cfdpgo/entity/pkg/cfdp/ids"
	"github.com/cfdpgo/entity/pkg/cfdp/remoteconfig"
	"github.com/cfdpgo/entity/pkg/cfdp/remoteconfig/store"
)

func newSQLiteStore(t *testing.T) *store.GORMStore {
	t.Helper()
	cfg := &store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: filepath.Join(t.TempDir(), "remoteconfig.db")},
	}
	db, err := store.New(cfg)
	require.NoError(t, err)
	return db
}

func testEntry(t *testing.T, value uint64) remoteconfig.Entry {
	t.Helper()
	entity, err := ids.NewEntityID(ids.Width8, value)
	require.NoError(t, err)
	return remoteconfig.DefaultEntry(entity)
}

func TestGORMStorePutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteStore(t)

	entry := testEntry(t, 7)
	require.NoError(t, db.Put(ctx, entry))

	got, err := db.Get(ctx, 7)
	require.NoError(t, err)
	require.Equal(t, entry.RemoteEntity.Value, got.RemoteEntity.Value)
	require.Equal(t, entry.ACKLimit, got.ACKLimit)
	require.Equal(t, entry.ACKTimeout, got.ACKTimeout)
}

func TestGORMStoreGetMissingReturnsNotFound(t *testing.T) {
	db := newSQLiteStore(t)
	_, err := db.Get(context.Background(), 42)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestGORMStorePutReplacesExisting(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteStore(t)

	entry := testEntry(t, 3)
	require.NoError(t, db.Put(ctx, entry))

	entry.ACKLimit = 9
	require.NoError(t, db.Put(ctx, entry))

	got, err := db.Get(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, 9, got.ACKLimit)
}

func TestGORMStoreDeleteRemovesEntry(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteStore(t)

	entry := testEntry(t, 11)
	require.NoError(t, db.Put(ctx, entry))
	require.NoError(t, db.Delete(ctx, 11))

	_, err := db.Get(ctx, 11)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestGORMStoreDeleteMissingReturnsNotFound(t *testing.T) {
	db := newSQLiteStore(t)
	err := db.Delete(context.Background(), 99)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestGORMStoreListReturnsAllEntries(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteStore(t)

	require.NoError(t, db.Put(ctx, testEntry(t, 1)))
	require.NoError(t, db.Put(ctx, testEntry(t, 2)))

	entries, err := db.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestGORMStoreLoadIntoHydratesTable(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteStore(t)
	require.NoError(t, db.Put(ctx, testEntry(t, 5)))

	table := remoteconfig.NewTable()
	require.NoError(t, db.LoadInto(ctx, table))

	entity, err := ids.NewEntityID(ids.Width8, 5)
	require.NoError(t, err)
	_, ok := table.Lookup(entity)
	require.True(t, ok)
}

// TestGORMStorePostgresMigrationAndRoundTrip exercises the
// golang-migrate-backed Postgres path (advisory-locked schema
// migration, then a Put/Get round trip) against a real server, skipped
// unless CFDPD_TEST_POSTGRES_HOST names one. This package has no
// testcontainers dependency (see Dropped Dependencies in DESIGN.md),
// so the caller supplies connection details via environment variables
// rather than a spun-up container.
func TestGORMStorePostgresMigrationAndRoundTrip(t *testing.T) {
	host := os.Getenv("CFDPD_TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("set CFDPD_TEST_POSTGRES_HOST (and optionally _PORT/_USER/_PASSWORD/_DATABASE) to run the Postgres-backed store test")
	}

	cfg := &store.Config{
		Type: store.DatabaseTypePostgres,
		Postgres: store.PostgresConfig{
			Host:     host,
			Port:     envInt(t, "CFDPD_TEST_POSTGRES_PORT", 5432),
			User:     envOr("CFDPD_TEST_POSTGRES_USER", "postgres"),
			Password: envOr("CFDPD_TEST_POSTGRES_PASSWORD", "postgres"),
			Database: envOr("CFDPD_TEST_POSTGRES_DATABASE", "cfdpd_test"),
		},
	}

	db, err := store.New(cfg)
	require.NoError(t, err, "connect and migrate against a real Postgres server")

	entry := testEntry(t, 123)
	ctx := context.Background()
	require.NoError(t, db.Put(ctx, entry))
	t.Cleanup(func() { _ = db.Delete(ctx, 123) })

	got, err := db.Get(ctx, 123)
	require.NoError(t, err)
	require.Equal(t, entry.RemoteEntity.Value, got.RemoteEntity.Value)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(t *testing.T, key string, fallback int) int {
	t.Helper()
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	require.NoError(t, err)
	return n
}
