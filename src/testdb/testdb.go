/*
Package testdb gives tests a freshly migrated Postgres database.

Tests using it are skipped in -short mode and when FORUMWIKI_TEST_DATABASE_URL
is unset. The URL must point at a server where the role may create databases;
every call to Open creates its own database and drops it when the test ends,
so packages can run in parallel.
*/
package testdb

import (
	"context"
	"os"
	"strings"
	"testing"

	"git.handmade.network/hmn/forumwiki/src/migration"
	"git.handmade.network/hmn/forumwiki/src/migration/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

const EnvDatabaseURL = "FORUMWIKI_TEST_DATABASE_URL"

func Open(t testing.TB) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	url := os.Getenv(EnvDatabaseURL)
	if url == "" {
		t.Skipf("%s is not set", EnvDatabaseURL)
	}

	ctx := context.Background()

	admin, err := pgx.Connect(ctx, url)
	require.NoError(t, err)

	name := "forumwiki_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = admin.Exec(ctx, "CREATE DATABASE "+name)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, err := admin.Exec(ctx, "DROP DATABASE "+name+" WITH (FORCE)")
		if err != nil {
			t.Logf("failed to drop test database %s: %v", name, err)
		}
		admin.Close(ctx)
	})

	cfg, err := pgxpool.ParseConfig(url)
	require.NoError(t, err)
	cfg.ConnConfig.Database = name
	cfg.MaxConns = 20

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, migration.Migrate(ctx, pool, types.MigrationVersion{}))

	return pool
}

// Inserts a user directly and returns its id.
func CreateUser(t testing.TB, conn *pgxpool.Pool, name string) int {
	t.Helper()
	var id int
	err := conn.QueryRow(context.Background(), "INSERT INTO app_user (name) VALUES ($1) RETURNING id", name).Scan(&id)
	require.NoError(t, err)
	return id
}
