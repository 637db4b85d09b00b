package schema

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dreamware/shardmgmt/store"
)

// openTestDB connects to a real MySQL instance named by TEST_MYSQL_DSN.
// Exercising the upgrade pipeline requires a live server since each step
// runs real DDL; tests are skipped rather than faked when it isn't set.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set; skipping store-backed schema test")
	}
	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpgradeAppliesAllFourStepsInOrder(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	final, err := Upgrade(ctx, db, store.Version{}, GlobalSteps)
	require.NoError(t, err)
	require.Equal(t, ClientVersion, final)

	v, err := CurrentVersion(ctx, db, GlobalVersionTable)
	require.NoError(t, err)
	require.Equal(t, ClientVersion, v)
}

func TestUpgradeIsIdempotentFromSameFromVersion(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, err := Upgrade(ctx, db, store.Version{}, GlobalSteps)
	require.NoError(t, err)
	// Re-running from the already-current version must be a no-op, not an
	// error, satisfying the forward-only idempotency invariant.
	final, err := Upgrade(ctx, db, ClientVersion, GlobalSteps)
	require.NoError(t, err)
	require.Equal(t, ClientVersion, final)
}
