package op

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/shardmgmt/schema"
	"github.com/dreamware/shardmgmt/store"
)

// openTestDB mirrors schema.openTestDB: these tests drive real SQL against
// a live MySQL instance named by TEST_MYSQL_DSN and skip otherwise, since
// the concrete operations below are integration glue over the schema
// package's tables rather than pure logic.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set; skipping store-backed op test")
	}
	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	_, err = schema.Upgrade(ctx, db, store.Version{}, schema.GlobalSteps)
	require.NoError(t, err)
	_, err = schema.Upgrade(ctx, db, store.Version{}, schema.LocalSteps)
	require.NoError(t, err)
	return db
}

func TestAddShardMapOperationInsertsRowAndRejectsDuplicateName(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	row := store.GSMShardMapRow{ID: uuid.New(), Name: "TestAddShardMap", Kind: 0, KeyKind: 1}
	require.NoError(t, NewAddShardMapOperation(db, row).Run(ctx))

	found, code, err := store.FindShardMapByName(ctx, db, row.Name)
	require.NoError(t, err)
	require.Equal(t, store.CodeSuccess, code)
	require.Equal(t, row.ID, found.ID)

	dup := store.GSMShardMapRow{ID: uuid.New(), Name: row.Name, Kind: 0, KeyKind: 1}
	err = NewAddShardMapOperation(db, dup).Run(ctx)
	require.Error(t, err)

	require.NoError(t, NewRemoveShardMapOperation(db, row.Name, row.ID).Run(ctx))
	_, code, err = store.FindShardMapByName(ctx, db, row.Name)
	require.NoError(t, err)
	require.Equal(t, store.CodeShardMapDoesNotExist, code)
}

func TestAddMappingOperationRejectsOverlap(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	sm := store.GSMShardMapRow{ID: uuid.New(), Name: "TestAddMappingShardMap", Kind: 1, KeyKind: 0}
	require.NoError(t, NewAddShardMapOperation(db, sm).Run(ctx))

	shard := store.GSMShardRow{
		ID: uuid.New(), ShardMapID: sm.ID, Version: uuid.New(),
		Protocol: "tcp", ServerName: "shard1.example", Port: 3306, DatabaseName: "shard1", Status: 0,
	}
	require.NoError(t, NewAddShardOperation(db, db, shard, sm).Run(ctx))

	first := store.GSMMappingRow{
		ID: uuid.New(), ShardMapID: sm.ID, ShardID: shard.ID,
		MinValue: []byte{0, 0, 0, 0}, MaxValue: []byte{0, 0, 0, 100}, IsRangeMap: true,
	}
	require.NoError(t, NewAddMappingOperation(db, db, first).Run(ctx))

	overlapping := store.GSMMappingRow{
		ID: uuid.New(), ShardMapID: sm.ID, ShardID: shard.ID,
		MinValue: []byte{0, 0, 0, 50}, MaxValue: []byte{0, 0, 0, 150}, IsRangeMap: true,
	}
	err := NewAddMappingOperation(db, db, overlapping).Run(ctx)
	require.Error(t, err)

	require.NoError(t, NewRemoveMappingOperation(db, db, first).Run(ctx))
	require.NoError(t, NewRemoveShardOperation(db, shard.ID).Run(ctx))
	require.NoError(t, NewRemoveShardMapOperation(db, sm.Name, sm.ID).Run(ctx))
}
