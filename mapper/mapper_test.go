package mapper

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dreamware/shardmgmt/key"
	"github.com/dreamware/shardmgmt/retry"
	"github.com/dreamware/shardmgmt/schema"
	"github.com/dreamware/shardmgmt/shardmap"
	"github.com/dreamware/shardmgmt/store"
)

// fixedDialer routes every shard's LSM to the single test database, letting
// these tests exercise the GSM/LSM mirroring logic against one live MySQL
// instance instead of standing up one database per shard.
type fixedDialer struct{ dsn string }

func (d fixedDialer) DSN(shardmap.Location) string { return d.dsn }

func newTestMapper(t *testing.T) *Mapper {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set; skipping store-backed mapper test")
	}
	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	ctx := context.Background()
	_, err = schema.Upgrade(ctx, db, store.Version{}, schema.GlobalSteps)
	require.NoError(t, err)
	_, err = schema.Upgrade(ctx, db, store.Version{}, schema.LocalSteps)
	require.NoError(t, err)
	db.Close()

	conn, err := store.Open(ctx, store.KindGSM, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return New(conn, fixedDialer{dsn: dsn}, nil, retry.DefaultPolicy(), zap.NewNop())
}

func TestCreateShardMapAndAddShardRoutesByKey(t *testing.T) {
	mp := newTestMapper(t)
	ctx := context.Background()

	sm, err := mp.CreateShardMap(ctx, "TestMapperShardMap", shardmap.KindRange, key.KindInt32)
	require.NoError(t, err)

	shard, err := mp.AddShard(ctx, sm, shardmap.Location{Protocol: "tcp", ServerName: "shard1", Port: 3306, DatabaseName: "shard1db"})
	require.NoError(t, err)

	low, high := key.NewInt32Key(0), key.NewInt32Key(100)
	m, err := mp.CreateRangeMapping(ctx, sm, mustRange(t, low, high), shard)
	require.NoError(t, err)
	require.Equal(t, shard.ID, m.ShardID)

	found, err := mp.GetMappingForKey(ctx, sm, key.NewInt32Key(50), LookupOptions{})
	require.NoError(t, err)
	require.Equal(t, m.ID, found.ID)

	require.NoError(t, mp.RemoveMapping(ctx, sm, found, uuid.Nil))
	require.NoError(t, mp.RemoveShard(ctx, shard))
	require.NoError(t, mp.DeleteShardMap(ctx, sm))
}

func TestGetShardMapUsesCacheOnSecondCall(t *testing.T) {
	mp := newTestMapper(t)
	ctx := context.Background()

	sm, err := mp.CreateShardMap(ctx, "TestMapperCacheShardMap", shardmap.KindList, key.KindInt32)
	require.NoError(t, err)

	_, ok := mp.Cache().ShardMapByName(sm.Name)
	require.True(t, ok, "CreateShardMap should prime the cache")

	got, err := mp.GetShardMap(ctx, sm.Name)
	require.NoError(t, err)
	require.Equal(t, sm.ID, got.ID)

	require.NoError(t, mp.DeleteShardMap(ctx, sm))
}

func mustRange(t *testing.T, low, high key.ShardKey) key.ShardRange {
	t.Helper()
	r, err := key.NewRange(low, high)
	require.NoError(t, err)
	return r
}
