package manager

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/shardmgmt/key"
	"github.com/dreamware/shardmgmt/mapper"
	"github.com/dreamware/shardmgmt/shardmap"
)

type fixedDialer struct{ dsn string }

func (d fixedDialer) DSN(shardmap.Location) string { return d.dsn }

func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set; skipping store-backed manager test")
	}
	return dsn
}

func TestCreateShardMapManagerThenListShardMapRoutesKey(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()

	smm, err := CreateShardMapManager(ctx, dsn, Options{Dialer: fixedDialer{dsn: dsn}})
	require.NoError(t, err)
	t.Cleanup(func() { smm.Close() })

	codec := KeyCodec[int32]{
		Encode: key.NewInt32Key,
		Decode: func(k key.ShardKey) int32 { return 0 },
	}
	lsm, err := CreateListShardMap[int32](ctx, smm, "TestManagerListShardMap", key.KindInt32, codec)
	require.NoError(t, err)

	shard, err := lsm.mapper.AddShard(ctx, lsm.Entity(), shardmap.Location{Protocol: "tcp", ServerName: "shard1", Port: 3306, DatabaseName: "shard1db"})
	require.NoError(t, err)

	_, err = lsm.CreatePointMapping(ctx, 42, shard)
	require.NoError(t, err)

	found, err := lsm.GetMappingForKey(ctx, 42, mapper.LookupOptions{})
	require.NoError(t, err)
	require.Equal(t, shard.ID, found.ShardID)

	require.NoError(t, lsm.RemoveMapping(ctx, found, uuid.Nil))
	require.NoError(t, smm.mapper.RemoveShard(ctx, shard))
	require.NoError(t, smm.mapper.DeleteShardMap(ctx, lsm.Entity()))
}

func TestRecoveryManagerDetachThenAttachShard(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()

	smm, err := CreateShardMapManager(ctx, dsn, Options{Dialer: fixedDialer{dsn: dsn}})
	require.NoError(t, err)
	t.Cleanup(func() { smm.Close() })

	sm, err := smm.mapper.CreateShardMap(ctx, "TestRecoveryShardMap", shardmap.KindList, key.KindInt32)
	require.NoError(t, err)
	shard, err := smm.mapper.AddShard(ctx, sm, shardmap.Location{Protocol: "tcp", ServerName: "shard2", Port: 3306, DatabaseName: "shard2db"})
	require.NoError(t, err)

	recovery := smm.Recovery()
	require.NoError(t, recovery.DetachShard(ctx, shard))
	require.NoError(t, recovery.AttachShard(ctx, sm, shard))

	require.NoError(t, smm.mapper.RemoveShard(ctx, shard))
	require.NoError(t, smm.mapper.DeleteShardMap(ctx, sm))
}

func TestSchemaInfoAddGetUpdateRemove(t *testing.T) {
	dsn := testDSN(t)
	ctx := context.Background()

	smm, err := CreateShardMapManager(ctx, dsn, Options{Dialer: fixedDialer{dsn: dsn}})
	require.NoError(t, err)
	t.Cleanup(func() { smm.Close() })

	info := shardmap.SchemaInfo{Name: "TestSchemaInfo", Raw: []byte(`{"shardedTables":["orders"]}`)}
	require.NoError(t, smm.mapper.AddSchemaInfo(ctx, info))

	got, err := smm.mapper.GetSchemaInfo(ctx, info.Name)
	require.NoError(t, err)
	require.Equal(t, info.Raw, got.Raw)

	updated := shardmap.SchemaInfo{Name: info.Name, Raw: []byte(`{"shardedTables":["orders","customers"]}`)}
	require.NoError(t, smm.mapper.UpdateSchemaInfo(ctx, updated))

	got, err = smm.mapper.GetSchemaInfo(ctx, info.Name)
	require.NoError(t, err)
	require.Equal(t, updated.Raw, got.Raw)

	names, err := smm.mapper.ListSchemaInfoNames(ctx)
	require.NoError(t, err)
	require.Contains(t, names, info.Name)

	require.NoError(t, smm.mapper.RemoveSchemaInfo(ctx, info.Name))
	_, err = smm.mapper.GetSchemaInfo(ctx, info.Name)
	require.Error(t, err)
}
