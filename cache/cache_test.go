package cache

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/shardmgmt/key"
	"github.com/dreamware/shardmgmt/shardmap"
)

func TestPutShardMapOverwritesByName(t *testing.T) {
	c := New()
	smID1, smID2 := uuid.New(), uuid.New()
	c.PutShardMap(shardmap.ShardMap{ID: smID1, Name: "orders"})
	c.PutShardMap(shardmap.ShardMap{ID: smID2, Name: "orders"})

	got, ok := c.ShardMapByName("orders")
	require.True(t, ok)
	require.Equal(t, smID2, got.ID)

	c.EvictShardMapByName("orders")
	_, ok = c.ShardMapByName("orders")
	require.False(t, ok)
}

func TestShardByIDRoundTrip(t *testing.T) {
	c := New()
	s := shardmap.Shard{ID: uuid.New(), Status: shardmap.StatusOnline}
	c.PutShard(s)

	got, ok := c.ShardByID(s.ID)
	require.True(t, ok)
	require.Equal(t, s.ID, got.ID)

	c.EvictShard(s.ID)
	_, ok = c.ShardByID(s.ID)
	require.False(t, ok)
}

func TestLookupPointFindsExactKeyOnly(t *testing.T) {
	c := New()
	smID := uuid.New()
	k1 := key.NewInt32Key(10)
	k2 := key.NewInt32Key(20)
	m1 := shardmap.Mapping{ID: uuid.New(), ShardMapID: smID, Key: k1}

	c.PutMapping(smID, k1, m1)

	got, ok := c.LookupPoint(smID, k1)
	require.True(t, ok)
	require.Equal(t, m1.ID, got.ID)

	_, ok = c.LookupPoint(smID, k2)
	require.False(t, ok)
}

func TestPutMappingOverwritesSameKey(t *testing.T) {
	c := New()
	smID := uuid.New()
	k := key.NewInt32Key(1)
	first := shardmap.Mapping{ID: uuid.New(), ShardMapID: smID, Key: k}
	second := shardmap.Mapping{ID: uuid.New(), ShardMapID: smID, Key: k}

	c.PutMapping(smID, k, first)
	c.PutMapping(smID, k, second)

	got, ok := c.LookupPoint(smID, k)
	require.True(t, ok)
	require.Equal(t, second.ID, got.ID)
}

func TestLookupRangeContaining(t *testing.T) {
	c := New()
	smID := uuid.New()
	low, high := key.NewInt32Key(0), key.NewInt32Key(100)
	rng, err := key.NewRange(low, high)
	require.NoError(t, err)
	m := shardmap.Mapping{ID: uuid.New(), ShardMapID: smID, IsRangeMap: true, Range: rng}
	c.PutMapping(smID, low, m)

	got, ok := c.LookupRangeContaining(smID, key.NewInt32Key(50))
	require.True(t, ok)
	require.Equal(t, m.ID, got.ID)

	_, ok = c.LookupRangeContaining(smID, key.NewInt32Key(200))
	require.False(t, ok)
}

func TestEvictMappingRemovesAcrossBuckets(t *testing.T) {
	c := New()
	smID := uuid.New()
	id := uuid.New()
	k1, k2 := key.NewInt32Key(1), key.NewInt32Key(2)
	c.PutMapping(smID, k1, shardmap.Mapping{ID: id, ShardMapID: smID, Key: k1})
	c.PutMapping(smID, k2, shardmap.Mapping{ID: uuid.New(), ShardMapID: smID, Key: k2})

	c.EvictMapping(id)

	_, ok := c.LookupPoint(smID, k1)
	require.False(t, ok)
	_, ok = c.LookupPoint(smID, k2)
	require.True(t, ok)
}
