package codec

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/shardmgmt/key"
	"github.com/dreamware/shardmgmt/shardmap"
)

func TestMappingRowRoundTripsRangeMapping(t *testing.T) {
	rng, err := key.NewRange(key.NewInt32Key(0), key.NewInt32Key(100))
	require.NoError(t, err)
	m := shardmap.Mapping{
		ID: uuid.New(), ShardMapID: uuid.New(), ShardID: uuid.New(),
		Range: rng, IsRangeMap: true, Status: shardmap.StatusOnline, LockOwnerID: uuid.Nil,
	}
	row := FromMapping(m)
	back, err := row.ToEntity(key.KindInt32)
	require.NoError(t, err)
	assert.Equal(t, m.ID, back.ID)
	assert.True(t, m.Range.Equal(back.Range))
	assert.Equal(t, m.Status, back.Status)
}

func TestMappingRowRoundTripsOpenEndedRange(t *testing.T) {
	rng, err := key.NewRange(key.NewInt32Key(100), key.MaxKey(key.KindInt32))
	require.NoError(t, err)
	m := shardmap.Mapping{ID: uuid.New(), Range: rng, IsRangeMap: true}
	row := FromMapping(m)
	assert.True(t, row.MaxValueIsMax)
	back, err := row.ToEntity(key.KindInt32)
	require.NoError(t, err)
	assert.True(t, back.Range.High.IsMax())
}

func TestMappingRowRoundTripsPointMapping(t *testing.T) {
	m := shardmap.Mapping{ID: uuid.New(), Key: key.NewInt64Key(42), IsRangeMap: false}
	row := FromMapping(m)
	back, err := row.ToEntity(key.KindInt64)
	require.NoError(t, err)
	assert.False(t, back.IsRangeMap)
	assert.True(t, m.Key.Equal(back.Key))
}

func TestShardMapRowRoundTrip(t *testing.T) {
	sm := shardmap.ShardMap{ID: uuid.New(), Name: "CustomerIDShardMap", Kind: shardmap.KindRange, KeyKind: key.KindInt32}
	back := FromShardMap(sm).ToEntity()
	assert.Equal(t, sm, back)
}
