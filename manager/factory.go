package manager

import (
	"context"

	"github.com/dreamware/shardmgmt/key"
	"github.com/dreamware/shardmgmt/shardmap"
)

// CreateListShardMap creates a new shard map of Kind List with the given
// name and key kind, and returns a typed view over it (spec §4.F).
func CreateListShardMap[T any](ctx context.Context, smm *ShardMapManager, name string, keyKind key.Kind, codec KeyCodec[T]) (*ListShardMap[T], error) {
	sm, err := smm.mapper.CreateShardMap(ctx, name, shardmap.KindList, keyKind)
	if err != nil {
		return nil, err
	}
	return NewListShardMap(sm, smm.mapper, codec), nil
}

// CreateRangeShardMap creates a new shard map of Kind Range.
func CreateRangeShardMap[T any](ctx context.Context, smm *ShardMapManager, name string, keyKind key.Kind, codec KeyCodec[T]) (*RangeShardMap[T], error) {
	sm, err := smm.mapper.CreateShardMap(ctx, name, shardmap.KindRange, keyKind)
	if err != nil {
		return nil, err
	}
	return NewRangeShardMap(sm, smm.mapper, codec), nil
}

// CreateDefaultShardMap creates a new shard map of Kind Default.
func CreateDefaultShardMap(ctx context.Context, smm *ShardMapManager, name string) (*DefaultShardMap, error) {
	sm, err := smm.mapper.CreateShardMap(ctx, name, shardmap.KindDefault, key.KindInt32)
	if err != nil {
		return nil, err
	}
	return NewDefaultShardMap(sm, smm.mapper), nil
}

// GetListShardMap looks up an existing Kind List shard map by name.
func GetListShardMap[T any](ctx context.Context, smm *ShardMapManager, name string, codec KeyCodec[T]) (*ListShardMap[T], error) {
	sm, err := smm.mapper.GetShardMap(ctx, name)
	if err != nil {
		return nil, err
	}
	return NewListShardMap(sm, smm.mapper, codec), nil
}

// GetRangeShardMap looks up an existing Kind Range shard map by name.
func GetRangeShardMap[T any](ctx context.Context, smm *ShardMapManager, name string, codec KeyCodec[T]) (*RangeShardMap[T], error) {
	sm, err := smm.mapper.GetShardMap(ctx, name)
	if err != nil {
		return nil, err
	}
	return NewRangeShardMap(sm, smm.mapper, codec), nil
}

// GetDefaultShardMap looks up an existing Kind Default shard map by name.
func GetDefaultShardMap(ctx context.Context, smm *ShardMapManager, name string) (*DefaultShardMap, error) {
	sm, err := smm.mapper.GetShardMap(ctx, name)
	if err != nil {
		return nil, err
	}
	return NewDefaultShardMap(sm, smm.mapper), nil
}

// GetDistinctShardLocations returns every unique Location across every
// shard map this manager knows about, for tooling that enumerates the
// physical topology without caring which shard map owns which shard
// (spec §4.I).
func GetDistinctShardLocations(ctx context.Context, smm *ShardMapManager) ([]shardmap.Location, error) {
	shardMaps, err := smm.mapper.ListShardMaps(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[shardmap.Location]bool)
	var out []shardmap.Location
	for _, sm := range shardMaps {
		shards, err := smm.mapper.GetShards(ctx, sm)
		if err != nil {
			return nil, err
		}
		for _, s := range shards {
			if !seen[s.Location] {
				seen[s.Location] = true
				out = append(out, s.Location)
			}
		}
	}
	return out, nil
}
