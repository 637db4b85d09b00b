package manager

import (
	"context"

	"github.com/google/uuid"

	"github.com/dreamware/shardmgmt/key"
	"github.com/dreamware/shardmgmt/mapper"
	"github.com/dreamware/shardmgmt/shardmap"
)

// KeyCodec converts an application key type T to and from the canonical
// key.ShardKey encoding (spec §4.F "typed wrapper ... (en/de)codes keys
// through Component A"). Implementations are one-liners around the
// key.NewXxxKey constructors.
type KeyCodec[T any] struct {
	Encode func(T) key.ShardKey
	Decode func(key.ShardKey) T
}

// ListShardMap is a thin, typed view over a shardmap.ShardMap of Kind
// List: methods that take a key accept T and encode it through
// codec.Encode rather than requiring raw key.ShardKey from callers who only
// ever work with one key type. Returned mappings still carry key.ShardKey
// values; codec.Decode is not called by these views.
type ListShardMap[T any] struct {
	sm     shardmap.ShardMap
	mapper *mapper.Mapper
	codec  KeyCodec[T]
}

// NewListShardMap wraps an existing shardmap.ShardMap of Kind List.
func NewListShardMap[T any](sm shardmap.ShardMap, mp *mapper.Mapper, codec KeyCodec[T]) *ListShardMap[T] {
	return &ListShardMap[T]{sm: sm, mapper: mp, codec: codec}
}

// Entity returns the underlying untyped ShardMap, e.g. to pass to
// GetShards for fan-out.
func (l *ListShardMap[T]) Entity() shardmap.ShardMap { return l.sm }

// CreatePointMapping maps k to shard.
func (l *ListShardMap[T]) CreatePointMapping(ctx context.Context, k T, shard shardmap.Shard) (shardmap.Mapping, error) {
	return l.mapper.CreatePointMapping(ctx, l.sm, l.codec.Encode(k), shard)
}

// GetMappingForKey routes k to its current mapping.
func (l *ListShardMap[T]) GetMappingForKey(ctx context.Context, k T, opts mapper.LookupOptions) (shardmap.Mapping, error) {
	return l.mapper.GetMappingForKey(ctx, l.sm, l.codec.Encode(k), opts)
}

// GetMappings lists every mapping, optionally filtered by shard.
func (l *ListShardMap[T]) GetMappings(ctx context.Context, shardFilter *shardmap.Shard) ([]shardmap.Mapping, error) {
	return l.mapper.GetMappings(ctx, l.sm, nil, shardFilter)
}

// RemoveMapping removes m. ownerID must match m's lock owner (or be the
// force-unlock UUID) if m is locked.
func (l *ListShardMap[T]) RemoveMapping(ctx context.Context, m shardmap.Mapping, ownerID uuid.UUID) error {
	return l.mapper.RemoveMapping(ctx, l.sm, m, ownerID)
}

// RangeShardMap is the Kind Range counterpart of ListShardMap, additionally
// supporting split and merge.
type RangeShardMap[T any] struct {
	sm     shardmap.ShardMap
	mapper *mapper.Mapper
	codec  KeyCodec[T]
}

// NewRangeShardMap wraps an existing shardmap.ShardMap of Kind Range.
func NewRangeShardMap[T any](sm shardmap.ShardMap, mp *mapper.Mapper, codec KeyCodec[T]) *RangeShardMap[T] {
	return &RangeShardMap[T]{sm: sm, mapper: mp, codec: codec}
}

// Entity returns the underlying untyped ShardMap.
func (r *RangeShardMap[T]) Entity() shardmap.ShardMap { return r.sm }

// CreateRangeMapping maps [low, high) to shard.
func (r *RangeShardMap[T]) CreateRangeMapping(ctx context.Context, low, high T, shard shardmap.Shard) (shardmap.Mapping, error) {
	rng, err := key.NewRange(r.codec.Encode(low), r.codec.Encode(high))
	if err != nil {
		return shardmap.Mapping{}, err
	}
	return r.mapper.CreateRangeMapping(ctx, r.sm, rng, shard)
}

// GetMappingForKey routes k to the range mapping containing it.
func (r *RangeShardMap[T]) GetMappingForKey(ctx context.Context, k T, opts mapper.LookupOptions) (shardmap.Mapping, error) {
	return r.mapper.GetMappingForKey(ctx, r.sm, r.codec.Encode(k), opts)
}

// GetMappings lists every range mapping, optionally filtered by range
// and/or shard.
func (r *RangeShardMap[T]) GetMappings(ctx context.Context, low, high *T, shardFilter *shardmap.Shard) ([]shardmap.Mapping, error) {
	var rangeFilter *key.ShardRange
	if low != nil && high != nil {
		rng, err := key.NewRange(r.codec.Encode(*low), r.codec.Encode(*high))
		if err != nil {
			return nil, err
		}
		rangeFilter = &rng
	}
	return r.mapper.GetMappings(ctx, r.sm, rangeFilter, shardFilter)
}

// SplitMapping splits m at splitPoint. ownerID must match m's lock owner
// (or be the force-unlock UUID) if m is locked.
func (r *RangeShardMap[T]) SplitMapping(ctx context.Context, m shardmap.Mapping, splitPoint T, ownerID uuid.UUID) ([]shardmap.Mapping, error) {
	return r.mapper.SplitMapping(ctx, r.sm, m, r.codec.Encode(splitPoint), ownerID)
}

// MergeMapping merges two adjacent mappings into one. ownerID must match
// both mappings' lock owner (or be the force-unlock UUID) for whichever are
// locked.
func (r *RangeShardMap[T]) MergeMapping(ctx context.Context, left, right shardmap.Mapping, ownerID uuid.UUID) (shardmap.Mapping, error) {
	return r.mapper.MergeMapping(ctx, r.sm, left, right, ownerID)
}

// RemoveMapping removes m. ownerID must match m's lock owner (or be the
// force-unlock UUID) if m is locked.
func (r *RangeShardMap[T]) RemoveMapping(ctx context.Context, m shardmap.Mapping, ownerID uuid.UUID) error {
	return r.mapper.RemoveMapping(ctx, r.sm, m, ownerID)
}

// DefaultShardMap is the Kind Default variant: no mappings, only shards,
// used purely to enumerate a fixed fan-out set (spec §4.F).
type DefaultShardMap struct {
	sm     shardmap.ShardMap
	mapper *mapper.Mapper
}

// NewDefaultShardMap wraps an existing shardmap.ShardMap of Kind Default.
func NewDefaultShardMap(sm shardmap.ShardMap, mp *mapper.Mapper) *DefaultShardMap {
	return &DefaultShardMap{sm: sm, mapper: mp}
}

// Entity returns the underlying untyped ShardMap.
func (d *DefaultShardMap) Entity() shardmap.ShardMap { return d.sm }

// CreateShard adds shard at loc to this shard map.
func (d *DefaultShardMap) CreateShard(ctx context.Context, loc shardmap.Location) (shardmap.Shard, error) {
	return d.mapper.AddShard(ctx, d.sm, loc)
}

// DeleteShard removes shard from this shard map.
func (d *DefaultShardMap) DeleteShard(ctx context.Context, shard shardmap.Shard) error {
	return d.mapper.RemoveShard(ctx, shard)
}

// GetShards returns every shard belonging to this shard map — the
// collaborator contract a fan-out executor calls (spec §4.F/§4.G).
func (d *DefaultShardMap) GetShards(ctx context.Context) ([]shardmap.Shard, error) {
	return d.mapper.GetShards(ctx, d.sm)
}
