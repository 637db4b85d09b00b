package mapper

import (
	"context"

	"github.com/dreamware/shardmgmt/codec"
	"github.com/dreamware/shardmgmt/op"
	"github.com/dreamware/shardmgmt/shardmap"
	"github.com/dreamware/shardmgmt/store"
)

// AttachShard implements the recovery-manager AttachShard operation (spec
// §4.I): re-registers shard in the GSM if absent, then copies every mapping
// shard's own LSM currently holds up as GSM rows, trusting the shard's LSM
// as the source of truth for what it serves.
func (m *Mapper) AttachShard(ctx context.Context, sm shardmap.ShardMap, shard shardmap.Shard) error {
	lsmConn, err := m.lsmFor(ctx, shard)
	if err != nil {
		return err
	}
	shardRow := toStoreShardRow(codec.FromShard(shard))
	smRow := toStoreShardMapRow(codec.FromShardMap(sm))
	err = m.runWithRetry(ctx, func(ctx context.Context) error {
		return op.NewAttachShardOperation(m.gsm.Querier(), lsmConn.Querier(), shardRow, smRow).Run(ctx)
	})
	if err != nil {
		return err
	}
	m.cache.EvictShard(shard.ID)
	m.log.Info("attached shard")
	return nil
}

// DetachShard implements the recovery-manager DetachShard operation:
// withdraws shard's mappings from the GSM so routing stops sending it
// traffic, leaving the shard's own LSM untouched.
func (m *Mapper) DetachShard(ctx context.Context, shard shardmap.Shard) error {
	err := m.runWithRetry(ctx, func(ctx context.Context) error {
		return op.NewDetachShardOperation(m.gsm.Querier(), shard.ID).Run(ctx)
	})
	if err != nil {
		return err
	}
	m.cache.EvictShard(shard.ID)
	m.log.Info("detached shard")
	return nil
}

// ReplaceMappings implements the recovery-manager bulk ReplaceMappings
// operation: atomically swaps removes for adds in the GSM and mirrors the
// change onto shard's LSM, the escape hatch for repairing a shard map by
// hand after something outside this library changed the data.
func (m *Mapper) ReplaceMappings(ctx context.Context, shard shardmap.Shard, removes, adds []shardmap.Mapping) error {
	lsmConn, err := m.lsmFor(ctx, shard)
	if err != nil {
		return err
	}
	removeRows := toMappingRows(removes)
	addRows := toMappingRows(adds)
	err = m.runWithRetry(ctx, func(ctx context.Context) error {
		return op.NewReplaceMappingsOperation(m.gsm.Querier(), lsmConn.Querier(), removeRows, addRows).Run(ctx)
	})
	if err != nil {
		return err
	}
	for _, r := range removes {
		m.cache.EvictMapping(r.ID)
	}
	m.log.Info("replaced mappings")
	return nil
}

func toMappingRows(mappings []shardmap.Mapping) []store.GSMMappingRow {
	rows := make([]store.GSMMappingRow, len(mappings))
	for i, mp := range mappings {
		r := codec.FromMapping(mp)
		rows[i] = store.GSMMappingRow{
			ID: r.ID, ShardMapID: r.ShardMapID, ShardID: r.ShardID,
			MinValue: r.MinValue, MaxValue: r.MaxValue, MaxValueIsMax: r.MaxValueIsMax,
			IsRangeMap: r.IsRangeMap, Status: r.Status, LockOwnerID: r.LockOwnerID,
		}
	}
	return rows
}
