package manager

import (
	"context"
	"fmt"

	"github.com/dreamware/shardmgmt/shardmap"
)

// RecoveryManager reconciles drift between the GSM and a shard's own LSM
// (spec §4.I): a shard detached for maintenance, a GSM that lost track of
// a shard's mappings, or a set of mappings that must be force-replaced
// after manual repair. These are administrative operations, distinct from
// the routing-path calls on Mapper.
type RecoveryManager struct {
	smm *ShardMapManager
}

// NewRecoveryManager returns a RecoveryManager bound to smm.
func NewRecoveryManager(smm *ShardMapManager) *RecoveryManager {
	return &RecoveryManager{smm: smm}
}

// AttachShard re-registers shard's locally-known mappings into the GSM,
// trusting the shard's LSM as the source of truth for what it currently
// serves.
func (r *RecoveryManager) AttachShard(ctx context.Context, sm shardmap.ShardMap, shard shardmap.Shard) error {
	if err := r.smm.mapper.AttachShard(ctx, sm, shard); err != nil {
		return fmt.Errorf("manager: attach shard %s: %w", shard.ID, err)
	}
	return nil
}

// DetachShard withdraws shard's mappings from the GSM so routing no
// longer sends traffic there, leaving the shard's own LSM untouched.
func (r *RecoveryManager) DetachShard(ctx context.Context, shard shardmap.Shard) error {
	if err := r.smm.mapper.DetachShard(ctx, shard); err != nil {
		return fmt.Errorf("manager: detach shard %s: %w", shard.ID, err)
	}
	return nil
}

// ReplaceMappings atomically swaps out removes for adds in the GSM,
// mirroring the change onto shard's LSM — the escape hatch for repairing a
// shard map by hand after a tool outside this library changed the data.
func (r *RecoveryManager) ReplaceMappings(ctx context.Context, shard shardmap.Shard, removes, adds []shardmap.Mapping) error {
	if err := r.smm.mapper.ReplaceMappings(ctx, shard, removes, adds); err != nil {
		return fmt.Errorf("manager: replace mappings on shard %s: %w", shard.ID, err)
	}
	return nil
}
