package mapper

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dreamware/shardmgmt/codec"
	"github.com/dreamware/shardmgmt/key"
	"github.com/dreamware/shardmgmt/op"
	"github.com/dreamware/shardmgmt/shardmap"
	"github.com/dreamware/shardmgmt/store"
)

// CreatePointMapping implements AddShardMappingGlobal for a list shard
// map: maps a single key to shard (spec §4.F/§4.G).
func (m *Mapper) CreatePointMapping(ctx context.Context, sm shardmap.ShardMap, k key.ShardKey, shard shardmap.Shard) (shardmap.Mapping, error) {
	mapping := shardmap.Mapping{ID: uuid.New(), ShardMapID: sm.ID, ShardID: shard.ID, Key: k, IsRangeMap: false, Status: shardmap.StatusOnline}
	if err := m.addMapping(ctx, mapping, shard); err != nil {
		return shardmap.Mapping{}, err
	}
	m.cache.PutMapping(sm.ID, k, mapping)
	return mapping, nil
}

// CreateRangeMapping implements AddShardMappingGlobal for a range shard
// map: maps rng to shard.
func (m *Mapper) CreateRangeMapping(ctx context.Context, sm shardmap.ShardMap, rng key.ShardRange, shard shardmap.Shard) (shardmap.Mapping, error) {
	mapping := shardmap.Mapping{ID: uuid.New(), ShardMapID: sm.ID, ShardID: shard.ID, Range: rng, IsRangeMap: true, Status: shardmap.StatusOnline}
	if err := m.addMapping(ctx, mapping, shard); err != nil {
		return shardmap.Mapping{}, err
	}
	m.cache.PutMapping(sm.ID, rng.Low, mapping)
	return mapping, nil
}

func (m *Mapper) addMapping(ctx context.Context, mapping shardmap.Mapping, shard shardmap.Shard) error {
	lsmConn, err := m.lsmFor(ctx, shard)
	if err != nil {
		return err
	}
	row := toStoreMappingRow(codec.FromMapping(mapping), mapping.ShardMapID, mapping.ShardID)
	return m.runWithRetry(ctx, func(ctx context.Context) error {
		return op.NewAddMappingOperation(m.gsm.Querier(), lsmConn.Querier(), row).Run(ctx)
	})
}

// GetMappingForKey implements FindShardMappingByKeyGlobal (spec §4.G): the
// core routing lookup, cache-first with GSM fallback, and an optional LSM
// validateMapping call when opts.Validate is set.
func (m *Mapper) GetMappingForKey(ctx context.Context, sm shardmap.ShardMap, k key.ShardKey, opts LookupOptions) (shardmap.Mapping, error) {
	mapping, ok := m.lookupCache(sm, k)
	if !ok {
		var row store.GSMMappingRow
		err := m.runWithRetry(ctx, func(ctx context.Context) error {
			var code store.ResultCode
			var err error
			row, code, err = store.FindMappingByKey(ctx, m.gsm.Querier(), sm.ID, k.Bytes())
			if err != nil {
				return err
			}
			if !code.Ok() {
				return store.NewManagementError(code, sm.Name, "")
			}
			return nil
		})
		if err != nil {
			return shardmap.Mapping{}, err
		}
		mapping, err = toEntityMappingRow(row, sm.KeyKind)
		if err != nil {
			return shardmap.Mapping{}, err
		}
		m.cache.PutMapping(sm.ID, lookupKeyFor(mapping), mapping)
	}
	if mapping.Status == shardmap.StatusOffline {
		return shardmap.Mapping{}, store.NewManagementError(store.CodeMappingIsOffline, sm.Name, "")
	}
	if opts.Validate {
		if err := m.validateMapping(ctx, sm, mapping); err != nil {
			m.cache.EvictMapping(mapping.ID)
			return shardmap.Mapping{}, err
		}
	}
	return mapping, nil
}

func (m *Mapper) lookupCache(sm shardmap.ShardMap, k key.ShardKey) (shardmap.Mapping, bool) {
	if sm.Kind == shardmap.KindRange {
		return m.cache.LookupRangeContaining(sm.ID, k)
	}
	return m.cache.LookupPoint(sm.ID, k)
}

func lookupKeyFor(mapping shardmap.Mapping) key.ShardKey {
	if mapping.IsRangeMap {
		return mapping.Range.Low
	}
	return mapping.Key
}

// validateMapping re-reads the mapping from the owning shard's LSM and
// confirms it still points there, catching the case where a split/merge
// or a shard swap moved the mapping after it was cached (spec §4.E/§7).
func (m *Mapper) validateMapping(ctx context.Context, sm shardmap.ShardMap, mapping shardmap.Mapping) error {
	shard, err := m.GetShard(ctx, mapping.ShardID)
	if err != nil {
		return err
	}
	lsmConn, err := m.lsmFor(ctx, shard)
	if err != nil {
		return err
	}
	present, err := store.MappingExistsLocal(ctx, lsmConn.Querier(), mapping.ID)
	if err != nil {
		return err
	}
	if !present {
		return store.NewManagementError(store.CodeMappingDoesNotExist, sm.Name, shard.Location.String())
	}
	return nil
}

// GetMappings implements GetShardMappingsGlobal with the optional range
// and shard filters (spec §4.G).
func (m *Mapper) GetMappings(ctx context.Context, sm shardmap.ShardMap, rangeFilter *key.ShardRange, shardFilter *shardmap.Shard) ([]shardmap.Mapping, error) {
	var low, high []byte
	hasRange := rangeFilter != nil
	if hasRange {
		low, high = rangeFilter.Low.Bytes(), rangeFilter.High.Bytes()
	}
	var shardID uuid.UUID
	hasShard := shardFilter != nil
	if hasShard {
		shardID = shardFilter.ID
	}

	var rows []store.GSMMappingRow
	err := m.runWithRetry(ctx, func(ctx context.Context) error {
		var err error
		rows, err = store.ListMappings(ctx, m.gsm.Querier(), sm.ID, low, high, hasRange, shardID, hasShard)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]shardmap.Mapping, 0, len(rows))
	for _, r := range rows {
		mp, err := toEntityMappingRow(r, sm.KeyKind)
		if err != nil {
			return nil, err
		}
		out = append(out, mp)
	}
	return out, nil
}

// checkLockOwner enforces spec §4.E's lock protocol (invariant 7): a locked
// mapping may be mutated only by the caller presenting its current owner id,
// or the distinguished force-unlock UUID.
func checkLockOwner(sm shardmap.ShardMap, mapping shardmap.Mapping, ownerID uuid.UUID) error {
	if mapping.Locked() && ownerID != shardmap.ForceUnlockOwnerID && mapping.LockOwnerID != ownerID {
		return store.NewManagementError(store.CodeMappingLockOwnerIdMismatch, sm.Name, "")
	}
	return nil
}

// RemoveMapping implements RemoveShardMappingGlobal, rejecting a mapping
// locked by someone other than ownerID (spec §4.E invariant 7, scenario S3).
func (m *Mapper) RemoveMapping(ctx context.Context, sm shardmap.ShardMap, mapping shardmap.Mapping, ownerID uuid.UUID) error {
	if err := checkLockOwner(sm, mapping, ownerID); err != nil {
		return err
	}
	shard, err := m.GetShard(ctx, mapping.ShardID)
	if err != nil {
		return err
	}
	lsmConn, err := m.lsmFor(ctx, shard)
	if err != nil {
		return err
	}
	row := toStoreMappingRow(codec.FromMapping(mapping), mapping.ShardMapID, mapping.ShardID)
	err = m.runWithRetry(ctx, func(ctx context.Context) error {
		return op.NewRemoveMappingOperation(m.gsm.Querier(), lsmConn.Querier(), row).Run(ctx)
	})
	if err != nil {
		return err
	}
	m.cache.EvictMapping(mapping.ID)
	return nil
}

// LockMapping implements LockOrUnlockShardMappingsGlobal's single-mapping
// lock path, rejecting a mapping that is already locked by someone else
// (spec §4.G MappingAlreadyLocked).
func (m *Mapper) LockMapping(ctx context.Context, sm shardmap.ShardMap, mapping shardmap.Mapping, ownerID uuid.UUID) (shardmap.Mapping, error) {
	if mapping.Locked() && mapping.LockOwnerID != ownerID {
		return shardmap.Mapping{}, store.NewManagementError(store.CodeMappingAlreadyLocked, sm.Name, "")
	}
	return m.setLockOwner(ctx, sm, mapping, ownerID)
}

// UnlockMapping implements the unlock path, rejecting a caller whose
// ownerID doesn't match the current lock unless ownerID is
// shardmap.ForceUnlockOwnerID.
func (m *Mapper) UnlockMapping(ctx context.Context, sm shardmap.ShardMap, mapping shardmap.Mapping, ownerID uuid.UUID) (shardmap.Mapping, error) {
	if ownerID != shardmap.ForceUnlockOwnerID && mapping.LockOwnerID != ownerID {
		return shardmap.Mapping{}, store.NewManagementError(store.CodeMappingLockOwnerIdMismatch, sm.Name, "")
	}
	return m.setLockOwner(ctx, sm, mapping, shardmap.UnlockedOwnerID)
}

func (m *Mapper) setLockOwner(ctx context.Context, sm shardmap.ShardMap, mapping shardmap.Mapping, ownerID uuid.UUID) (shardmap.Mapping, error) {
	shard, err := m.GetShard(ctx, mapping.ShardID)
	if err != nil {
		return shardmap.Mapping{}, err
	}
	lsmConn, err := m.lsmFor(ctx, shard)
	if err != nil {
		return shardmap.Mapping{}, err
	}
	previous := toStoreMappingRow(codec.FromMapping(mapping), mapping.ShardMapID, mapping.ShardID)
	updated := mapping
	updated.LockOwnerID = ownerID
	row := toStoreMappingRow(codec.FromMapping(updated), updated.ShardMapID, updated.ShardID)
	err = m.runWithRetry(ctx, func(ctx context.Context) error {
		return op.NewLockOrUnlockMappingOperation(m.gsm.Querier(), lsmConn.Querier(), previous, row).Run(ctx)
	})
	if err != nil {
		return shardmap.Mapping{}, err
	}
	m.cache.PutMapping(sm.ID, lookupKeyFor(updated), updated)
	return updated, nil
}

// SetMappingStatus implements UpdateShardMappingGlobal's status-only
// path (mark offline/online), used before/after maintenance that requires
// the mapping be temporarily unroutable (spec §4.G MappingIsOffline /
// MappingIsNotOffline invariants enforced by callers before mutating
// operations that require an offline mapping). Rejects a mapping locked by
// someone other than ownerID (spec §4.E invariant 7, scenario S3).
func (m *Mapper) SetMappingStatus(ctx context.Context, sm shardmap.ShardMap, mapping shardmap.Mapping, status shardmap.Status, ownerID uuid.UUID) (shardmap.Mapping, error) {
	if err := checkLockOwner(sm, mapping, ownerID); err != nil {
		return shardmap.Mapping{}, err
	}
	shard, err := m.GetShard(ctx, mapping.ShardID)
	if err != nil {
		return shardmap.Mapping{}, err
	}
	lsmConn, err := m.lsmFor(ctx, shard)
	if err != nil {
		return shardmap.Mapping{}, err
	}
	previous := toStoreMappingRow(codec.FromMapping(mapping), mapping.ShardMapID, mapping.ShardID)
	updated := mapping
	updated.Status = status
	row := toStoreMappingRow(codec.FromMapping(updated), updated.ShardMapID, updated.ShardID)
	err = m.runWithRetry(ctx, func(ctx context.Context) error {
		return op.NewUpdateMappingOperation(m.gsm.Querier(), lsmConn.Querier(), previous, row).Run(ctx)
	})
	if err != nil {
		return shardmap.Mapping{}, err
	}
	m.cache.PutMapping(sm.ID, lookupKeyFor(updated), updated)
	return updated, nil
}

// SplitMapping implements SplitShardMappingGlobal: replaces a single range
// mapping with two adjacent ones meeting at splitPoint, both on the same
// shard (spec §4.E/§4.G). Rejects a mapping locked by someone other than
// ownerID (invariant 7, scenario S3).
func (m *Mapper) SplitMapping(ctx context.Context, sm shardmap.ShardMap, mapping shardmap.Mapping, splitPoint key.ShardKey, ownerID uuid.UUID) ([]shardmap.Mapping, error) {
	if err := checkLockOwner(sm, mapping, ownerID); err != nil {
		return nil, err
	}
	if !mapping.IsRangeMap {
		return nil, fmt.Errorf("mapper: split requires a range mapping")
	}
	low, high, err := mapping.Range.Split(splitPoint)
	if err != nil {
		return nil, err
	}
	shard, err := m.GetShard(ctx, mapping.ShardID)
	if err != nil {
		return nil, err
	}
	lsmConn, err := m.lsmFor(ctx, shard)
	if err != nil {
		return nil, err
	}

	left := shardmap.Mapping{ID: uuid.New(), ShardMapID: sm.ID, ShardID: mapping.ShardID, Range: low, IsRangeMap: true, Status: shardmap.StatusOnline}
	right := shardmap.Mapping{ID: uuid.New(), ShardMapID: sm.ID, ShardID: mapping.ShardID, Range: high, IsRangeMap: true, Status: shardmap.StatusOnline}

	removeRow := toStoreMappingRow(codec.FromMapping(mapping), mapping.ShardMapID, mapping.ShardID)
	leftRow := toStoreMappingRow(codec.FromMapping(left), left.ShardMapID, left.ShardID)
	rightRow := toStoreMappingRow(codec.FromMapping(right), right.ShardMapID, right.ShardID)

	err = m.runWithRetry(ctx, func(ctx context.Context) error {
		return op.NewSplitMappingOperation(m.gsm.Querier(), lsmConn.Querier(), removeRow, leftRow, rightRow).Run(ctx)
	})
	if err != nil {
		return nil, err
	}
	m.cache.EvictMapping(mapping.ID)
	m.cache.PutMapping(sm.ID, low.Low, left)
	m.cache.PutMapping(sm.ID, high.Low, right)
	return []shardmap.Mapping{left, right}, nil
}

// MergeMapping implements MergeShardMappingGlobal: combines two adjacent
// range mappings on the same shard into one (spec §4.E/§4.G). Rejects either
// side locked by someone other than ownerID (invariant 7, scenario S3).
func (m *Mapper) MergeMapping(ctx context.Context, sm shardmap.ShardMap, left, right shardmap.Mapping, ownerID uuid.UUID) (shardmap.Mapping, error) {
	if err := checkLockOwner(sm, left, ownerID); err != nil {
		return shardmap.Mapping{}, err
	}
	if err := checkLockOwner(sm, right, ownerID); err != nil {
		return shardmap.Mapping{}, err
	}
	if !left.IsRangeMap || !right.IsRangeMap {
		return shardmap.Mapping{}, fmt.Errorf("mapper: merge requires range mappings")
	}
	if left.ShardID != right.ShardID {
		return shardmap.Mapping{}, fmt.Errorf("mapper: merge requires mappings on the same shard")
	}
	if !left.Range.Adjacent(right.Range) {
		return shardmap.Mapping{}, fmt.Errorf("mapper: merge requires adjacent ranges")
	}
	merged := shardmap.Mapping{
		ID: uuid.New(), ShardMapID: sm.ID, ShardID: left.ShardID,
		Range: key.ShardRange{Low: left.Range.Low, High: right.Range.High}, IsRangeMap: true, Status: shardmap.StatusOnline,
	}

	shard, err := m.GetShard(ctx, left.ShardID)
	if err != nil {
		return shardmap.Mapping{}, err
	}
	lsmConn, err := m.lsmFor(ctx, shard)
	if err != nil {
		return shardmap.Mapping{}, err
	}

	leftRow := toStoreMappingRow(codec.FromMapping(left), left.ShardMapID, left.ShardID)
	rightRow := toStoreMappingRow(codec.FromMapping(right), right.ShardMapID, right.ShardID)
	mergedRow := toStoreMappingRow(codec.FromMapping(merged), merged.ShardMapID, merged.ShardID)

	err = m.runWithRetry(ctx, func(ctx context.Context) error {
		return op.NewMergeMappingOperation(m.gsm.Querier(), lsmConn.Querier(), leftRow, rightRow, mergedRow).Run(ctx)
	})
	if err != nil {
		return shardmap.Mapping{}, err
	}
	m.cache.EvictMapping(left.ID)
	m.cache.EvictMapping(right.ID)
	m.cache.PutMapping(sm.ID, merged.Range.Low, merged)
	return merged, nil
}

func toStoreMappingRow(r codec.MappingRow, shardMapID, shardID uuid.UUID) store.GSMMappingRow {
	return store.GSMMappingRow{
		ID: r.ID, ShardMapID: shardMapID, ShardID: shardID,
		MinValue: r.MinValue, MaxValue: r.MaxValue, MaxValueIsMax: r.MaxValueIsMax,
		IsRangeMap: r.IsRangeMap, Status: r.Status, LockOwnerID: r.LockOwnerID,
	}
}

func toEntityMappingRow(r store.GSMMappingRow, keyKind key.Kind) (shardmap.Mapping, error) {
	row := codec.MappingRow{
		ID: r.ID, ShardMapID: r.ShardMapID, ShardID: r.ShardID,
		MinValue: r.MinValue, MaxValue: r.MaxValue, MaxValueIsMax: r.MaxValueIsMax,
		IsRangeMap: r.IsRangeMap, Status: r.Status, LockOwnerID: r.LockOwnerID,
	}
	return row.ToEntity(keyKind)
}
