// Package mapper implements the routing engine (spec §4.G): creating and
// looking up shard maps, shards and mappings, routing a key or range to
// its mapping through the cache before falling back to the GSM, and
// driving the op-package operations that keep GSM and LSM in sync.
package mapper

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dreamware/shardmgmt/cache"
	"github.com/dreamware/shardmgmt/codec"
	"github.com/dreamware/shardmgmt/connstr"
	"github.com/dreamware/shardmgmt/key"
	"github.com/dreamware/shardmgmt/op"
	"github.com/dreamware/shardmgmt/retry"
	"github.com/dreamware/shardmgmt/shardmap"
	"github.com/dreamware/shardmgmt/store"
)

// LocationDialer resolves a shard's Location to a real go-sql-driver DSN
// for the mapper's own LSM connections (distinct from connstr.Builder,
// which produces DDR connection strings handed back to application code —
// spec §4.K treats the two as separate concerns since the library's own
// LSM access and a caller's data connection may use different credentials).
type LocationDialer interface {
	DSN(loc shardmap.Location) string
}

// LookupOptions controls a routing lookup (spec §4.G).
type LookupOptions struct {
	// Validate requests an LSM-side validateMapping call confirming the
	// mapping is still current before returning it, at the cost of a round
	// trip to the shard on every lookup.
	Validate bool
}

// Mapper is the routing engine bound to one GSM. It is safe for concurrent
// use.
type Mapper struct {
	gsm     *store.Connection
	cache   *cache.Cache
	dialer  LocationDialer
	builder *connstr.Builder
	policy  retry.Policy
	log     *zap.Logger

	mu   sync.Mutex
	lsms map[uuid.UUID]*store.Connection // by shard id
}

// New builds a Mapper. log defaults to a no-op logger if nil, matching the
// library's default-quiet stance (spec ambient logging section).
func New(gsm *store.Connection, dialer LocationDialer, builder *connstr.Builder, policy retry.Policy, log *zap.Logger) *Mapper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mapper{gsm: gsm, cache: cache.New(), dialer: dialer, builder: builder, policy: policy, log: log, lsms: make(map[uuid.UUID]*store.Connection)}
}

// Cache exposes the mapper's routing cache, e.g. for the recovery manager
// to evict entries after reconciling drift.
func (m *Mapper) Cache() *cache.Cache { return m.cache }

func (m *Mapper) lsmFor(ctx context.Context, shard shardmap.Shard) (*store.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conn, ok := m.lsms[shard.ID]; ok {
		return conn, nil
	}
	dsn := m.dialer.DSN(shard.Location)
	conn, err := store.Open(ctx, store.KindLSM, dsn)
	if err != nil {
		return nil, fmt.Errorf("mapper: open LSM for shard %s: %w", shard.ID, err)
	}
	m.lsms[shard.ID] = conn
	return conn, nil
}

func (m *Mapper) runWithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, m.policy, fn)
}

// CreateShardMap implements AddShardMapGlobal's client entry point (spec
// §4.F/§4.G).
func (m *Mapper) CreateShardMap(ctx context.Context, name string, kind shardmap.Kind, keyKind key.Kind) (shardmap.ShardMap, error) {
	sm := shardmap.ShardMap{ID: uuid.New(), Name: name, Kind: kind, KeyKind: keyKind}
	row := codec.FromShardMap(sm)
	err := m.runWithRetry(ctx, func(ctx context.Context) error {
		return op.NewAddShardMapOperation(m.gsm.Querier(), toStoreShardMapRow(row)).Run(ctx)
	})
	if err != nil {
		return shardmap.ShardMap{}, err
	}
	m.log.Info("created shard map", zap.String("name", name), zap.Stringer("id", sm.ID))
	m.cache.PutShardMap(sm)
	return sm, nil
}

// GetShardMap implements FindShardMapByNameGlobal's client entry point,
// probing the cache before a GSM round trip.
func (m *Mapper) GetShardMap(ctx context.Context, name string) (shardmap.ShardMap, error) {
	if sm, ok := m.cache.ShardMapByName(name); ok {
		return sm, nil
	}
	var row store.GSMShardMapRow
	err := m.runWithRetry(ctx, func(ctx context.Context) error {
		var code store.ResultCode
		var err error
		row, code, err = store.FindShardMapByName(ctx, m.gsm.Querier(), name)
		if err != nil {
			return err
		}
		if !code.Ok() {
			return store.NewManagementError(code, name, "")
		}
		return nil
	})
	if err != nil {
		return shardmap.ShardMap{}, err
	}
	sm := codec.ShardMapRow{ID: row.ID, Name: row.Name, Kind: row.Kind, KeyKind: row.KeyKind}.ToEntity()
	m.cache.PutShardMap(sm)
	return sm, nil
}

// ListShardMaps implements GetShardMapsGlobal, used by the eager load
// policy (spec §4.I) to prime the cache at manager construction.
func (m *Mapper) ListShardMaps(ctx context.Context) ([]shardmap.ShardMap, error) {
	var rows []store.GSMShardMapRow
	err := m.runWithRetry(ctx, func(ctx context.Context) error {
		var err error
		rows, err = store.ListShardMaps(ctx, m.gsm.Querier())
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]shardmap.ShardMap, 0, len(rows))
	for _, r := range rows {
		sm := codec.ShardMapRow{ID: r.ID, Name: r.Name, Kind: r.Kind, KeyKind: r.KeyKind}.ToEntity()
		m.cache.PutShardMap(sm)
		out = append(out, sm)
	}
	return out, nil
}

// DeleteShardMap implements RemoveShardMapGlobal.
func (m *Mapper) DeleteShardMap(ctx context.Context, sm shardmap.ShardMap) error {
	err := m.runWithRetry(ctx, func(ctx context.Context) error {
		return op.NewRemoveShardMapOperation(m.gsm.Querier(), sm.Name, sm.ID).Run(ctx)
	})
	if err != nil {
		return err
	}
	m.cache.EvictShardMapByName(sm.Name)
	return nil
}

// AddShard implements AddShardGlobal, also mirroring the shard map
// definition and the new row onto the shard's own LSM (spec §4.B/§4.C).
func (m *Mapper) AddShard(ctx context.Context, sm shardmap.ShardMap, loc shardmap.Location) (shardmap.Shard, error) {
	shard := shardmap.Shard{ID: uuid.New(), ShardMapID: sm.ID, Location: loc, Version: uuid.New(), Status: shardmap.StatusOnline}
	lsmConn, err := m.lsmFor(ctx, shard)
	if err != nil {
		return shardmap.Shard{}, err
	}
	row := codec.FromShard(shard)
	smRow := codec.FromShardMap(sm)
	err = m.runWithRetry(ctx, func(ctx context.Context) error {
		return op.NewAddShardOperation(m.gsm.Querier(), lsmConn.Querier(), toStoreShardRow(row), toStoreShardMapRow(smRow)).Run(ctx)
	})
	if err != nil {
		return shardmap.Shard{}, err
	}
	m.cache.PutShard(shard)
	return shard, nil
}

// RemoveShard implements RemoveShardGlobal.
func (m *Mapper) RemoveShard(ctx context.Context, shard shardmap.Shard) error {
	err := m.runWithRetry(ctx, func(ctx context.Context) error {
		return op.NewRemoveShardOperation(m.gsm.Querier(), shard.ID).Run(ctx)
	})
	if err != nil {
		return err
	}
	m.cache.EvictShard(shard.ID)
	return nil
}

// GetShards implements GetShardsGlobal: the GetShards() collaborator
// contract a fan-out executor calls through shardmap.ShardMap, exposed
// here without the library implementing that executor itself (spec
// Non-goals).
func (m *Mapper) GetShards(ctx context.Context, sm shardmap.ShardMap) ([]shardmap.Shard, error) {
	var rows []store.GSMShardRow
	err := m.runWithRetry(ctx, func(ctx context.Context) error {
		var err error
		rows, err = store.ListShardsByShardMap(ctx, m.gsm.Querier(), sm.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]shardmap.Shard, 0, len(rows))
	for _, r := range rows {
		s := toEntityShardRow(r)
		m.cache.PutShard(s)
		out = append(out, s)
	}
	return out, nil
}

// GetShard returns the shard identified by id, checking the cache first.
func (m *Mapper) GetShard(ctx context.Context, id uuid.UUID) (shardmap.Shard, error) {
	if s, ok := m.cache.ShardByID(id); ok {
		return s, nil
	}
	var row store.GSMShardRow
	err := m.runWithRetry(ctx, func(ctx context.Context) error {
		var code store.ResultCode
		var err error
		row, code, err = store.FindShardByID(ctx, m.gsm.Querier(), id)
		if err != nil {
			return err
		}
		if !code.Ok() {
			return store.NewManagementError(code, "", "")
		}
		return nil
	})
	if err != nil {
		return shardmap.Shard{}, err
	}
	s := toEntityShardRow(row)
	m.cache.PutShard(s)
	return s, nil
}

func toStoreShardMapRow(r codec.ShardMapRow) store.GSMShardMapRow {
	return store.GSMShardMapRow{ID: r.ID, Name: r.Name, Kind: r.Kind, KeyKind: r.KeyKind}
}

func toStoreShardRow(r codec.ShardRow) store.GSMShardRow {
	return store.GSMShardRow{
		ID: r.ID, ShardMapID: r.ShardMapID, Version: r.Version,
		Protocol: r.Protocol, ServerName: r.ServerName, Port: r.Port, DatabaseName: r.DatabaseName, Status: r.Status,
	}
}

func toEntityShardRow(r store.GSMShardRow) shardmap.Shard {
	return codec.ShardRow{
		ID: r.ID, ShardMapID: r.ShardMapID, Version: r.Version,
		Protocol: r.Protocol, ServerName: r.ServerName, Port: r.Port, DatabaseName: r.DatabaseName, Status: r.Status,
	}.ToEntity()
}
