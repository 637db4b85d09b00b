// Package manager implements the top-level facade (spec §4.I):
// constructing a ShardMapManager against a GSM, choosing an eager or lazy
// load policy, and handing out typed shard map views and a recovery
// manager.
package manager

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/shardmgmt/connstr"
	"github.com/dreamware/shardmgmt/mapper"
	"github.com/dreamware/shardmgmt/retry"
	"github.com/dreamware/shardmgmt/schema"
	"github.com/dreamware/shardmgmt/store"
)

// LoadPolicy selects how a newly constructed ShardMapManager primes its
// cache (spec §4.I).
type LoadPolicy int

const (
	// LoadLazy defers every shard map/shard/mapping lookup to first use.
	LoadLazy LoadPolicy = iota
	// LoadEager preloads every shard map with its shards and mappings
	// concurrently at construction, trading startup latency for warm first
	// requests.
	LoadEager
)

// ShardMapManager is the library's top-level entry point: one per
// application process per GSM.
type ShardMapManager struct {
	conn   *store.Connection
	mapper *mapper.Mapper
	log    *zap.Logger
}

// Options configures a ShardMapManager beyond its connection string and
// load policy.
type Options struct {
	Dialer      mapper.LocationDialer
	Builder     *connstr.Builder
	RetryPolicy retry.Policy
	Logger      *zap.Logger
}

// CreateShardMapManager initializes a fresh GSM at gsmConnStr — running the
// schema upgrade pipeline to ClientVersion — and returns a manager bound to
// it (spec §4.C "CreateShardMapManager initializes a brand-new store").
func CreateShardMapManager(ctx context.Context, gsmConnStr string, opts Options) (*ShardMapManager, error) {
	conn, err := store.Open(ctx, store.KindGSM, gsmConnStr)
	if err != nil {
		return nil, err
	}
	if _, err := schema.Upgrade(ctx, conn.DB(), store.Version{}, schema.GlobalSteps); err != nil {
		conn.Close()
		return nil, fmt.Errorf("manager: initialize GSM schema: %w", err)
	}
	return newManager(ctx, conn, opts, LoadLazy)
}

// GetShardMapManager attaches to an existing GSM at gsmConnStr, upgrading
// its schema in place if it predates ClientVersion, and applies policy
// (spec §4.C "GetShardMapManager connects to an already-initialized
// store").
func GetShardMapManager(ctx context.Context, gsmConnStr string, policy LoadPolicy, opts Options) (*ShardMapManager, error) {
	conn, err := store.Open(ctx, store.KindGSM, gsmConnStr)
	if err != nil {
		return nil, err
	}
	current, err := schema.CurrentVersion(ctx, conn.DB(), schema.GlobalVersionTable)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("manager: read GSM schema version: %w", err)
	}
	if current.Less(schema.ClientVersion) {
		if _, err := schema.Upgrade(ctx, conn.DB(), current, schema.GlobalSteps); err != nil {
			conn.Close()
			return nil, fmt.Errorf("manager: upgrade GSM schema: %w", err)
		}
	}
	return newManager(ctx, conn, opts, policy)
}

func newManager(ctx context.Context, conn *store.Connection, opts Options, policy LoadPolicy) (*ShardMapManager, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	rp := opts.RetryPolicy
	if rp == (retry.Policy{}) {
		rp = retry.DefaultPolicy()
	}
	mp := mapper.New(conn, opts.Dialer, opts.Builder, rp, log)
	smm := &ShardMapManager{conn: conn, mapper: mp, log: log}
	if policy == LoadEager {
		if err := smm.preload(ctx); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return smm, nil
}

// preload implements the eager load policy: every shard map's shards and
// mappings are fetched concurrently via golang.org/x/sync/errgroup and
// the mappings are put into the mapper's cache, bounding
// the one-time startup cost to the slowest single shard map rather than
// their sum (spec §4.I).
func (smm *ShardMapManager) preload(ctx context.Context) error {
	shardMaps, err := smm.mapper.ListShardMaps(ctx)
	if err != nil {
		return fmt.Errorf("manager: eager load shard maps: %w", err)
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, sm := range shardMaps {
		sm := sm
		g.Go(func() error {
			if _, err := smm.mapper.GetShards(gctx, sm); err != nil {
				return err
			}
			mappings, err := smm.mapper.GetMappings(gctx, sm, nil, nil)
			if err != nil {
				return err
			}
			for _, mp := range mappings {
				lookupKey := mp.Key
				if mp.IsRangeMap {
					lookupKey = mp.Range.Low
				}
				smm.mapper.Cache().PutMapping(sm.ID, lookupKey, mp)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("manager: eager load shards and mappings: %w", err)
	}
	smm.log.Info("eager load complete", zap.Int("shard_maps", len(shardMaps)))
	return nil
}

// Mapper exposes the routing engine underlying this manager, for the
// typed shard map views in typed.go and for the recovery manager.
func (smm *ShardMapManager) Mapper() *mapper.Mapper { return smm.mapper }

// Recovery returns a RecoveryManager for reconciling GSM/LSM drift (spec
// §4.I).
func (smm *ShardMapManager) Recovery() *RecoveryManager { return NewRecoveryManager(smm) }

// Close releases the manager's GSM connection pool. LSM connections opened
// lazily by the mapper are not tracked here (spec §9 Open Questions: no
// connection-pool size bound for per-shard LSM connections either).
func (smm *ShardMapManager) Close() error { return smm.conn.Close() }
