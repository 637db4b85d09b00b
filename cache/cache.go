// Package cache implements the in-process mapping cache that feeds
// data-dependent routing (spec §4.H): a map from (shardMapId, key) to
// mapping and from shard map name to ShardMap, with an overwrite-existing
// update policy and eviction on staleness errors.
package cache

import (
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/dreamware/shardmgmt/key"
	"github.com/dreamware/shardmgmt/shardmap"
)

// bucketKey is the composite (shardMapId, key) cache key. Keys hash to a
// uint64 via xxhash rather than concatenating into a string, avoiding an
// allocation on every lookup; entries that share a bucket are kept in a
// chain and told apart by their stored raw key (mappingEntry.rawKey below).
type bucketKey uint64

func hashMappingKey(shardMapID uuid.UUID, k []byte) bucketKey {
	h := xxhash.New()
	h.Write(shardMapID[:])
	h.Write(k)
	return bucketKey(h.Sum64())
}

type mappingEntry struct {
	shardMapID uuid.UUID
	rawKey     []byte
	mapping    shardmap.Mapping
}

// Cache is the mapper's routing cache. It has no size bound: the
// assumption is a bounded number of mappings per process (spec §4.H).
// Applications needing a bound can wrap a Cache of their own behind the
// same method set.
//
// Concurrency: reads take no lock beyond a brief RLock to copy the
// pointer; writes replace whole entries atomically under Lock (spec §5
// "readers need no lock; writers replace whole entries").
type Cache struct {
	mu        sync.RWMutex
	byKey     map[bucketKey][]*mappingEntry // collision chain per bucket
	byName    map[string]shardmap.ShardMap
	byShardID map[uuid.UUID]shardmap.Shard
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		byKey:     make(map[bucketKey][]*mappingEntry),
		byName:    make(map[string]shardmap.ShardMap),
		byShardID: make(map[uuid.UUID]shardmap.Shard),
	}
}

// PutShardMap stores sm under its name, superseding any previous entry
// (OverwriteExisting policy).
func (c *Cache) PutShardMap(sm shardmap.ShardMap) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byName[sm.Name] = sm
}

// ShardMapByName returns the cached ShardMap for name, if present.
func (c *Cache) ShardMapByName(name string) (shardmap.ShardMap, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sm, ok := c.byName[name]
	return sm, ok
}

// EvictShardMapByName removes a cached ShardMap, e.g. after a
// ShardMapDoesNotExist result (spec §4.H).
func (c *Cache) EvictShardMapByName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byName, name)
}

// PutShard stores sm's shard, superseding any previous entry for the same
// shard id.
func (c *Cache) PutShard(s shardmap.Shard) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byShardID[s.ID] = s
}

// ShardByID returns the cached shard for id, if present.
func (c *Cache) ShardByID(id uuid.UUID) (shardmap.Shard, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.byShardID[id]
	return s, ok
}

// EvictShard removes a cached shard, e.g. after a ShardDoesNotExist or
// ShardVersionMismatch result.
func (c *Cache) EvictShard(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byShardID, id)
}

// PutMapping stores m under (shardMapID, key), where key is m.Key for a
// point mapping or m.Range.Low for a range mapping — the lookup key a
// routing probe presents. Later writes supersede earlier ones for the
// same raw key (OverwriteExisting).
func (c *Cache) PutMapping(shardMapID uuid.UUID, lookupKey key.ShardKey, m shardmap.Mapping) {
	raw := lookupKey.Bytes()
	bk := hashMappingKey(shardMapID, raw)

	c.mu.Lock()
	defer c.mu.Unlock()
	chain := c.byKey[bk]
	for i, e := range chain {
		if e.shardMapID == shardMapID && bytesEqual(e.rawKey, raw) {
			chain[i] = &mappingEntry{shardMapID: shardMapID, rawKey: raw, mapping: m}
			return
		}
	}
	c.byKey[bk] = append(chain, &mappingEntry{shardMapID: shardMapID, rawKey: raw, mapping: m})
}

// LookupPoint returns the cached mapping whose point key equals k, if any.
func (c *Cache) LookupPoint(shardMapID uuid.UUID, k key.ShardKey) (shardmap.Mapping, bool) {
	return c.lookup(shardMapID, k.Bytes(), func(m shardmap.Mapping) bool {
		return !m.IsRangeMap && m.Key.Equal(k)
	})
}

// LookupRangeContaining returns the cached range mapping covering k, if
// any. Range mappings are keyed by their low bound, which a probe key does
// not hash to, so this scans every bucket of the cache for an entry of
// shardMapID whose range contains k; the cost grows with the number of
// cached mappings.
func (c *Cache) LookupRangeContaining(shardMapID uuid.UUID, k key.ShardKey) (shardmap.Mapping, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, chain := range c.byKey {
		for _, e := range chain {
			if e.shardMapID != shardMapID {
				continue
			}
			if e.mapping.IsRangeMap && e.mapping.Range.Contains(k) {
				return e.mapping, true
			}
		}
	}
	return shardmap.Mapping{}, false
}

func (c *Cache) lookup(shardMapID uuid.UUID, raw []byte, match func(shardmap.Mapping) bool) (shardmap.Mapping, bool) {
	bk := hashMappingKey(shardMapID, raw)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.byKey[bk] {
		if e.shardMapID == shardMapID && match(e.mapping) {
			return e.mapping, true
		}
	}
	return shardmap.Mapping{}, false
}

// EvictMapping removes every cached entry for the given mapping id,
// regardless of which bucket it hashed into, e.g. after a
// MappingDoesNotExist result or a failed validateMapping call (spec §4.E,
// §7).
func (c *Cache) EvictMapping(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for bk, chain := range c.byKey {
		kept := chain[:0]
		for _, e := range chain {
			if e.mapping.ID != id {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(c.byKey, bk)
		} else {
			c.byKey[bk] = kept
		}
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
