// Package shardmap defines the core entities of the shard map model: shard
// maps, shards, mappings, and lock ownership. These types are pure data —
// validation and persistence live in the op, store, and mapper packages,
// which compose them into the GSM/LSM protocol.
package shardmap

import (
	"github.com/google/uuid"

	"github.com/dreamware/shardmgmt/key"
)

// ForceUnlockOwnerID is the distinguished lock-owner id that bypasses the
// normal lock-owner match check, used by administrative "force unlock"
// operations.
var ForceUnlockOwnerID = uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff")

// UnlockedOwnerID is the lock-owner id carried by a mapping with no lock
// held.
var UnlockedOwnerID = uuid.Nil

// Kind identifies the variety of a ShardMap: list maps hold point mappings,
// range maps hold range mappings, default maps hold neither and exist only
// to enumerate shards for fan-out.
type Kind int

const (
	KindList Kind = iota
	KindRange
	KindDefault
)

// Status is the online/offline state of a mapping. Offline mappings are
// invisible to routing lookups (spec invariant: never returned by
// findMappingForKey).
type Status int

const (
	StatusOnline Status = iota
	StatusOffline
)

// ShardMap is a named collection of mappings from keys (or ranges) of one
// Kind to shards. Names are unique within a given GSM.
type ShardMap struct {
	ID      uuid.UUID
	Name    string
	Kind    Kind
	KeyKind key.Kind
}

// Location identifies a physical database: protocol, server, port, and
// database name. Two shards within the same shard map must have distinct
// locations.
type Location struct {
	Protocol     string
	ServerName   string
	Port         int
	DatabaseName string
}

// String renders the location for error messages and log lines as
// "server:port/database", or "server/database" when Port is 0.
func (l Location) String() string {
	if l.Port != 0 {
		return l.ServerName + ":" + itoa(l.Port) + "/" + l.DatabaseName
	}
	return l.ServerName + "/" + l.DatabaseName
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Shard is a physical database reached at Location, belonging to exactly
// one ShardMap. Version is the value stored when the shard was added; no
// operation in this library advances it afterwards.
type Shard struct {
	ID         uuid.UUID
	ShardMapID uuid.UUID
	Location   Location
	Version    uuid.UUID
	Status     Status
}

// Mapping is a point or range mapping to a shard. Exactly one of Key or
// Range is meaningful, depending on the owning ShardMap's Kind; the other
// is the zero value. IsRangeMap reports which.
type Mapping struct {
	ID          uuid.UUID
	ShardMapID  uuid.UUID
	ShardID     uuid.UUID
	Key         key.ShardKey
	Range       key.ShardRange
	IsRangeMap  bool
	Status      Status
	LockOwnerID uuid.UUID
}

// Locked reports whether the mapping currently has a lock owner.
func (m Mapping) Locked() bool { return m.LockOwnerID != UnlockedOwnerID }

// SchemaInfo is an opaque, per-shard-map catalog of sharded vs. reference
// tables consumed by external data-movement tooling. The core never parses
// Raw; it only stores and returns it verbatim.
type SchemaInfo struct {
	Name string
	Raw  []byte
}
