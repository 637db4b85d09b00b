// Package codec implements the structured request/response payloads each
// stored operation consumes and produces (spec §4.D): encoding shard map,
// shard, and mapping rows to and from SQL parameters, preserving field
// identity and ordering explicitly rather than through reflection.
package codec

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dreamware/shardmgmt/key"
	"github.com/dreamware/shardmgmt/shardmap"
)

// BulkStepKind identifies the action a BulkStep performs within a single
// bulk operation (spec §4.D).
type BulkStepKind int

const (
	BulkStepRemove BulkStepKind = 1
	BulkStepUpdate BulkStepKind = 2
	BulkStepAdd    BulkStepKind = 3
)

// BulkStep is one step of a multi-step bulk operation (e.g. a split is one
// remove + two adds), run in declared order under a single transaction.
type BulkStep struct {
	ID      uuid.UUID
	Kind    BulkStepKind
	Mapping shardmap.Mapping
	// Validate requests the GSM-side overlap/uniqueness check for this
	// step's Add (RangeAlreadyMapped/PointAlreadyMapped) or remove-replace.
	Validate bool
}

// ShardMapRow is the ShardMap{Id,Name,Kind,KeyKind} payload of spec §4.D.
type ShardMapRow struct {
	ID      uuid.UUID
	Name    string
	Kind    int
	KeyKind int
}

// ToEntity converts a decoded row into the shardmap.ShardMap domain type.
func (r ShardMapRow) ToEntity() shardmap.ShardMap {
	return shardmap.ShardMap{ID: r.ID, Name: r.Name, Kind: shardmap.Kind(r.Kind), KeyKind: key.Kind(r.KeyKind)}
}

// FromShardMap converts a domain ShardMap into its wire row.
func FromShardMap(m shardmap.ShardMap) ShardMapRow {
	return ShardMapRow{ID: m.ID, Name: m.Name, Kind: int(m.Kind), KeyKind: int(m.KeyKind)}
}

// ShardRow is the Shard{Id,Version,Location{...},Status} payload.
type ShardRow struct {
	ID           uuid.UUID
	ShardMapID   uuid.UUID
	Version      uuid.UUID
	Protocol     string
	ServerName   string
	Port         int
	DatabaseName string
	Status       int
}

func (r ShardRow) ToEntity() shardmap.Shard {
	return shardmap.Shard{
		ID:         r.ID,
		ShardMapID: r.ShardMapID,
		Version:    r.Version,
		Status:     shardmap.Status(r.Status),
		Location: shardmap.Location{
			Protocol:     r.Protocol,
			ServerName:   r.ServerName,
			Port:         r.Port,
			DatabaseName: r.DatabaseName,
		},
	}
}

func FromShard(s shardmap.Shard) ShardRow {
	return ShardRow{
		ID: s.ID, ShardMapID: s.ShardMapID, Version: s.Version, Status: int(s.Status),
		Protocol: s.Location.Protocol, ServerName: s.Location.ServerName,
		Port: s.Location.Port, DatabaseName: s.Location.DatabaseName,
	}
}

// MappingRow is the Mapping{Id,ShardId,MinValue,MaxValue|null,Status,LockOwnerId}
// payload. MaxValueIsMax distinguishes a finite empty-bytes MaxValue from
// the +infinity sentinel, since both encode to zero bytes (spec §4.A).
type MappingRow struct {
	ID            uuid.UUID
	ShardMapID    uuid.UUID
	ShardID       uuid.UUID
	MinValue      []byte
	MaxValue      []byte
	MaxValueIsMax bool
	IsRangeMap    bool
	Status        int
	LockOwnerID   uuid.UUID
}

// ToEntity reconstructs a domain Mapping, re-typing the raw MinValue/MaxValue
// bytes as keys of keyKind.
func (r MappingRow) ToEntity(keyKind key.Kind) (shardmap.Mapping, error) {
	low, err := decodeKey(keyKind, r.MinValue, false)
	if err != nil {
		return shardmap.Mapping{}, err
	}
	m := shardmap.Mapping{
		ID: r.ID, ShardMapID: r.ShardMapID, ShardID: r.ShardID,
		Status: shardmap.Status(r.Status), LockOwnerID: r.LockOwnerID,
		IsRangeMap: r.IsRangeMap,
	}
	if r.IsRangeMap {
		high, err := decodeKey(keyKind, r.MaxValue, r.MaxValueIsMax)
		if err != nil {
			return shardmap.Mapping{}, err
		}
		rng, err := key.NewRange(low, high)
		if err != nil {
			return shardmap.Mapping{}, err
		}
		m.Range = rng
	} else {
		m.Key = low
	}
	return m, nil
}

// FromMapping converts a domain Mapping into its wire row.
func FromMapping(m shardmap.Mapping) MappingRow {
	row := MappingRow{
		ID: m.ID, ShardMapID: m.ShardMapID, ShardID: m.ShardID,
		Status: int(m.Status), LockOwnerID: m.LockOwnerID, IsRangeMap: m.IsRangeMap,
	}
	if m.IsRangeMap {
		row.MinValue = m.Range.Low.Bytes()
		row.MaxValueIsMax = m.Range.High.IsMax()
		row.MaxValue = m.Range.High.Bytes()
	} else {
		row.MinValue = m.Key.Bytes()
	}
	return row
}

func decodeKey(kind key.Kind, raw []byte, isMax bool) (key.ShardKey, error) {
	if isMax {
		return key.MaxKey(kind), nil
	}
	switch kind {
	case key.KindInt32:
		if len(raw) != 4 {
			return key.ShardKey{}, fmt.Errorf("codec: int32 key must be 4 bytes, got %d", len(raw))
		}
	case key.KindInt64, key.KindDateTime, key.KindDateTimeOffset, key.KindTimeSpan:
		if len(raw) != 8 {
			return key.ShardKey{}, fmt.Errorf("codec: %s key must be 8 bytes, got %d", kind, len(raw))
		}
	case key.KindGUID:
		if len(raw) != 16 {
			return key.ShardKey{}, fmt.Errorf("codec: guid key must be 16 bytes, got %d", len(raw))
		}
	}
	return key.FromCanonicalBytes(kind, raw), nil
}

// nullUUID converts a nullable UUID column (sql.NullString of a UUID
// string) into a zero UUID when NULL, matching LockOwnerId/OperationId
// columns that carry the zero UUID to mean "unset".
func nullUUID(ns sql.NullString) (uuid.UUID, error) {
	if !ns.Valid || ns.String == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(ns.String)
}
