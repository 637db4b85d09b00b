package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Local Shard Map tables created by schema.LocalSteps. Unlike the GSM
// tables, these have no Readable flag: a local store only ever reflects
// what the (single) owning shard map believes is true, so visibility is
// tracked only at the GSM (spec §4.C).
const (
	lsmShardMapsTable = "__ShardManagement_ShardMapsLocal"
	lsmShardsTable    = "__ShardManagement_ShardsLocal"
	lsmMappingsTable  = "__ShardManagement_ShardMappingsLocal"
)

// UpsertShardMapLocal implements AddShardMapLocal, called by DoLocalSource
// /DoLocalTarget to mirror a GSM-side shard map definition onto the LSM co-
// located with the shard itself.
func UpsertShardMapLocal(ctx context.Context, q Querier, id uuid.UUID, name string, kind, keyKind int) error {
	_, err := q.ExecContext(ctx, `INSERT INTO `+lsmShardMapsTable+` (ShardMapId, Name, Kind, KeyKind) VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE Name = VALUES(Name), Kind = VALUES(Kind), KeyKind = VALUES(KeyKind)`,
		id.String(), name, kind, keyKind)
	if err != nil {
		return fmt.Errorf("store: upsert local shard map %s: %w", id, err)
	}
	return nil
}

// UpsertShardLocal implements AddShardLocal.
func UpsertShardLocal(ctx context.Context, q Querier, r GSMShardRow) error {
	_, err := q.ExecContext(ctx, `INSERT INTO `+lsmShardsTable+` (ShardId, ShardMapId, Version, Protocol, ServerName, Port, DatabaseName, Status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE Version = VALUES(Version), Status = VALUES(Status)`,
		r.ID.String(), r.ShardMapID.String(), r.Version.String(), r.Protocol, r.ServerName, r.Port, r.DatabaseName, r.Status)
	if err != nil {
		return fmt.Errorf("store: upsert local shard %s: %w", r.ID, err)
	}
	return nil
}

// UpsertMappingLocal implements AddShardMappingLocal, stamping
// LastOperationId so the step is reentrant: a replay with the same opID
// and an unchanged row is a harmless overwrite.
func UpsertMappingLocal(ctx context.Context, q Querier, r GSMMappingRow, opID uuid.UUID) error {
	var maxValue any
	if r.MaxValue != nil {
		maxValue = r.MaxValue
	}
	_, err := q.ExecContext(ctx, `INSERT INTO `+lsmMappingsTable+`
		(MappingId, ShardId, ShardMapId, LastOperationId, MinValue, MaxValue, MaxValueIsMax, Status, LockOwnerId)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE ShardId = VALUES(ShardId), LastOperationId = VALUES(LastOperationId),
			Status = VALUES(Status), LockOwnerId = VALUES(LockOwnerId)`,
		r.ID.String(), r.ShardID.String(), r.ShardMapID.String(), opID.String(),
		r.MinValue, maxValue, r.MaxValueIsMax, r.Status, r.LockOwnerID.String())
	if err != nil {
		return fmt.Errorf("store: upsert local mapping %s: %w", r.ID, err)
	}
	return nil
}

// DeleteMappingLocal implements RemoveShardMappingLocal.
func DeleteMappingLocal(ctx context.Context, q Querier, id uuid.UUID) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM `+lsmMappingsTable+` WHERE MappingId = ?`, id.String()); err != nil {
		return fmt.Errorf("store: delete local mapping %s: %w", id, err)
	}
	return nil
}

// FindMappingLocalByOp reports whether a local mapping row already carries
// opID, letting a DoLocalSource/DoLocalTarget step recognize it already
// ran (spec §4.E reentrancy) without relying solely on upsert idempotence.
func FindMappingLocalByOp(ctx context.Context, q Querier, id, opID uuid.UUID) (bool, error) {
	var lastOp sql.NullString
	err := q.QueryRowContext(ctx, `SELECT LastOperationId FROM `+lsmMappingsTable+` WHERE MappingId = ?`, id.String()).Scan(&lastOp)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: find local mapping %s: %w", id, err)
	}
	return lastOp.Valid && lastOp.String == opID.String(), nil
}

// MappingExistsLocal reports whether a mapping row for id is still present
// on this shard's LSM, the validateMapping check a cache-hit lookup can
// request before trusting a cached mapping (spec §4.G LookupOptions).
func MappingExistsLocal(ctx context.Context, q Querier, id uuid.UUID) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+lsmMappingsTable+` WHERE MappingId = ?`, id.String()).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("store: check local mapping %s exists: %w", id, err)
	}
	return n > 0, nil
}

// ListMappingsLocal implements GetShardMappingsLocal, used by AttachShard
// to copy a shard's own view of its mappings up into the GSM (spec §4.I).
func ListMappingsLocal(ctx context.Context, q Querier, shardID uuid.UUID) ([]GSMMappingRow, error) {
	rows, err := q.QueryContext(ctx, `SELECT MappingId, ShardMapId, ShardId, MinValue, MaxValue, MaxValueIsMax, Status, LockOwnerId, LastOperationId
		FROM `+lsmMappingsTable+` WHERE ShardId = ?`, shardID.String())
	if err != nil {
		return nil, fmt.Errorf("store: list local mappings for shard %s: %w", shardID, err)
	}
	defer rows.Close()
	var out []GSMMappingRow
	for rows.Next() {
		var r GSMMappingRow
		var id, smID, sID string
		var lockOwner, lastOp sql.NullString
		var maxValue []byte
		if err := rows.Scan(&id, &smID, &sID, &r.MinValue, &maxValue, &r.MaxValueIsMax, &r.Status, &lockOwner, &lastOp); err != nil {
			return nil, fmt.Errorf("store: scan local mapping: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("store: parse local mapping id %q: %w", id, err)
		}
		if r.ShardMapID, err = uuid.Parse(smID); err != nil {
			return nil, fmt.Errorf("store: parse local mapping shard map id %q: %w", smID, err)
		}
		if r.ShardID, err = uuid.Parse(sID); err != nil {
			return nil, fmt.Errorf("store: parse local mapping shard id %q: %w", sID, err)
		}
		r.MaxValue = maxValue
		r.IsRangeMap = maxValue != nil || r.MaxValueIsMax
		if lockOwner.Valid && lockOwner.String != "" {
			if r.LockOwnerID, err = uuid.Parse(lockOwner.String); err != nil {
				return nil, fmt.Errorf("store: parse local lock owner %q: %w", lockOwner.String, err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// KillSessionsForMapping implements KillSessionsForShardMappingLocal (spec
// §4.B): kills every MySQL session whose currently running statement text
// (information_schema.processlist Info) contains the mapping id, so an
// offline/lock transition takes effect without waiting for those sessions
// to finish. It must run outside any transaction (spec §4.B), through a
// scope opened with store.TxNonTransactional.
func KillSessionsForMapping(ctx context.Context, q Querier, mappingID uuid.UUID) (ResultCode, error) {
	rows, err := q.QueryContext(ctx, `SELECT Id FROM information_schema.processlist WHERE Info LIKE ?`, "%"+mappingID.String()+"%")
	if err != nil {
		return CodeUnableToKillSessions, fmt.Errorf("store: list sessions for mapping %s: %w", mappingID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return CodeUnableToKillSessions, fmt.Errorf("store: scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return CodeUnableToKillSessions, err
	}

	for _, id := range ids {
		if _, err := q.ExecContext(ctx, fmt.Sprintf("KILL %d", id)); err != nil {
			return CodeUnableToKillSessions, fmt.Errorf("store: kill session %d: %w", id, err)
		}
	}
	return CodeSuccess, nil
}
