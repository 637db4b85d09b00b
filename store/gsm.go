package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// gsmShardMapsTable, gsmShardsTable and gsmMappingsTable name the Global
// Shard Map tables created by schema.GlobalSteps (spec §6). They live here,
// not in package schema, because every statement below both creates and
// reads rows in the same breath as a management operation, not as part of
// the upgrade pipeline.
const (
	gsmShardMapsTable = "__ShardManagement_ShardMapsGlobal"
	gsmShardsTable    = "__ShardManagement_ShardsGlobal"
	gsmMappingsTable  = "__ShardManagement_ShardMappingsGlobal"
)

// GSMShardMapRow is the raw row shape read back from gsmShardMapsTable.
type GSMShardMapRow struct {
	ID      uuid.UUID
	Name    string
	Kind    int
	KeyKind int
}

// FindShardMapByName implements FindShardMapByNameGlobal: a lookup that
// returns (zero, CodeShardMapDoesNotExist, nil) rather than an error when
// absent, since "not found" is an ordinary result, not a fault.
func FindShardMapByName(ctx context.Context, q Querier, name string) (GSMShardMapRow, ResultCode, error) {
	row := q.QueryRowContext(ctx, `SELECT ShardMapId, Name, Kind, KeyKind FROM `+gsmShardMapsTable+` WHERE Name = ?`, name)
	var r GSMShardMapRow
	var id string
	if err := row.Scan(&id, &r.Name, &r.Kind, &r.KeyKind); err != nil {
		if err == sql.ErrNoRows {
			return GSMShardMapRow{}, CodeShardMapDoesNotExist, nil
		}
		return GSMShardMapRow{}, 0, fmt.Errorf("store: find shard map %q: %w", name, err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return GSMShardMapRow{}, 0, fmt.Errorf("store: parse shard map id %q: %w", id, err)
	}
	r.ID = parsed
	return r, CodeSuccess, nil
}

// FindShardMapByID is FindShardMapByNameGlobal's id-keyed counterpart, used
// when a caller already holds the id (e.g. a cached ShardMap) and wants the
// current row rather than another round trip through the name index.
func FindShardMapByID(ctx context.Context, q Querier, id uuid.UUID) (GSMShardMapRow, ResultCode, error) {
	row := q.QueryRowContext(ctx, `SELECT ShardMapId, Name, Kind, KeyKind FROM `+gsmShardMapsTable+` WHERE ShardMapId = ?`, id.String())
	var r GSMShardMapRow
	var idStr string
	if err := row.Scan(&idStr, &r.Name, &r.Kind, &r.KeyKind); err != nil {
		if err == sql.ErrNoRows {
			return GSMShardMapRow{}, CodeShardMapDoesNotExist, nil
		}
		return GSMShardMapRow{}, 0, fmt.Errorf("store: find shard map %s: %w", id, err)
	}
	r.ID = id
	return r, CodeSuccess, nil
}

// ListShardMaps implements GetShardMapsGlobal, the bulk listing used for
// eager cache preload (spec §4.I).
func ListShardMaps(ctx context.Context, q Querier) ([]GSMShardMapRow, error) {
	rows, err := q.QueryContext(ctx, `SELECT ShardMapId, Name, Kind, KeyKind FROM `+gsmShardMapsTable)
	if err != nil {
		return nil, fmt.Errorf("store: list shard maps: %w", err)
	}
	defer rows.Close()
	var out []GSMShardMapRow
	for rows.Next() {
		var r GSMShardMapRow
		var id string
		if err := rows.Scan(&id, &r.Name, &r.Kind, &r.KeyKind); err != nil {
			return nil, fmt.Errorf("store: scan shard map: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("store: parse shard map id %q: %w", id, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AddShardMap implements AddShardMapGlobal: insert, rejecting a duplicate
// name with CodeShardMapAlreadyExists rather than surfacing the unique-key
// violation as a raw driver error.
func AddShardMap(ctx context.Context, q Querier, r GSMShardMapRow) (ResultCode, error) {
	_, code, err := FindShardMapByName(ctx, q, r.Name)
	if err != nil {
		return 0, err
	}
	if code == CodeSuccess {
		return CodeShardMapAlreadyExists, nil
	}
	_, err = q.ExecContext(ctx, `INSERT INTO `+gsmShardMapsTable+` (ShardMapId, Name, Kind, KeyKind) VALUES (?, ?, ?, ?)`,
		r.ID.String(), r.Name, r.Kind, r.KeyKind)
	if err != nil {
		return 0, fmt.Errorf("store: add shard map %q: %w", r.Name, err)
	}
	return CodeSuccess, nil
}

// RemoveShardMap implements RemoveShardMapGlobal, refusing to delete a
// shard map that still owns shards (CodeShardMapHasShards) so dangling
// mappings can never be orphaned.
func RemoveShardMap(ctx context.Context, q Querier, id uuid.UUID) (ResultCode, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+gsmShardsTable+` WHERE ShardMapId = ?`, id.String()).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count shards for shard map %s: %w", id, err)
	}
	if n > 0 {
		return CodeShardMapHasShards, nil
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM `+gsmShardMapsTable+` WHERE ShardMapId = ?`, id.String()); err != nil {
		return 0, fmt.Errorf("store: remove shard map %s: %w", id, err)
	}
	return CodeSuccess, nil
}

// GSMShardRow is the raw row shape read back from gsmShardsTable.
type GSMShardRow struct {
	ID           uuid.UUID
	ShardMapID   uuid.UUID
	Version      uuid.UUID
	Protocol     string
	ServerName   string
	Port         int
	DatabaseName string
	Status       int
}

// FindShardByID implements FindShardByIdGlobal.
func FindShardByID(ctx context.Context, q Querier, id uuid.UUID) (GSMShardRow, ResultCode, error) {
	row := q.QueryRowContext(ctx, `SELECT ShardId, ShardMapId, Version, Protocol, ServerName, Port, DatabaseName, Status
		FROM `+gsmShardsTable+` WHERE ShardId = ?`, id.String())
	r, err := scanShardRow(row)
	if err == sql.ErrNoRows {
		return GSMShardRow{}, CodeShardDoesNotExist, nil
	}
	if err != nil {
		return GSMShardRow{}, 0, fmt.Errorf("store: find shard %s: %w", id, err)
	}
	return r, CodeSuccess, nil
}

// ListShardsByShardMap implements GetShardsGlobal, the collaborator
// contract a fan-out executor calls through mapper.Mapper.GetShards.
func ListShardsByShardMap(ctx context.Context, q Querier, shardMapID uuid.UUID) ([]GSMShardRow, error) {
	rows, err := q.QueryContext(ctx, `SELECT ShardId, ShardMapId, Version, Protocol, ServerName, Port, DatabaseName, Status
		FROM `+gsmShardsTable+` WHERE ShardMapId = ?`, shardMapID.String())
	if err != nil {
		return nil, fmt.Errorf("store: list shards for shard map %s: %w", shardMapID, err)
	}
	defer rows.Close()
	var out []GSMShardRow
	for rows.Next() {
		r, err := scanShardRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanShardRow(row *sql.Row) (GSMShardRow, error) {
	var r GSMShardRow
	var id, smID, version string
	if err := row.Scan(&id, &smID, &version, &r.Protocol, &r.ServerName, &r.Port, &r.DatabaseName, &r.Status); err != nil {
		return GSMShardRow{}, err
	}
	return parseShardRow(r, id, smID, version)
}

func scanShardRows(rows *sql.Rows) (GSMShardRow, error) {
	var r GSMShardRow
	var id, smID, version string
	if err := rows.Scan(&id, &smID, &version, &r.Protocol, &r.ServerName, &r.Port, &r.DatabaseName, &r.Status); err != nil {
		return GSMShardRow{}, fmt.Errorf("store: scan shard: %w", err)
	}
	return parseShardRow(r, id, smID, version)
}

func parseShardRow(r GSMShardRow, id, smID, version string) (GSMShardRow, error) {
	var err error
	if r.ID, err = uuid.Parse(id); err != nil {
		return GSMShardRow{}, fmt.Errorf("store: parse shard id %q: %w", id, err)
	}
	if r.ShardMapID, err = uuid.Parse(smID); err != nil {
		return GSMShardRow{}, fmt.Errorf("store: parse shard map id %q: %w", smID, err)
	}
	if r.Version, err = uuid.Parse(version); err != nil {
		return GSMShardRow{}, fmt.Errorf("store: parse shard version %q: %w", version, err)
	}
	return r, nil
}

// AddShard implements AddShardGlobal, rejecting a second shard at the same
// (ShardMapId, Protocol, ServerName, DatabaseName, Port) with
// CodeShardLocationAlreadyExists.
func AddShard(ctx context.Context, q Querier, r GSMShardRow) (ResultCode, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+gsmShardsTable+` WHERE ShardMapId = ? AND Protocol = ? AND ServerName = ? AND DatabaseName = ? AND Port = ?`,
		r.ShardMapID.String(), r.Protocol, r.ServerName, r.DatabaseName, r.Port).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: check shard location: %w", err)
	}
	if n > 0 {
		return CodeShardLocationAlreadyExists, nil
	}
	_, err = q.ExecContext(ctx, `INSERT INTO `+gsmShardsTable+` (ShardId, ShardMapId, Version, Protocol, ServerName, Port, DatabaseName, Status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.ShardMapID.String(), r.Version.String(), r.Protocol, r.ServerName, r.Port, r.DatabaseName, r.Status)
	if err != nil {
		return 0, fmt.Errorf("store: add shard: %w", err)
	}
	return CodeSuccess, nil
}

// RemoveShard implements RemoveShardGlobal, refusing to delete a shard that
// still has mappings (CodeShardHasMappings).
func RemoveShard(ctx context.Context, q Querier, id uuid.UUID) (ResultCode, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+gsmMappingsTable+` WHERE ShardId = ? AND Readable = TRUE`, id.String()).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count mappings for shard %s: %w", id, err)
	}
	if n > 0 {
		return CodeShardHasMappings, nil
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM `+gsmShardsTable+` WHERE ShardId = ?`, id.String()); err != nil {
		return 0, fmt.Errorf("store: remove shard %s: %w", id, err)
	}
	return CodeSuccess, nil
}

// BumpShardVersion implements UpdateShardGlobal's version-advance side
// effect: it sets the shard's Version to newVersion. No operation in
// package op calls it, so mapping mutations leave Version unchanged.
func BumpShardVersion(ctx context.Context, q Querier, shardID, newVersion uuid.UUID) error {
	_, err := q.ExecContext(ctx, `UPDATE `+gsmShardsTable+` SET Version = ? WHERE ShardId = ?`, newVersion.String(), shardID.String())
	if err != nil {
		return fmt.Errorf("store: bump shard %s version: %w", shardID, err)
	}
	return nil
}

// GSMMappingRow mirrors codec.MappingRow but keeps the store package free
// of a codec import: callers translate at the boundary.
type GSMMappingRow struct {
	ID            uuid.UUID
	ShardMapID    uuid.UUID
	ShardID       uuid.UUID
	MinValue      []byte
	MaxValue      []byte
	MaxValueIsMax bool
	IsRangeMap    bool
	Status        int
	LockOwnerID   uuid.UUID
	OperationID   uuid.UUID // zero if none pending
}

// FindMappingByKey implements FindShardMappingByKeyGlobal: an exact point
// lookup, or for a range map the range whose [MinValue, MaxValue) contains
// key — expressed as a half-open predicate in SQL to push the range scan to
// the server rather than fetching every row (spec §4.A/§4.E).
func FindMappingByKey(ctx context.Context, q Querier, shardMapID uuid.UUID, key []byte) (GSMMappingRow, ResultCode, error) {
	row := q.QueryRowContext(ctx, `SELECT MappingId, ShardMapId, ShardId, MinValue, MaxValue, MaxValueIsMax, Status, LockOwnerId, OperationId
		FROM `+gsmMappingsTable+` WHERE ShardMapId = ? AND Readable = TRUE AND MinValue <= ?
		AND ((MaxValue IS NULL AND MaxValueIsMax = FALSE AND MinValue = ?)
			OR MaxValueIsMax = TRUE OR MaxValue > ?)
		ORDER BY MinValue DESC LIMIT 1`, shardMapID.String(), key, key, key)
	r, err := scanMappingRow(row)
	if err == sql.ErrNoRows {
		return GSMMappingRow{}, CodeMappingNotFoundForKey, nil
	}
	if err != nil {
		return GSMMappingRow{}, 0, fmt.Errorf("store: find mapping by key: %w", err)
	}
	return r, CodeSuccess, nil
}

// FindMappingByID implements FindShardMappingByIdGlobal.
func FindMappingByID(ctx context.Context, q Querier, id uuid.UUID) (GSMMappingRow, ResultCode, error) {
	row := q.QueryRowContext(ctx, `SELECT MappingId, ShardMapId, ShardId, MinValue, MaxValue, MaxValueIsMax, Status, LockOwnerId, OperationId
		FROM `+gsmMappingsTable+` WHERE MappingId = ? AND Readable = TRUE`, id.String())
	r, err := scanMappingRow(row)
	if err == sql.ErrNoRows {
		return GSMMappingRow{}, CodeMappingDoesNotExist, nil
	}
	if err != nil {
		return GSMMappingRow{}, 0, fmt.Errorf("store: find mapping %s: %w", id, err)
	}
	return r, CodeSuccess, nil
}

// ListMappings implements GetShardMappingsGlobal with the optional range
// and shard filters spec §4.G names.
func ListMappings(ctx context.Context, q Querier, shardMapID uuid.UUID, rangeLow, rangeHigh []byte, hasRange bool, shardID uuid.UUID, hasShard bool) ([]GSMMappingRow, error) {
	query := `SELECT MappingId, ShardMapId, ShardId, MinValue, MaxValue, MaxValueIsMax, Status, LockOwnerId, OperationId
		FROM ` + gsmMappingsTable + ` WHERE ShardMapId = ? AND Readable = TRUE`
	args := []any{shardMapID.String()}
	if hasRange {
		query += ` AND MinValue < ? AND (MaxValueIsMax = TRUE OR MaxValue IS NULL OR MaxValue > ?)`
		args = append(args, rangeHigh, rangeLow)
	}
	if hasShard {
		query += ` AND ShardId = ?`
		args = append(args, shardID.String())
	}
	query += ` ORDER BY MinValue ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list mappings: %w", err)
	}
	defer rows.Close()
	var out []GSMMappingRow
	for rows.Next() {
		r, err := scanMappingRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanMappingRow(row *sql.Row) (GSMMappingRow, error) {
	var r GSMMappingRow
	var id, smID, shardID string
	var lockOwner, opID sql.NullString
	var maxValue []byte
	if err := row.Scan(&id, &smID, &shardID, &r.MinValue, &maxValue, &r.MaxValueIsMax, &r.Status, &lockOwner, &opID); err != nil {
		return GSMMappingRow{}, err
	}
	return parseMappingRow(r, id, smID, shardID, maxValue, lockOwner, opID)
}

func scanMappingRows(rows *sql.Rows) (GSMMappingRow, error) {
	var r GSMMappingRow
	var id, smID, shardID string
	var lockOwner, opID sql.NullString
	var maxValue []byte
	if err := rows.Scan(&id, &smID, &shardID, &r.MinValue, &maxValue, &r.MaxValueIsMax, &r.Status, &lockOwner, &opID); err != nil {
		return GSMMappingRow{}, fmt.Errorf("store: scan mapping: %w", err)
	}
	return parseMappingRow(r, id, smID, shardID, maxValue, lockOwner, opID)
}

func parseMappingRow(r GSMMappingRow, id, smID, shardID string, maxValue []byte, lockOwner, opID sql.NullString) (GSMMappingRow, error) {
	var err error
	if r.ID, err = uuid.Parse(id); err != nil {
		return GSMMappingRow{}, fmt.Errorf("store: parse mapping id %q: %w", id, err)
	}
	if r.ShardMapID, err = uuid.Parse(smID); err != nil {
		return GSMMappingRow{}, fmt.Errorf("store: parse mapping shard map id %q: %w", smID, err)
	}
	if r.ShardID, err = uuid.Parse(shardID); err != nil {
		return GSMMappingRow{}, fmt.Errorf("store: parse mapping shard id %q: %w", shardID, err)
	}
	r.MaxValue = maxValue
	r.IsRangeMap = maxValue != nil || r.MaxValueIsMax
	if lockOwner.Valid && lockOwner.String != "" {
		if r.LockOwnerID, err = uuid.Parse(lockOwner.String); err != nil {
			return GSMMappingRow{}, fmt.Errorf("store: parse lock owner %q: %w", lockOwner.String, err)
		}
	}
	if opID.Valid && opID.String != "" {
		if r.OperationID, err = uuid.Parse(opID.String); err != nil {
			return GSMMappingRow{}, fmt.Errorf("store: parse operation id %q: %w", opID.String, err)
		}
	}
	return r, nil
}

// CheckMappingOverlap reports whether inserting [minValue, maxValue) (or a
// point at minValue when !isRange) into shardMapID would overlap an
// existing readable mapping, returning CodeRangeAlreadyMapped or
// CodePointAlreadyMapped as appropriate (spec §4.E AddMapping invariant:
// "never creates overlapping ranges or duplicate points").
func CheckMappingOverlap(ctx context.Context, q Querier, shardMapID uuid.UUID, minValue, maxValue []byte, maxValueIsMax, isRange bool, excludeID uuid.UUID) (ResultCode, error) {
	query := `SELECT COUNT(*) FROM ` + gsmMappingsTable + ` WHERE ShardMapId = ? AND Readable = TRUE AND MappingId != ?`
	args := []any{shardMapID.String(), excludeID.String()}
	if isRange {
		query += ` AND MinValue < ? AND (MaxValueIsMax = TRUE OR MaxValue IS NULL OR MaxValue > ?)`
		args = append(args, maxValue, minValue)
	} else {
		query += ` AND MinValue = ? AND MaxValue IS NULL AND MaxValueIsMax = FALSE`
		args = append(args, minValue)
	}
	var n int
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: check mapping overlap: %w", err)
	}
	if n == 0 {
		return CodeSuccess, nil
	}
	if isRange {
		return CodeRangeAlreadyMapped, nil
	}
	return CodePointAlreadyMapped, nil
}

// InsertMapping implements AddShardMappingGlobal's pre-local phase: insert
// the new row marked pending (Readable = FALSE, OperationId = opID) so it
// is invisible to routing until DoGlobalPostLocal promotes it (spec §4.E
// step 1).
func InsertMapping(ctx context.Context, q Querier, r GSMMappingRow, opID uuid.UUID) error {
	var maxValue any
	if r.MaxValue != nil {
		maxValue = r.MaxValue
	}
	_, err := q.ExecContext(ctx, `INSERT INTO `+gsmMappingsTable+`
		(MappingId, Readable, ShardId, ShardMapId, OperationId, MinValue, MaxValue, MaxValueIsMax, Status, LockOwnerId)
		VALUES (?, FALSE, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE OperationId = VALUES(OperationId)`,
		r.ID.String(), r.ShardID.String(), r.ShardMapID.String(), opID.String(),
		r.MinValue, maxValue, r.MaxValueIsMax, r.Status, r.LockOwnerID.String())
	if err != nil {
		return fmt.Errorf("store: insert mapping %s: %w", r.ID, err)
	}
	return nil
}

// PromoteMapping implements AddShardMappingGlobal's post-local phase: flip
// Readable on for rows carrying opID, making the new mapping visible to
// routing. Reentrant: a row already promoted (OperationId already cleared)
// is simply not matched by the WHERE clause, so a replay is a no-op.
func PromoteMapping(ctx context.Context, q Querier, opID uuid.UUID) error {
	_, err := q.ExecContext(ctx, `UPDATE `+gsmMappingsTable+` SET Readable = TRUE, OperationId = NULL WHERE OperationId = ?`, opID.String())
	if err != nil {
		return fmt.Errorf("store: promote mappings for op %s: %w", opID, err)
	}
	return nil
}

// RemovePendingMapping undoes InsertMapping: delete the row this
// operation inserted, provided it never got promoted. Used by
// UndoGlobalPostLocal when a later phase of AddMapping failed.
func RemovePendingMapping(ctx context.Context, q Querier, opID uuid.UUID) error {
	_, err := q.ExecContext(ctx, `DELETE FROM `+gsmMappingsTable+` WHERE OperationId = ? AND Readable = FALSE`, opID.String())
	if err != nil {
		return fmt.Errorf("store: remove pending mapping for op %s: %w", opID, err)
	}
	return nil
}

// MarkMappingPendingRemoval implements RemoveShardMappingGlobal's pre-local
// phase: stamp the row with opID without deleting it yet, so
// DoGlobalPostLocal's delete is the reentrant, idempotent commit point.
func MarkMappingPendingRemoval(ctx context.Context, q Querier, id, opID uuid.UUID) error {
	_, err := q.ExecContext(ctx, `UPDATE `+gsmMappingsTable+` SET OperationId = ? WHERE MappingId = ?`, opID.String(), id.String())
	if err != nil {
		return fmt.Errorf("store: mark mapping %s pending removal: %w", id, err)
	}
	return nil
}

// DeleteMappingForOp implements RemoveShardMappingGlobal's post-local
// phase: delete the row stamped with opID, scoped to Readable = TRUE so it
// only ever touches the old row(s) a remove/bulk operation marked pending
// removal, never the new pending-add rows a bulk operation stamped with
// the same opID via InsertMapping (Readable = FALSE). A replay after the
// row is already gone affects zero rows and returns nil.
func DeleteMappingForOp(ctx context.Context, q Querier, opID uuid.UUID) error {
	_, err := q.ExecContext(ctx, `DELETE FROM `+gsmMappingsTable+` WHERE OperationId = ? AND Readable = TRUE`, opID.String())
	if err != nil {
		return fmt.Errorf("store: delete mapping for op %s: %w", opID, err)
	}
	return nil
}

// ClearPendingRemoval undoes MarkMappingPendingRemoval, restoring the row
// to a non-pending state when a later phase of RemoveMapping fails.
func ClearPendingRemoval(ctx context.Context, q Querier, opID uuid.UUID) error {
	_, err := q.ExecContext(ctx, `UPDATE `+gsmMappingsTable+` SET OperationId = NULL WHERE OperationId = ?`, opID.String())
	if err != nil {
		return fmt.Errorf("store: clear pending removal for op %s: %w", opID, err)
	}
	return nil
}

// UpdateMappingStatusAndOwner implements UpdateShardMappingGlobal,
// covering plain status changes and lock/unlock (which also rewrites
// LockOwnerId).
func UpdateMappingStatusAndOwner(ctx context.Context, q Querier, id uuid.UUID, status int, lockOwnerID uuid.UUID) error {
	_, err := q.ExecContext(ctx, `UPDATE `+gsmMappingsTable+` SET Status = ?, LockOwnerId = ? WHERE MappingId = ?`,
		status, lockOwnerID.String(), id.String())
	if err != nil {
		return fmt.Errorf("store: update mapping %s: %w", id, err)
	}
	return nil
}

// DeleteMappingsForShard removes every GSM mapping row pointing at
// shardID, implementing DetachShard's effect of withdrawing a shard from
// routing entirely (spec §4.I).
func DeleteMappingsForShard(ctx context.Context, q Querier, shardID uuid.UUID) error {
	_, err := q.ExecContext(ctx, `DELETE FROM `+gsmMappingsTable+` WHERE ShardId = ?`, shardID.String())
	if err != nil {
		return fmt.Errorf("store: delete mappings for shard %s: %w", shardID, err)
	}
	return nil
}

const gsmSchemaInfoTable = "__ShardManagement_ShardedDatabaseSchemaInfosGlobal"

// FindSchemaInfoByName implements FindShardingSchemaInfoByNameGlobal,
// returning CodeSchemaInfoNameDoesNotExist if no catalog is registered
// under name.
func FindSchemaInfoByName(ctx context.Context, q Querier, name string) ([]byte, ResultCode, error) {
	var raw []byte
	err := q.QueryRowContext(ctx, `SELECT SchemaInfo FROM `+gsmSchemaInfoTable+` WHERE Name = ?`, name).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, CodeSchemaInfoNameDoesNotExist, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("store: find schema info %q: %w", name, err)
	}
	return raw, CodeSuccess, nil
}

// ListSchemaInfoNames implements GetShardingSchemaInfosGlobal.
func ListSchemaInfoNames(ctx context.Context, q Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT Name FROM `+gsmSchemaInfoTable+` ORDER BY Name`)
	if err != nil {
		return nil, fmt.Errorf("store: list schema info names: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("store: scan schema info name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// AddSchemaInfo implements AddShardingSchemaInfoGlobal, rejecting a name
// already registered with CodeSchemaInfoNameConflict.
func AddSchemaInfo(ctx context.Context, q Querier, name string, raw []byte) (ResultCode, error) {
	_, code, err := FindSchemaInfoByName(ctx, q, name)
	if err != nil {
		return 0, err
	}
	if code == CodeSuccess {
		return CodeSchemaInfoNameConflict, nil
	}
	if _, err := q.ExecContext(ctx, `INSERT INTO `+gsmSchemaInfoTable+` (Name, SchemaInfo) VALUES (?, ?)`, name, raw); err != nil {
		return 0, fmt.Errorf("store: add schema info %q: %w", name, err)
	}
	return CodeSuccess, nil
}

// UpdateSchemaInfo implements UpdateShardingSchemaInfoGlobal, replacing an
// existing catalog's bytes in place.
func UpdateSchemaInfo(ctx context.Context, q Querier, name string, raw []byte) (ResultCode, error) {
	res, err := q.ExecContext(ctx, `UPDATE `+gsmSchemaInfoTable+` SET SchemaInfo = ? WHERE Name = ?`, raw, name)
	if err != nil {
		return 0, fmt.Errorf("store: update schema info %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: update schema info %q: %w", name, err)
	}
	if n == 0 {
		return CodeSchemaInfoNameDoesNotExist, nil
	}
	return CodeSuccess, nil
}

// RemoveSchemaInfo implements RemoveShardingSchemaInfoGlobal.
func RemoveSchemaInfo(ctx context.Context, q Querier, name string) (ResultCode, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM `+gsmSchemaInfoTable+` WHERE Name = ?`, name)
	if err != nil {
		return 0, fmt.Errorf("store: remove schema info %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: remove schema info %q: %w", name, err)
	}
	if n == 0 {
		return CodeSchemaInfoNameDoesNotExist, nil
	}
	return CodeSuccess, nil
}
