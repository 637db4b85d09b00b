package op

import (
	"context"

	"github.com/google/uuid"

	"github.com/dreamware/shardmgmt/store"
)

// mappingMutationPayload carries the GSM/LSM handles and row data shared
// by AddMapping, RemoveMapping and UpdateMapping (which also implements
// LockOrUnlockMapping: a lock or unlock is just a status/owner change with
// the owner-match check already performed by the caller, spec §4.G).
type mappingMutationPayload struct {
	gsm        store.Querier
	lsmSource  store.Querier
	row        store.GSMMappingRow
	previous   store.GSMMappingRow // for undo of remove/update
	shardMapID uuid.UUID
}

func persistState(ctx context.Context, so *StoreOperation, gsm store.Querier) error {
	return UpdateLogEntryUndoStartState(ctx, gsm, so.OpID, so.UndoStartState)
}

// NewAddMappingOperation builds the StoreOperation for AddShardMappingGlobal
// + AddShardMappingLocal (spec §4.E). The overlap/uniqueness check
// (RangeAlreadyMapped/PointAlreadyMapped) runs in DoGlobalPreLocal just
// before the pending insert, on the same Querier. When that Querier is a
// *sql.DB (as the mapper passes), the check and the insert are separate
// autocommitted statements, so they do not exclude a conflicting mapping
// written by another caller in between.
func NewAddMappingOperation(gsm, lsmSource store.Querier, row store.GSMMappingRow) *StoreOperation {
	p := &mappingMutationPayload{gsm: gsm, lsmSource: lsmSource, row: row, shardMapID: row.ShardMapID}
	return New(StepDescriptor{
		Code:                CodeAddMapping,
		DoGlobalPreLocal:    addMappingGlobalPreDo,
		DoLocalSource:       addMappingLocalDo,
		DoGlobalPostLocal:   addMappingGlobalPostDo,
		UndoLocalSource:     undoAddMappingLocal,
		UndoGlobalPostLocal: undoAddMappingGlobal,
	}, p)
}

func addMappingGlobalPreDo(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*mappingMutationPayload)
	code, err := store.CheckMappingOverlap(ctx, p.gsm, p.shardMapID, p.row.MinValue, p.row.MaxValue, p.row.MaxValueIsMax, p.row.IsRangeMap, p.row.ID)
	if err != nil {
		return err
	}
	if !code.Ok() {
		return store.NewManagementError(code, "", "")
	}
	if err := store.InsertMapping(ctx, p.gsm, p.row, so.OpID); err != nil {
		return err
	}
	return InsertLogEntry(ctx, p.gsm, so.OpID, CodeAddMapping, nil, so.UndoStartState)
}

func addMappingLocalDo(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*mappingMutationPayload)
	if err := store.UpsertMappingLocal(ctx, p.lsmSource, p.row, so.OpID); err != nil {
		return err
	}
	return persistState(ctx, so, p.gsm)
}

func addMappingGlobalPostDo(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*mappingMutationPayload)
	if err := store.PromoteMapping(ctx, p.gsm, so.OpID); err != nil {
		return err
	}
	return DeleteLogEntry(ctx, p.gsm, so.OpID)
}

func undoAddMappingLocal(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*mappingMutationPayload)
	return store.DeleteMappingLocal(ctx, p.lsmSource, p.row.ID)
}

func undoAddMappingGlobal(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*mappingMutationPayload)
	if err := store.RemovePendingMapping(ctx, p.gsm, so.OpID); err != nil {
		return err
	}
	return DeleteLogEntry(ctx, p.gsm, so.OpID)
}

// NewRemoveMappingOperation builds the StoreOperation for
// RemoveShardMappingGlobal + RemoveShardMappingLocal. previous is the
// mapping's current row, retained so Undo can restore it verbatim if a
// later phase fails.
func NewRemoveMappingOperation(gsm, lsmSource store.Querier, previous store.GSMMappingRow) *StoreOperation {
	p := &mappingMutationPayload{gsm: gsm, lsmSource: lsmSource, previous: previous, shardMapID: previous.ShardMapID}
	return New(StepDescriptor{
		Code:                CodeRemoveMapping,
		DoGlobalPreLocal:    removeMappingGlobalPreDo,
		DoLocalSource:       removeMappingLocalDo,
		DoGlobalPostLocal:   removeMappingGlobalPostDo,
		UndoLocalSource:     undoRemoveMappingLocal,
		UndoGlobalPostLocal: undoRemoveMappingGlobal,
	}, p)
}

func removeMappingGlobalPreDo(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*mappingMutationPayload)
	if err := store.MarkMappingPendingRemoval(ctx, p.gsm, p.previous.ID, so.OpID); err != nil {
		return err
	}
	return InsertLogEntry(ctx, p.gsm, so.OpID, CodeRemoveMapping, nil, so.UndoStartState)
}

func removeMappingLocalDo(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*mappingMutationPayload)
	if err := store.DeleteMappingLocal(ctx, p.lsmSource, p.previous.ID); err != nil {
		return err
	}
	return persistState(ctx, so, p.gsm)
}

func removeMappingGlobalPostDo(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*mappingMutationPayload)
	if err := store.DeleteMappingForOp(ctx, p.gsm, so.OpID); err != nil {
		return err
	}
	return DeleteLogEntry(ctx, p.gsm, so.OpID)
}

func undoRemoveMappingLocal(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*mappingMutationPayload)
	return store.UpsertMappingLocal(ctx, p.lsmSource, p.previous, so.OpID)
}

func undoRemoveMappingGlobal(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*mappingMutationPayload)
	if err := store.ClearPendingRemoval(ctx, p.gsm, so.OpID); err != nil {
		return err
	}
	return DeleteLogEntry(ctx, p.gsm, so.OpID)
}

// NewUpdateMappingOperation builds the StoreOperation for
// UpdateShardMappingGlobal + the matching local update, covering plain
// status changes and lock/unlock alike (spec §4.E/§4.G): both are a
// Status/LockOwnerId rewrite with no shard relocation. row is the desired
// new state; previous is the row being replaced, kept for undo.
func NewUpdateMappingOperation(gsm, lsmSource store.Querier, previous, row store.GSMMappingRow) *StoreOperation {
	p := &mappingMutationPayload{gsm: gsm, lsmSource: lsmSource, row: row, previous: previous, shardMapID: row.ShardMapID}
	return New(StepDescriptor{
		Code:                CodeUpdateMapping,
		DoGlobalPreLocal:    updateMappingGlobalDo,
		DoLocalSource:       updateMappingLocalDo,
		DoGlobalPostLocal:   noop,
		UndoGlobalPostLocal: undoUpdateMappingGlobal,
	}, p)
}

func updateMappingGlobalDo(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*mappingMutationPayload)
	return store.UpdateMappingStatusAndOwner(ctx, p.gsm, p.row.ID, p.row.Status, p.row.LockOwnerID)
}

func updateMappingLocalDo(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*mappingMutationPayload)
	return store.UpsertMappingLocal(ctx, p.lsmSource, p.row, so.OpID)
}

func undoUpdateMappingGlobal(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*mappingMutationPayload)
	return store.UpdateMappingStatusAndOwner(ctx, p.gsm, p.previous.ID, p.previous.Status, p.previous.LockOwnerID)
}

// NewLockOrUnlockMappingOperation is an alias for NewUpdateMappingOperation
// under the CodeLockOrUnlockMapping label, since the op log's
// OperationCode column distinguishes a lock/unlock from an ordinary status
// update for diagnostic purposes even though the steps are identical.
func NewLockOrUnlockMappingOperation(gsm, lsmSource store.Querier, previous, row store.GSMMappingRow) *StoreOperation {
	so := NewUpdateMappingOperation(gsm, lsmSource, previous, row)
	so.Descriptor.Code = CodeLockOrUnlockMapping
	return so
}
