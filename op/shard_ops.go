package op

import (
	"context"

	"github.com/google/uuid"

	"github.com/dreamware/shardmgmt/store"
)

// addShardPayload carries state for NewAddShardOperation: a GSM insert
// followed by mirroring the shard map definition and the shard row onto
// the new shard's own LSM, so the shard's LSM holds its own shard map and
// shard rows (spec §4.B/§4.C).
type addShardPayload struct {
	gsm      store.Querier
	lsm      store.Querier
	shard    store.GSMShardRow
	shardMap store.GSMShardMapRow
}

// NewAddShardOperation builds the StoreOperation for AddShardGlobal +
// AddShardMapLocal + AddShardLocal.
func NewAddShardOperation(gsm, lsm store.Querier, shard store.GSMShardRow, sm store.GSMShardMapRow) *StoreOperation {
	p := &addShardPayload{gsm: gsm, lsm: lsm, shard: shard, shardMap: sm}
	return New(StepDescriptor{
		Code:                CodeAddShard,
		DoGlobalPreLocal:    addShardGlobalDo,
		DoLocalSource:       addShardLocalDo,
		DoGlobalPostLocal:   noop,
		UndoLocalSource:     noop,
		UndoGlobalPostLocal: addShardGlobalUndo,
	}, p)
}

func addShardGlobalDo(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*addShardPayload)
	code, err := store.AddShard(ctx, p.gsm, p.shard)
	if err != nil {
		return err
	}
	if !code.Ok() {
		return store.NewManagementError(code, "", p.shard.ServerName)
	}
	return nil
}

func addShardLocalDo(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*addShardPayload)
	if err := store.UpsertShardMapLocal(ctx, p.lsm, p.shardMap.ID, p.shardMap.Name, p.shardMap.Kind, p.shardMap.KeyKind); err != nil {
		return err
	}
	return store.UpsertShardLocal(ctx, p.lsm, p.shard)
}

func addShardGlobalUndo(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*addShardPayload)
	_, err := store.RemoveShard(ctx, p.gsm, p.shard.ID)
	return err
}

// removeShardPayload carries state for NewRemoveShardOperation.
type removeShardPayload struct {
	gsm     store.Querier
	shardID uuid.UUID
}

// NewRemoveShardOperation builds the StoreOperation for RemoveShardGlobal.
// The local rows are left in place: a removed shard's LSM is typically
// decommissioned along with the database itself, so there is nothing
// productive for the GSM-driven protocol to clean up there.
func NewRemoveShardOperation(gsm store.Querier, shardID uuid.UUID) *StoreOperation {
	p := &removeShardPayload{gsm: gsm, shardID: shardID}
	return New(StepDescriptor{
		Code:                CodeRemoveShard,
		DoGlobalPreLocal:    noop,
		DoLocalSource:       noop,
		DoGlobalPostLocal:   removeShardDo,
		UndoGlobalPostLocal: noop,
	}, p)
}

func removeShardDo(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*removeShardPayload)
	code, err := store.RemoveShard(ctx, p.gsm, p.shardID)
	if err != nil {
		return err
	}
	if !code.Ok() {
		return store.NewManagementError(code, "", "")
	}
	return nil
}

// attachShardPayload carries state for NewAttachShardOperation, the
// recovery-manager operation that re-registers a shard's local mapping
// state into the GSM after it was detached or found to have drifted (spec
// §4.I).
type attachShardPayload struct {
	gsm      store.Querier
	lsm      store.Querier
	shard    store.GSMShardRow
	shardMap store.GSMShardMapRow
}

// NewAttachShardOperation builds the StoreOperation for AttachShard:
// register the shard in the GSM (if absent) and copy its local mappings up
// as readable GSM rows, trusting the shard's own LSM as the source of
// truth for what it currently serves.
func NewAttachShardOperation(gsm, lsm store.Querier, shard store.GSMShardRow, sm store.GSMShardMapRow) *StoreOperation {
	p := &attachShardPayload{gsm: gsm, lsm: lsm, shard: shard, shardMap: sm}
	return New(StepDescriptor{
		Code:              CodeAttachShard,
		DoGlobalPreLocal:  attachShardGlobalPreDo,
		DoLocalSource:     noop,
		DoGlobalPostLocal: attachShardGlobalPostDo,
		UndoGlobalPostLocal: func(ctx context.Context, so *StoreOperation) error {
			p := so.Payload.(*attachShardPayload)
			_, err := store.RemoveShard(ctx, p.gsm, p.shard.ID)
			return err
		},
	}, p)
}

func attachShardGlobalPreDo(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*attachShardPayload)
	_, code, err := store.FindShardByID(ctx, p.gsm, p.shard.ID)
	if err != nil {
		return err
	}
	if code == store.CodeSuccess {
		return nil
	}
	code, err = store.AddShard(ctx, p.gsm, p.shard)
	if err != nil {
		return err
	}
	if !code.Ok() && code != store.CodeShardLocationAlreadyExists {
		return store.NewManagementError(code, "", p.shard.ServerName)
	}
	return nil
}

func attachShardGlobalPostDo(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*attachShardPayload)
	localMappings, err := store.ListMappingsLocal(ctx, p.lsm, p.shard.ID)
	if err != nil {
		return err
	}
	for _, m := range localMappings {
		if err := store.InsertMapping(ctx, p.gsm, m, so.OpID); err != nil {
			return err
		}
	}
	return store.PromoteMapping(ctx, p.gsm, so.OpID)
}

// detachShardPayload carries state for NewDetachShardOperation: the
// inverse of attach, dropping the shard's mappings from the GSM so it
// stops receiving routed traffic while its LSM keeps its own record.
type detachShardPayload struct {
	gsm     store.Querier
	shardID uuid.UUID
}

// NewDetachShardOperation builds the StoreOperation for DetachShard.
func NewDetachShardOperation(gsm store.Querier, shardID uuid.UUID) *StoreOperation {
	p := &detachShardPayload{gsm: gsm, shardID: shardID}
	return New(StepDescriptor{
		Code:                CodeDetachShard,
		DoGlobalPreLocal:    detachShardDo,
		DoLocalSource:       noop,
		DoGlobalPostLocal:   noop,
		UndoGlobalPostLocal: noop,
	}, p)
}

func detachShardDo(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*detachShardPayload)
	return store.DeleteMappingsForShard(ctx, p.gsm, p.shardID)
}
