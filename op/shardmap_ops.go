package op

import (
	"context"

	"github.com/google/uuid"

	"github.com/dreamware/shardmgmt/store"
)

// addShardMapPayload carries everything NewAddShardMapOperation's steps
// need. Shard maps have no local counterpart (they are a GSM-only
// concept until a shard is added), so DoLocalSource/DoLocalTarget are
// no-ops and the real work happens in one phase.
type addShardMapPayload struct {
	gsm store.Querier
	row store.GSMShardMapRow
}

// NewAddShardMapOperation builds the StoreOperation for AddShardMapGlobal
// (spec §4.E). Unlike a mapping add there is nothing to make visible
// later: the insert either succeeds or the name conflict is reported, so
// the whole effect lives in DoGlobalPreLocal and DoGlobalPostLocal is a
// pure no-op success marker.
func NewAddShardMapOperation(gsm store.Querier, row store.GSMShardMapRow) *StoreOperation {
	p := &addShardMapPayload{gsm: gsm, row: row}
	return New(StepDescriptor{
		Code:                CodeAddShardMap,
		DoGlobalPreLocal:    addShardMapDo,
		DoLocalSource:       noop,
		DoGlobalPostLocal:   noop,
		UndoGlobalPostLocal: addShardMapUndo,
	}, p)
}

func addShardMapDo(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*addShardMapPayload)
	code, err := store.AddShardMap(ctx, p.gsm, p.row)
	if err != nil {
		return err
	}
	if !code.Ok() {
		return store.NewManagementError(code, p.row.Name, "")
	}
	return nil
}

func addShardMapUndo(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*addShardMapPayload)
	_, err := store.RemoveShardMap(ctx, p.gsm, p.row.ID)
	return err
}

// removeShardMapPayload carries state for NewRemoveShardMapOperation.
type removeShardMapPayload struct {
	gsm  store.Querier
	name string
	id   uuid.UUID
}

// NewRemoveShardMapOperation builds the StoreOperation for
// RemoveShardMapGlobal. Like add, it is a single-phase GSM-only mutation:
// there is no local mirror to clean up because shard maps only exist
// globally.
func NewRemoveShardMapOperation(gsm store.Querier, name string, id uuid.UUID) *StoreOperation {
	p := &removeShardMapPayload{gsm: gsm, name: name, id: id}
	return New(StepDescriptor{
		Code:                CodeRemoveShardMap,
		DoGlobalPreLocal:    noop,
		DoLocalSource:       noop,
		DoGlobalPostLocal:   removeShardMapDo,
		UndoGlobalPostLocal: noop,
	}, p)
}

func removeShardMapDo(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*removeShardMapPayload)
	code, err := store.RemoveShardMap(ctx, p.gsm, p.id)
	if err != nil {
		return err
	}
	if !code.Ok() {
		return store.NewManagementError(code, p.name, "")
	}
	return nil
}

func noop(ctx context.Context, so *StoreOperation) error { return nil }
