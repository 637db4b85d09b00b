package op

import (
	"context"

	"github.com/dreamware/shardmgmt/store"
)

// bulkMappingPayload carries a multi-row mapping mutation: some number of
// existing mappings removed, some number of new mappings added, applied
// together as one operation (spec §4.D bulk steps). SplitMapping is one
// remove + two adds; MergeMapping is two removes + one add;
// ReplaceMappings (the recovery-manager operation) is an arbitrary set of
// each.
type bulkMappingPayload struct {
	gsm       store.Querier
	lsmSource store.Querier
	removes   []store.GSMMappingRow
	adds      []store.GSMMappingRow
}

func newBulkMappingOperation(code Code, gsm, lsmSource store.Querier, removes, adds []store.GSMMappingRow) *StoreOperation {
	p := &bulkMappingPayload{gsm: gsm, lsmSource: lsmSource, removes: removes, adds: adds}
	return New(StepDescriptor{
		Code:                code,
		DoGlobalPreLocal:    bulkMappingGlobalPreDo,
		DoLocalSource:       bulkMappingLocalDo,
		DoGlobalPostLocal:   bulkMappingGlobalPostDo,
		UndoLocalSource:     undoBulkMappingLocal,
		UndoGlobalPostLocal: undoBulkMappingGlobal,
	}, p)
}

// NewSplitMappingOperation builds the StoreOperation for
// SplitShardMappingGlobal: remove replaces the single mapping being split,
// parts are its two replacements.
func NewSplitMappingOperation(gsm, lsmSource store.Querier, remove store.GSMMappingRow, parts ...store.GSMMappingRow) *StoreOperation {
	return newBulkMappingOperation(CodeSplitMapping, gsm, lsmSource, []store.GSMMappingRow{remove}, parts)
}

// NewMergeMappingOperation builds the StoreOperation for
// MergeShardMappingGlobal: left and right are adjacent mappings on the
// same shard being combined into merged.
func NewMergeMappingOperation(gsm, lsmSource store.Querier, left, right, merged store.GSMMappingRow) *StoreOperation {
	return newBulkMappingOperation(CodeMergeMapping, gsm, lsmSource, []store.GSMMappingRow{left, right}, []store.GSMMappingRow{merged})
}

// NewReplaceMappingsOperation builds the StoreOperation for the
// recovery-manager's bulk ReplaceMappings, replacing an arbitrary set of
// GSM mappings with another to reconcile drift against a shard's LSM
// (spec §4.I).
func NewReplaceMappingsOperation(gsm, lsmSource store.Querier, removes, adds []store.GSMMappingRow) *StoreOperation {
	return newBulkMappingOperation(CodeReplaceMappings, gsm, lsmSource, removes, adds)
}

func bulkMappingGlobalPreDo(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*bulkMappingPayload)
	for _, a := range p.adds {
		code, err := store.CheckMappingOverlap(ctx, p.gsm, a.ShardMapID, a.MinValue, a.MaxValue, a.MaxValueIsMax, a.IsRangeMap, a.ID)
		if err != nil {
			return err
		}
		if !code.Ok() {
			return store.NewManagementError(code, "", "")
		}
	}
	for _, r := range p.removes {
		if err := store.MarkMappingPendingRemoval(ctx, p.gsm, r.ID, so.OpID); err != nil {
			return err
		}
	}
	for _, a := range p.adds {
		if err := store.InsertMapping(ctx, p.gsm, a, so.OpID); err != nil {
			return err
		}
	}
	return InsertLogEntry(ctx, p.gsm, so.OpID, so.Descriptor.Code, nil, so.UndoStartState)
}

func bulkMappingLocalDo(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*bulkMappingPayload)
	for _, r := range p.removes {
		if err := store.DeleteMappingLocal(ctx, p.lsmSource, r.ID); err != nil {
			return err
		}
	}
	for _, a := range p.adds {
		if err := store.UpsertMappingLocal(ctx, p.lsmSource, a, so.OpID); err != nil {
			return err
		}
	}
	return persistState(ctx, so, p.gsm)
}

func bulkMappingGlobalPostDo(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*bulkMappingPayload)
	if err := store.DeleteMappingForOp(ctx, p.gsm, so.OpID); err != nil {
		return err
	}
	if err := store.PromoteMapping(ctx, p.gsm, so.OpID); err != nil {
		return err
	}
	return DeleteLogEntry(ctx, p.gsm, so.OpID)
}

func undoBulkMappingLocal(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*bulkMappingPayload)
	for _, a := range p.adds {
		if err := store.DeleteMappingLocal(ctx, p.lsmSource, a.ID); err != nil {
			return err
		}
	}
	for _, r := range p.removes {
		if err := store.UpsertMappingLocal(ctx, p.lsmSource, r, so.OpID); err != nil {
			return err
		}
	}
	return nil
}

func undoBulkMappingGlobal(ctx context.Context, so *StoreOperation) error {
	p := so.Payload.(*bulkMappingPayload)
	if err := store.RemovePendingMapping(ctx, p.gsm, so.OpID); err != nil {
		return err
	}
	if err := store.ClearPendingRemoval(ctx, p.gsm, so.OpID); err != nil {
		return err
	}
	return DeleteLogEntry(ctx, p.gsm, so.OpID)
}
