package mapper

import (
	"context"
	"fmt"

	"github.com/dreamware/shardmgmt/shardmap"
	"github.com/dreamware/shardmgmt/store"
)

// GetSchemaInfo implements FindShardingSchemaInfoByNameGlobal: the opaque
// per-shard-map catalog of sharded/reference tables consumed by external
// data-movement tooling (spec §4.I). The mapper never parses the catalog's
// bytes, only stores and returns them.
func (m *Mapper) GetSchemaInfo(ctx context.Context, name string) (shardmap.SchemaInfo, error) {
	var raw []byte
	err := m.runWithRetry(ctx, func(ctx context.Context) error {
		var code store.ResultCode
		var err error
		raw, code, err = store.FindSchemaInfoByName(ctx, m.gsm.Querier(), name)
		if err != nil {
			return err
		}
		if !code.Ok() {
			return store.NewManagementError(code, name, "")
		}
		return nil
	})
	if err != nil {
		return shardmap.SchemaInfo{}, err
	}
	return shardmap.SchemaInfo{Name: name, Raw: raw}, nil
}

// ListSchemaInfoNames implements GetShardingSchemaInfosGlobal.
func (m *Mapper) ListSchemaInfoNames(ctx context.Context) ([]string, error) {
	var names []string
	err := m.runWithRetry(ctx, func(ctx context.Context) error {
		var err error
		names, err = store.ListSchemaInfoNames(ctx, m.gsm.Querier())
		return err
	})
	return names, err
}

// AddSchemaInfo implements AddShardingSchemaInfoGlobal.
func (m *Mapper) AddSchemaInfo(ctx context.Context, info shardmap.SchemaInfo) error {
	return m.runWithRetry(ctx, func(ctx context.Context) error {
		code, err := store.AddSchemaInfo(ctx, m.gsm.Querier(), info.Name, info.Raw)
		if err != nil {
			return err
		}
		if !code.Ok() {
			return store.NewManagementError(code, info.Name, "")
		}
		return nil
	})
}

// UpdateSchemaInfo implements UpdateShardingSchemaInfoGlobal, replacing an
// existing catalog's bytes in place.
func (m *Mapper) UpdateSchemaInfo(ctx context.Context, info shardmap.SchemaInfo) error {
	return m.runWithRetry(ctx, func(ctx context.Context) error {
		code, err := store.UpdateSchemaInfo(ctx, m.gsm.Querier(), info.Name, info.Raw)
		if err != nil {
			return err
		}
		if !code.Ok() {
			return store.NewManagementError(code, info.Name, "")
		}
		return nil
	})
}

// RemoveSchemaInfo implements RemoveShardingSchemaInfoGlobal.
func (m *Mapper) RemoveSchemaInfo(ctx context.Context, name string) error {
	err := m.runWithRetry(ctx, func(ctx context.Context) error {
		code, err := store.RemoveSchemaInfo(ctx, m.gsm.Querier(), name)
		if err != nil {
			return err
		}
		if !code.Ok() {
			return store.NewManagementError(code, name, "")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("mapper: remove schema info %q: %w", name, err)
	}
	return nil
}
