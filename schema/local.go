package schema

import (
	"context"
	"database/sql"

	"github.com/dreamware/shardmgmt/store"
)

// LocalVersionTable is the name of the version row table in each LSM.
const LocalVersionTable = "__ShardManagement_ShardMapManagerLocal"

// LocalSteps is the upgrade pipeline for a Local Shard Map store. It
// parallels GlobalSteps version-for-version, per spec §4.C, but the tables
// it creates use LastOperationId where the global schema uses a separate
// Readable flag (spec §6).
var LocalSteps = []Step{
	{
		From: store.Version{Major: 0, Minor: 0}, To: store.Version{Major: 1, Minor: 0},
		Apply: func(ctx context.Context, tx *sql.Tx) error {
			stmts := []string{
				`CREATE TABLE IF NOT EXISTS ` + LocalVersionTable + ` (
					StoreVersionMajor INT NOT NULL,
					StoreVersionMinor INT NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS __ShardManagement_ShardMapsLocal (
					ShardMapId CHAR(36) PRIMARY KEY,
					Name VARCHAR(255) NOT NULL,
					Kind INT NOT NULL,
					KeyKind INT NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS __ShardManagement_ShardsLocal (
					ShardId CHAR(36) PRIMARY KEY,
					Version CHAR(36) NOT NULL,
					ShardMapId CHAR(36) NOT NULL,
					Protocol INT NOT NULL,
					ServerName VARCHAR(255) NOT NULL,
					Port INT NOT NULL,
					DatabaseName VARCHAR(255) NOT NULL,
					Status INT NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS __ShardManagement_ShardMappingsLocal (
					MappingId CHAR(36) PRIMARY KEY,
					ShardId CHAR(36) NOT NULL,
					ShardMapId CHAR(36) NOT NULL,
					LastOperationId CHAR(36) NULL,
					MinValue VARBINARY(128) NOT NULL,
					MaxValue VARBINARY(128) NULL,
					MaxValueIsMax BOOLEAN NOT NULL DEFAULT FALSE,
					Status INT NOT NULL,
					LockOwnerId CHAR(36) NOT NULL
				)`,
			}
			for _, s := range stmts {
				if _, err := tx.ExecContext(ctx, s); err != nil {
					return err
				}
			}
			return setVersion(ctx, tx, LocalVersionTable, 1, 0)
		},
	},
	{
		From: store.Version{Major: 1, Minor: 0}, To: store.Version{Major: 1, Minor: 1},
		Apply: func(ctx context.Context, tx *sql.Tx) error {
			return setVersion(ctx, tx, LocalVersionTable, 1, 1)
		},
	},
	{
		From: store.Version{Major: 1, Minor: 1}, To: store.Version{Major: 1, Minor: 2},
		Apply: func(ctx context.Context, tx *sql.Tx) error {
			return setVersion(ctx, tx, LocalVersionTable, 1, 2)
		},
	},
	{
		From: store.Version{Major: 1, Minor: 2}, To: store.Version{Major: 1, Minor: 3},
		Apply: func(ctx context.Context, tx *sql.Tx) error {
			return setVersion(ctx, tx, LocalVersionTable, 1, 3)
		},
	},
}
