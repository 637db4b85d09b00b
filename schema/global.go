package schema

import (
	"context"
	"database/sql"

	"github.com/dreamware/shardmgmt/store"
)

// GlobalVersionTable is the name of the version row table in the GSM.
const GlobalVersionTable = "__ShardManagement_ShardMapManagerGlobal"

// GlobalSteps is the ordered upgrade pipeline for the Global Shard Map
// store, (0,0) through ClientVersion. Scenario S5 exercises all four in
// sequence against a freshly-created store.
var GlobalSteps = []Step{
	{
		From: store.Version{Major: 0, Minor: 0}, To: store.Version{Major: 1, Minor: 0},
		Apply: func(ctx context.Context, tx *sql.Tx) error {
			stmts := []string{
				`CREATE TABLE IF NOT EXISTS ` + GlobalVersionTable + ` (
					StoreVersionMajor INT NOT NULL,
					StoreVersionMinor INT NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS __ShardManagement_ShardMapsGlobal (
					ShardMapId CHAR(36) PRIMARY KEY,
					Name VARCHAR(255) NOT NULL UNIQUE,
					Kind INT NOT NULL,
					KeyKind INT NOT NULL
				)`,
				`CREATE TABLE IF NOT EXISTS __ShardManagement_ShardsGlobal (
					ShardId CHAR(36) PRIMARY KEY,
					Readable BOOLEAN NOT NULL DEFAULT TRUE,
					Version CHAR(36) NOT NULL,
					ShardMapId CHAR(36) NOT NULL,
					OperationId CHAR(36) NULL,
					Protocol INT NOT NULL,
					ServerName VARCHAR(255) NOT NULL,
					Port INT NOT NULL,
					DatabaseName VARCHAR(255) NOT NULL,
					Status INT NOT NULL,
					UNIQUE (ShardMapId, Protocol, ServerName, DatabaseName, Port)
				)`,
				`CREATE TABLE IF NOT EXISTS __ShardManagement_ShardMappingsGlobal (
					MappingId CHAR(36) NOT NULL UNIQUE,
					Readable BOOLEAN NOT NULL DEFAULT TRUE,
					ShardId CHAR(36) NOT NULL,
					ShardMapId CHAR(36) NOT NULL,
					OperationId CHAR(36) NULL,
					MinValue VARBINARY(128) NOT NULL,
					MaxValue VARBINARY(128) NULL,
					MaxValueIsMax BOOLEAN NOT NULL DEFAULT FALSE,
					Status INT NOT NULL,
					LockOwnerId CHAR(36) NOT NULL,
					PRIMARY KEY (ShardMapId, MinValue, Readable)
				)`,
			}
			for _, s := range stmts {
				if _, err := tx.ExecContext(ctx, s); err != nil {
					return err
				}
			}
			return setVersion(ctx, tx, GlobalVersionTable, 1, 0)
		},
	},
	{
		From: store.Version{Major: 1, Minor: 0}, To: store.Version{Major: 1, Minor: 1},
		Apply: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS __ShardManagement_OperationsLogGlobal (
				OperationId CHAR(36) PRIMARY KEY,
				OperationCode INT NOT NULL,
				Data BLOB NOT NULL,
				UndoStartState INT NOT NULL DEFAULT 100,
				ShardVersionRemoves CHAR(36) NULL,
				ShardVersionAdds CHAR(36) NULL
			)`)
			if err != nil {
				return err
			}
			return setVersion(ctx, tx, GlobalVersionTable, 1, 1)
		},
	},
	{
		// Version 1.2 of the store format. This step only advances the
		// version row; it changes no table. Lock and unlock in this
		// library act on one mapping at a time; there is no lock-all or
		// unlock-all-for-owner operation.
		From: store.Version{Major: 1, Minor: 1}, To: store.Version{Major: 1, Minor: 2},
		Apply: func(ctx context.Context, tx *sql.Tx) error {
			return setVersion(ctx, tx, GlobalVersionTable, 1, 2)
		},
	},
	{
		From: store.Version{Major: 1, Minor: 2}, To: store.Version{Major: 1, Minor: 3},
		Apply: func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS __ShardManagement_ShardedDatabaseSchemaInfosGlobal (
				Name VARCHAR(255) PRIMARY KEY,
				SchemaInfo BLOB NOT NULL
			)`)
			if err != nil {
				return err
			}
			return setVersion(ctx, tx, GlobalVersionTable, 1, 3)
		},
	},
}

func setVersion(ctx context.Context, tx *sql.Tx, table string, major, minor int) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO `+table+` (StoreVersionMajor, StoreVersionMinor) VALUES (?, ?)`, major, minor)
	return err
}
