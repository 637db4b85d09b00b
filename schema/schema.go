// Package schema owns the versioned store schema and the forward-only
// upgrade pipeline that brings a freshly-attached GSM or LSM up to the
// client's version on first connect (spec §4.C).
package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dreamware/shardmgmt/store"
)

// ClientVersion is the schema version this build of the library expects.
// It is fixed per release, matching scenario S5 ("client (1,3)").
var ClientVersion = store.Version{Major: 1, Minor: 3}

// Step is one ordered upgrade applied while moving a store from one
// version to the next. Apply must be idempotent when re-run from the same
// From version (spec §4.C invariant): the Apply functions create tables
// only with CREATE TABLE IF NOT EXISTS and then overwrite the version row,
// so re-running a half-applied step is harmless.
type Step struct {
	From  store.Version
	To    store.Version
	Apply func(ctx context.Context, tx *sql.Tx) error
}

// tableExists reports whether table is present in the current database,
// tolerating the "missing tables" case checkIfExists must survive on a
// brand-new store (spec §4.C).
func tableExists(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, table string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?`, table).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CurrentVersion reads the store's version row, returning (0,0) if the
// version table does not exist yet — the state of a store that has never
// been touched by this library.
func CurrentVersion(ctx context.Context, db *sql.DB, versionTable string) (store.Version, error) {
	ok, err := tableExists(ctx, db, versionTable)
	if err != nil {
		return store.Version{}, fmt.Errorf("schema: checking for %s: %w", versionTable, err)
	}
	if !ok {
		return store.Version{}, nil
	}
	var v store.Version
	row := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT StoreVersionMajor, StoreVersionMinor FROM %s LIMIT 1`, versionTable))
	if err := row.Scan(&v.Major, &v.Minor); err != nil {
		if err == sql.ErrNoRows {
			return store.Version{}, nil
		}
		return store.Version{}, fmt.Errorf("schema: reading %s: %w", versionTable, err)
	}
	return v, nil
}

// Upgrade applies every step in steps whose From is >= current and < the
// client version, in order, each inside its own transaction. A failed step
// leaves the store at its pre-step version (the transaction rolls back),
// so the next retry resumes from the same From version — satisfying the
// "failed upgrade leaves a well-defined from version" invariant.
func Upgrade(ctx context.Context, db *sql.DB, current store.Version, steps []Step) (store.Version, error) {
	final := current
	for _, step := range steps {
		if step.From != current {
			continue
		}
		if ClientVersion.Less(step.To) {
			// This step would move the store past the client's own
			// version; never apply an upgrade a client can't use yet.
			break
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return final, fmt.Errorf("schema: begin upgrade %v->%v: %w", step.From, step.To, err)
		}
		if err := step.Apply(ctx, tx); err != nil {
			tx.Rollback()
			return final, fmt.Errorf("schema: apply upgrade %v->%v: %w", step.From, step.To, err)
		}
		if err := tx.Commit(); err != nil {
			return final, fmt.Errorf("schema: commit upgrade %v->%v: %w", step.From, step.To, err)
		}
		current = step.To
		final = step.To
	}
	return final, nil
}
