// Package store implements the GSM/LSM store abstractions: connections,
// transaction scopes, the result-code taxonomy, and the SQL functions for
// the individual GSM and LSM operations (gsm.go, lsm.go). Package op
// composes those functions into two-phase operations.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// Kind distinguishes the one Global Shard Map store from the (possibly
// many) Local Shard Map stores, one per physical shard.
type Kind int

const (
	KindGSM Kind = iota
	KindLSM
)

func (k Kind) String() string {
	if k == KindGSM {
		return "GSM"
	}
	return "LSM"
}

// TransactionKind selects which of the two-phase operation's four scopes a
// TransactionScope serves. NonTransactional is required for operations
// that must run outside any transaction, namely killing sessions on a
// shard (spec §4.B).
type TransactionKind int

const (
	TxGlobal TransactionKind = iota
	TxLocalSource
	TxLocalTarget
	TxNonTransactional
)

// Connection is a session to either the GSM or one LSM, identified by a
// DSN. It owns a pooled *sql.DB; BeginTransaction hands out scoped
// transactions for callers to run one or more operations against.
type Connection struct {
	kind Kind
	dsn  string
	db   *sql.DB
}

// Open dials the store at dsn and verifies connectivity. The driver is
// fixed at github.com/go-sql-driver/mysql; dsn follows that driver's DSN
// grammar (the schema named in spec §6 lives under database "dsn's
// database, table prefix __ShardManagement").
func Open(ctx context.Context, kind Kind, dsn string) (*Connection, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s at %q: %w", kind, dsn, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s at %q: %w", kind, dsn, err)
	}
	return &Connection{kind: kind, dsn: dsn, db: db}, nil
}

// Kind reports whether this connection is to the GSM or an LSM.
func (c *Connection) Kind() Kind { return c.kind }

// DSN returns the connection's data source name, for logging and for
// deriving a per-shard recovery connection.
func (c *Connection) DSN() string { return c.dsn }

// Querier returns the connection's pooled *sql.DB as a Querier, for
// operations that run outside any explicit transaction scope (each
// statement then commits independently, same as AutoCommit).
func (c *Connection) Querier() Querier { return c.db }

// DB returns the connection's underlying *sql.DB, for callers that need
// the concrete type rather than the narrower Querier interface — notably
// package schema's upgrade pipeline, which opens its own transactions.
func (c *Connection) DB() *sql.DB { return c.db }

// Close releases the underlying pool. It does not roll back any open
// transaction scope; callers must end their scopes first.
func (c *Connection) Close() error { return c.db.Close() }

// BeginTransaction opens a TransactionScope of the given kind. For
// TxNonTransactional, no database transaction is started — the scope
// executes each statement directly against the pool, since the
// kill-sessions operation cannot run inside a transaction.
func (c *Connection) BeginTransaction(ctx context.Context, kind TransactionKind) (*TransactionScope, error) {
	if kind == TxNonTransactional {
		return &TransactionScope{conn: c, kind: kind}, nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin %s transaction on %s: %w", kind, c.kind, err)
	}
	return &TransactionScope{conn: c, kind: kind, tx: tx}, nil
}

// TransactionScope wraps one GSM or LSM transaction (or, for
// TxNonTransactional, a connection executing outside any transaction).
// Exactly one of Commit or Rollback must be called to end the scope.
type TransactionScope struct {
	conn *Connection
	kind TransactionKind
	tx   *sql.Tx
	done bool
}

// Kind reports which of the four scopes this is.
func (s *TransactionScope) Kind() TransactionKind { return s.kind }

// Querier is satisfied by both *sql.Tx and *sql.DB, letting operation code
// run the same query whether or not a transaction is active.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Querier returns the Tx or DB this scope should issue statements against.
func (s *TransactionScope) Querier() Querier {
	if s.tx != nil {
		return s.tx
	}
	return s.conn.db
}

// ExecuteCommandBatch runs a sequence of statements within this scope.
// Every statement in the batch runs under the same transaction (or, for a
// non-transactional scope, sequentially against the pool). The bulk
// mapping operations in package op do not use it; they issue their
// statements through the store functions one by one.
func (s *TransactionScope) ExecuteCommandBatch(ctx context.Context, stmts []string, args [][]any) error {
	if len(stmts) != len(args) {
		return fmt.Errorf("store: command batch has %d statements but %d arg sets", len(stmts), len(args))
	}
	q := s.Querier()
	for i, stmt := range stmts {
		if _, err := q.ExecContext(ctx, stmt, args[i]...); err != nil {
			return fmt.Errorf("store: command batch step %d: %w", i, err)
		}
	}
	return nil
}

// Commit ends the scope, committing any transaction. For a
// non-transactional scope this is a no-op.
func (s *TransactionScope) Commit() error {
	if s.done {
		return nil
	}
	s.done = true
	if s.tx == nil {
		return nil
	}
	return s.tx.Commit()
}

// Rollback ends the scope, discarding any changes made under a
// transaction. For a non-transactional scope this is a no-op: statements
// already executed outside a transaction cannot be undone by rollback, so
// undo for those operations is expressed as compensating statements at a
// higher layer (see op.StepDescriptor).
func (s *TransactionScope) Rollback() error {
	if s.done {
		return nil
	}
	s.done = true
	if s.tx == nil {
		return nil
	}
	return s.tx.Rollback()
}
