package op

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/dreamware/shardmgmt/store"
)

// logTable is the GSM operation log table from spec §6.
const logTable = "__ShardManagement_OperationsLogGlobal"

// InsertLogEntry writes the durable record of an in-flight operation. It
// is called from DoGlobalPreLocal after the affected rows are marked
// pending, on the same Querier. When that Querier is a *sql.DB (as the
// mapper passes), each statement commits on its own, so the pending stamp
// and the log entry are not written atomically. A nil payload is stored as
// an empty Data value.
func InsertLogEntry(ctx context.Context, q store.Querier, opID uuid.UUID, code Code, payload []byte, undoStartState UndoStartState) error {
	if payload == nil {
		payload = []byte{}
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO `+logTable+` (OperationId, OperationCode, Data, UndoStartState) VALUES (?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE Data = VALUES(Data), UndoStartState = VALUES(UndoStartState)`,
		opID.String(), int(code), payload, int(undoStartState))
	if err != nil {
		return fmt.Errorf("op: insert log entry %s: %w", opID, err)
	}
	return nil
}

// UpdateLogEntryUndoStartState advances the persisted UndoStartState as the
// operation progresses, so a crash between phases leaves a well-defined
// resume point (spec §4.E, scenario S4).
func UpdateLogEntryUndoStartState(ctx context.Context, q store.Querier, opID uuid.UUID, state UndoStartState) error {
	_, err := q.ExecContext(ctx, `UPDATE `+logTable+` SET UndoStartState = ? WHERE OperationId = ?`, int(state), opID.String())
	if err != nil {
		return fmt.Errorf("op: update log entry %s: %w", opID, err)
	}
	return nil
}

// DeleteLogEntry removes the log entry on successful completion (spec
// §4.E step 4) or after a successful undo.
func DeleteLogEntry(ctx context.Context, q store.Querier, opID uuid.UUID) error {
	_, err := q.ExecContext(ctx, `DELETE FROM `+logTable+` WHERE OperationId = ?`, opID.String())
	if err != nil {
		return fmt.Errorf("op: delete log entry %s: %w", opID, err)
	}
	return nil
}

// GetLogEntry reads the entry for opID, implementing
// FindAndUpdateOperationLogEntryByIdGlobal's read side. It returns
// (nil, nil) if no entry exists — the operation already completed or was
// never recorded.
//
// Re-use of this function by concurrent undo attempts for the same opID is
// unsafe (spec §9 Open Questions): callers must serialize undo of a given
// opID themselves, e.g. by holding the GSM row lock for the duration.
func GetLogEntry(ctx context.Context, q store.Querier, opID uuid.UUID) (*store.OperationLogEntry, error) {
	row := q.QueryRowContext(ctx, `SELECT OperationId, OperationCode, Data, UndoStartState, ShardVersionRemoves, ShardVersionAdds FROM `+logTable+` WHERE OperationId = ?`, opID.String())
	return scanLogEntry(row)
}

// ListLogEntries returns every pending operation log entry, for the
// recovery manager to complete or undo at startup (spec §4.E: "later
// calls let the next operator either complete or undo the operation").
func ListLogEntries(ctx context.Context, q store.Querier) ([]store.OperationLogEntry, error) {
	rows, err := q.QueryContext(ctx, `SELECT OperationId, OperationCode, Data, UndoStartState, ShardVersionRemoves, ShardVersionAdds FROM `+logTable)
	if err != nil {
		return nil, fmt.Errorf("op: list log entries: %w", err)
	}
	defer rows.Close()

	var entries []store.OperationLogEntry
	for rows.Next() {
		var idStr string
		var code, undoState int
		var data []byte
		var removes, adds sql.NullString
		if err := rows.Scan(&idStr, &code, &data, &undoState, &removes, &adds); err != nil {
			return nil, fmt.Errorf("op: scan log entry: %w", err)
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("op: parse log entry id %q: %w", idStr, err)
		}
		entries = append(entries, store.OperationLogEntry{
			OperationID: id, OperationCode: code, Data: data, UndoStartState: undoState,
		})
	}
	return entries, rows.Err()
}

func scanLogEntry(row *sql.Row) (*store.OperationLogEntry, error) {
	var idStr string
	var code, undoState int
	var data []byte
	var removes, adds sql.NullString
	if err := row.Scan(&idStr, &code, &data, &undoState, &removes, &adds); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("op: scan log entry: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("op: parse log entry id %q: %w", idStr, err)
	}
	return &store.OperationLogEntry{OperationID: id, OperationCode: code, Data: data, UndoStartState: undoState}, nil
}
