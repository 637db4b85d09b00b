package store

import "fmt"

// ManagementError is the typed error surfaced for any semantic (non-success,
// non-transient) result code: lock mismatch, range conflict, mapping not
// found, version mismatch, and the like (spec §7).
type ManagementError struct {
	Code          ResultCode
	ShardMapName  string
	ShardLocation string
}

func (e *ManagementError) Error() string {
	switch {
	case e.ShardLocation != "" && e.ShardMapName != "":
		return fmt.Sprintf("shardmgmt: %s (%d) for shard map %q at %s", e.Code, int(e.Code), e.ShardMapName, e.ShardLocation)
	case e.ShardMapName != "":
		return fmt.Sprintf("shardmgmt: %s (%d) for shard map %q", e.Code, int(e.Code), e.ShardMapName)
	default:
		return fmt.Sprintf("shardmgmt: %s (%d)", e.Code, int(e.Code))
	}
}

// Is lets callers match with errors.Is(err, store.Err(store.CodeMappingLockOwnerIdMismatch)).
func (e *ManagementError) Is(target error) bool {
	other, ok := target.(*ManagementError)
	return ok && other.Code == e.Code
}

// Err builds a bare ManagementError carrying only a code, for use as an
// errors.Is comparison target.
func Err(code ResultCode) *ManagementError { return &ManagementError{Code: code} }

// NewManagementError builds a fully-populated ManagementError from a
// failed operation's result code.
func NewManagementError(code ResultCode, shardMapName, shardLocation string) *ManagementError {
	return &ManagementError{Code: code, ShardMapName: shardMapName, ShardLocation: shardLocation}
}
