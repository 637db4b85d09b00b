package store

import "fmt"

// ResultCode is the 3-digit result taxonomy returned by every stored
// operation (spec §6). 001 is the sole success code; everything else is a
// typed failure the caller can switch on.
type ResultCode int

const (
	CodeSuccess                  ResultCode = 1
	CodeMissingParameters        ResultCode = 50
	CodeStoreVersionMismatch     ResultCode = 51
	CodeShardPendingOperation    ResultCode = 52
	CodeUnexpectedStoreError     ResultCode = 53
	CodeShardMapAlreadyExists    ResultCode = 101
	CodeShardMapDoesNotExist     ResultCode = 102
	CodeShardMapHasShards        ResultCode = 103
	CodeShardExists              ResultCode = 201
	CodeShardDoesNotExist        ResultCode = 202
	CodeShardHasMappings         ResultCode = 203
	CodeShardVersionMismatch     ResultCode = 204
	CodeShardLocationAlreadyExists ResultCode = 205
	CodeMappingDoesNotExist      ResultCode = 301
	CodeRangeAlreadyMapped       ResultCode = 302
	CodePointAlreadyMapped       ResultCode = 303
	CodeMappingNotFoundForKey    ResultCode = 304
	CodeUnableToKillSessions     ResultCode = 305
	CodeMappingIsNotOffline      ResultCode = 306
	CodeMappingLockOwnerIdMismatch ResultCode = 307
	CodeMappingAlreadyLocked     ResultCode = 308
	CodeMappingIsOffline         ResultCode = 309
	CodeSchemaInfoNameDoesNotExist ResultCode = 401
	CodeSchemaInfoNameConflict   ResultCode = 402
)

var codeNames = map[ResultCode]string{
	CodeSuccess:                    "Success",
	CodeMissingParameters:          "MissingParameters",
	CodeStoreVersionMismatch:       "StoreVersionMismatch",
	CodeShardPendingOperation:      "ShardPendingOperation",
	CodeUnexpectedStoreError:       "UnexpectedStoreError",
	CodeShardMapAlreadyExists:      "ShardMapAlreadyExists",
	CodeShardMapDoesNotExist:       "ShardMapDoesNotExist",
	CodeShardMapHasShards:          "ShardMapHasShards",
	CodeShardExists:                "ShardExists",
	CodeShardDoesNotExist:          "ShardDoesNotExist",
	CodeShardHasMappings:           "ShardHasMappings",
	CodeShardVersionMismatch:       "ShardVersionMismatch",
	CodeShardLocationAlreadyExists: "ShardLocationAlreadyExists",
	CodeMappingDoesNotExist:        "MappingDoesNotExist",
	CodeRangeAlreadyMapped:         "RangeAlreadyMapped",
	CodePointAlreadyMapped:         "PointAlreadyMapped",
	CodeMappingNotFoundForKey:      "MappingNotFoundForKey",
	CodeUnableToKillSessions:       "UnableToKillSessions",
	CodeMappingIsNotOffline:        "MappingIsNotOffline",
	CodeMappingLockOwnerIdMismatch: "MappingLockOwnerIdMismatch",
	CodeMappingAlreadyLocked:       "MappingAlreadyLocked",
	CodeMappingIsOffline:           "MappingIsOffline",
	CodeSchemaInfoNameDoesNotExist: "SchemaInfoNameDoesNotExist",
	CodeSchemaInfoNameConflict:     "SchemaInfoNameConflict",
}

// String renders the symbolic name used in log lines and typed errors.
func (c ResultCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("ResultCode(%d)", int(c))
}

// Ok reports whether c is the success code.
func (c ResultCode) Ok() bool { return c == CodeSuccess }

// staleCacheCodes are the four result codes that, per spec §7, mean a
// cached entry is stale and must be evicted before the caller retries.
var staleCacheCodes = map[ResultCode]bool{
	CodeShardMapDoesNotExist: true,
	CodeShardDoesNotExist:    true,
	CodeMappingDoesNotExist:  true,
	CodeShardVersionMismatch: true,
}

// IndicatesStaleCache reports whether c should evict the mapper's cache
// entry for the affected shard map, shard, or mapping.
func (c ResultCode) IndicatesStaleCache() bool { return staleCacheCodes[c] }
