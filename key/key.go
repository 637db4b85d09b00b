// Package key implements the canonical key and range algebra used to route
// shard-map lookups: typed shard keys, order-preserving byte encoding, and
// half-open range arithmetic.
//
// Every key kind encodes to a byte string whose lexicographic order equals
// the kind's natural order. This lets the rest of the library (the mapper,
// the cache, the GSM/LSM stores) compare and store keys as plain []byte
// without knowing the original kind.
package key

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// Kind identifies the logical type of a ShardKey's value.
//
// The set is closed: routing, encoding, and the wire codec all switch on
// Kind exhaustively, so adding a kind touches every one of those places.
type Kind int

const (
	KindInt32 Kind = iota
	KindInt64
	KindGUID
	KindBytes
	KindDateTime
	KindDateTimeOffset
	KindTimeSpan
)

// String renders the kind name, mainly for error messages and logging.
func (k Kind) String() string {
	switch k {
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindGUID:
		return "guid"
	case KindBytes:
		return "bytes"
	case KindDateTime:
		return "datetime"
	case KindDateTimeOffset:
		return "datetimeoffset"
	case KindTimeSpan:
		return "timespan"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ShardKey is a typed routing key. The zero value is not valid; construct
// one with the New* functions below.
//
// ShardKey is immutable and safe to share across goroutines: every method
// returns a new value rather than mutating the receiver.
type ShardKey struct {
	kind    Kind
	encoded []byte // canonical, order-preserving encoding; nil only for +inf
	isMax   bool   // true for the +infinity sentinel of this kind
}

// MaxKey returns the +infinity sentinel for kind. It compares greater than
// every finite key of the same kind and is used as the open upper bound of
// the last range in a shard map.
func MaxKey(kind Kind) ShardKey {
	return ShardKey{kind: kind, isMax: true}
}

// NewInt32Key builds a key from a signed 32-bit value.
func NewInt32Key(v int32) ShardKey {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v)^0x80000000)
	return ShardKey{kind: KindInt32, encoded: b}
}

// NewInt64Key builds a key from a signed 64-bit value.
func NewInt64Key(v int64) ShardKey {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v)^0x8000000000000000)
	return ShardKey{kind: KindInt64, encoded: b}
}

// NewGUIDKey builds a key from a 16-byte GUID/UUID. GUIDs have no natural
// sign bit; the raw bytes already sort consistently with RFC 4122 byte
// order, so no bias is applied.
func NewGUIDKey(guid [16]byte) ShardKey {
	b := make([]byte, 16)
	copy(b, guid[:])
	return ShardKey{kind: KindGUID, encoded: b}
}

// NewBytesKey builds a key from an arbitrary byte string. Raw bytes already
// sort lexicographically, which is the natural order for this kind.
//
// An empty, non-nil slice is a valid finite key and is distinct from
// MaxKey(KindBytes): the sentinel carries the isMax flag, not an empty
// encoding.
func NewBytesKey(raw []byte) ShardKey {
	b := make([]byte, len(raw))
	copy(b, raw)
	return ShardKey{kind: KindBytes, encoded: b}
}

// NewDateTimeKey builds a key from a UTC timestamp, encoded as a signed
// tick count (100ns units since the Unix epoch) using the same big-endian
// bias as integers.
func NewDateTimeKey(t time.Time) ShardKey {
	return ShardKey{kind: KindDateTime, encoded: encodeTicks(ticksSinceEpoch(t))}
}

// NewDateTimeOffsetKey builds a key from a timestamp that carries a UTC
// offset. Routing compares the UTC instant only; the offset itself is not
// part of the encoding, matching the datetime kind's ordering rules.
func NewDateTimeOffsetKey(t time.Time) ShardKey {
	return ShardKey{kind: KindDateTimeOffset, encoded: encodeTicks(ticksSinceEpoch(t.UTC()))}
}

// NewTimeSpanKey builds a key from a duration, encoded as signed 100ns
// ticks with the same bias as the integer kinds.
func NewTimeSpanKey(d time.Duration) ShardKey {
	return ShardKey{kind: KindTimeSpan, encoded: encodeTicks(int64(d / 100))}
}

func ticksSinceEpoch(t time.Time) int64 {
	return t.UnixNano() / 100
}

func encodeTicks(ticks int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(ticks)^0x8000000000000000)
	return b
}

// FromCanonicalBytes reconstructs a ShardKey of the given kind directly
// from an already-canonical encoding, such as one just read back from a
// store's MinValue/MaxValue column. It performs no re-encoding or bias
// transform — callers with a logical value (an int32, a time.Time, ...)
// should use the New*Key constructors instead.
func FromCanonicalBytes(kind Kind, raw []byte) ShardKey {
	b := make([]byte, len(raw))
	copy(b, raw)
	return ShardKey{kind: kind, encoded: b}
}

// Kind reports the key's kind.
func (k ShardKey) Kind() Kind { return k.kind }

// IsMax reports whether k is the +infinity sentinel for its kind.
func (k ShardKey) IsMax() bool { return k.isMax }

// Bytes returns the canonical encoding. For the +infinity sentinel this
// returns nil; callers that need a distinguishable on-the-wire value should
// check IsMax first, since a nil encoding is never ambiguous with a finite
// key (finite keys, including the empty byte-string key, always return a
// non-nil slice).
func (k ShardKey) Bytes() []byte {
	if k.isMax {
		return nil
	}
	return k.encoded
}

// Compare returns -1, 0, or 1 as k is less than, equal to, or greater than
// other. Comparing keys of different kinds panics: routing never compares
// across kinds, so a mismatch here is a programmer error upstream.
func (k ShardKey) Compare(other ShardKey) int {
	if k.kind != other.kind {
		panic(fmt.Sprintf("key: cannot compare %s to %s", k.kind, other.kind))
	}
	if k.isMax && other.isMax {
		return 0
	}
	if k.isMax {
		return 1
	}
	if other.isMax {
		return -1
	}
	return bytes.Compare(k.encoded, other.encoded)
}

// Equal reports whether k and other denote the same key.
func (k ShardKey) Equal(other ShardKey) bool { return k.Compare(other) == 0 }

// Next returns the smallest key strictly greater than k, for the same kind.
// It is used to turn a split point into the boundary of two adjacent
// ranges. Next panics for KindBytes and for the +infinity sentinel, which
// have no well-defined successor.
func (k ShardKey) Next() ShardKey {
	if k.isMax {
		panic("key: no successor of +infinity")
	}
	switch k.kind {
	case KindInt32:
		v := int32(binary.BigEndian.Uint32(k.encoded) ^ 0x80000000)
		if v == int32(1<<31-1) {
			return MaxKey(k.kind)
		}
		return NewInt32Key(v + 1)
	case KindInt64:
		v := int64(binary.BigEndian.Uint64(k.encoded) ^ 0x8000000000000000)
		if v == int64(1)<<63-1 {
			return MaxKey(k.kind)
		}
		return NewInt64Key(v + 1)
	case KindDateTime, KindDateTimeOffset, KindTimeSpan:
		v := int64(binary.BigEndian.Uint64(k.encoded) ^ 0x8000000000000000)
		if v == int64(1)<<63-1 {
			return MaxKey(k.kind)
		}
		return ShardKey{kind: k.kind, encoded: encodeTicks(v + 1)}
	case KindGUID:
		b := make([]byte, 16)
		copy(b, k.encoded)
		for i := len(b) - 1; i >= 0; i-- {
			b[i]++
			if b[i] != 0 {
				return ShardKey{kind: k.kind, encoded: b}
			}
		}
		return MaxKey(k.kind)
	default:
		panic(fmt.Sprintf("key: Next is undefined for kind %s", k.kind))
	}
}
