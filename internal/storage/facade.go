// Package storage defines the contract the command executor uses to
// reach the persistent key-value engine, plus the value types shared by
// every concrete backend. The facade itself is a thin abstraction over
// whichever engine is configured (internal/storage/memstore for an
// in-process map, internal/storage/badgerstore for an LSM-tree-backed
// on-disk store); the engine, not this package, owns crash consistency.
package storage

import "github.com/kvsrv/kvsrv/pkg/errors"

// Type identifies the kind of value stored under a key.
type Type int

const (
	TypeNone Type = iota
	TypeString
	TypeList
	TypeSet
	TypeHash
	TypeZSet
	TypeJSON
	TypeStream
)

func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeList:
		return "list"
	case TypeSet:
		return "set"
	case TypeHash:
		return "hash"
	case TypeZSet:
		return "zset"
	case TypeJSON:
		return "json"
	case TypeStream:
		return "stream"
	default:
		return "none"
	}
}

// ZMember is one member/score pair in a sorted set.
type ZMember struct {
	Member string
	Score  float64
}

// StreamEntry is one appended stream record.
type StreamEntry struct {
	ID     string
	Fields map[string]string
}

// ErrWrongType is returned by every operation invoked against a key
// whose stored value is not of the kind that operation expects.
var ErrWrongType = errors.ErrWrongType

// Facade is the contract the command executor uses to reach the
// persistent engine. Every operation is atomic at the key level.
type Facade interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(keys []string) (int64, error)

	ListPushFront(key string, values []string) (int64, error)
	ListPushBack(key string, values []string) (int64, error)
	ListPopFront(key string) (string, bool, error)
	ListPopBack(key string) (string, bool, error)
	ListRange(key string, start, stop int64) ([]string, error)
	ListLen(key string) (int64, error)

	SetAdd(key string, members []string) (int64, error)
	SetRemove(key string, members []string) (int64, error)
	SetMembers(key string) ([]string, error)
	SetContains(key, member string) (bool, error)
	SetCardinality(key string) (int64, error)

	HashSet(key string, pairs map[string]string) (int64, error)
	HashGet(key, field string) (string, bool, error)
	HashDelete(key string, fields []string) (int64, error)
	HashGetAll(key string) (map[string]string, error)
	HashExists(key, field string) (bool, error)

	ZSetAdd(key string, members []ZMember) (int64, error)
	ZSetRemove(key string, members []string) (int64, error)
	ZSetScore(key, member string) (float64, bool, error)
	ZSetRange(key string, start, stop int64) ([]ZMember, error)
	ZSetCardinality(key string) (int64, error)

	JSONSet(key, path, value string) error
	JSONGet(key, path string) (string, bool, error)
	JSONDelete(key, path string) (bool, error)

	StreamAppend(key string, fields map[string]string) (string, error)
	StreamRange(key, start, stop string) ([]StreamEntry, error)
	StreamLength(key string) (int64, error)

	TypeOf(key string) (Type, error)
	Exists(keys []string) (int64, error)
	FlushDatabase() error

	Close() error
}
