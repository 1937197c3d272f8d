// Package memstore implements storage.Facade as an in-process sharded
// map, trading durability for zero-dependency simplicity. It has no
// write-ahead log: data does not survive a process restart.
package memstore

import (
	"fmt"
	"hash/maphash"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/kvsrv/kvsrv/internal/storage"
)

const defaultShardCount = 256

// entry holds one key's typed value. Exactly one of the fields matching
// kind is populated.
type entry struct {
	kind storage.Type

	str    string
	list   []string
	set    map[string]struct{}
	hash   map[string]string
	zset   map[string]float64
	json   string
	stream []storage.StreamEntry
}

type shard struct {
	mu    sync.RWMutex
	items map[string]*entry
}

// Store is a sharded in-memory implementation of storage.Facade.
type Store struct {
	shards     []*shard
	shardCount uint32
	seed       maphash.Seed
	streamSeq  atomic.Int64
}

// New creates a Store with the default shard count.
func New() *Store {
	return NewWithShards(defaultShardCount)
}

// NewWithShards creates a Store with an explicit shard count.
func NewWithShards(shardCount int) *Store {
	if shardCount <= 0 {
		shardCount = defaultShardCount
	}
	s := &Store{
		shards:     make([]*shard, shardCount),
		shardCount: uint32(shardCount),
		seed:       maphash.MakeSeed(),
	}
	for i := range s.shards {
		s.shards[i] = &shard{items: make(map[string]*entry)}
	}
	return s
}

func (s *Store) shardFor(key string) *shard {
	h := maphash.String(s.seed, key)
	return s.shards[h%uint64(s.shardCount)]
}

func (s *Store) getEntry(key string) (*entry, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, ok := sh.items[key]
	return e, ok
}

// typeCheck returns the existing entry for key if it matches want, a nil
// entry if the key is absent, or storage.ErrWrongType if it holds a
// different kind.
func typeCheck(sh *shard, key string, want storage.Type) (*entry, error) {
	e, ok := sh.items[key]
	if !ok {
		return nil, nil
	}
	if e.kind != want {
		return nil, storage.ErrWrongType
	}
	return e, nil
}

func (s *Store) Get(key string) (string, bool, error) {
	e, ok := s.getEntry(key)
	if !ok {
		return "", false, nil
	}
	if e.kind != storage.TypeString {
		return "", false, storage.ErrWrongType
	}
	return e.str, true, nil
}

func (s *Store) Set(key, value string) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.items[key] = &entry{kind: storage.TypeString, str: value}
	return nil
}

func (s *Store) Delete(keys []string) (int64, error) {
	var n int64
	for _, key := range keys {
		sh := s.shardFor(key)
		sh.mu.Lock()
		if _, ok := sh.items[key]; ok {
			delete(sh.items, key)
			n++
		}
		sh.mu.Unlock()
	}
	return n, nil
}

func (s *Store) ListPushFront(key string, values []string) (int64, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, err := typeCheck(sh, key, storage.TypeList)
	if err != nil {
		return 0, err
	}
	if e == nil {
		e = &entry{kind: storage.TypeList}
		sh.items[key] = e
	}
	for _, v := range values {
		e.list = append([]string{v}, e.list...)
	}
	return int64(len(e.list)), nil
}

func (s *Store) ListPushBack(key string, values []string) (int64, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, err := typeCheck(sh, key, storage.TypeList)
	if err != nil {
		return 0, err
	}
	if e == nil {
		e = &entry{kind: storage.TypeList}
		sh.items[key] = e
	}
	e.list = append(e.list, values...)
	return int64(len(e.list)), nil
}

func (s *Store) ListPopFront(key string) (string, bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, err := typeCheck(sh, key, storage.TypeList)
	if err != nil || e == nil || len(e.list) == 0 {
		return "", false, err
	}
	v := e.list[0]
	e.list = e.list[1:]
	return v, true, nil
}

func (s *Store) ListPopBack(key string) (string, bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, err := typeCheck(sh, key, storage.TypeList)
	if err != nil || e == nil || len(e.list) == 0 {
		return "", false, err
	}
	n := len(e.list)
	v := e.list[n-1]
	e.list = e.list[:n-1]
	return v, true, nil
}

func (s *Store) ListRange(key string, start, stop int64) ([]string, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, err := typeCheck(sh, key, storage.TypeList)
	if err != nil || e == nil {
		return nil, err
	}
	lo, hi := clampRange(start, stop, len(e.list))
	if lo > hi {
		return []string{}, nil
	}
	out := make([]string, hi-lo+1)
	copy(out, e.list[lo:hi+1])
	return out, nil
}

func (s *Store) ListLen(key string) (int64, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, err := typeCheck(sh, key, storage.TypeList)
	if err != nil || e == nil {
		return 0, err
	}
	return int64(len(e.list)), nil
}

func (s *Store) SetAdd(key string, members []string) (int64, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, err := typeCheck(sh, key, storage.TypeSet)
	if err != nil {
		return 0, err
	}
	if e == nil {
		e = &entry{kind: storage.TypeSet, set: make(map[string]struct{})}
		sh.items[key] = e
	}
	var added int64
	for _, m := range members {
		if _, exists := e.set[m]; !exists {
			e.set[m] = struct{}{}
			added++
		}
	}
	return added, nil
}

func (s *Store) SetRemove(key string, members []string) (int64, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, err := typeCheck(sh, key, storage.TypeSet)
	if err != nil || e == nil {
		return 0, err
	}
	var removed int64
	for _, m := range members {
		if _, exists := e.set[m]; exists {
			delete(e.set, m)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) SetMembers(key string) ([]string, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, err := typeCheck(sh, key, storage.TypeSet)
	if err != nil || e == nil {
		return nil, err
	}
	out := make([]string, 0, len(e.set))
	for m := range e.set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) SetContains(key, member string) (bool, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, err := typeCheck(sh, key, storage.TypeSet)
	if err != nil || e == nil {
		return false, err
	}
	_, ok := e.set[member]
	return ok, nil
}

func (s *Store) SetCardinality(key string) (int64, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, err := typeCheck(sh, key, storage.TypeSet)
	if err != nil || e == nil {
		return 0, err
	}
	return int64(len(e.set)), nil
}

func (s *Store) HashSet(key string, pairs map[string]string) (int64, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, err := typeCheck(sh, key, storage.TypeHash)
	if err != nil {
		return 0, err
	}
	if e == nil {
		e = &entry{kind: storage.TypeHash, hash: make(map[string]string)}
		sh.items[key] = e
	}
	var added int64
	for f, v := range pairs {
		if _, exists := e.hash[f]; !exists {
			added++
		}
		e.hash[f] = v
	}
	return added, nil
}

func (s *Store) HashGet(key, field string) (string, bool, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, err := typeCheck(sh, key, storage.TypeHash)
	if err != nil || e == nil {
		return "", false, err
	}
	v, ok := e.hash[field]
	return v, ok, nil
}

func (s *Store) HashDelete(key string, fields []string) (int64, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, err := typeCheck(sh, key, storage.TypeHash)
	if err != nil || e == nil {
		return 0, err
	}
	var removed int64
	for _, f := range fields {
		if _, ok := e.hash[f]; ok {
			delete(e.hash, f)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) HashGetAll(key string) (map[string]string, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, err := typeCheck(sh, key, storage.TypeHash)
	if err != nil || e == nil {
		return nil, err
	}
	out := make(map[string]string, len(e.hash))
	for k, v := range e.hash {
		out[k] = v
	}
	return out, nil
}

func (s *Store) HashExists(key, field string) (bool, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, err := typeCheck(sh, key, storage.TypeHash)
	if err != nil || e == nil {
		return false, err
	}
	_, ok := e.hash[field]
	return ok, nil
}

func (s *Store) ZSetAdd(key string, members []storage.ZMember) (int64, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, err := typeCheck(sh, key, storage.TypeZSet)
	if err != nil {
		return 0, err
	}
	if e == nil {
		e = &entry{kind: storage.TypeZSet, zset: make(map[string]float64)}
		sh.items[key] = e
	}
	var added int64
	for _, m := range members {
		if _, exists := e.zset[m.Member]; !exists {
			added++
		}
		e.zset[m.Member] = m.Score
	}
	return added, nil
}

func (s *Store) ZSetRemove(key string, members []string) (int64, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, err := typeCheck(sh, key, storage.TypeZSet)
	if err != nil || e == nil {
		return 0, err
	}
	var removed int64
	for _, m := range members {
		if _, ok := e.zset[m]; ok {
			delete(e.zset, m)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) ZSetScore(key, member string) (float64, bool, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, err := typeCheck(sh, key, storage.TypeZSet)
	if err != nil || e == nil {
		return 0, false, err
	}
	score, ok := e.zset[member]
	return score, ok, nil
}

func (s *Store) ZSetRange(key string, start, stop int64) ([]storage.ZMember, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, err := typeCheck(sh, key, storage.TypeZSet)
	if err != nil || e == nil {
		return nil, err
	}
	sorted := make([]storage.ZMember, 0, len(e.zset))
	for m, sc := range e.zset {
		sorted = append(sorted, storage.ZMember{Member: m, Score: sc})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score < sorted[j].Score
		}
		return sorted[i].Member < sorted[j].Member
	})
	lo, hi := clampRange(start, stop, len(sorted))
	if lo > hi {
		return []storage.ZMember{}, nil
	}
	return sorted[lo : hi+1], nil
}

func (s *Store) ZSetCardinality(key string) (int64, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, err := typeCheck(sh, key, storage.TypeZSet)
	if err != nil || e == nil {
		return 0, err
	}
	return int64(len(e.zset)), nil
}

// JSONSet stores value as the entire JSON document; path addressing
// beyond the whole-document root ("." or "") is not implemented.
func (s *Store) JSONSet(key, path, value string) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if _, err := typeCheck(sh, key, storage.TypeJSON); err != nil {
		return err
	}
	sh.items[key] = &entry{kind: storage.TypeJSON, json: value}
	return nil
}

func (s *Store) JSONGet(key, path string) (string, bool, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, err := typeCheck(sh, key, storage.TypeJSON)
	if err != nil || e == nil {
		return "", false, err
	}
	return e.json, true, nil
}

func (s *Store) JSONDelete(key, path string) (bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, err := typeCheck(sh, key, storage.TypeJSON)
	if err != nil || e == nil {
		return false, err
	}
	delete(sh.items, key)
	return true, nil
}

func (s *Store) StreamAppend(key string, fields map[string]string) (string, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	e, err := typeCheck(sh, key, storage.TypeStream)
	if err != nil {
		return "", err
	}
	if e == nil {
		e = &entry{kind: storage.TypeStream}
		sh.items[key] = e
	}
	id := fmt.Sprintf("%d-0", s.streamSeq.Add(1))
	fieldsCopy := make(map[string]string, len(fields))
	for k, v := range fields {
		fieldsCopy[k] = v
	}
	e.stream = append(e.stream, storage.StreamEntry{ID: id, Fields: fieldsCopy})
	return id, nil
}

func (s *Store) StreamRange(key, start, stop string) ([]storage.StreamEntry, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, err := typeCheck(sh, key, storage.TypeStream)
	if err != nil || e == nil {
		return nil, err
	}
	lo, hi := streamBounds(start), streamBoundsStop(stop, len(e.stream))
	var out []storage.StreamEntry
	for _, se := range e.stream {
		if streamIDLess(se.ID, lo) {
			continue
		}
		if hi != "" && streamIDLess(hi, se.ID) {
			continue
		}
		out = append(out, se)
	}
	return out, nil
}

func (s *Store) StreamLength(key string) (int64, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	e, err := typeCheck(sh, key, storage.TypeStream)
	if err != nil || e == nil {
		return 0, err
	}
	return int64(len(e.stream)), nil
}

func (s *Store) TypeOf(key string) (storage.Type, error) {
	e, ok := s.getEntry(key)
	if !ok {
		return storage.TypeNone, nil
	}
	return e.kind, nil
}

func (s *Store) Exists(keys []string) (int64, error) {
	var n int64
	for _, key := range keys {
		if _, ok := s.getEntry(key); ok {
			n++
		}
	}
	return n, nil
}

func (s *Store) FlushDatabase() error {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.items = make(map[string]*entry)
		sh.mu.Unlock()
	}
	return nil
}

func (s *Store) Close() error { return nil }

func clampRange(start, stop int64, n int) (int, int) {
	if n == 0 {
		return 0, -1
	}
	lo := normalizeIndex(start, n)
	hi := normalizeIndex(stop, n)
	if lo < 0 {
		lo = 0
	}
	if hi >= n {
		hi = n - 1
	}
	return lo, hi
}

func normalizeIndex(idx int64, n int) int {
	if idx < 0 {
		idx += int64(n)
	}
	return int(idx)
}

func streamIDLess(a, b string) bool {
	an, aerr := strconv.ParseInt(idPrefix(a), 10, 64)
	bn, berr := strconv.ParseInt(idPrefix(b), 10, 64)
	if aerr != nil || berr != nil {
		return a < b
	}
	return an < bn
}

func idPrefix(id string) string {
	for i, c := range id {
		if c == '-' {
			return id[:i]
		}
	}
	return id
}

func streamBounds(start string) string {
	if start == "-" {
		return "0"
	}
	return start
}

func streamBoundsStop(stop string, _ int) string {
	if stop == "+" {
		return ""
	}
	return stop
}
