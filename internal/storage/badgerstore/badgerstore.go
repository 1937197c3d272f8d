// Package badgerstore implements storage.Facade on top of Badger, an
// LSM-tree key-value engine that supplies the write-ahead log and crash
// consistency; this package only adapts Badger's byte-oriented API to
// the typed value contract the executor expects.
//
// Composite values (lists, sets, hashes, sorted sets, JSON documents,
// streams) are gob-encoded into a single record per key so that a whole
// value round-trips through one Badger read/write rather than being
// fragmented into per-element keys.
package badgerstore

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/kvsrv/kvsrv/internal/storage"
)

// record is the gob envelope stored under every key.
type record struct {
	Kind   storage.Type
	Str    string
	List   []string
	Set    map[string]struct{}
	Hash   map[string]string
	ZSet   map[string]float64
	JSON   string
	Stream []storage.StreamEntry
}

// Store implements storage.Facade on a Badger database.
type Store struct {
	db        *badger.DB
	streamSeq atomic.Int64
}

// Open opens (creating if necessary) a Badger database rooted at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

func encodeRecord(r *record) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeRecord(b []byte) (*record, error) {
	var r record
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) getRecord(txn *badger.Txn, key string) (*record, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var r *record
	err = item.Value(func(val []byte) error {
		decoded, derr := decodeRecord(val)
		if derr != nil {
			return derr
		}
		r = decoded
		return nil
	})
	return r, err
}

func (s *Store) putRecord(txn *badger.Txn, key string, r *record) error {
	enc, err := encodeRecord(r)
	if err != nil {
		return err
	}
	return txn.Set([]byte(key), enc)
}

func typeCheck(r *record, want storage.Type) error {
	if r != nil && r.Kind != want {
		return storage.ErrWrongType
	}
	return nil
}

func (s *Store) Get(key string) (string, bool, error) {
	var val string
	var found bool
	err := s.db.View(func(txn *badger.Txn) error {
		r, err := s.getRecord(txn, key)
		if err != nil || r == nil {
			return err
		}
		if err := typeCheck(r, storage.TypeString); err != nil {
			return err
		}
		val, found = r.Str, true
		return nil
	})
	return val, found, err
}

func (s *Store) Set(key, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return s.putRecord(txn, key, &record{Kind: storage.TypeString, Str: value})
	})
}

func (s *Store) Delete(keys []string) (int64, error) {
	var n int64
	err := s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if _, err := txn.Get([]byte(key)); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

func (s *Store) mutate(key string, want storage.Type, zero func() *record, fn func(*record) error) error {
	return s.db.Update(func(txn *badger.Txn) error {
		r, err := s.getRecord(txn, key)
		if err != nil {
			return err
		}
		if err := typeCheck(r, want); err != nil {
			return err
		}
		if r == nil {
			r = zero()
		}
		if err := fn(r); err != nil {
			return err
		}
		return s.putRecord(txn, key, r)
	})
}

func (s *Store) view(key string, want storage.Type, fn func(*record) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		r, err := s.getRecord(txn, key)
		if err != nil {
			return err
		}
		if err := typeCheck(r, want); err != nil {
			return err
		}
		return fn(r)
	})
}

func (s *Store) ListPushFront(key string, values []string) (int64, error) {
	var n int64
	err := s.mutate(key, storage.TypeList, func() *record { return &record{Kind: storage.TypeList} }, func(r *record) error {
		for _, v := range values {
			r.List = append([]string{v}, r.List...)
		}
		n = int64(len(r.List))
		return nil
	})
	return n, err
}

func (s *Store) ListPushBack(key string, values []string) (int64, error) {
	var n int64
	err := s.mutate(key, storage.TypeList, func() *record { return &record{Kind: storage.TypeList} }, func(r *record) error {
		r.List = append(r.List, values...)
		n = int64(len(r.List))
		return nil
	})
	return n, err
}

func (s *Store) ListPopFront(key string) (string, bool, error) {
	var v string
	var ok bool
	err := s.mutate(key, storage.TypeList, func() *record { return &record{Kind: storage.TypeList} }, func(r *record) error {
		if len(r.List) == 0 {
			return nil
		}
		v, ok = r.List[0], true
		r.List = r.List[1:]
		return nil
	})
	return v, ok, err
}

func (s *Store) ListPopBack(key string) (string, bool, error) {
	var v string
	var ok bool
	err := s.mutate(key, storage.TypeList, func() *record { return &record{Kind: storage.TypeList} }, func(r *record) error {
		if len(r.List) == 0 {
			return nil
		}
		n := len(r.List)
		v, ok = r.List[n-1], true
		r.List = r.List[:n-1]
		return nil
	})
	return v, ok, err
}

func (s *Store) ListRange(key string, start, stop int64) ([]string, error) {
	var out []string
	err := s.view(key, storage.TypeList, func(r *record) error {
		if r == nil {
			return nil
		}
		lo, hi := clampRange(start, stop, len(r.List))
		if lo > hi {
			out = []string{}
			return nil
		}
		out = make([]string, hi-lo+1)
		copy(out, r.List[lo:hi+1])
		return nil
	})
	return out, err
}

func (s *Store) ListLen(key string) (int64, error) {
	var n int64
	err := s.view(key, storage.TypeList, func(r *record) error {
		if r != nil {
			n = int64(len(r.List))
		}
		return nil
	})
	return n, err
}

func (s *Store) SetAdd(key string, members []string) (int64, error) {
	var added int64
	err := s.mutate(key, storage.TypeSet, func() *record { return &record{Kind: storage.TypeSet, Set: map[string]struct{}{}} }, func(r *record) error {
		if r.Set == nil {
			r.Set = map[string]struct{}{}
		}
		for _, m := range members {
			if _, exists := r.Set[m]; !exists {
				r.Set[m] = struct{}{}
				added++
			}
		}
		return nil
	})
	return added, err
}

func (s *Store) SetRemove(key string, members []string) (int64, error) {
	var removed int64
	err := s.mutate(key, storage.TypeSet, func() *record { return &record{Kind: storage.TypeSet, Set: map[string]struct{}{}} }, func(r *record) error {
		for _, m := range members {
			if _, exists := r.Set[m]; exists {
				delete(r.Set, m)
				removed++
			}
		}
		return nil
	})
	return removed, err
}

func (s *Store) SetMembers(key string) ([]string, error) {
	var out []string
	err := s.view(key, storage.TypeSet, func(r *record) error {
		if r == nil {
			return nil
		}
		out = make([]string, 0, len(r.Set))
		for m := range r.Set {
			out = append(out, m)
		}
		sort.Strings(out)
		return nil
	})
	return out, err
}

func (s *Store) SetContains(key, member string) (bool, error) {
	var ok bool
	err := s.view(key, storage.TypeSet, func(r *record) error {
		if r == nil {
			return nil
		}
		_, ok = r.Set[member]
		return nil
	})
	return ok, err
}

func (s *Store) SetCardinality(key string) (int64, error) {
	var n int64
	err := s.view(key, storage.TypeSet, func(r *record) error {
		if r != nil {
			n = int64(len(r.Set))
		}
		return nil
	})
	return n, err
}

func (s *Store) HashSet(key string, pairs map[string]string) (int64, error) {
	var added int64
	err := s.mutate(key, storage.TypeHash, func() *record { return &record{Kind: storage.TypeHash, Hash: map[string]string{}} }, func(r *record) error {
		if r.Hash == nil {
			r.Hash = map[string]string{}
		}
		for f, v := range pairs {
			if _, exists := r.Hash[f]; !exists {
				added++
			}
			r.Hash[f] = v
		}
		return nil
	})
	return added, err
}

func (s *Store) HashGet(key, field string) (string, bool, error) {
	var v string
	var ok bool
	err := s.view(key, storage.TypeHash, func(r *record) error {
		if r == nil {
			return nil
		}
		v, ok = r.Hash[field]
		return nil
	})
	return v, ok, err
}

func (s *Store) HashDelete(key string, fields []string) (int64, error) {
	var removed int64
	err := s.mutate(key, storage.TypeHash, func() *record { return &record{Kind: storage.TypeHash, Hash: map[string]string{}} }, func(r *record) error {
		for _, f := range fields {
			if _, ok := r.Hash[f]; ok {
				delete(r.Hash, f)
				removed++
			}
		}
		return nil
	})
	return removed, err
}

func (s *Store) HashGetAll(key string) (map[string]string, error) {
	var out map[string]string
	err := s.view(key, storage.TypeHash, func(r *record) error {
		if r == nil {
			return nil
		}
		out = make(map[string]string, len(r.Hash))
		for k, v := range r.Hash {
			out[k] = v
		}
		return nil
	})
	return out, err
}

func (s *Store) HashExists(key, field string) (bool, error) {
	var ok bool
	err := s.view(key, storage.TypeHash, func(r *record) error {
		if r == nil {
			return nil
		}
		_, ok = r.Hash[field]
		return nil
	})
	return ok, err
}

func (s *Store) ZSetAdd(key string, members []storage.ZMember) (int64, error) {
	var added int64
	err := s.mutate(key, storage.TypeZSet, func() *record { return &record{Kind: storage.TypeZSet, ZSet: map[string]float64{}} }, func(r *record) error {
		if r.ZSet == nil {
			r.ZSet = map[string]float64{}
		}
		for _, m := range members {
			if _, exists := r.ZSet[m.Member]; !exists {
				added++
			}
			r.ZSet[m.Member] = m.Score
		}
		return nil
	})
	return added, err
}

func (s *Store) ZSetRemove(key string, members []string) (int64, error) {
	var removed int64
	err := s.mutate(key, storage.TypeZSet, func() *record { return &record{Kind: storage.TypeZSet, ZSet: map[string]float64{}} }, func(r *record) error {
		for _, m := range members {
			if _, ok := r.ZSet[m]; ok {
				delete(r.ZSet, m)
				removed++
			}
		}
		return nil
	})
	return removed, err
}

func (s *Store) ZSetScore(key, member string) (float64, bool, error) {
	var score float64
	var ok bool
	err := s.view(key, storage.TypeZSet, func(r *record) error {
		if r == nil {
			return nil
		}
		score, ok = r.ZSet[member]
		return nil
	})
	return score, ok, err
}

func (s *Store) ZSetRange(key string, start, stop int64) ([]storage.ZMember, error) {
	var out []storage.ZMember
	err := s.view(key, storage.TypeZSet, func(r *record) error {
		if r == nil {
			return nil
		}
		sorted := make([]storage.ZMember, 0, len(r.ZSet))
		for m, sc := range r.ZSet {
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
			out = []storage.ZMember{}
			return nil
		}
		out = sorted[lo : hi+1]
		return nil
	})
	return out, err
}

func (s *Store) ZSetCardinality(key string) (int64, error) {
	var n int64
	err := s.view(key, storage.TypeZSet, func(r *record) error {
		if r != nil {
			n = int64(len(r.ZSet))
		}
		return nil
	})
	return n, err
}

func (s *Store) JSONSet(key, path, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		r, err := s.getRecord(txn, key)
		if err != nil {
			return err
		}
		if err := typeCheck(r, storage.TypeJSON); err != nil {
			return err
		}
		return s.putRecord(txn, key, &record{Kind: storage.TypeJSON, JSON: value})
	})
}

func (s *Store) JSONGet(key, path string) (string, bool, error) {
	var v string
	var ok bool
	err := s.view(key, storage.TypeJSON, func(r *record) error {
		if r == nil {
			return nil
		}
		v, ok = r.JSON, true
		return nil
	})
	return v, ok, err
}

func (s *Store) JSONDelete(key, path string) (bool, error) {
	var deleted bool
	err := s.db.Update(func(txn *badger.Txn) error {
		r, err := s.getRecord(txn, key)
		if err != nil || r == nil {
			return err
		}
		if err := typeCheck(r, storage.TypeJSON); err != nil {
			return err
		}
		deleted = true
		return txn.Delete([]byte(key))
	})
	return deleted, err
}

func (s *Store) StreamAppend(key string, fields map[string]string) (string, error) {
	id := fmt.Sprintf("%d-0", s.streamSeq.Add(1))
	err := s.mutate(key, storage.TypeStream, func() *record { return &record{Kind: storage.TypeStream} }, func(r *record) error {
		fieldsCopy := make(map[string]string, len(fields))
		for k, v := range fields {
			fieldsCopy[k] = v
		}
		r.Stream = append(r.Stream, storage.StreamEntry{ID: id, Fields: fieldsCopy})
		return nil
	})
	return id, err
}

func (s *Store) StreamRange(key, start, stop string) ([]storage.StreamEntry, error) {
	var out []storage.StreamEntry
	err := s.view(key, storage.TypeStream, func(r *record) error {
		if r == nil {
			return nil
		}
		lo, hi := streamBound(start, "0"), streamBound(stop, "")
		for _, se := range r.Stream {
			if streamIDLess(se.ID, lo) {
				continue
			}
			if hi != "" && streamIDLess(hi, se.ID) {
				continue
			}
			out = append(out, se)
		}
		return nil
	})
	return out, err
}

func (s *Store) StreamLength(key string) (int64, error) {
	var n int64
	err := s.view(key, storage.TypeStream, func(r *record) error {
		if r != nil {
			n = int64(len(r.Stream))
		}
		return nil
	})
	return n, err
}

func (s *Store) TypeOf(key string) (storage.Type, error) {
	var t storage.Type
	err := s.db.View(func(txn *badger.Txn) error {
		r, err := s.getRecord(txn, key)
		if err != nil || r == nil {
			return err
		}
		t = r.Kind
		return nil
	})
	return t, err
}

func (s *Store) Exists(keys []string) (int64, error) {
	var n int64
	err := s.db.View(func(txn *badger.Txn) error {
		for _, key := range keys {
			if _, err := txn.Get([]byte(key)); err == nil {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s *Store) FlushDatabase() error {
	return s.db.DropAll()
}

func (s *Store) Close() error {
	return s.db.Close()
}

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

func streamBound(v, minusValue string) string {
	if v == "-" {
		return minusValue
	}
	if v == "+" {
		return ""
	}
	return v
}
