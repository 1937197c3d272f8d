package memstore

import (
	"testing"

	"github.com/kvsrv/kvsrv/internal/storage"
)

func TestGetSetRoundTrip(t *testing.T) {
	s := New()
	if err := s.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := s.Get("k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}
}

func TestGetMissingKey(t *testing.T) {
	s := New()
	_, ok, err := s.Get("missing")
	if err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}
}

func TestWrongTypeOnStringVsList(t *testing.T) {
	s := New()
	_ = s.Set("k", "v")
	if _, err := s.ListLen("k"); err != storage.ErrWrongType {
		t.Fatalf("expected ErrWrongType, got %v", err)
	}
}

func TestListPushAndRange(t *testing.T) {
	s := New()
	n, err := s.ListPushFront("q", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("ListPushFront: %v", err)
	}
	if n != 3 {
		t.Fatalf("n = %d, want 3", n)
	}
	got, err := s.ListRange("q", 0, -1)
	if err != nil {
		t.Fatalf("ListRange: %v", err)
	}
	want := []string{"c", "b", "a"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestListPopFrontBack(t *testing.T) {
	s := New()
	_, _ = s.ListPushBack("l", []string{"a", "b", "c"})
	v, ok, err := s.ListPopFront("l")
	if err != nil || !ok || v != "a" {
		t.Fatalf("ListPopFront = %q %v %v", v, ok, err)
	}
	v, ok, err = s.ListPopBack("l")
	if err != nil || !ok || v != "c" {
		t.Fatalf("ListPopBack = %q %v %v", v, ok, err)
	}
}

func TestSetAddRemoveMembers(t *testing.T) {
	s := New()
	n, err := s.SetAdd("s", []string{"a", "b", "a"})
	if err != nil || n != 2 {
		t.Fatalf("SetAdd = %d, %v", n, err)
	}
	ok, err := s.SetContains("s", "a")
	if err != nil || !ok {
		t.Fatalf("SetContains = %v, %v", ok, err)
	}
	removed, err := s.SetRemove("s", []string{"a"})
	if err != nil || removed != 1 {
		t.Fatalf("SetRemove = %d, %v", removed, err)
	}
	card, err := s.SetCardinality("s")
	if err != nil || card != 1 {
		t.Fatalf("SetCardinality = %d, %v", card, err)
	}
}

func TestHashSetGetAll(t *testing.T) {
	s := New()
	_, err := s.HashSet("h", map[string]string{"f1": "v1", "f2": "v2"})
	if err != nil {
		t.Fatalf("HashSet: %v", err)
	}
	v, ok, err := s.HashGet("h", "f1")
	if err != nil || !ok || v != "v1" {
		t.Fatalf("HashGet = %q %v %v", v, ok, err)
	}
	all, err := s.HashGetAll("h")
	if err != nil || len(all) != 2 {
		t.Fatalf("HashGetAll = %v, %v", all, err)
	}
}

func TestZSetAddRange(t *testing.T) {
	s := New()
	_, err := s.ZSetAdd("z", []storage.ZMember{{Member: "a", Score: 3}, {Member: "b", Score: 1}, {Member: "c", Score: 2}})
	if err != nil {
		t.Fatalf("ZSetAdd: %v", err)
	}
	got, err := s.ZSetRange("z", 0, -1)
	if err != nil {
		t.Fatalf("ZSetRange: %v", err)
	}
	want := []string{"b", "c", "a"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i, w := range want {
		if got[i].Member != w {
			t.Fatalf("got %v, want order %v", got, want)
		}
	}
}

func TestJSONSetGetDelete(t *testing.T) {
	s := New()
	if err := s.JSONSet("j", ".", `{"a":1}`); err != nil {
		t.Fatalf("JSONSet: %v", err)
	}
	v, ok, err := s.JSONGet("j", ".")
	if err != nil || !ok || v != `{"a":1}` {
		t.Fatalf("JSONGet = %q %v %v", v, ok, err)
	}
	deleted, err := s.JSONDelete("j", ".")
	if err != nil || !deleted {
		t.Fatalf("JSONDelete = %v, %v", deleted, err)
	}
}

func TestStreamAppendRangeLength(t *testing.T) {
	s := New()
	id1, err := s.StreamAppend("st", map[string]string{"f": "1"})
	if err != nil {
		t.Fatalf("StreamAppend: %v", err)
	}
	id2, err := s.StreamAppend("st", map[string]string{"f": "2"})
	if err != nil {
		t.Fatalf("StreamAppend: %v", err)
	}
	if id1 == id2 {
		t.Fatal("expected distinct stream IDs")
	}
	n, err := s.StreamLength("st")
	if err != nil || n != 2 {
		t.Fatalf("StreamLength = %d, %v", n, err)
	}
	entries, err := s.StreamRange("st", "-", "+")
	if err != nil || len(entries) != 2 {
		t.Fatalf("StreamRange = %v, %v", entries, err)
	}
}

func TestTypeOfAndExists(t *testing.T) {
	s := New()
	_ = s.Set("k", "v")
	typ, err := s.TypeOf("k")
	if err != nil || typ != storage.TypeString {
		t.Fatalf("TypeOf = %v, %v", typ, err)
	}
	n, err := s.Exists([]string{"k", "missing"})
	if err != nil || n != 1 {
		t.Fatalf("Exists = %d, %v", n, err)
	}
}

func TestDeleteMultiple(t *testing.T) {
	s := New()
	_ = s.Set("a", "1")
	_ = s.Set("b", "2")
	n, err := s.Delete([]string{"a", "b", "c"})
	if err != nil || n != 2 {
		t.Fatalf("Delete = %d, %v", n, err)
	}
}

func TestFlushDatabase(t *testing.T) {
	s := New()
	_ = s.Set("a", "1")
	if err := s.FlushDatabase(); err != nil {
		t.Fatalf("FlushDatabase: %v", err)
	}
	n, err := s.Exists([]string{"a"})
	if err != nil || n != 0 {
		t.Fatalf("expected empty database, got n=%d err=%v", n, err)
	}
}
