package executor

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kvsrv/kvsrv/internal/arena"
	"github.com/kvsrv/kvsrv/internal/command"
	"github.com/kvsrv/kvsrv/internal/storage/memstore"
)

func run(t *testing.T, e *Executor, line string) string {
	t.Helper()
	a := arena.New(4096)
	cmd := command.Parse([]byte(line), a)
	var out bytes.Buffer
	e.Execute(cmd, &out)
	return out.String()
}

func TestPing(t *testing.T) {
	e := New(memstore.New())
	if got := run(t, e, "PING"); got != "PONG\n" {
		t.Fatalf("PING = %q", got)
	}
	if got := run(t, e, "PING hello"); got != "hello\n" {
		t.Fatalf("PING hello = %q", got)
	}
}

func TestSetGet(t *testing.T) {
	e := New(memstore.New())
	if got := run(t, e, "SET k v"); got != "OK\n" {
		t.Fatalf("SET = %q", got)
	}
	if got := run(t, e, "GET k"); got != "v\n" {
		t.Fatalf("GET = %q", got)
	}
	if got := run(t, e, "GET missing"); got != "(nil)\n" {
		t.Fatalf("GET missing = %q", got)
	}
}

func TestIncrDecr(t *testing.T) {
	e := New(memstore.New())
	if got := run(t, e, "INCR counter"); got != "(integer) 1\n" {
		t.Fatalf("INCR = %q", got)
	}
	if got := run(t, e, "INCRBY counter 4"); got != "(integer) 5\n" {
		t.Fatalf("INCRBY = %q", got)
	}
	if got := run(t, e, "DECR counter"); got != "(integer) 4\n" {
		t.Fatalf("DECR = %q", got)
	}
}

func TestTypeMismatchReply(t *testing.T) {
	e := New(memstore.New())
	run(t, e, "SET k v")
	got := run(t, e, "LPUSH k x")
	if !strings.HasPrefix(got, "ERROR: WRONGTYPE") {
		t.Fatalf("expected WRONGTYPE error, got %q", got)
	}
}

func TestListOps(t *testing.T) {
	e := New(memstore.New())
	run(t, e, "RPUSH list a b c")
	got := run(t, e, "LRANGE list 0 -1")
	if got != "1) a\n2) b\n3) c\n" {
		t.Fatalf("LRANGE = %q", got)
	}
	if got := run(t, e, "LLEN list"); got != "(integer) 3\n" {
		t.Fatalf("LLEN = %q", got)
	}
	if got := run(t, e, "LPOP list"); got != "a\n" {
		t.Fatalf("LPOP = %q", got)
	}
}

func TestSetOps(t *testing.T) {
	e := New(memstore.New())
	run(t, e, "SADD s a b c")
	if got := run(t, e, "SCARD s"); got != "(integer) 3\n" {
		t.Fatalf("SCARD = %q", got)
	}
	if got := run(t, e, "SISMEMBER s a"); got != "(integer) 1\n" {
		t.Fatalf("SISMEMBER = %q", got)
	}
	if got := run(t, e, "SISMEMBER s z"); got != "(integer) 0\n" {
		t.Fatalf("SISMEMBER missing = %q", got)
	}
}

func TestEmptyArrayReply(t *testing.T) {
	e := New(memstore.New())
	if got := run(t, e, "SMEMBERS missing"); got != "(empty array)\n" {
		t.Fatalf("SMEMBERS missing = %q", got)
	}
}

func TestHashOps(t *testing.T) {
	e := New(memstore.New())
	run(t, e, "HSET h f1 v1 f2 v2")
	if got := run(t, e, "HGET h f1"); got != "v1\n" {
		t.Fatalf("HGET = %q", got)
	}
	if got := run(t, e, "HEXISTS h f1"); got != "(integer) 1\n" {
		t.Fatalf("HEXISTS = %q", got)
	}
}

func TestZSetOps(t *testing.T) {
	e := New(memstore.New())
	run(t, e, "ZADD z 1 a 2 b")
	if got := run(t, e, "ZCARD z"); got != "(integer) 2\n" {
		t.Fatalf("ZCARD = %q", got)
	}
	if got := run(t, e, "ZRANGE z 0 -1"); got != "1) a\n2) b\n" {
		t.Fatalf("ZRANGE = %q", got)
	}
}

func TestUnknownCommandReply(t *testing.T) {
	e := New(memstore.New())
	got := run(t, e, "NOPE a b")
	if !strings.HasPrefix(got, "ERROR:") {
		t.Fatalf("expected error reply, got %q", got)
	}
}

func TestFlushDB(t *testing.T) {
	e := New(memstore.New())
	run(t, e, "SET a 1")
	if got := run(t, e, "FLUSHDB"); got != "OK\n" {
		t.Fatalf("FLUSHDB = %q", got)
	}
	if got := run(t, e, "EXISTS a"); got != "(integer) 0\n" {
		t.Fatalf("EXISTS after flush = %q", got)
	}
}
