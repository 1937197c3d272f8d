package command

import (
	"testing"

	"github.com/kvsrv/kvsrv/internal/arena"
)

func parse(t *testing.T, line string) *ParsedCommand {
	t.Helper()
	a := arena.New(4096)
	return Parse([]byte(line), a)
}

func TestParsePing(t *testing.T) {
	cmd := parse(t, "PING")
	if cmd.Err != nil {
		t.Fatalf("unexpected error: %v", cmd.Err)
	}
	if cmd.Opcode != OpPing {
		t.Fatalf("opcode = %v, want PING", cmd.Opcode)
	}
}

func TestParseLowercaseFolded(t *testing.T) {
	cmd := parse(t, "get hello")
	if cmd.Err != nil {
		t.Fatalf("unexpected error: %v", cmd.Err)
	}
	if cmd.Opcode != OpGet {
		t.Fatalf("opcode = %v, want GET", cmd.Opcode)
	}
	if cmd.Key.String() != "hello" {
		t.Fatalf("key = %q", cmd.Key.String())
	}
}

func TestParseSetRoundTrip(t *testing.T) {
	cmd := parse(t, "SET hello world")
	if cmd.Err != nil {
		t.Fatalf("unexpected error: %v", cmd.Err)
	}
	if cmd.Opcode != OpSet {
		t.Fatal("wrong opcode")
	}
	if cmd.ArgCount() != 2 {
		t.Fatalf("ArgCount = %d", cmd.ArgCount())
	}
	if cmd.Args[0].String() != "hello" || cmd.Args[1].String() != "world" {
		t.Fatalf("args = %q %q", cmd.Args[0].String(), cmd.Args[1].String())
	}
	if !cmd.HasKey || cmd.Key.String() != "hello" {
		t.Fatal("key not set correctly")
	}
}

func TestParseQuotedWithSpace(t *testing.T) {
	cmd := parse(t, `SET greeting "hello world"`)
	if cmd.Err != nil {
		t.Fatalf("unexpected error: %v", cmd.Err)
	}
	if cmd.Args[1].String() != "hello world" {
		t.Fatalf("arg = %q", cmd.Args[1].String())
	}
}

func TestParseQuotedWithEscape(t *testing.T) {
	cmd := parse(t, `SET k "a\"b"`)
	if cmd.Err != nil {
		t.Fatalf("unexpected error: %v", cmd.Err)
	}
	if cmd.Args[1].String() != `a"b` {
		t.Fatalf("arg = %q", cmd.Args[1].String())
	}
}

func TestParseSingleQuoted(t *testing.T) {
	cmd := parse(t, `SET k 'it is fine'`)
	if cmd.Err != nil {
		t.Fatalf("unexpected error: %v", cmd.Err)
	}
	if cmd.Args[1].String() != "it is fine" {
		t.Fatalf("arg = %q", cmd.Args[1].String())
	}
}

func TestParseUnclosedQuote(t *testing.T) {
	cmd := parse(t, `SET k "oops`)
	if cmd.Err == nil || cmd.Err.Kind != ErrUnclosedQuote {
		t.Fatalf("expected unclosed quote error, got %v", cmd.Err)
	}
}

func TestParseUnknownCommand(t *testing.T) {
	cmd := parse(t, "FOO bar")
	if cmd.Err == nil || cmd.Err.Kind != ErrUnknownCommand {
		t.Fatalf("expected unknown command error, got %v", cmd.Err)
	}
}

func TestParseTooFewArgs(t *testing.T) {
	cmd := parse(t, "SET onlykey")
	if cmd.Err == nil || cmd.Err.Kind != ErrTooFewArgs {
		t.Fatalf("expected too-few-args error, got %v", cmd.Err)
	}
}

func TestParseTooManyArgs(t *testing.T) {
	cmd := parse(t, "GET a b")
	if cmd.Err == nil || cmd.Err.Kind != ErrTooManyArgs {
		t.Fatalf("expected too-many-args error, got %v", cmd.Err)
	}
}

func TestParseInvalidInteger(t *testing.T) {
	cmd := parse(t, "INCRBY counter notanumber")
	if cmd.Err == nil || cmd.Err.Kind != ErrInvalidInteger {
		t.Fatalf("expected invalid integer error, got %v", cmd.Err)
	}
}

func TestParseIncrByPreParsesInt(t *testing.T) {
	cmd := parse(t, "INCRBY counter -42")
	if cmd.Err != nil {
		t.Fatalf("unexpected error: %v", cmd.Err)
	}
	if !cmd.HasInt1 || cmd.Int1 != -42 {
		t.Fatalf("Int1 = %d, HasInt1 = %v", cmd.Int1, cmd.HasInt1)
	}
}

func TestParseLRangePreParsesTwoInts(t *testing.T) {
	cmd := parse(t, "LRANGE mylist 0 -1")
	if cmd.Err != nil {
		t.Fatalf("unexpected error: %v", cmd.Err)
	}
	if !cmd.HasInt1 || cmd.Int1 != 0 || !cmd.HasInt2 || cmd.Int2 != -1 {
		t.Fatalf("Int1=%d HasInt1=%v Int2=%d HasInt2=%v", cmd.Int1, cmd.HasInt1, cmd.Int2, cmd.HasInt2)
	}
}

func TestParsePingWithNoArgsHasNoKey(t *testing.T) {
	cmd := parse(t, "PING")
	if cmd.HasKey {
		t.Fatal("PING should not require a key")
	}
}

func TestParseVariadicLPush(t *testing.T) {
	cmd := parse(t, "LPUSH q a b c")
	if cmd.Err != nil {
		t.Fatalf("unexpected error: %v", cmd.Err)
	}
	if cmd.ArgCount() != 4 {
		t.Fatalf("ArgCount = %d, want 4", cmd.ArgCount())
	}
	if cmd.Key.String() != "q" {
		t.Fatalf("key = %q", cmd.Key.String())
	}
}

func TestParseEmptyLineIsUnknown(t *testing.T) {
	cmd := parse(t, "   ")
	if cmd.Err == nil || cmd.Err.Kind != ErrUnknownCommand {
		t.Fatalf("expected unknown command on blank line, got %v", cmd.Err)
	}
}

func TestParseDoesNotReadPastBounds(t *testing.T) {
	inputs := []string{
		"",
		"\t\t",
		`"`,
		`'`,
		`SET k "\`,
		string(make([]byte, 50)),
	}
	for _, in := range inputs {
		a := arena.New(256)
		cmd := Parse([]byte(in), a)
		if cmd == nil {
			t.Fatalf("Parse(%q) returned nil", in)
		}
	}
}

func TestParseBareTokenIsZeroCopy(t *testing.T) {
	line := []byte("SET hello world")
	a := arena.New(4096)
	cmd := Parse(line, a)
	if cmd.Err != nil {
		t.Fatalf("unexpected error: %v", cmd.Err)
	}
	got := cmd.Args[0].Bytes()
	if &got[0] != &line[4] {
		t.Fatal("expected bare token to alias the input line, not be copied")
	}
}
