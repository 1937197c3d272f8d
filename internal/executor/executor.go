// Package executor maps a parsed command onto a storage.Facade call and
// formats the result as a wire reply. It implements the
// internal/connection.Executor interface, so a *Executor is the only
// thing the connection layer knows about command semantics.
package executor

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/kvsrv/kvsrv/internal/command"
	"github.com/kvsrv/kvsrv/internal/metrics"
	"github.com/kvsrv/kvsrv/internal/storage"
	kverrors "github.com/kvsrv/kvsrv/pkg/errors"
)

// Executor dispatches parsed commands against a storage facade.
type Executor struct {
	store     storage.Facade
	startedAt time.Time
	version   string
}

// New returns an Executor backed by store.
func New(store storage.Facade) *Executor {
	return &Executor{store: store, startedAt: time.Now(), version: "0.1.0"}
}

// Execute runs cmd against the facade and appends the formatted reply to
// out. It never returns an error; all failures become a wire-level
// reply line, per the parse-error and type-mismatch recovery policy.
func (e *Executor) Execute(cmd *command.ParsedCommand, out *bytes.Buffer) {
	if cmd.Err != nil {
		writeError(out, cmd.Err.Message)
		metrics.RecordParseError(cmd.Err.Kind.String())
		return
	}

	start := time.Now()
	before := out.Len()
	e.dispatch(cmd, out)
	ok := !bytes.Contains(out.Bytes()[before:], []byte("ERROR:"))
	metrics.RecordCommand(cmd.Opcode.String(), time.Since(start).Seconds(), ok)
}

func (e *Executor) dispatch(cmd *command.ParsedCommand, out *bytes.Buffer) {
	switch cmd.Opcode {
	case command.OpGet:
		e.doGet(cmd, out)
	case command.OpSet:
		e.doSet(cmd, out)
	case command.OpIncr:
		e.doIncrBy(cmd, out, 1)
	case command.OpDecr:
		e.doIncrBy(cmd, out, -1)
	case command.OpIncrBy:
		e.doIncrBy(cmd, out, cmd.Int1)
	case command.OpAppend:
		e.doAppend(cmd, out)
	case command.OpLPush:
		e.doListPush(cmd, out, e.store.ListPushFront)
	case command.OpRPush:
		e.doListPush(cmd, out, e.store.ListPushBack)
	case command.OpLPop:
		e.doListPop(cmd, out, e.store.ListPopFront)
	case command.OpRPop:
		e.doListPop(cmd, out, e.store.ListPopBack)
	case command.OpLRange:
		e.doListRange(cmd, out)
	case command.OpLLen:
		n, err := e.store.ListLen(str(cmd.Key))
		e.doIntResult(out, n, err)
	case command.OpSAdd:
		e.doSetAdd(cmd, out)
	case command.OpSRem:
		e.doSetRemove(cmd, out)
	case command.OpSIsMember:
		e.doSIsMember(cmd, out)
	case command.OpSMembers:
		e.doSMembers(cmd, out)
	case command.OpSCard:
		n, err := e.store.SetCardinality(str(cmd.Key))
		e.doIntResult(out, n, err)
	case command.OpHSet:
		e.doHSet(cmd, out)
	case command.OpHGet:
		e.doHGet(cmd, out)
	case command.OpHDel:
		n, err := e.store.HashDelete(str(cmd.Key), argStrings(cmd.Args[1:]))
		e.doIntResult(out, n, err)
	case command.OpHGetAll:
		e.doHGetAll(cmd, out)
	case command.OpHExists:
		e.doHExists(cmd, out)
	case command.OpZAdd:
		e.doZAdd(cmd, out)
	case command.OpZRem:
		n, err := e.store.ZSetRemove(str(cmd.Key), argStrings(cmd.Args[1:]))
		e.doIntResult(out, n, err)
	case command.OpZScore:
		e.doZScore(cmd, out)
	case command.OpZRange:
		e.doZRange(cmd, out)
	case command.OpZCard:
		n, err := e.store.ZSetCardinality(str(cmd.Key))
		e.doIntResult(out, n, err)
	case command.OpJSONSet:
		e.doJSONSet(cmd, out)
	case command.OpJSONGet:
		e.doJSONGet(cmd, out)
	case command.OpJSONDel:
		e.doJSONDel(cmd, out)
	case command.OpXAdd:
		e.doXAdd(cmd, out)
	case command.OpXLen:
		n, err := e.store.StreamLength(str(cmd.Key))
		e.doIntResult(out, n, err)
	case command.OpXRange:
		e.doXRange(cmd, out)
	case command.OpType:
		e.doType(cmd, out)
	case command.OpExists:
		n, err := e.store.Exists(argStrings(cmd.Args))
		e.doIntResult(out, n, err)
	case command.OpDel:
		n, err := e.store.Delete(argStrings(cmd.Args))
		e.doIntResult(out, n, err)
	case command.OpPing:
		e.doPing(cmd, out)
	case command.OpEcho:
		writeBulk(out, str(cmd.Args[0]))
	case command.OpFlushDB:
		e.doFlushDB(out)
	case command.OpInfo:
		e.doInfo(out)
	default:
		writeError(out, "Unknown command")
	}
}

func argStrings(views []command.StringView) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = str(v)
	}
	return out
}

// str copies a StringView's bytes into a new, heap-owned string. Storage
// calls must never retain a StringView's zero-copy alias past this
// request's arena reset, so every value handed to the facade goes
// through this copy rather than StringView.String().
func str(v command.StringView) string { return string(v.Bytes()) }

func writeBulk(out *bytes.Buffer, v string) {
	out.WriteString(v)
	out.WriteByte('\n')
}

func writeNilBulk(out *bytes.Buffer) {
	out.WriteString("(nil)\n")
}

func writeInt(out *bytes.Buffer, n int64) {
	fmt.Fprintf(out, "(integer) %d\n", n)
}

func writeOK(out *bytes.Buffer) {
	out.WriteString("OK\n")
}

func writeError(out *bytes.Buffer, msg string) {
	out.WriteString("ERROR: ")
	out.WriteString(msg)
	out.WriteByte('\n')
}

func writeArray(out *bytes.Buffer, items []string) {
	if len(items) == 0 {
		out.WriteString("(empty array)\n")
		return
	}
	for i, v := range items {
		fmt.Fprintf(out, "%d) %s\n", i+1, v)
	}
}

// handleErr writes the appropriate reply for a storage error and reports
// whether it wrote one (true means the caller should stop).
func handleErr(out *bytes.Buffer, err error) bool {
	if err == nil {
		return false
	}
	if err == storage.ErrWrongType {
		writeError(out, kverrors.ErrWrongType.Error())
		return true
	}
	writeError(out, err.Error())
	return true
}

func (e *Executor) doGet(cmd *command.ParsedCommand, out *bytes.Buffer) {
	v, ok, err := e.store.Get(str(cmd.Key))
	if handleErr(out, err) {
		return
	}
	if !ok {
		writeNilBulk(out)
		return
	}
	writeBulk(out, v)
}

func (e *Executor) doSet(cmd *command.ParsedCommand, out *bytes.Buffer) {
	if err := e.store.Set(str(cmd.Key), str(cmd.Args[1])); handleErr(out, err) {
		return
	}
	writeOK(out)
}

func (e *Executor) doIncrBy(cmd *command.ParsedCommand, out *bytes.Buffer, delta int64) {
	key := str(cmd.Key)
	v, ok, err := e.store.Get(key)
	if handleErr(out, err) {
		return
	}
	var cur int64
	if ok {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			writeError(out, kverrors.ErrNotInteger.Error())
			return
		}
		cur = n
	}
	cur += delta
	if err := e.store.Set(key, strconv.FormatInt(cur, 10)); handleErr(out, err) {
		return
	}
	writeInt(out, cur)
}

func (e *Executor) doAppend(cmd *command.ParsedCommand, out *bytes.Buffer) {
	key := str(cmd.Key)
	v, ok, err := e.store.Get(key)
	if handleErr(out, err) {
		return
	}
	newVal := str(cmd.Args[1])
	if ok {
		newVal = v + newVal
	}
	if err := e.store.Set(key, newVal); handleErr(out, err) {
		return
	}
	writeInt(out, int64(len(newVal)))
}

func (e *Executor) doListPush(cmd *command.ParsedCommand, out *bytes.Buffer, push func(string, []string) (int64, error)) {
	n, err := push(str(cmd.Key), argStrings(cmd.Args[1:]))
	if handleErr(out, err) {
		return
	}
	writeInt(out, n)
}

func (e *Executor) doListPop(cmd *command.ParsedCommand, out *bytes.Buffer, pop func(string) (string, bool, error)) {
	v, ok, err := pop(str(cmd.Key))
	if handleErr(out, err) {
		return
	}
	if !ok {
		writeNilBulk(out)
		return
	}
	writeBulk(out, v)
}

func (e *Executor) doListRange(cmd *command.ParsedCommand, out *bytes.Buffer) {
	items, err := e.store.ListRange(str(cmd.Key), cmd.Int1, cmd.Int2)
	if handleErr(out, err) {
		return
	}
	writeArray(out, items)
}

func (e *Executor) doSetAdd(cmd *command.ParsedCommand, out *bytes.Buffer) {
	n, err := e.store.SetAdd(str(cmd.Key), argStrings(cmd.Args[1:]))
	if handleErr(out, err) {
		return
	}
	writeInt(out, n)
}

func (e *Executor) doSetRemove(cmd *command.ParsedCommand, out *bytes.Buffer) {
	n, err := e.store.SetRemove(str(cmd.Key), argStrings(cmd.Args[1:]))
	if handleErr(out, err) {
		return
	}
	writeInt(out, n)
}

func (e *Executor) doSIsMember(cmd *command.ParsedCommand, out *bytes.Buffer) {
	ok, err := e.store.SetContains(str(cmd.Key), str(cmd.Args[1]))
	if handleErr(out, err) {
		return
	}
	if ok {
		writeInt(out, 1)
	} else {
		writeInt(out, 0)
	}
}

func (e *Executor) doSMembers(cmd *command.ParsedCommand, out *bytes.Buffer) {
	members, err := e.store.SetMembers(str(cmd.Key))
	if handleErr(out, err) {
		return
	}
	writeArray(out, members)
}

func (e *Executor) doHSet(cmd *command.ParsedCommand, out *bytes.Buffer) {
	fieldArgs := cmd.Args[1:]
	if len(fieldArgs)%2 != 0 {
		writeError(out, "wrong number of arguments for HSET")
		return
	}
	pairs := make(map[string]string, len(fieldArgs)/2)
	for i := 0; i < len(fieldArgs); i += 2 {
		pairs[str(fieldArgs[i])] = str(fieldArgs[i+1])
	}
	n, err := e.store.HashSet(str(cmd.Key), pairs)
	if handleErr(out, err) {
		return
	}
	writeInt(out, n)
}

func (e *Executor) doHGet(cmd *command.ParsedCommand, out *bytes.Buffer) {
	v, ok, err := e.store.HashGet(str(cmd.Key), str(cmd.Args[1]))
	if handleErr(out, err) {
		return
	}
	if !ok {
		writeNilBulk(out)
		return
	}
	writeBulk(out, v)
}

func (e *Executor) doHGetAll(cmd *command.ParsedCommand, out *bytes.Buffer) {
	all, err := e.store.HashGetAll(str(cmd.Key))
	if handleErr(out, err) {
		return
	}
	flat := make([]string, 0, len(all)*2)
	for k, v := range all {
		flat = append(flat, k, v)
	}
	writeArray(out, flat)
}

func (e *Executor) doHExists(cmd *command.ParsedCommand, out *bytes.Buffer) {
	ok, err := e.store.HashExists(str(cmd.Key), str(cmd.Args[1]))
	if handleErr(out, err) {
		return
	}
	if ok {
		writeInt(out, 1)
	} else {
		writeInt(out, 0)
	}
}

func (e *Executor) doZAdd(cmd *command.ParsedCommand, out *bytes.Buffer) {
	rest := cmd.Args[1:]
	if len(rest)%2 != 0 {
		writeError(out, "wrong number of arguments for ZADD")
		return
	}
	members := make([]storage.ZMember, 0, len(rest)/2)
	for i := 0; i < len(rest); i += 2 {
		score, err := strconv.ParseFloat(str(rest[i]), 64)
		if err != nil {
			writeError(out, kverrors.ErrNotFloat.Error())
			return
		}
		members = append(members, storage.ZMember{Member: str(rest[i+1]), Score: score})
	}
	n, err := e.store.ZSetAdd(str(cmd.Key), members)
	if handleErr(out, err) {
		return
	}
	writeInt(out, n)
}

func (e *Executor) doZScore(cmd *command.ParsedCommand, out *bytes.Buffer) {
	score, ok, err := e.store.ZSetScore(str(cmd.Key), str(cmd.Args[1]))
	if handleErr(out, err) {
		return
	}
	if !ok {
		writeNilBulk(out)
		return
	}
	writeBulk(out, strconv.FormatFloat(score, 'g', -1, 64))
}

func (e *Executor) doZRange(cmd *command.ParsedCommand, out *bytes.Buffer) {
	members, err := e.store.ZSetRange(str(cmd.Key), cmd.Int1, cmd.Int2)
	if handleErr(out, err) {
		return
	}
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Member
	}
	writeArray(out, names)
}

func (e *Executor) doJSONSet(cmd *command.ParsedCommand, out *bytes.Buffer) {
	if err := e.store.JSONSet(str(cmd.Key), str(cmd.Args[1]), str(cmd.Args[2])); handleErr(out, err) {
		return
	}
	writeOK(out)
}

func (e *Executor) doJSONGet(cmd *command.ParsedCommand, out *bytes.Buffer) {
	path := "."
	if len(cmd.Args) > 1 {
		path = str(cmd.Args[1])
	}
	v, ok, err := e.store.JSONGet(str(cmd.Key), path)
	if handleErr(out, err) {
		return
	}
	if !ok {
		writeNilBulk(out)
		return
	}
	writeBulk(out, v)
}

func (e *Executor) doJSONDel(cmd *command.ParsedCommand, out *bytes.Buffer) {
	path := "."
	if len(cmd.Args) > 1 {
		path = str(cmd.Args[1])
	}
	deleted, err := e.store.JSONDelete(str(cmd.Key), path)
	if handleErr(out, err) {
		return
	}
	if deleted {
		writeInt(out, 1)
	} else {
		writeInt(out, 0)
	}
}

func (e *Executor) doXAdd(cmd *command.ParsedCommand, out *bytes.Buffer) {
	rest := cmd.Args[1:]
	if len(rest)%2 != 0 {
		writeError(out, "wrong number of arguments for XADD")
		return
	}
	fields := make(map[string]string, len(rest)/2)
	for i := 0; i < len(rest); i += 2 {
		fields[str(rest[i])] = str(rest[i+1])
	}
	id, err := e.store.StreamAppend(str(cmd.Key), fields)
	if handleErr(out, err) {
		return
	}
	writeBulk(out, id)
}

func (e *Executor) doXRange(cmd *command.ParsedCommand, out *bytes.Buffer) {
	start, stop := str(cmd.Args[1]), str(cmd.Args[2])
	entries, err := e.store.StreamRange(str(cmd.Key), start, stop)
	if handleErr(out, err) {
		return
	}
	lines := make([]string, len(entries))
	for i, se := range entries {
		lines[i] = fmt.Sprintf("%s %v", se.ID, se.Fields)
	}
	writeArray(out, lines)
}

func (e *Executor) doType(cmd *command.ParsedCommand, out *bytes.Buffer) {
	t, err := e.store.TypeOf(str(cmd.Key))
	if handleErr(out, err) {
		return
	}
	writeBulk(out, t.String())
}

func (e *Executor) doPing(cmd *command.ParsedCommand, out *bytes.Buffer) {
	if len(cmd.Args) == 1 {
		writeBulk(out, str(cmd.Args[0]))
		return
	}
	out.WriteString("PONG\n")
}

func (e *Executor) doFlushDB(out *bytes.Buffer) {
	if err := e.store.FlushDatabase(); handleErr(out, err) {
		return
	}
	writeOK(out)
}

func (e *Executor) doIntResult(out *bytes.Buffer, n int64, err error) {
	if handleErr(out, err) {
		return
	}
	writeInt(out, n)
}

func (e *Executor) doInfo(out *bytes.Buffer) {
	fmt.Fprintf(out, "version:%s\n", e.version)
	fmt.Fprintf(out, "uptime_seconds:%d\n", int64(time.Since(e.startedAt).Seconds()))
}
