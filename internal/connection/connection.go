// Package connection implements the per-connection read/pipeline/dispatch/write
// loop: one goroutine owns a connection for its entire lifetime, reads
// request lines into a pipeline queue bounded at PipelineCap, dispatches
// them to an Executor in arrival order, and writes replies back as a
// single batched write.
package connection

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/kvsrv/kvsrv/internal/arena"
	"github.com/kvsrv/kvsrv/internal/bufpool"
	"github.com/kvsrv/kvsrv/internal/command"
	"github.com/kvsrv/kvsrv/internal/metrics"
)

// PipelineCap bounds the number of parsed-but-undispatched commands
// held per connection.
const PipelineCap = 100

// DefaultArenaSize is the capacity of each per-command arena.
const DefaultArenaSize = 16 * 1024

// MaxLineLen bounds a single request line; a line that grows past this
// without a terminator is rejected and the connection is closed, since
// resynchronizing to the next line boundary in an unbounded stream isn't
// safe.
const MaxLineLen = 1 << 20

// Executor maps one parsed command to a storage-facade call and appends
// the formatted wire reply to out.
type Executor interface {
	Execute(cmd *command.ParsedCommand, out *bytes.Buffer)
}

// Options configures a Worker.
type Options struct {
	Tune         TuneOptions
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PipelineCap  int
	MaxLineLen   int
}

// DefaultOptions returns the options a connection handler applies when
// the operator hasn't overridden anything.
func DefaultOptions() Options {
	return Options{
		Tune:        DefaultTuneOptions(),
		PipelineCap: PipelineCap,
		MaxLineLen:  MaxLineLen,
	}
}

type pending struct {
	cmd   *command.ParsedCommand
	arena *arena.Arena
}

// Worker drives one connection's entire lifetime on the calling
// goroutine. It is not safe to share across goroutines.
type Worker struct {
	conn     net.Conn
	executor Executor
	bufs     *bufpool.Pool
	opts     Options

	arenaFree []*arena.Arena
	queue     []pending
}

// NewWorker creates a Worker for conn, applying opts.Tune on the
// underlying socket.
func NewWorker(conn net.Conn, executor Executor, bufs *bufpool.Pool, opts Options) *Worker {
	if opts.PipelineCap <= 0 {
		opts.PipelineCap = PipelineCap
	}
	if opts.MaxLineLen <= 0 {
		opts.MaxLineLen = MaxLineLen
	}
	// Best-effort: each tuning failure is logged and the connection is
	// served regardless.
	for _, err := range Tune(conn, opts.Tune) {
		slog.Warn("tcp tuning failed", "error", err)
	}
	return &Worker{
		conn:     conn,
		executor: executor,
		bufs:     bufs,
		opts:     opts,
	}
}

// Serve runs the worker's read/dispatch/write loop until the connection
// closes or a fatal I/O error occurs.
func (w *Worker) Serve() error {
	defer w.closeArenas()
	metrics.ConnectionOpened()
	defer metrics.ConnectionClosed()

	readBuf := w.bufs.Acquire(bufpool.Medium)
	defer w.bufs.Release(readBuf)

	tmp := make([]byte, bufpool.Medium.Size())

	for {
		if w.opts.ReadTimeout > 0 {
			_ = w.conn.SetReadDeadline(time.Now().Add(w.opts.ReadTimeout))
		}
		n, err := w.conn.Read(tmp)
		if n > 0 {
			readBuf = append(readBuf, tmp[:n]...)
		}
		readBuf = w.drainLines(readBuf)

		// A full queue may leave complete lines in readBuf; keep
		// dispatching until every buffered line has been answered.
		for len(w.queue) > 0 {
			if dispatchErr := w.dispatchBatch(); dispatchErr != nil {
				return dispatchErr
			}
			readBuf = w.drainLines(readBuf)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		if len(readBuf) > w.opts.MaxLineLen {
			// Unterminated line has grown past the cap; can't safely
			// resynchronize, so the connection closes without a reply.
			return errors.New("connection: request line too large")
		}
	}
}

// drainLines extracts every complete (\n-terminated) line from buf,
// parses each into its own arena, and enqueues it. It returns buf
// compacted to hold only the unconsumed trailing partial line.
func (w *Worker) drainLines(buf []byte) []byte {
	start := 0
	for len(w.queue) < w.opts.PipelineCap {
		idx := bytes.IndexByte(buf[start:], '\n')
		if idx < 0 {
			break
		}
		line := buf[start : start+idx]
		line = trimCR(line)
		start += idx + 1

		a := w.acquireArena()
		cmd := command.Parse(line, a)
		w.queue = append(w.queue, pending{cmd: cmd, arena: a})
	}

	remaining := buf[start:]
	copy(buf, remaining)
	return buf[:len(remaining)]
}

func trimCR(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\r' {
		return line[:n-1]
	}
	return line
}

// dispatchBatch drains the pipeline queue in FIFO order, executes each
// command, and performs one batched write of all replies.
func (w *Worker) dispatchBatch() error {
	batch := w.queue
	w.queue = nil

	out := w.bufs.Acquire(bufpool.Large)
	defer func() { w.bufs.Release(out) }()
	writer := bytes.NewBuffer(out)

	metrics.RecordPipelineDepth(len(batch))

	for _, p := range batch {
		w.executor.Execute(p.cmd, writer)
		p.arena.Reset()
		w.releaseArena(p.arena)
	}

	if w.opts.WriteTimeout > 0 {
		_ = w.conn.SetWriteDeadline(time.Now().Add(w.opts.WriteTimeout))
	}
	_, err := w.conn.Write(writer.Bytes())
	return err
}

func (w *Worker) acquireArena() *arena.Arena {
	if n := len(w.arenaFree); n > 0 {
		a := w.arenaFree[n-1]
		w.arenaFree = w.arenaFree[:n-1]
		return a
	}
	return arena.New(DefaultArenaSize)
}

func (w *Worker) releaseArena(a *arena.Arena) {
	if len(w.arenaFree) < w.opts.PipelineCap {
		w.arenaFree = append(w.arenaFree, a)
	}
}

func (w *Worker) closeArenas() {
	w.arenaFree = nil
}
