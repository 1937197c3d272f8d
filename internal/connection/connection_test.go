package connection

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/kvsrv/kvsrv/internal/bufpool"
	"github.com/kvsrv/kvsrv/internal/command"
)

type echoExecutor struct {
	calls []command.Opcode
}

func (e *echoExecutor) Execute(cmd *command.ParsedCommand, out *bytes.Buffer) {
	e.calls = append(e.calls, cmd.Opcode)
	if cmd.Err != nil {
		out.WriteString("ERROR: " + cmd.Err.Message + "\n")
		return
	}
	switch cmd.Opcode {
	case command.OpPing:
		out.WriteString("PONG\n")
	default:
		out.WriteString("OK\n")
	}
}

func serveInBackground(t *testing.T, server net.Conn, exec Executor) {
	t.Helper()
	w := NewWorker(server, exec, bufpool.New(), DefaultOptions())
	go func() {
		_ = w.Serve()
	}()
}

func TestServeSingleCommand(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	exec := &echoExecutor{}
	serveInBackground(t, server, exec)

	_, _ = client.Write([]byte("PING\n"))

	buf := make([]byte, 64)
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "PONG\n" {
		t.Fatalf("got %q, want PONG\\n", buf[:n])
	}
}

func TestServePipelinedCommands(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	exec := &echoExecutor{}
	serveInBackground(t, server, exec)

	_, _ = client.Write([]byte("PING\nPING\nPING\n"))

	buf := make([]byte, 64)
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "PONG\nPONG\nPONG\n" {
		t.Fatalf("got %q", buf[:n])
	}
}

func TestServeUnknownCommandDoesNotCloseConnection(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	exec := &echoExecutor{}
	serveInBackground(t, server, exec)

	_, _ = client.Write([]byte("FOO bar\nPING\n"))

	buf := make([]byte, 128)
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	got := string(buf[:n])
	want := "ERROR: Unknown command\nPONG\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestServeCompactsPartialLineAcrossReads(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	exec := &echoExecutor{}
	serveInBackground(t, server, exec)

	_, _ = client.Write([]byte("PI"))
	time.Sleep(20 * time.Millisecond)
	_, _ = client.Write([]byte("NG\n"))

	buf := make([]byte, 64)
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := client.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf[:n]) != "PONG\n" {
		t.Fatalf("got %q", buf[:n])
	}
}
