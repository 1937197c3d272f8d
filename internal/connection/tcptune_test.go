package connection

import (
	"net"
	"testing"
)

func TestTuneNonTCPConnIsNoop(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	if errs := Tune(server, DefaultTuneOptions()); len(errs) != 0 {
		t.Fatalf("expected no errors tuning a non-TCP conn, got %v", errs)
	}
}
