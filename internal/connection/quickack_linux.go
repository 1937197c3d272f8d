//go:build linux

package connection

import (
	"net"

	"golang.org/x/sys/unix"
)

// quickAck sets TCP_QUICKACK so delayed-ACK doesn't add latency to a
// pipelined request/reply exchange.
func quickAck(conn *net.TCPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
