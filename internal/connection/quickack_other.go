//go:build !linux

package connection

import "net"

// quickAck is a no-op outside Linux; TCP_QUICKACK has no portable
// equivalent.
func quickAck(conn *net.TCPConn) error { return nil }
