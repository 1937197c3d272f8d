package connection

import (
	"net"
	"time"
)

// TuneOptions configures the socket-level tuning applied to every
// accepted connection. Every setting is best-effort: a failure is
// logged by NewWorker, never fatal.
type TuneOptions struct {
	NoDelay          bool
	SocketBufferSize int // applied to both read and write buffers, 0 skips
	KeepAlive        bool
	KeepAlivePeriod  time.Duration
}

// DefaultTuneOptions mirrors the defaults a connection handler applies
// on accept when the operator hasn't overridden anything.
func DefaultTuneOptions() TuneOptions {
	return TuneOptions{
		NoDelay:          true,
		SocketBufferSize: 256 * 1024,
		KeepAlive:        true,
		KeepAlivePeriod:  30 * time.Second,
	}
}

// Tune applies opts to conn, returning every error encountered (it keeps
// trying remaining settings rather than bailing out on the first
// failure). It also attempts the platform's quick-ACK equivalent, a
// no-op where unsupported.
func Tune(conn net.Conn, opts TuneOptions) []error {
	var errs []error
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return errs
	}

	if err := tcpConn.SetNoDelay(opts.NoDelay); err != nil {
		errs = append(errs, err)
	}
	if opts.SocketBufferSize > 0 {
		if err := tcpConn.SetReadBuffer(opts.SocketBufferSize); err != nil {
			errs = append(errs, err)
		}
		if err := tcpConn.SetWriteBuffer(opts.SocketBufferSize); err != nil {
			errs = append(errs, err)
		}
	}
	if opts.KeepAlive {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			errs = append(errs, err)
		}
		if opts.KeepAlivePeriod > 0 {
			if err := tcpConn.SetKeepAlivePeriod(opts.KeepAlivePeriod); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := quickAck(tcpConn); err != nil {
		errs = append(errs, err)
	}
	return errs
}
