package econ

import (
	"errors"
	"time"
)

// Transport is the capability set the engine needs from a connection.
// *net.TCPConn satisfies it; tests use in-memory fakes.
type Transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type halfCloser interface {
	CloseRead() error
	CloseWrite() error
}

// shutdown stops both directions and releases the transport. A pending Read
// on another goroutine returns with an error.
func shutdown(t Transport) error {
	var errs []error
	if hc, ok := t.(halfCloser); ok {
		errs = append(errs, hc.CloseWrite(), hc.CloseRead())
	}
	errs = append(errs, t.Close())
	return errors.Join(errs...)
}
