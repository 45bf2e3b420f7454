package protocol

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

var (
	ErrTimeout              = errors.New("protocol: timeout")
	ErrWrongPassword        = errors.New("protocol: wrong password")
	ErrDisconnectedByServer = errors.New("protocol: disconnected by server")
	ErrNoResponse           = errors.New("protocol: no response")
	ErrNoConnection         = errors.New("protocol: no connection")
	ErrUnableToRead         = errors.New("protocol: unable to read")
	ErrUnableToWrite        = errors.New("protocol: unable to write")
	ErrBufferExhausted      = errors.New("protocol: buffer exhausted")
	ErrInvalidCommand       = errors.New("protocol: invalid command")
	ErrEngineClosed         = errors.New("protocol: engine closed")
)

// EngineClosedError is returned by Send and Receive once the pump has stopped.
// Cause is nil after a caller-initiated disconnect.
type EngineClosedError struct {
	Cause error
}

func (e *EngineClosedError) Error() string {
	if e.Cause == nil {
		return ErrEngineClosed.Error()
	}
	return ErrEngineClosed.Error() + ": " + e.Cause.Error()
}

func (e *EngineClosedError) Is(target error) bool {
	return target == ErrEngineClosed
}

func (e *EngineClosedError) Unwrap() error {
	return e.Cause
}

// ClassifyReadError maps a transport read error onto the taxonomy.
func ClassifyReadError(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, syscall.ECONNRESET), errors.Is(err, io.ErrUnexpectedEOF):
		return ErrDisconnectedByServer
	case errors.Is(err, os.ErrDeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return ErrTimeout
	case errors.Is(err, net.ErrClosed), errors.Is(err, io.ErrClosedPipe):
		return ErrNoConnection
	default:
		return errors.Join(ErrUnableToRead, err)
	}
}

// Reason returns a short label for err, used for metrics and logs.
func Reason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrWrongPassword):
		return "wrong_password"
	case errors.Is(err, ErrDisconnectedByServer):
		return "disconnected"
	case errors.Is(err, ErrNoResponse):
		return "no_response"
	case errors.Is(err, ErrNoConnection):
		return "no_connection"
	case errors.Is(err, ErrUnableToRead):
		return "read"
	case errors.Is(err, ErrUnableToWrite):
		return "write"
	case errors.Is(err, ErrBufferExhausted):
		return "buffer_exhausted"
	default:
		return "other"
	}
}
