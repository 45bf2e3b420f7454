package econ

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"testing"
	"time"
)

// fakeTransport is an in-memory console connection. Chunks pushed with
// serve are returned by Read one at a time; an empty chunk is a zero-byte
// read and hangup makes Read return io.EOF.
type fakeTransport struct {
	incoming chan []byte
	writes   chan string

	mu           sync.Mutex
	leftover     []byte
	readDeadline time.Time
	writeErr     error

	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		incoming: make(chan []byte, 64),
		writes:   make(chan string, 64),
		closed:   make(chan struct{}),
	}
}

func (f *fakeTransport) serve(chunks ...string) {
	for _, c := range chunks {
		f.incoming <- []byte(c)
	}
}

func (f *fakeTransport) hangup() {
	close(f.incoming)
}

func (f *fakeTransport) failWrites(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	f.mu.Lock()
	if len(f.leftover) > 0 {
		n := copy(p, f.leftover)
		f.leftover = f.leftover[n:]
		f.mu.Unlock()
		return n, nil
	}
	deadline := f.readDeadline
	f.mu.Unlock()

	var timeout <-chan time.Time
	if !deadline.IsZero() {
		wait := time.Until(deadline)
		if wait <= 0 {
			return 0, os.ErrDeadlineExceeded
		}
		timer := time.NewTimer(wait)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-f.closed:
		return 0, net.ErrClosed
	case <-timeout:
		return 0, os.ErrDeadlineExceeded
	case chunk, ok := <-f.incoming:
		if !ok {
			return 0, io.EOF
		}
		n := copy(p, chunk)
		f.mu.Lock()
		f.leftover = append(f.leftover, chunk[n:]...)
		f.mu.Unlock()
		return n, nil
	}
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	select {
	case <-f.closed:
		return 0, net.ErrClosed
	default:
	}
	f.mu.Lock()
	err := f.writeErr
	f.mu.Unlock()
	if err != nil {
		return 0, err
	}
	f.writes <- string(p)
	return len(p), nil
}

func (f *fakeTransport) SetReadDeadline(t time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readDeadline = t
	return nil
}

func (f *fakeTransport) SetWriteDeadline(time.Time) error {
	return nil
}

func (f *fakeTransport) Close() error {
	err := errors.New("fake: already closed")
	f.closeOnce.Do(func() {
		close(f.closed)
		err = nil
	})
	return err
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// nextWrite waits for one Write call.
func (f *fakeTransport) nextWrite(t *testing.T) string {
	t.Helper()
	select {
	case w := <-f.writes:
		return w
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for write")
		return ""
	}
}
