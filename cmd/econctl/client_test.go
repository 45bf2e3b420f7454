package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/econctl/internal/config"
	"github.com/danmuck/econctl/internal/protocol"
	"github.com/danmuck/econctl/internal/testutil/testlog"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// console is a fake server that accepts any number of connections. Each
// connection authenticates, echoes commands and hangs up after hangupAfter
// commands (0 = never).
type console struct {
	ln          net.Listener
	password    string
	hangupAfter int
	accepted    atomic.Int32
}

func startConsole(t *testing.T, password string, hangupAfter int) *console {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	c := &console{ln: ln, password: password, hangupAfter: hangupAfter}
	t.Cleanup(func() { _ = ln.Close() })
	go c.serve()
	return c
}

func (c *console) addr() string {
	return c.ln.Addr().String()
}

func (c *console) serve() {
	for {
		conn, err := c.ln.Accept()
		if err != nil {
			return
		}
		c.accepted.Add(1)
		go c.handle(conn)
	}
}

func (c *console) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	_, _ = conn.Write([]byte("Enter password:\n"))
	pw, err := r.ReadString('\n')
	if err != nil {
		return
	}
	if strings.TrimSpace(pw) != c.password {
		_, _ = conn.Write([]byte("Wrong password\n"))
		return
	}
	_, _ = conn.Write([]byte("Authentication successful\n"))
	for n := 1; ; n++ {
		cmd, err := r.ReadString('\n')
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte("[echo]: " + strings.TrimSpace(cmd) + "\n"))
		if c.hangupAfter > 0 && n >= c.hangupAfter {
			return
		}
	}
}

func testProfile(addr, password string) config.Profile {
	p := config.DefaultProfile()
	p.Address = addr
	p.Password = password
	p.Engine.AnnounceConnect = false
	p.Engine.ReadTimeout = 20 * time.Millisecond
	p.Engine.HandshakeTimeout = time.Second
	p.Backoff.InitialDelay = 10 * time.Millisecond
	p.Backoff.MaxDelay = 50 * time.Millisecond
	return p
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestClientSendsInputAndPrintsMessages(t *testing.T) {
	testlog.Start(t)
	srv := startConsole(t, "pw", 0)
	out := &syncBuffer{}
	p := testProfile(srv.addr(), "pw")
	p.Engine.AnnounceConnect = true
	c := newClient(p, out, rand.New(rand.NewSource(1)))

	input := make(chan string)
	errCh := make(chan error, 1)
	go func() { errCh <- c.run(context.Background(), input) }()

	input <- "status"
	waitFor(t, "echo", func() bool { return strings.Contains(out.String(), "[echo]: status") })
	input <- "say a\nb"
	waitFor(t, "invalid command notice", func() bool { return strings.Contains(out.String(), "line break") })
	close(input)

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("client did not exit after input closed")
	}
	got := out.String()
	if !strings.Contains(got, "[tw-econ]: Connected to '"+srv.addr()+"'") {
		t.Fatalf("missing connect notice: %q", got)
	}
	if !strings.HasSuffix(got, "[tw-econ]: Disconnected from '"+srv.addr()+"'\n") {
		t.Fatalf("missing disconnect notice: %q", got)
	}
}

func TestClientReconnectsAfterHangup(t *testing.T) {
	testlog.Start(t)
	srv := startConsole(t, "pw", 1)
	out := &syncBuffer{}
	p := testProfile(srv.addr(), "pw")
	p.Reconnect = true
	c := newClient(p, out, rand.New(rand.NewSource(1)))

	input := make(chan string)
	errCh := make(chan error, 1)
	go func() { errCh <- c.run(context.Background(), input) }()

	input <- "first"
	waitFor(t, "second connection", func() bool { return srv.accepted.Load() >= 2 })
	input <- "second"
	waitFor(t, "echo after reconnect", func() bool { return strings.Contains(out.String(), "[echo]: second") })
	close(input)
	if err := <-errCh; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestClientDoesNotRetryWrongPassword(t *testing.T) {
	testlog.Start(t)
	srv := startConsole(t, "pw", 0)
	p := testProfile(srv.addr(), "nope")
	p.Reconnect = true
	c := newClient(p, &syncBuffer{}, rand.New(rand.NewSource(1)))

	err := c.run(context.Background(), make(chan string))
	if !errors.Is(err, protocol.ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
	if n := srv.accepted.Load(); n != 1 {
		t.Fatalf("accepted=%d", n)
	}
}

func TestClientGivesUpAfterMaxAttempts(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	p := testProfile(addr, "pw")
	p.Reconnect = true
	p.MaxReconnectAttempts = 2
	p.Engine.ConnectTimeout = 200 * time.Millisecond
	c := newClient(p, &syncBuffer{}, rand.New(rand.NewSource(1)))

	err = c.run(context.Background(), make(chan string))
	if !errors.Is(err, protocol.ErrNoResponse) {
		t.Fatalf("expected ErrNoResponse, got %v", err)
	}
}

func TestClientStopsOnContextCancel(t *testing.T) {
	testlog.Start(t)
	srv := startConsole(t, "pw", 0)
	c := newClient(testProfile(srv.addr(), "pw"), &syncBuffer{}, rand.New(rand.NewSource(1)))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.run(ctx, make(chan string)) }()
	waitFor(t, "connection", func() bool { return srv.accepted.Load() == 1 })
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("client ignored cancel")
	}
}

func TestReadLinesTrimsAndSkipsBlank(t *testing.T) {
	src := &scriptedInput{lines: []string{"  status ", "", "   ", "echo hi"}}
	var got []string
	for l := range readLines(src) {
		got = append(got, l)
	}
	if strings.Join(got, "|") != "status|echo hi" {
		t.Fatalf("got=%q", got)
	}
}

type scriptedInput struct {
	lines []string
}

func (s *scriptedInput) ReadLine(string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	l := s.lines[0]
	s.lines = s.lines[1:]
	return l, nil
}
