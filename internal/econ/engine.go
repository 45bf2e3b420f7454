package econ

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/econctl/internal/logging"
	"github.com/danmuck/econctl/internal/observability"
	"github.com/danmuck/econctl/internal/protocol"
	"github.com/danmuck/econctl/internal/protocol/line"
	"github.com/danmuck/econctl/internal/protocol/message"
	"github.com/danmuck/econctl/internal/protocol/session"
	"github.com/google/uuid"
)

var ErrInvalidState = errors.New("econ: invalid engine state")

// State is the engine lifecycle. Failed and Closed are terminal.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateRunning
	StateDisconnecting
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateRunning:
		return "running"
	case StateDisconnecting:
		return "disconnecting"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Engine is one authenticated console session over one connection.
//
// The reader goroutine owns the read half and the reassembler; the writer
// goroutine owns the write half. They meet the caller only through the
// inbound and outbound queues.
type Engine struct {
	id   string
	addr string
	cfg  Config

	conn   Transport
	lines  *line.Reassembler
	parser *message.Parser

	inbound  *fifo[message.Message]
	outbound *fifo[string]

	state atomic.Int32

	causeMu sync.Mutex
	cause   error

	stop       chan struct{}
	stopOnce   sync.Once
	writerDone chan struct{}
	done       chan struct{}
	wg         sync.WaitGroup

	disconnectOnce sync.Once
	releaseOnce    sync.Once
}

// Connect dials address, authenticates with password and starts the pump.
// Dial failures are reported as ErrNoResponse.
func Connect(ctx context.Context, address, password string, cfg Config) (*Engine, error) {
	cfg = cfg.WithDefaults()
	start := time.Now()

	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		logging.Warnf("econ.Connect dial addr=%q err=%v", address, err)
		observability.RecordAuth("dial_failed", time.Since(start))
		return nil, fmt.Errorf("%w: dial %s: %v", protocol.ErrNoResponse, address, err)
	}

	e, err := NewEngine(conn, address, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := e.Authenticate(ctx, password); err != nil {
		return nil, err
	}
	return e, nil
}

// NewEngine wraps an already established transport. The engine starts in
// StateAuthenticating; call Authenticate to start the pump.
func NewEngine(conn Transport, address string, cfg Config) (*Engine, error) {
	cfg = cfg.WithDefaults()
	lines, err := line.NewReassembler(cfg.BufferSize)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		id:         uuid.NewString(),
		addr:       address,
		cfg:        cfg,
		conn:       conn,
		lines:      lines,
		parser:     message.NewParser(cfg.FallbackCategory),
		inbound:    newFIFO[message.Message](),
		outbound:   newFIFO[string](),
		stop:       make(chan struct{}),
		writerDone: make(chan struct{}),
		done:       make(chan struct{}),
	}
	e.state.Store(int32(StateAuthenticating))
	return e, nil
}

// Authenticate runs the password handshake. On success the engine enters
// StateRunning with the pump started; on failure the transport is shut down
// and the engine is left in StateFailed.
func (e *Engine) Authenticate(ctx context.Context, password string) error {
	if e.State() != StateAuthenticating {
		return fmt.Errorf("%w: authenticate in state %s", ErrInvalidState, e.State())
	}
	start := time.Now()
	res, err := session.Authenticate(ctx, e.conn, e.lines, password, e.cfg.authConfig())
	observability.RecordAuth(res.State.String(), time.Since(start))
	if err != nil {
		logging.Warnf("econ.Engine auth id=%s addr=%q state=%s err=%v", e.id, e.addr, res.State, err)
		if !e.state.CompareAndSwap(int32(StateAuthenticating), int32(StateFailed)) {
			// Disconnect won the race and already released the engine.
			return &protocol.EngineClosedError{Cause: err}
		}
		e.setCause(err)
		e.release()
		return err
	}

	if e.cfg.AnnounceConnect {
		e.inbound.Push(message.Synthetic(e.parser.FallbackCategory(), fmt.Sprintf("Connected to '%s'", e.addr), time.Now()))
	}
	e.deliver(res.Backlog)

	if !e.state.CompareAndSwap(int32(StateAuthenticating), int32(StateRunning)) {
		logging.Infof("econ.Engine disconnected during auth id=%s addr=%q", e.id, e.addr)
		return e.closedErr()
	}
	observability.SessionStarted()
	logging.Infof("econ.Engine connected id=%s addr=%q backlog=%d", e.id, e.addr, len(res.Backlog))

	e.wg.Add(2)
	go e.readLoop()
	go e.writeLoop()
	go e.awaitPump()
	return nil
}

func (e *Engine) ID() string {
	return e.id
}

func (e *Engine) Address() string {
	return e.addr
}

func (e *Engine) State() State {
	return State(e.state.Load())
}

// Err returns the fault that stopped the engine, or nil.
func (e *Engine) Err() error {
	e.causeMu.Lock()
	defer e.causeMu.Unlock()
	return e.cause
}

// Done is closed once both pump goroutines have exited.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Send queues one command line for the writer. It never waits on the socket.
func (e *Engine) Send(command string) error {
	command = strings.TrimRight(command, "\r\n")
	if strings.ContainsAny(command, "\r\n") {
		return fmt.Errorf("%w: embedded line break", protocol.ErrInvalidCommand)
	}
	if e.State() != StateRunning || !e.outbound.Push(command) {
		return e.closedErr()
	}
	return nil
}

// Receive waits up to timeout for the next message. It returns
// protocol.ErrTimeout when none arrives in time.
func (e *Engine) Receive(timeout time.Duration) (message.Message, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	msg, err := e.ReceiveContext(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return message.Message{}, protocol.ErrTimeout
	}
	return msg, err
}

// ReceiveContext waits for the next message until ctx is done.
func (e *Engine) ReceiveContext(ctx context.Context) (message.Message, error) {
	if e.State() != StateRunning {
		return message.Message{}, e.closedErr()
	}
	msg, err := e.inbound.Pop(ctx)
	if errors.Is(err, errQueueClosed) {
		return message.Message{}, e.closedErr()
	}
	return msg, err
}

// TryReceive returns the next message if one is queued.
func (e *Engine) TryReceive() (message.Message, bool, error) {
	if e.State() != StateRunning {
		return message.Message{}, false, e.closedErr()
	}
	msg, ok, err := e.inbound.TryPop()
	if err != nil {
		return message.Message{}, false, e.closedErr()
	}
	return msg, ok, nil
}

// Disconnect flushes queued commands, shuts the socket down, joins the pump
// and discards undelivered messages. It is idempotent and safe to call from
// any goroutine.
func (e *Engine) Disconnect() error {
	e.disconnectOnce.Do(func() {
		if e.state.CompareAndSwap(int32(StateAuthenticating), int32(StateClosed)) {
			e.release()
			logging.Infof("econ.Engine closed before running id=%s addr=%q", e.id, e.addr)
			return
		}
		e.state.CompareAndSwap(int32(StateRunning), int32(StateDisconnecting))
		e.outbound.Close()
		e.awaitWriter()
		e.halt()
		<-e.done
		dropped := e.inbound.Discard() + e.outbound.Discard()
		if e.State() != StateFailed {
			e.state.Store(int32(StateClosed))
		}
		logging.Infof("econ.Engine disconnected id=%s addr=%q dropped=%d cause=%v", e.id, e.addr, dropped, e.Err())
	})
	return nil
}

// awaitWriter bounds the flush so a stalled peer cannot hold Disconnect
// longer than one write timeout per queued command.
func (e *Engine) awaitWriter() {
	limit := e.cfg.WriteTimeout * time.Duration(e.outbound.Len()+1)
	timer := time.NewTimer(limit)
	defer timer.Stop()
	select {
	case <-e.writerDone:
	case <-timer.C:
		logging.Warnf("econ.Engine flush timeout id=%s pending=%d", e.id, e.outbound.Len())
	}
}

// release tears down an engine whose pump never started. The first caller,
// failed Authenticate or early Disconnect, does the work.
func (e *Engine) release() {
	e.releaseOnce.Do(func() {
		e.halt()
		e.inbound.Close()
		e.inbound.Discard()
		e.outbound.Close()
		e.outbound.Discard()
		close(e.writerDone)
		close(e.done)
	})
}

func (e *Engine) closedErr() error {
	return &protocol.EngineClosedError{Cause: e.Err()}
}

func (e *Engine) setCause(err error) {
	e.causeMu.Lock()
	defer e.causeMu.Unlock()
	if e.cause == nil {
		e.cause = err
	}
}
