package econ

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/econctl/internal/logging"
	"github.com/danmuck/econctl/internal/observability"
	"github.com/danmuck/econctl/internal/protocol"
	"github.com/danmuck/econctl/internal/protocol/line"
)

// readLoop polls the socket with a bounded deadline so a stop request is
// observed within one ReadTimeout even if the peer is silent.
func (e *Engine) readLoop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.stop:
			return
		default:
		}

		if err := e.conn.SetReadDeadline(time.Now().Add(e.cfg.ReadTimeout)); err != nil {
			e.fail(fmt.Errorf("%w: set read deadline: %v", protocol.ErrUnableToRead, err))
			return
		}
		lines, n, err := e.lines.ReadFrom(e.conn)
		delivered := e.deliver(lines)
		if n > 0 {
			observability.RecordRead(n, delivered)
		}
		if err == nil || errors.Is(err, protocol.ErrTimeout) {
			continue
		}
		if e.stopping() {
			return
		}
		e.fail(err)
		return
	}
}

// writeLoop writes commands in queue order, one Write per command, and exits
// once the outbound queue is closed and drained.
func (e *Engine) writeLoop() {
	defer e.wg.Done()
	defer close(e.writerDone)
	buf := make([]byte, 0, 256)
	for {
		cmd, err := e.outbound.Pop(context.Background())
		if err != nil {
			return
		}
		buf = append(append(buf[:0], cmd...), line.Delimiter)
		if err := e.conn.SetWriteDeadline(time.Now().Add(e.cfg.WriteTimeout)); err != nil {
			e.fail(fmt.Errorf("%w: set write deadline: %v", protocol.ErrUnableToWrite, err))
			return
		}
		if _, err := e.conn.Write(buf); err != nil {
			if e.stopping() {
				return
			}
			e.fail(fmt.Errorf("%w: %v", protocol.ErrUnableToWrite, err))
			return
		}
		observability.RecordCommandSent()
		logging.Tracef("econ.Engine sent id=%s cmd=%q", e.id, cmd)
	}
}

// deliver parses lines in order onto the inbound queue and returns how many
// messages were queued. Empty lines produce none.
func (e *Engine) deliver(lines []string) int {
	n := 0
	for _, l := range lines {
		if msg, ok := e.parser.Parse(l); ok && e.inbound.Push(msg) {
			n++
		}
	}
	return n
}

// fail records the first fault and stops the pump. Pending queue content is
// dropped; callers see the cause on their next Send or Receive.
func (e *Engine) fail(cause error) {
	e.setCause(cause)
	e.state.CompareAndSwap(int32(StateRunning), int32(StateDisconnecting))
	observability.RecordFault(protocol.Reason(cause))
	logging.Warnf("econ.Engine pump fault id=%s addr=%q err=%v", e.id, e.addr, cause)

	e.outbound.Close()
	e.outbound.Discard()
	e.halt()
	e.inbound.Close()
	e.inbound.Discard()
}

// halt signals stop and shuts the transport down, unblocking a pending Read.
func (e *Engine) halt() {
	e.stopOnce.Do(func() {
		close(e.stop)
		if err := shutdown(e.conn); err != nil {
			logging.Debugf("econ.Engine shutdown id=%s err=%v", e.id, err)
		}
	})
}

func (e *Engine) stopping() bool {
	select {
	case <-e.stop:
		return true
	default:
		return false
	}
}

func (e *Engine) awaitPump() {
	e.wg.Wait()
	e.halt()
	e.inbound.Close()
	e.state.Store(int32(StateClosed))
	observability.SessionEnded()
	close(e.done)
}
