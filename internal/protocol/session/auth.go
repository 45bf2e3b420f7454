package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/danmuck/econctl/internal/logging"
	"github.com/danmuck/econctl/internal/protocol"
	"github.com/danmuck/econctl/internal/protocol/line"
)

// AuthState tracks one handshake. Authenticated and Failed are terminal.
type AuthState int

const (
	AuthUnauthenticated AuthState = iota
	AuthChallenged
	AuthAuthenticated
	AuthFailed
)

func (s AuthState) String() string {
	switch s {
	case AuthUnauthenticated:
		return "unauthenticated"
	case AuthChallenged:
		return "challenged"
	case AuthAuthenticated:
		return "authenticated"
	case AuthFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Conn is the part of a transport the handshake drives.
type Conn interface {
	io.Reader
	io.Writer
	SetReadDeadline(t time.Time) error
}

// AuthResult reports the terminal state. Backlog holds non-verdict lines read
// after the password was sent, in arrival order, for the message pump.
type AuthResult struct {
	State   AuthState
	Backlog []string
}

type handshake struct {
	conn     Conn
	lines    *line.Reassembler
	cfg      AuthConfig
	deadline time.Time
	state    AuthState
	backlog  []string
}

// Authenticate waits for the password prompt, sends password and waits for a
// verdict. lines must be the reassembler the pump continues with, so any
// unterminated fragment after the verdict carries over.
func Authenticate(ctx context.Context, conn Conn, lines *line.Reassembler, password string, cfg AuthConfig) (AuthResult, error) {
	cfg = cfg.WithDefaults()
	h := &handshake{
		conn:     conn,
		lines:    lines,
		cfg:      cfg,
		deadline: time.Now().Add(cfg.Timeout),
	}
	if d, ok := ctx.Deadline(); ok && d.Before(h.deadline) {
		h.deadline = d
	}
	defer conn.SetReadDeadline(time.Time{})
	// A canceled ctx pulls the deadline in so a blocked Read returns now.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	err := h.run(ctx, password)
	if err != nil {
		h.state = AuthFailed
		logging.Debugf("session.Authenticate failed state=%s err=%v", h.state, err)
	}
	return AuthResult{State: h.state, Backlog: h.backlog}, err
}

func (h *handshake) run(ctx context.Context, password string) error {
	if err := h.awaitPrompt(ctx); err != nil {
		return err
	}
	h.state = AuthChallenged

	if _, err := h.conn.Write([]byte(password + string(line.Delimiter))); err != nil {
		return fmt.Errorf("%w: send password: %v", protocol.ErrUnableToWrite, err)
	}
	return h.awaitVerdict(ctx)
}

// awaitPrompt discards banner text until the prompt substring shows up in a
// complete line or in the unterminated fragment.
func (h *handshake) awaitPrompt(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		lines, err := h.read(ctx)
		for _, l := range lines {
			if strings.Contains(l, h.cfg.Banners.Prompt) {
				h.lines.Reset()
				return nil
			}
		}
		if strings.Contains(h.lines.Pending(), h.cfg.Banners.Prompt) {
			h.lines.Reset()
			return nil
		}
		if err != nil {
			if errors.Is(err, protocol.ErrTimeout) {
				return fmt.Errorf("%w: no password prompt within %s", protocol.ErrNoResponse, h.cfg.Timeout)
			}
			return err
		}
	}
}

func (h *handshake) awaitVerdict(ctx context.Context) error {
	banners := h.cfg.Banners
	for reads := 0; reads < h.cfg.MaxReads; reads++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lines, err := h.read(ctx)
		for i, l := range lines {
			switch {
			case strings.Contains(l, banners.Rejected):
				return protocol.ErrWrongPassword
			case strings.Contains(l, banners.Accepted):
				h.state = AuthAuthenticated
				h.backlog = append(h.backlog, lines[i+1:]...)
				return nil
			default:
				h.backlog = append(h.backlog, l)
			}
		}
		if err != nil {
			switch {
			case errors.Is(err, protocol.ErrTimeout):
				return fmt.Errorf("%w: no authentication verdict within %s", protocol.ErrNoResponse, h.cfg.Timeout)
			case errors.Is(err, protocol.ErrDisconnectedByServer) && strings.Contains(h.lines.Pending(), banners.Rejected):
				return protocol.ErrWrongPassword
			default:
				return err
			}
		}
	}
	return fmt.Errorf("%w: no authentication verdict after %d reads", protocol.ErrNoResponse, h.cfg.MaxReads)
}

func (h *handshake) read(ctx context.Context) ([]string, error) {
	if err := h.conn.SetReadDeadline(h.deadline); err != nil {
		return nil, fmt.Errorf("%w: %v", protocol.ErrNoConnection, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lines, _, err := h.lines.ReadFrom(h.conn)
	if err != nil && ctx.Err() != nil {
		return lines, ctx.Err()
	}
	return lines, err
}
