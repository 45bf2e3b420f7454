package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/danmuck/econctl/internal/config"
	"github.com/danmuck/econctl/internal/econ"
	"github.com/danmuck/econctl/internal/logging"
	"github.com/danmuck/econctl/internal/protocol"
	"github.com/danmuck/econctl/internal/protocol/message"
	"github.com/danmuck/econctl/internal/protocol/session"
)

var errInputClosed = errors.New("econctl: input closed")

// client drives one engine at a time and reconnects when the profile asks
// for it. The engine itself never retries.
type client struct {
	profile config.Profile
	out     io.Writer
	rng     *rand.Rand
}

func newClient(profile config.Profile, out io.Writer, rng *rand.Rand) *client {
	return &client{
		profile: profile,
		out:     &lockedWriter{w: out},
		rng:     rng,
	}
}

// run returns nil when input ends or ctx is canceled, and the last
// connection error when it gives up.
func (c *client) run(ctx context.Context, input <-chan string) error {
	attempt := 0
	for {
		connected, err := c.session(ctx, input)
		if errors.Is(err, errInputClosed) || ctx.Err() != nil {
			return nil
		}
		if connected {
			attempt = 0
		}
		attempt++
		if !c.retry(err, attempt) {
			return err
		}
		logging.Warnf("econctl reconnecting addr=%q attempt=%d err=%v", c.profile.Address, attempt, err)
		if err := session.WaitBackoff(ctx, c.profile.Backoff, attempt, c.rng); err != nil {
			return nil
		}
	}
}

func (c *client) retry(err error, attempt int) bool {
	if !c.profile.Reconnect {
		return false
	}
	if errors.Is(err, protocol.ErrWrongPassword) {
		return false
	}
	return c.profile.MaxReconnectAttempts == 0 || attempt <= c.profile.MaxReconnectAttempts
}

// session connects once and pumps input to the engine until the engine
// stops, input ends or ctx is canceled.
func (c *client) session(ctx context.Context, input <-chan string) (bool, error) {
	e, err := econ.Connect(ctx, c.profile.Address, c.profile.Password, c.profile.Engine)
	if err != nil {
		return false, err
	}

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		c.print(e)
	}()
	finish := func(err error) (bool, error) {
		_ = e.Disconnect()
		<-printed
		if c.profile.Engine.AnnounceConnect {
			bye := message.Synthetic(c.profile.Engine.FallbackCategory, fmt.Sprintf("Disconnected from '%s'", e.Address()), time.Now())
			fmt.Fprintln(c.out, bye.String())
		}
		return true, err
	}

	for {
		select {
		case <-ctx.Done():
			return finish(ctx.Err())
		case <-e.Done():
			return finish(e.Err())
		case cmd, ok := <-input:
			if !ok {
				return finish(errInputClosed)
			}
			if err := e.Send(cmd); err != nil {
				if errors.Is(err, protocol.ErrInvalidCommand) {
					fmt.Fprintf(c.out, "econctl: %v\n", err)
					continue
				}
				return finish(err)
			}
		}
	}
}

func (c *client) print(e *econ.Engine) {
	for {
		msg, err := e.ReceiveContext(context.Background())
		if err != nil {
			return
		}
		fmt.Fprintln(c.out, msg.String())
	}
}
