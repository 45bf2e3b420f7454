// econctl is an interactive client for a game server external console.
//
// Usage:
//
//	econctl [flags] [host:port]
//
// Lines typed on stdin are sent as console commands; console output is
// printed as [HH:MM:SS][category]: content.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/econctl/internal/logging"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "econctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		_ = os.Setenv(logging.EnvLogLevel, opts.logLevel)
	}
	logging.ConfigureRuntime()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	editor := newLineEditor()
	defer editor.Close()

	profile := opts.profile
	if profile.Address == "" {
		addr, err := editor.ReadLine("server address (host:ec_port): ")
		if err != nil {
			return fmt.Errorf("read address: %w", err)
		}
		profile.Address = strings.TrimSpace(addr)
	}
	if err := profile.Validate(); err != nil {
		return err
	}
	if profile.Password == "" && !opts.passwordSet && editor.Interactive() {
		fmt.Fprint(os.Stderr, "password: ")
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		profile.Password = string(pw)
	}

	if profile.MetricsAddr != "" {
		srv, err := serveMetrics(profile.MetricsAddr)
		if err != nil {
			return err
		}
		defer srv.Close()
	}

	c := newClient(profile, editor.Output(), rand.New(rand.NewSource(time.Now().UnixNano())))
	return c.run(ctx, readLines(editor))
}
