package main

import (
	"fmt"
	"io"
	"os"

	"github.com/danmuck/econctl/internal/config"
	"github.com/spf13/pflag"
)

type options struct {
	configPath  string
	logLevel    string
	passwordSet bool
	profile     config.Profile
}

// parseFlags loads the optional TOML profile and applies every flag the
// user set on top of it. A positional argument is the server address.
func parseFlags(args []string, stderr io.Writer) (options, error) {
	def := config.DefaultProfile()

	var (
		opts        options
		address     string
		password    string
		passwordEnv string
		fallback    string
		metricsAddr string
		noAnnounce  bool
		reconnect   bool
		maxAttempts int
		bufferSize  int
	)
	fs := pflag.NewFlagSet("econctl", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.configPath, "config", "c", "", "TOML profile to load")
	fs.StringVarP(&address, "address", "a", "", "console address host:port")
	fs.StringVarP(&password, "password", "p", "", "console password (prompted when empty on a terminal)")
	fs.StringVar(&passwordEnv, "password-env", "", "read the password from this environment variable")
	fs.StringVar(&fallback, "fallback-category", def.Engine.FallbackCategory, "category for unstructured lines")
	fs.IntVar(&bufferSize, "buffer-size", def.Engine.BufferSize, "read buffer size and longest accepted line")
	readTimeout := fs.Duration("read-timeout", def.Engine.ReadTimeout, "socket poll interval")
	connectTimeout := fs.Duration("connect-timeout", def.Engine.ConnectTimeout, "dial timeout")
	handshakeTimeout := fs.Duration("handshake-timeout", def.Engine.HandshakeTimeout, "authentication timeout")
	fs.BoolVar(&noAnnounce, "no-announce", false, "do not print the synthetic connected message")
	fs.BoolVar(&reconnect, "reconnect", def.Reconnect, "reconnect with backoff after the connection drops")
	fs.IntVar(&maxAttempts, "max-reconnect-attempts", def.MaxReconnectAttempts, "give up after this many consecutive attempts (0 = unlimited)")
	fs.StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	fs.StringVar(&opts.logLevel, "log-level", "", "trace|debug|info|warn|error")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 1 {
		return options{}, fmt.Errorf("unexpected argument: %s", fs.Arg(1))
	}

	profile := def
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return options{}, err
		}
		profile = loaded
	}

	if fs.NArg() == 1 {
		profile.Address = fs.Arg(0)
	}
	if fs.Changed("address") {
		profile.Address = address
	}
	if fs.Changed("password-env") {
		v, ok := os.LookupEnv(passwordEnv)
		if !ok {
			return options{}, fmt.Errorf("password-env %q is not set", passwordEnv)
		}
		profile.Password = v
		opts.passwordSet = true
	}
	if fs.Changed("password") {
		profile.Password = password
		opts.passwordSet = true
	}
	if fs.Changed("fallback-category") {
		profile.Engine.FallbackCategory = fallback
	}
	if fs.Changed("buffer-size") {
		if bufferSize <= 0 {
			return options{}, fmt.Errorf("buffer-size must be positive, got %d", bufferSize)
		}
		profile.Engine.BufferSize = bufferSize
	}
	if fs.Changed("read-timeout") {
		profile.Engine.ReadTimeout = *readTimeout
	}
	if fs.Changed("connect-timeout") {
		profile.Engine.ConnectTimeout = *connectTimeout
	}
	if fs.Changed("handshake-timeout") {
		profile.Engine.HandshakeTimeout = *handshakeTimeout
	}
	if fs.Changed("no-announce") {
		profile.Engine.AnnounceConnect = !noAnnounce
	}
	if fs.Changed("reconnect") {
		profile.Reconnect = reconnect
	}
	if fs.Changed("max-reconnect-attempts") {
		profile.MaxReconnectAttempts = maxAttempts
	}
	if fs.Changed("metrics-addr") {
		profile.MetricsAddr = metricsAddr
	}

	profile.Engine = profile.Engine.WithDefaults()
	opts.profile = profile
	return opts, nil
}
