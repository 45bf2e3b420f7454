package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/econctl/internal/econ"
	"github.com/danmuck/econctl/internal/protocol/session"
)

var ErrMissingAddress = errors.New("config: address is required")

// Profile is one console target plus client behavior.
type Profile struct {
	Address  string
	Password string
	Engine   econ.Config

	Reconnect            bool
	MaxReconnectAttempts int
	Backoff              session.BackoffConfig

	// MetricsAddr serves /metrics when non-empty.
	MetricsAddr string
}

type fileConfig struct {
	Address     string `toml:"address"`
	Password    string `toml:"password"`
	PasswordEnv string `toml:"password_env"`

	BufferSize       int    `toml:"buffer_size"`
	ReadTimeout      string `toml:"read_timeout"`
	WriteTimeout     string `toml:"write_timeout"`
	ConnectTimeout   string `toml:"connect_timeout"`
	HandshakeTimeout string `toml:"handshake_timeout"`
	MaxAuthReads     int    `toml:"max_auth_reads"`
	FallbackCategory string `toml:"fallback_category"`
	AnnounceConnect  bool   `toml:"announce_connect"`

	Prompt   string `toml:"prompt"`
	Accepted string `toml:"accepted"`
	Rejected string `toml:"rejected"`

	Reconnect            bool   `toml:"reconnect"`
	MaxReconnectAttempts int    `toml:"max_reconnect_attempts"`
	ReconnectDelay       string `toml:"reconnect_delay"`
	ReconnectMaxDelay    string `toml:"reconnect_max_delay"`

	MetricsAddr string `toml:"metrics_addr"`
}

func DefaultProfile() Profile {
	return Profile{
		Engine:  econ.DefaultConfig(),
		Backoff: session.DefaultBackoffConfig(),
	}
}

// Load reads a TOML profile and overlays the keys it defines onto
// DefaultProfile.
func Load(path string) (Profile, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Profile{}, fmt.Errorf("load econctl config: %w", err)
	}
	return overlay(DefaultProfile(), raw, meta)
}

// Decode is Load for in-memory TOML.
func Decode(data string) (Profile, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Profile{}, fmt.Errorf("decode econctl config: %w", err)
	}
	return overlay(DefaultProfile(), raw, meta)
}

func overlay(cfg Profile, raw fileConfig, meta toml.MetaData) (Profile, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Profile{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}

	if meta.IsDefined("address") {
		cfg.Address = strings.TrimSpace(raw.Address)
	}
	if meta.IsDefined("password") {
		cfg.Password = raw.Password
	}
	if meta.IsDefined("password_env") {
		name := strings.TrimSpace(raw.PasswordEnv)
		if v, ok := os.LookupEnv(name); ok {
			cfg.Password = v
		} else if !meta.IsDefined("password") {
			return Profile{}, fmt.Errorf("password_env %q is not set", name)
		}
	}

	if meta.IsDefined("buffer_size") {
		if raw.BufferSize <= 0 {
			return Profile{}, fmt.Errorf("buffer_size must be positive, got %d", raw.BufferSize)
		}
		cfg.Engine.BufferSize = raw.BufferSize
	}
	durations := []struct {
		key string
		val string
		dst *time.Duration
	}{
		{"read_timeout", raw.ReadTimeout, &cfg.Engine.ReadTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.Engine.WriteTimeout},
		{"connect_timeout", raw.ConnectTimeout, &cfg.Engine.ConnectTimeout},
		{"handshake_timeout", raw.HandshakeTimeout, &cfg.Engine.HandshakeTimeout},
		{"reconnect_delay", raw.ReconnectDelay, &cfg.Backoff.InitialDelay},
		{"reconnect_max_delay", raw.ReconnectMaxDelay, &cfg.Backoff.MaxDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.val))
		if err != nil {
			return Profile{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		if v <= 0 {
			return Profile{}, fmt.Errorf("%s must be positive, got %s", d.key, v)
		}
		*d.dst = v
	}
	if meta.IsDefined("max_auth_reads") {
		cfg.Engine.MaxAuthReads = raw.MaxAuthReads
	}
	if meta.IsDefined("fallback_category") {
		cfg.Engine.FallbackCategory = strings.TrimSpace(raw.FallbackCategory)
	}
	if meta.IsDefined("announce_connect") {
		cfg.Engine.AnnounceConnect = raw.AnnounceConnect
	}

	if meta.IsDefined("prompt") {
		cfg.Engine.Banners.Prompt = raw.Prompt
	}
	if meta.IsDefined("accepted") {
		cfg.Engine.Banners.Accepted = raw.Accepted
	}
	if meta.IsDefined("rejected") {
		cfg.Engine.Banners.Rejected = raw.Rejected
	}

	if meta.IsDefined("reconnect") {
		cfg.Reconnect = raw.Reconnect
	}
	if meta.IsDefined("max_reconnect_attempts") {
		cfg.MaxReconnectAttempts = raw.MaxReconnectAttempts
	}
	if meta.IsDefined("metrics_addr") {
		cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	}

	cfg.Engine = cfg.Engine.WithDefaults()
	return cfg, nil
}

// Validate reports whether p can be used to connect.
func (p Profile) Validate() error {
	if strings.TrimSpace(p.Address) == "" {
		return ErrMissingAddress
	}
	if p.MaxReconnectAttempts < 0 {
		return fmt.Errorf("config: max_reconnect_attempts must be >= 0, got %d", p.MaxReconnectAttempts)
	}
	return nil
}
