package econ

import (
	"time"

	"github.com/danmuck/econctl/internal/protocol/line"
	"github.com/danmuck/econctl/internal/protocol/message"
	"github.com/danmuck/econctl/internal/protocol/session"
)

// Config defines engine buffer, timeout and parsing knobs.
type Config struct {
	// BufferSize is the scratch read size and the longest accepted line.
	BufferSize       int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	ConnectTimeout   time.Duration
	HandshakeTimeout time.Duration
	MaxAuthReads     int
	FallbackCategory string
	Banners          session.Banners
	// AnnounceConnect queues a synthetic "Connected to" message first.
	AnnounceConnect bool
}

func DefaultConfig() Config {
	auth := session.DefaultAuthConfig()
	return Config{
		BufferSize:       line.DefaultBufferSize,
		ReadTimeout:      200 * time.Millisecond,
		WriteTimeout:     5 * time.Second,
		ConnectTimeout:   5 * time.Second,
		HandshakeTimeout: auth.Timeout,
		MaxAuthReads:     auth.MaxReads,
		FallbackCategory: message.DefaultFallbackCategory,
		Banners:          auth.Banners,
		AnnounceConnect:  true,
	}
}

// WithDefaults fills zero-valued fields. AnnounceConnect is left as given.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.MaxAuthReads <= 0 {
		c.MaxAuthReads = def.MaxAuthReads
	}
	if c.FallbackCategory == "" {
		c.FallbackCategory = def.FallbackCategory
	}
	c.Banners = session.AuthConfig{Banners: c.Banners}.WithDefaults().Banners
	return c
}

func (c Config) authConfig() session.AuthConfig {
	return session.AuthConfig{
		Banners:  c.Banners,
		Timeout:  c.HandshakeTimeout,
		MaxReads: c.MaxAuthReads,
	}
}
