package session

import "time"

// BackoffConfig defines retry backoff behavior for callers that reconnect.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Banners are the server substrings that drive the handshake.
type Banners struct {
	Prompt   string
	Accepted string
	Rejected string
}

func DefaultBanners() Banners {
	return Banners{
		Prompt:   "Enter password:",
		Accepted: "Authentication successful",
		Rejected: "Wrong password",
	}
}

// AuthConfig bounds one handshake.
type AuthConfig struct {
	Banners Banners
	Timeout time.Duration
	// MaxReads caps reads between sending the password and a verdict.
	MaxReads int
}

func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Banners:  DefaultBanners(),
		Timeout:  5 * time.Second,
		MaxReads: 16,
	}
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
	}
}

func (c AuthConfig) WithDefaults() AuthConfig {
	def := DefaultAuthConfig()
	if c.Banners.Prompt == "" {
		c.Banners.Prompt = def.Banners.Prompt
	}
	if c.Banners.Accepted == "" {
		c.Banners.Accepted = def.Banners.Accepted
	}
	if c.Banners.Rejected == "" {
		c.Banners.Rejected = def.Banners.Rejected
	}
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.MaxReads <= 0 {
		c.MaxReads = def.MaxReads
	}
	return c
}
