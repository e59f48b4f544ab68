package config

import (
	"strings"
	"time"
)

const (
	defaultSessionUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"
	defaultMaxBodyBytes     = 5 << 20
)

// SessionConfig controls the HTTP automation session shared by portal adapters.
type SessionConfig struct {
	UserAgent      string        `env:"USER_AGENT"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	// ProxyURL routes every portal request through a proxy when set.
	ProxyURL string `env:"PROXY_URL"`
	// MaxBodyBytes caps how much of a page is read.
	MaxBodyBytes int64 `env:"MAX_BODY_BYTES" envDefault:"5242880"`
	// AcceptLanguage is sent with every request; portals localize dates based on it.
	AcceptLanguage string `env:"ACCEPT_LANGUAGE" envDefault:"ko-KR,ko;q=0.9,en;q=0.8"`
}

// Sanitize applies guardrails to session configuration values.
func (c *SessionConfig) Sanitize() {
	if c.UserAgent = strings.TrimSpace(c.UserAgent); c.UserAgent == "" {
		c.UserAgent = defaultSessionUserAgent
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 30 * time.Second
	}
	c.ProxyURL = strings.TrimSpace(c.ProxyURL)
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	c.AcceptLanguage = strings.TrimSpace(c.AcceptLanguage)
}
