package inhttp

import (
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// Hard ceilings. Config may tighten these, never exceed them.
const (
	maxRequestLine            = 8190
	maxHeaderFields           = 32768
	defaultMaxHeaderFieldSize = 8190
)

// Config is the immutable per-parse configuration surface. A zero value is
// not usable; start from DefaultConfig or FromEnv.
type Config struct {
	// IsSSL sets the initial scheme before any trusted forwarding header
	// is consulted.
	IsSSL bool `env:"INHTTP_IS_SSL"`

	LimitRequestFields    int `env:"INHTTP_LIMIT_REQUEST_FIELDS" envDefault:"100"`
	LimitRequestFieldSize int `env:"INHTTP_LIMIT_REQUEST_FIELD_SIZE" envDefault:"8190"`
	LimitRequestLine      int `env:"INHTTP_LIMIT_REQUEST_LINE" envDefault:"4094"`

	// StripHeaderSpaces right-trims spaces and tabs from header names
	// before validation, for peers that emit "Name : value".
	StripHeaderSpaces bool `env:"INHTTP_STRIP_HEADER_SPACES"`

	// ForwardedAllowIPs lists peer IPs whose forwarding headers are
	// trusted for scheme derivation. "*" trusts everyone.
	ForwardedAllowIPs []string `env:"INHTTP_FORWARDED_ALLOW_IPS" envDefault:"127.0.0.1,::1" envSeparator:","`

	// SecureSchemeHeaders maps a header name to the value that indicates
	// an upstream TLS termination. Names are normalized to uppercase.
	SecureSchemeHeaders map[string]string `env:"INHTTP_SECURE_SCHEME_HEADERS" envSeparator:"," envKeyValSeparator:"="`

	ProxyProtocol bool     `env:"INHTTP_PROXY_PROTOCOL"`
	ProxyAllowIPs []string `env:"INHTTP_PROXY_ALLOW_IPS" envDefault:"127.0.0.1,::1" envSeparator:","`

	// TolerateDangerousFraming relaxes a subset of the smuggling defenses
	// (chunked on HTTP/1.0, chunked alongside Content-Length, empty
	// Transfer-Encoding). Unknown transfer codings are rejected no matter
	// what. Forced connection closure still applies on every relaxed path.
	TolerateDangerousFraming bool `env:"INHTTP_TOLERATE_DANGEROUS_FRAMING"`

	Logger zerolog.Logger `env:"-"`
}

// DefaultConfig returns the configuration gunicorn-compatible deployments
// expect: loopback-only trust, 100 header fields, 4094-byte request line.
func DefaultConfig() *Config {
	c := &Config{
		LimitRequestFields:    100,
		LimitRequestFieldSize: defaultMaxHeaderFieldSize,
		LimitRequestLine:      4094,
		ForwardedAllowIPs:     []string{"127.0.0.1", "::1"},
		ProxyAllowIPs:         []string{"127.0.0.1", "::1"},
		Logger:                nopLogger,
	}
	c.normalize()
	return c
}

// FromEnv builds a Config from INHTTP_* environment variables.
func FromEnv() (*Config, error) {
	c := Config{Logger: nopLogger}
	if err := env.Parse(&c); err != nil {
		return nil, err
	}
	c.normalize()
	return &c, nil
}

func (c *Config) normalize() {
	if c.SecureSchemeHeaders == nil {
		c.SecureSchemeHeaders = map[string]string{
			"X-FORWARDED-PROTOCOL": "ssl",
			"X-FORWARDED-PROTO":    "https",
			"X-FORWARDED-SSL":      "on",
		}
		return
	}
	normalized := make(map[string]string, len(c.SecureSchemeHeaders))
	for name, value := range c.SecureSchemeHeaders {
		normalized[strings.ToUpper(name)] = value
	}
	c.SecureSchemeHeaders = normalized
}

// limits holds the effective per-message limits after clamping. Zero
// fieldSize or line means unlimited.
type limits struct {
	fields       int
	fieldSize    int
	line         int
	headerBuffer int
}

// resolveLimits clamps the configured limits to the hard ceilings and
// substitutes defaults for unset or invalid values. Resolved once per
// message, immutable thereafter.
func (c *Config) resolveLimits() limits {
	l := limits{
		fields:    c.LimitRequestFields,
		fieldSize: c.LimitRequestFieldSize,
		line:      c.LimitRequestLine,
	}
	if l.fields <= 0 || l.fields > maxHeaderFields {
		l.fields = maxHeaderFields
	}
	if l.fieldSize < 0 {
		l.fieldSize = defaultMaxHeaderFieldSize
	}
	if l.line < 0 || l.line >= maxRequestLine {
		l.line = maxRequestLine
	}

	fieldSize := l.fieldSize
	if fieldSize == 0 {
		fieldSize = defaultMaxHeaderFieldSize
	}
	l.headerBuffer = l.fields*(fieldSize+2) + 4
	return l
}
