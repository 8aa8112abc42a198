// Package config provides configuration management for go-timebook-web.
// Server settings come from an optional TOML file, the environment and
// command-line flags (in that order of precedence, lowest first).
package config

import (
	"errors"
	"fmt"
	"log"
	"net/netip"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

var AppVersion = "-unset-" // will be set at build time

const (
	// DefaultSheet is the only timesheet the web views read from
	DefaultSheet = "default"

	DefaultListenPort = 11980
	DefaultLocale     = "en"

	// ProxyUserHeader is the conventional user_header value for a reverse
	// proxy that authenticates users. Header lookup is off by default.
	ProxyUserHeader = "X-Timebook-User"
)

// DefaultTrustedProxies are the peers allowed to set forwarding and user
// headers
var DefaultTrustedProxies = []string{"127.0.0.1", "::1"}

// ErrNoUser is returned when no timebook user can be determined for a request
var ErrNoUser = errors.New("no timebook user configured (set TIMEBOOK_USER)")

// WebConfig holds web interface configuration
type WebConfig struct {
	ListenPort int    `toml:"listen_port" env:"TIMEBOOK_WEB_PORT"`
	SSL        bool   `toml:"ssl"         env:"TIMEBOOK_WEB_SSL"`
	CertFile   string `toml:"cert_file"   env:"TIMEBOOK_WEB_CERT"`
	KeyFile    string `toml:"key_file"    env:"TIMEBOOK_WEB_KEY"`
	Debug      bool   `toml:"debug"       env:"TIMEBOOK_WEB_DEBUG"` // logs the per-user config on every request

	// UserHeader names a request header set by a trusted reverse proxy
	// carrying the timebook user. Empty disables header lookup.
	UserHeader string `toml:"user_header" env:"TIMEBOOK_WEB_USER_HEADER"`

	// TrustedProxies lists addresses or CIDR ranges whose UserHeader and
	// X-Forwarded-* headers are honoured
	TrustedProxies []string `toml:"trusted_proxies" env:"TIMEBOOK_WEB_TRUSTED_PROXIES" envSeparator:","`

	Locale string `toml:"locale" env:"TIMEBOOK_WEB_LOCALE"`

	// Basic auth, disabled when PasswordHash is empty
	Username     string `toml:"username"      env:"TIMEBOOK_WEB_USERNAME"`
	PasswordHash string `toml:"password_hash" env:"TIMEBOOK_WEB_PASSWORD_HASH"`

	PprofAddr string `toml:"pprof_addr" env:"TIMEBOOK_WEB_PPROF"`
}

// Env holds the variables the surrounding deployment injects
type Env struct {
	User       string `env:"TIMEBOOK_USER"`
	LogFile    string `env:"TIMEBOOK_LOG_FILE"`
	ConfigFile string `env:"TIMEBOOK_WEB_CONFIG"`
}

// NewDefaultWebConfig returns a configuration with sensible defaults
func NewDefaultWebConfig() *WebConfig {
	return &WebConfig{
		ListenPort:     DefaultListenPort,
		TrustedProxies: append([]string(nil), DefaultTrustedProxies...),
		Locale:         DefaultLocale,
	}
}

// ParseEnv loads the deployment environment
func ParseEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return e, fmt.Errorf("parse env: %w", err)
	}
	return e, nil
}

// LoadWebConfig builds the web config from defaults, an optional TOML file
// and environment overrides. A missing file is not an error.
func LoadWebConfig(path string) (*WebConfig, error) {
	cfg := NewDefaultWebConfig()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
			log.Printf("[CONFIG]: loaded web config from %s", path)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config for values the server cannot run with
func (c *WebConfig) Validate() error {
	if c.ListenPort < 1 || c.ListenPort > 65535 {
		return fmt.Errorf("invalid listen_port %d (must be between 1 and 65535)", c.ListenPort)
	}
	if c.SSL && (c.CertFile == "" || c.KeyFile == "") {
		return errors.New("ssl enabled but cert_file or key_file not specified")
	}
	if c.PasswordHash != "" && c.Username == "" {
		return errors.New("password_hash set without username")
	}
	if _, err := c.TrustedPrefixes(); err != nil {
		return err
	}
	if c.UserHeader != "" && len(c.TrustedProxies) == 0 {
		return errors.New("user_header set without trusted_proxies")
	}
	return nil
}

// TrustedPrefixes parses TrustedProxies; single addresses become host
// prefixes
func (c *WebConfig) TrustedPrefixes() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, p := range c.TrustedProxies {
		p = strings.TrimSpace(p)
		if strings.Contains(p, "/") {
			prefix, err := netip.ParsePrefix(p)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted_proxies entry %q: %w", p, err)
			}
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(p)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted_proxies entry %q: %w", p, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// AuthEnabled reports whether basic auth protects the timesheet routes
func (c *WebConfig) AuthEnabled() bool {
	return c.PasswordHash != ""
}
