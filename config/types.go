package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// Duration wraps time.Duration to support human readable TOML values.
type Duration struct {
	time.Duration
}

// UnmarshalText parses duration strings such as "30s".
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText renders the duration in time.Duration string form.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// HTTP configures the rebased API server.
type HTTP struct {
	ListenAddress     string   `toml:"ListenAddress"`
	ReadHeaderTimeout Duration `toml:"ReadHeaderTimeout"`
	ShutdownTimeout   Duration `toml:"ShutdownTimeout"`
}

// Logging configures the structured logger and optional file rotation.
type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}

// Telemetry configures OTLP exporters. An empty endpoint disables export.
type Telemetry struct {
	Endpoint string            `toml:"Endpoint"`
	Insecure bool              `toml:"Insecure"`
	Traces   bool              `toml:"Traces"`
	Metrics  bool              `toml:"Metrics"`
	Headers  map[string]string `toml:"Headers"`
}

// History configures the rebase history database.
type History struct {
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

// Auth configures bearer token verification for mutating endpoints.
type Auth struct {
	HMACSecret       string   `toml:"HMACSecret"`
	HMACSecretEnv    string   `toml:"HMACSecretEnv"`
	Issuer           string   `toml:"Issuer"`
	Audience         string   `toml:"Audience"`
	AllowedClockSkew Duration `toml:"AllowedClockSkew"`
}

// RateLimit throttles API requests per client. X-Real-IP and X-Forwarded-For
// are only trusted from peers inside TrustedProxies (IPs or CIDRs).
type RateLimit struct {
	RequestsPerSecond float64  `toml:"RequestsPerSecond"`
	Burst             int      `toml:"Burst"`
	TrustedProxies    []string `toml:"TrustedProxies"`
}

// Proxies parses TrustedProxies into prefixes. Bare addresses become
// single-host prefixes.
func (r RateLimit) Proxies() ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(r.TrustedProxies))
	for _, raw := range r.TrustedProxies {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("config: rate_limit.TrustedProxies %q: %w", entry, err)
			}
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("config: rate_limit.TrustedProxies %q: %w", entry, err)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Orchestrator configures the built-in rebase scheduler.
type Orchestrator struct {
	Enabled      bool     `toml:"Enabled"`
	PollInterval Duration `toml:"PollInterval"`
}
