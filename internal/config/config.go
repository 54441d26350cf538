// Package config provides configuration management for the imapauth agent.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the imapauth configuration.
type Config struct {
	LogLevel string        `toml:"log_level"`
	IMAP     IMAPConfig    `toml:"imap"`
	Domain   DomainConfig  `toml:"domain"`
	Listen   ListenConfig  `toml:"listen"`
	Metrics  MetricsConfig `toml:"metrics"`
}

// IMAPConfig describes the remote IMAP server used as the credential oracle.
type IMAPConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	Security       string `toml:"security"`
	ConnectTimeout string `toml:"connect_timeout"`
	TLSSkipVerify  bool   `toml:"tls_skip_verify"`
}

// DomainConfig holds the domain policy applied to submitted usernames.
type DomainConfig struct {
	// Required restricts accepted logins to this email domain. Empty
	// disables the policy.
	Required string `toml:"required"`

	// Strip removes the matched domain from the stored uid.
	Strip bool `toml:"strip_domain"`

	// Group derives a group membership from the uid's domain part.
	Group bool `toml:"domain_group"`
}

// ListenConfig holds settings for the HTTP authentication endpoint.
type ListenConfig struct {
	Enabled       bool   `toml:"enabled"`
	Address       string `toml:"address"`
	MaxConcurrent int    `toml:"max_concurrent"`
}

// MetricsConfig holds configuration for Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Path    string `toml:"path"`
}

// Default returns a Config with sensible default values.
func Default() Config {
	return Config{
		LogLevel: "info",
		IMAP: IMAPConfig{
			Port:           143,
			Security:       "none",
			ConnectTimeout: "10s",
		},
		Domain: DomainConfig{
			Strip: true,
		},
		Listen: ListenConfig{
			Enabled:       true,
			Address:       ":8143",
			MaxConcurrent: 100,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9101",
			Path:    "/metrics",
		},
	}
}

// Validate checks that the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.IMAP.Host == "" {
		return errors.New("imap host is required")
	}

	if c.IMAP.Port < 1 || c.IMAP.Port > 65535 {
		return fmt.Errorf("invalid imap port %d", c.IMAP.Port)
	}

	if !isValidSecurity(c.IMAP.Security) {
		return fmt.Errorf("invalid security mode %q (valid: none, ssl, tls)", c.IMAP.Security)
	}

	if c.IMAP.ConnectTimeout != "" {
		if _, err := time.ParseDuration(c.IMAP.ConnectTimeout); err != nil {
			return fmt.Errorf("invalid connect timeout: %w", err)
		}
	}

	if c.Listen.Enabled {
		if c.Listen.Address == "" {
			return errors.New("listen address is required when the HTTP endpoint is enabled")
		}
		if c.Listen.MaxConcurrent <= 0 {
			return errors.New("max_concurrent must be positive")
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			return errors.New("metrics address is required when metrics are enabled")
		}
		if c.Metrics.Path == "" {
			return errors.New("metrics path is required when metrics are enabled")
		}
	}

	return nil
}

// Timeout returns the connect timeout as a time.Duration.
// Returns 10 seconds if not configured or invalid.
func (c *IMAPConfig) Timeout() time.Duration {
	if c.ConnectTimeout == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(c.ConnectTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

func isValidSecurity(s string) bool {
	switch s {
	case "", "none", "ssl", "tls":
		return true
	default:
		return false
	}
}
