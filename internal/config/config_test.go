package config

import (
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.LogLevel != "info" {
		t.Errorf("expected log_level 'info', got %q", cfg.LogLevel)
	}

	if cfg.IMAP.Port != 143 {
		t.Errorf("expected port 143, got %d", cfg.IMAP.Port)
	}

	if cfg.IMAP.Security != "none" {
		t.Errorf("expected security 'none', got %q", cfg.IMAP.Security)
	}

	if cfg.IMAP.ConnectTimeout != "10s" {
		t.Errorf("expected connect timeout '10s', got %q", cfg.IMAP.ConnectTimeout)
	}

	if !cfg.Domain.Strip {
		t.Error("expected domain stripping on by default")
	}

	if cfg.Domain.Group {
		t.Error("expected domain groups off by default")
	}

	if cfg.Domain.Required != "" {
		t.Errorf("expected no required domain, got %q", cfg.Domain.Required)
	}

	if cfg.Listen.MaxConcurrent != 100 {
		t.Errorf("expected max_concurrent 100, got %d", cfg.Listen.MaxConcurrent)
	}

	if cfg.Metrics.Enabled {
		t.Error("expected metrics disabled by default")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.IMAP.Host = "mail.example.com"
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing host",
			modify:  func(c *Config) { c.IMAP.Host = "" },
			wantErr: true,
		},
		{
			name:    "invalid port",
			modify:  func(c *Config) { c.IMAP.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "invalid security",
			modify:  func(c *Config) { c.IMAP.Security = "starttls" },
			wantErr: true,
		},
		{
			name:    "ssl security valid",
			modify:  func(c *Config) { c.IMAP.Security = "ssl" },
			wantErr: false,
		},
		{
			name:    "invalid connect timeout",
			modify:  func(c *Config) { c.IMAP.ConnectTimeout = "soon" },
			wantErr: true,
		},
		{
			name:    "listen enabled without address",
			modify:  func(c *Config) { c.Listen.Address = "" },
			wantErr: true,
		},
		{
			name: "listen disabled without address is fine",
			modify: func(c *Config) {
				c.Listen.Enabled = false
				c.Listen.Address = ""
			},
			wantErr: false,
		},
		{
			name:    "non-positive max_concurrent",
			modify:  func(c *Config) { c.Listen.MaxConcurrent = 0 },
			wantErr: true,
		},
		{
			name: "metrics enabled without address",
			modify: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Address = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTimeout(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 10 * time.Second},
		{"5s", 5 * time.Second},
		{"2m", 2 * time.Minute},
		{"garbage", 10 * time.Second},
	}

	for _, tt := range tests {
		c := IMAPConfig{ConnectTimeout: tt.value}
		if got := c.Timeout(); got != tt.want {
			t.Errorf("Timeout(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
