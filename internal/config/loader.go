package config

import (
	"flag"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Flags holds command-line flag values.
type Flags struct {
	ConfigPath string
	Host       string
	Port       int
	Security   string
	Domain     string
	LogLevel   string
	Listen     string
	Check      bool
}

// ParseFlags parses command-line flags and returns a Flags struct.
func ParseFlags() *Flags {
	f := &Flags{}

	flag.StringVar(&f.ConfigPath, "config", "./imapauth.toml", "Path to configuration file")
	flag.StringVar(&f.Host, "host", "", "IMAP server hostname")
	flag.IntVar(&f.Port, "port", 0, "IMAP server port")
	flag.StringVar(&f.Security, "security", "", "Connection security (none, ssl, tls)")
	flag.StringVar(&f.Domain, "domain", "", "Required email domain")
	flag.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&f.Listen, "listen", "", "HTTP endpoint listen address")
	flag.BoolVar(&f.Check, "check", false, "Check one credential pair and exit")

	flag.Parse()
	return f
}

// Load parses a TOML configuration file and returns the Config.
// If the file does not exist, returns the default configuration. Values
// absent from the file keep their defaults, including booleans.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// ApplyFlags merges command-line flag values into the config.
// Non-zero/non-empty flag values override config file values.
func ApplyFlags(cfg Config, f *Flags) Config {
	if f.Host != "" {
		cfg.IMAP.Host = f.Host
	}

	if f.Port > 0 {
		cfg.IMAP.Port = f.Port
	}

	if f.Security != "" {
		cfg.IMAP.Security = f.Security
	}

	if f.Domain != "" {
		cfg.Domain.Required = f.Domain
	}

	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}

	if f.Listen != "" {
		cfg.Listen.Enabled = true
		cfg.Listen.Address = f.Listen
	}

	return cfg
}

// LoadWithFlags loads configuration from the path specified in flags,
// then applies flag overrides.
func LoadWithFlags(f *Flags) (Config, error) {
	cfg, err := Load(f.ConfigPath)
	if err != nil {
		return cfg, err
	}
	return ApplyFlags(cfg, f), nil
}
