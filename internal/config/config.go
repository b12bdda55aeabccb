// Package config provides YAML configuration file loading and validation.
// It handles environment variable expansion, default values, and the
// command-line overrides that turn a file into the settings of one run.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dmagro/poagov/internal/chain"
)

const (
	DefaultBlockTime  = 5 * time.Second
	DefaultTimeout    = 10 * time.Second
	DefaultMaxSizeMB  = 4
	DefaultMaxBackups = 3
	DefaultReportDir  = "reports"
	DefaultSMTPPort   = 587
)

// Config is the root of the YAML file.
type Config struct {
	DefaultNetwork    string             `yaml:"default_network"`
	BlockTime         time.Duration      `yaml:"block_time"`
	StartBlock        string             `yaml:"start_block"`
	NotificationLimit int                `yaml:"notification_limit"`
	Networks          map[string]Network `yaml:"networks"`
	Email             Email              `yaml:"email"`
	Log               Log                `yaml:"log"`
	Metrics           Metrics            `yaml:"metrics"`
	Report            Report             `yaml:"report"`

	// baseDir resolves relative ABI paths.
	baseDir string
	// warnings are non-fatal findings from the last Validate.
	warnings []string
}

// Network is one chain and the governance contracts deployed on it.
type Network struct {
	Endpoint  string        `yaml:"endpoint"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
	Contracts []Contract    `yaml:"contracts"`
}

// Contract points at one deployed governance contract. ABI is optional; the
// bundled ABI for the kind and version is used when it is empty.
type Contract struct {
	Kind    string `yaml:"kind"`
	Version string `yaml:"version"`
	Address string `yaml:"address"`
	ABI     string `yaml:"abi,omitempty"`
}

type Email struct {
	Enabled    bool     `yaml:"enabled"`
	SMTPHost   string   `yaml:"smtp_host"`
	SMTPPort   int      `yaml:"smtp_port"`
	Username   string   `yaml:"username"`
	Password   string   `yaml:"password"`
	From       string   `yaml:"from"`
	Recipients []string `yaml:"recipients"`
}

type Log struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	LogEmails  bool   `yaml:"log_emails"`
	Verbose    bool   `yaml:"verbose"`
}

type Metrics struct {
	Listen string `yaml:"listen"`
}

type Report struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// Validate checks required fields and applies defaults.
func (c *Config) Validate() error {
	if len(c.Networks) == 0 {
		return fmt.Errorf("at least one network is required")
	}
	if c.BlockTime == 0 {
		c.BlockTime = DefaultBlockTime
	}
	if c.BlockTime < 0 {
		return fmt.Errorf("block_time must be positive")
	}
	if c.NotificationLimit < 0 {
		return fmt.Errorf("notification_limit must be >= 0")
	}
	if _, err := chain.ParseStartBlock(c.StartBlock); err != nil {
		return fmt.Errorf("start_block: %w", err)
	}
	if c.DefaultNetwork != "" {
		if _, ok := c.Networks[c.DefaultNetwork]; !ok {
			return fmt.Errorf("default_network %q is not defined", c.DefaultNetwork)
		}
	}

	c.warnings = nil
	warnTimeout := func(scope string, d time.Duration) {
		const low = 500 * time.Millisecond
		const high = 2 * time.Minute
		if d > 0 && d < low {
			c.warnings = append(c.warnings, fmt.Sprintf("%s timeout is very low (%s); requests may fail under normal network jitter", scope, d))
		}
		if d > high {
			c.warnings = append(c.warnings, fmt.Sprintf("%s timeout is very high (%s); failures may take a long time to surface", scope, d))
		}
	}

	for name, n := range c.Networks {
		if n.Timeout == 0 {
			n.Timeout = DefaultTimeout
		}
		if n.Endpoint == "" {
			return fmt.Errorf("network %s: endpoint is required", name)
		}

		u, err := url.Parse(n.Endpoint)
		if err != nil {
			return fmt.Errorf("network %s: invalid endpoint: %w", name, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("network %s: invalid endpoint (missing scheme or host)", name)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("network %s: invalid endpoint scheme %q (expected http or https)", name, u.Scheme)
		}
		warnTimeout(fmt.Sprintf("network %s", name), n.Timeout)

		if len(n.Contracts) == 0 {
			return fmt.Errorf("network %s: at least one contract is required", name)
		}
		seen := map[string]bool{}
		for i, ct := range n.Contracts {
			if _, err := ct.parse(); err != nil {
				return fmt.Errorf("network %s: contracts[%d]: %w", name, i, err)
			}
			kind := strings.ToLower(ct.Kind)
			if seen[kind] {
				return fmt.Errorf("network %s: more than one %s contract", name, kind)
			}
			seen[kind] = true
		}
		c.Networks[name] = n
	}

	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = DefaultMaxSizeMB
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = DefaultMaxBackups
	}
	if c.Report.Dir == "" {
		c.Report.Dir = DefaultReportDir
	}
	if c.Email.SMTPPort == 0 {
		c.Email.SMTPPort = DefaultSMTPPort
	}
	if c.Email.Enabled {
		if err := c.Email.validate(); err != nil {
			return err
		}
	}
	sort.Strings(c.warnings)
	return nil
}

// Warnings returns the non-fatal problems found by Validate.
func (c *Config) Warnings() []string {
	return c.warnings
}

func (e Email) validate() error {
	if e.SMTPHost == "" {
		return fmt.Errorf("email.smtp_host is required when email is enabled")
	}
	if e.From == "" {
		return fmt.Errorf("email.from is required when email is enabled")
	}
	return nil
}

// NetworkNames returns the configured network names in sorted order.
func (c *Config) NetworkNames() []string {
	names := make([]string, 0, len(c.Networks))
	for name := range c.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load reads a YAML config file, expands ${VAR} references and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.baseDir = filepath.Dir(path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
